package synthetic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routeplanner/internal/geo"
	"routeplanner/internal/models"
)

var origin = models.LatLng{Lat: 34.09, Lng: -118.28}

func TestLoopStartsAndEndsAtOrigin(t *testing.T) {
	for _, hilly := range []bool{false, true} {
		ring := Loop(origin, 8046, hilly)
		require.Len(t, ring, 71)

		first, last := ring[0], ring[len(ring)-1]
		assert.InDelta(t, origin.Lng, first.Lon(), 1e-9)
		assert.InDelta(t, origin.Lat, first.Lat(), 1e-9)
		assert.InDelta(t, origin.Lng, last.Lon(), 1e-9)
		assert.InDelta(t, origin.Lat, last.Lat(), 1e-9)
	}
}

func TestLoopOriginIsSouthernmostPoint(t *testing.T) {
	ring := Loop(origin, 8046, false)
	for _, p := range ring {
		assert.GreaterOrEqual(t, p.Lat(), origin.Lat-1e-9)
	}
}

func TestLoopLengthApproximatesTarget(t *testing.T) {
	const target = 8046.0
	ring := Loop(origin, target, false)

	total := 0.0
	for i := 1; i < len(ring); i++ {
		total += geo.PlanarDistance(ring[i-1], ring[i], origin.Lat)
	}
	// A 70-segment polygon slightly undercuts its circumscribed circle.
	assert.InDelta(t, target, total, target*0.02)
}

func TestOutAndBackShape(t *testing.T) {
	line := OutAndBack(origin, 1609, 90)
	require.Len(t, line, 3)
	assert.Equal(t, line[0], line[2])
	assert.InDelta(t, origin.Lng, line[0].Lon(), 1e-9)
	assert.InDelta(t, origin.Lat, line[0].Lat(), 1e-9)

	// Midpoint sits half the target distance due east.
	d := geo.PlanarDistance(line[0], line[1], origin.Lat)
	assert.InDelta(t, 804.5, d, 1)
	assert.InDelta(t, origin.Lat, line[1].Lat(), 1e-9)
	assert.Greater(t, line[1].Lon(), origin.Lng)
}

func TestElevationProfileShape(t *testing.T) {
	flat := ElevationProfile(5000, false, 1)
	require.Len(t, flat, 51)
	assert.Equal(t, 0.0, flat[0].DistanceMeters)
	assert.InDelta(t, 5000, flat[50].DistanceMeters, 1e-9)

	for _, s := range flat {
		assert.InDelta(t, 120, s.ElevationMeters, 8.001)
	}

	hilly := ElevationProfile(5000, true, 1)
	maxDev := 0.0
	for _, s := range hilly {
		if dev := s.ElevationMeters - 120; dev > maxDev {
			maxDev = dev
		}
	}
	// Hills swing well beyond the flat amplitude.
	assert.Greater(t, maxDev, 20.0)
}

func TestElevationProfileIntensityScalesAmplitude(t *testing.T) {
	lo := ElevationProfile(5000, true, 0.5)
	hi := ElevationProfile(5000, true, 2)
	for i := range lo {
		loDev := lo[i].ElevationMeters - 120
		hiDev := hi[i].ElevationMeters - 120
		assert.InDelta(t, loDev*4, hiDev, 1e-6)
	}
}
