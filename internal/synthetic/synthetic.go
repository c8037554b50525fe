// Package synthetic produces idealized fallback geometry for when the
// external router is unavailable. Nothing here is routable or walkable; the
// shapes exist so the map never shows an empty result, and every consumer
// must tag them as mock data.
package synthetic

import (
	"math"

	"github.com/paulmach/orb"

	"routeplanner/internal/geo"
	"routeplanner/internal/models"
)

const (
	loopPoints     = 71
	profileSamples = 51
	baseElevation  = 120.0
)

// Loop returns a closed ring of loopPoints map-order coordinates whose total
// length approximates targetMeters. The ring is centered one radius north of
// the origin so its southernmost point, where the loop starts and ends, is
// the origin itself. With hilly set, the radius wobbles to make the shape
// visually uneven; the wobble is cosmetic and unrelated to elevation.
func Loop(origin models.LatLng, targetMeters float64, hilly bool) orb.LineString {
	radius := targetMeters / (2 * math.Pi)
	centerLat := origin.Lat + geo.MetersToLatDelta(radius)

	ring := make(orb.LineString, 0, loopPoints)
	for i := 0; i < loopPoints; i++ {
		theta := -math.Pi/2 + 2*math.Pi*float64(i)/float64(loopPoints-1)
		r := radius
		if hilly {
			r *= 1 + 0.2*math.Sin(2*theta)
		}
		lat := centerLat + geo.MetersToLatDelta(r*math.Sin(theta))
		lng := origin.Lng + geo.MetersToLonDelta(r*math.Cos(theta), origin.Lat)
		ring = append(ring, orb.Point{lng, lat})
	}
	return ring
}

// OutAndBack returns the three-point line origin → midpoint → origin, with
// the midpoint half the target distance away along bearingDeg (0 = north,
// 90 = east).
func OutAndBack(origin models.LatLng, targetMeters, bearingDeg float64) orb.LineString {
	half := targetMeters / 2
	rad := bearingDeg * math.Pi / 180
	mid := orb.Point{
		origin.Lng + geo.MetersToLonDelta(half*math.Sin(rad), origin.Lat),
		origin.Lat + geo.MetersToLatDelta(half*math.Cos(rad)),
	}
	start := origin.Point()
	return orb.LineString{start, mid, start}
}

// ElevationProfile fabricates a plausible-looking profile for a route of the
// given length. It is cosmetic filler for display purposes only and must
// never be presented as terrain data. Intensity scales the amplitude and is
// used to vary the three candidates.
func ElevationProfile(lengthMeters float64, hilly bool, intensity float64) []models.ElevationSample {
	if intensity <= 0 {
		intensity = 1
	}
	amplitude := 8.0
	if hilly {
		amplitude = 35.0
	}
	amplitude *= intensity

	profile := make([]models.ElevationSample, 0, profileSamples)
	for i := 0; i < profileSamples; i++ {
		frac := float64(i) / float64(profileSamples-1)
		elev := baseElevation + amplitude*math.Sin(2*math.Pi*frac)
		if hilly {
			elev += 0.4 * amplitude * math.Sin(6*math.Pi*frac)
		}
		profile = append(profile, models.ElevationSample{
			DistanceMeters:  lengthMeters * frac,
			ElevationMeters: elev,
		})
	}
	return profile
}
