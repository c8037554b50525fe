// Package metrics derives the uniform route annotations shared by real and
// synthetic routes: ascent, preference score, elevation profile, distance and
// time formatting.
package metrics

import (
	"math"

	"routeplanner/internal/models"
)

const (
	metersPerMile      = 1609.34
	fallbackPaceMinMi  = 10.0
	minAltitudeSamples = 3
)

// TotalAscent sums the positive elevation deltas of a profile. Descents
// contribute nothing; reported descent equals ascent by convention since
// there is no independent descent model.
func TotalAscent(profile []models.ElevationSample) float64 {
	ascent := 0.0
	for i := 1; i < len(profile); i++ {
		if d := profile[i].ElevationMeters - profile[i-1].ElevationMeters; d > 0 {
			ascent += d
		}
	}
	return ascent
}

// MatchScore grades how well an ascent figure matches the requested elevation
// preference, as a linear falloff around an archetypal flat (60m) or hilly
// (220m) route. Not a difficulty model.
func MatchScore(ascentMeters float64, pref models.ElevationPref) int {
	target, tolerance := 60.0, 90.0
	if pref == models.ElevationHills {
		target, tolerance = 220.0, 160.0
	}
	score := math.Round(100 - math.Abs(ascentMeters-target)/tolerance*100)
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return int(score)
}

// DeriveProfile builds an elevation profile from router-supplied altitudes
// when at least three samples exist, spreading them evenly across the total
// distance. Otherwise it returns the fallback profile unchanged. Real and
// synthetic samples are never mixed within one profile.
func DeriveProfile(altitudes []float64, totalMeters float64, fallback []models.ElevationSample) []models.ElevationSample {
	if len(altitudes) < minAltitudeSamples {
		return fallback
	}
	profile := make([]models.ElevationSample, len(altitudes))
	for i, alt := range altitudes {
		profile[i] = models.ElevationSample{
			DistanceMeters:  totalMeters * float64(i) / float64(len(altitudes)-1),
			ElevationMeters: alt,
		}
	}
	return profile
}

// Miles converts meters to U.S. miles rounded to two decimals.
func Miles(meters float64) float64 {
	return math.Round(meters/metersPerMile*100) / 100
}

// Minutes estimates route duration. Router-reported time wins; without one,
// assume a flat 10 minutes per mile.
func Minutes(timeMillis, meters float64) int {
	if timeMillis > 0 {
		return int(math.Round(timeMillis / 60000))
	}
	return int(math.Round(meters / metersPerMile * fallbackPaceMinMi))
}
