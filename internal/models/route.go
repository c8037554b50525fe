package models

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// ErrInvalidInput marks malformed request data. Handlers map it to a 400.
var ErrInvalidInput = errors.New("invalid input")

// RouteType selects the overall shape of the suggested routes.
type RouteType string

const (
	RouteLoop       RouteType = "loop"
	RouteOutAndBack RouteType = "out-and-back"
)

// ElevationPref is the requested elevation character of a route.
type ElevationPref string

const (
	ElevationFlat  ElevationPref = "flat"
	ElevationHills ElevationPref = "hills"
)

// SurfacePref is the requested surface mix of a route.
type SurfacePref string

const (
	SurfaceMixed SurfacePref = "mixed"
	SurfaceTrail SurfacePref = "trail"
	SurfaceRoad  SurfacePref = "road"
)

// LatLng is a WGS84 coordinate in geo order (lat, lng). Everything inside the
// service speaks geo order; conversion to GeoJSON map order happens exactly
// once, at the Point boundary.
type LatLng struct {
	Lat float64
	Lng float64
}

// Point returns the coordinate in GeoJSON map order (lng, lat).
func (p LatLng) Point() orb.Point {
	return orb.Point{p.Lng, p.Lat}
}

// FromPoint converts a map-order point back to geo order.
func FromPoint(p orb.Point) LatLng {
	return LatLng{Lat: p.Lat(), Lng: p.Lon()}
}

// NormalizeLatLng turns a raw [a, b] pair into a geo-order coordinate. If the
// first component cannot be a latitude (|a| > 90) while the second can, the
// pair is assumed to be in map order and swapped. A swapped pair where both
// components are valid latitudes cannot be detected; that is an accepted
// limitation of the heuristic, not something to second-guess here.
func NormalizeLatLng(pair []float64, label string) (LatLng, error) {
	if len(pair) != 2 {
		return LatLng{}, fmt.Errorf("%w: %s must be a [lat, lng] pair", ErrInvalidInput, label)
	}
	a, b := pair[0], pair[1]
	if !finite(a) || !finite(b) {
		return LatLng{}, fmt.Errorf("%w: %s must contain finite numbers", ErrInvalidInput, label)
	}
	if math.Abs(a) > 90 && math.Abs(b) <= 90 {
		a, b = b, a
	}
	if math.Abs(a) > 90 || math.Abs(b) > 180 {
		return LatLng{}, fmt.Errorf("%w: %s is out of bounds", ErrInvalidInput, label)
	}
	return LatLng{Lat: a, Lng: b}, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// PlanRequest is a fully normalized route-suggestion request. Immutable once
// built; shared by all three candidates.
type PlanRequest struct {
	Origin          LatLng
	TargetMeters    float64
	RouteType       RouteType
	ElevationPref   ElevationPref
	SurfacePref     SurfacePref
	AvoidMajorRoads bool
	LoopAtPark      bool
	ParkSearch      string
	DirectionSeed   int
}

// CacheKey folds every output-affecting parameter into a response-cache key.
func (r PlanRequest) CacheKey() string {
	return fmt.Sprintf("%.6f,%.6f|%s|%.1f|%s|%s|%t|%t|%s|%d",
		r.Origin.Lat, r.Origin.Lng,
		r.RouteType, r.TargetMeters, r.ElevationPref, r.SurfacePref,
		r.AvoidMajorRoads, r.LoopAtPark, r.ParkSearch, r.DirectionSeed,
	)
}

// ElevationSample is one point of an elevation profile: elevation at a
// cumulative distance along the route.
type ElevationSample struct {
	DistanceMeters  float64 `json:"distanceMeters"`
	ElevationMeters float64 `json:"elevationMeters"`
}
