// Package geo holds flat-Earth geometry helpers for city-scale distances.
// The approximations are anchored at a reference latitude and are not valid
// across degrees of latitude span.
package geo

import (
	"math"

	"github.com/paulmach/orb"
)

const (
	// Meters per degree of longitude at the equator and per degree of
	// latitude. Product contract constants, not tunables.
	lonMetersPerDegree = 111320.0
	latMetersPerDegree = 110540.0
)

// MetersToLonDelta converts a distance in meters to a longitude delta at the
// given latitude.
func MetersToLonDelta(m, atLatitude float64) float64 {
	return m / (lonMetersPerDegree * math.Cos(atLatitude*math.Pi/180))
}

// MetersToLatDelta converts a distance in meters to a latitude delta.
func MetersToLatDelta(m float64) float64 {
	return m / latMetersPerDegree
}

// Project maps a map-order point to planar (x, y) meters in an azimuthal
// approximation anchored at originLat.
func Project(p orb.Point, originLat float64) (x, y float64) {
	x = p.Lon() * lonMetersPerDegree * math.Cos(originLat*math.Pi/180)
	y = p.Lat() * latMetersPerDegree
	return x, y
}

// PlanarDistance is the straight-line distance in meters between two
// map-order points under the local projection.
func PlanarDistance(a, b orb.Point, originLat float64) float64 {
	ax, ay := Project(a, originLat)
	bx, by := Project(b, originLat)
	return math.Hypot(bx-ax, by-ay)
}

// NearestOnPolyline returns the closest point on the polyline to p, the index
// of the segment it lies on, and the distance in meters. Ties go to the first
// segment found.
func NearestOnPolyline(line orb.LineString, p orb.Point, originLat float64) (orb.Point, int, float64) {
	if len(line) == 0 {
		return orb.Point{}, -1, math.Inf(1)
	}
	px, py := Project(p, originLat)

	best := line[0]
	bestSeg := 0
	bestDist := PlanarDistance(line[0], p, originLat)

	for i := 0; i+1 < len(line); i++ {
		ax, ay := Project(line[i], originLat)
		bx, by := Project(line[i+1], originLat)

		dx, dy := bx-ax, by-ay
		segLenSq := dx*dx + dy*dy
		t := 0.0
		if segLenSq > 0 {
			t = ((px-ax)*dx + (py-ay)*dy) / segLenSq
			t = math.Max(0, math.Min(1, t))
		}
		cx, cy := ax+t*dx, ay+t*dy
		d := math.Hypot(px-cx, py-cy)
		if d < bestDist {
			bestDist = d
			bestSeg = i
			best = orb.Point{
				line[i].Lon() + t*(line[i+1].Lon()-line[i].Lon()),
				line[i].Lat() + t*(line[i+1].Lat()-line[i].Lat()),
			}
		}
	}
	return best, bestSeg, bestDist
}

// RingArea computes the shoelace area in m² of a polyline under the local
// projection. An unclosed polyline is treated as closed by connecting the
// last vertex back to the first.
func RingArea(ring orb.LineString, originLat float64) float64 {
	if len(ring) < 3 {
		return 0
	}
	sum := 0.0
	n := len(ring)
	for i := 0; i < n; i++ {
		ax, ay := Project(ring[i], originLat)
		bx, by := Project(ring[(i+1)%n], originLat)
		sum += ax*by - bx*ay
	}
	return math.Abs(sum) / 2
}

// RingPerimeter computes the perimeter in meters of a polyline under the
// local projection, with the same implicit closure as RingArea.
func RingPerimeter(ring orb.LineString, originLat float64) float64 {
	if len(ring) < 2 {
		return 0
	}
	sum := 0.0
	n := len(ring)
	for i := 0; i < n; i++ {
		sum += PlanarDistance(ring[i], ring[(i+1)%n], originLat)
	}
	return sum
}

// SampleRing rotates the ring to start at the vertex opening segment
// startSeg, then returns count points evenly spaced by arc length around the
// full perimeter.
func SampleRing(ring orb.LineString, startSeg, count int, originLat float64) []orb.Point {
	if len(ring) < 2 || count <= 0 {
		return nil
	}
	n := len(ring)
	if startSeg < 0 || startSeg >= n {
		startSeg = 0
	}

	rotated := make(orb.LineString, 0, n+1)
	for i := 0; i < n; i++ {
		rotated = append(rotated, ring[(startSeg+i)%n])
	}
	rotated = append(rotated, ring[startSeg]) // explicit closure

	cum := make([]float64, len(rotated))
	for i := 1; i < len(rotated); i++ {
		cum[i] = cum[i-1] + PlanarDistance(rotated[i-1], rotated[i], originLat)
	}
	total := cum[len(cum)-1]
	if total == 0 {
		return nil
	}

	samples := make([]orb.Point, 0, count)
	seg := 0
	for i := 0; i < count; i++ {
		target := total * float64(i) / float64(count)
		for seg+1 < len(cum) && cum[seg+1] < target {
			seg++
		}
		span := cum[seg+1] - cum[seg]
		t := 0.0
		if span > 0 {
			t = (target - cum[seg]) / span
		}
		samples = append(samples, orb.Point{
			rotated[seg].Lon() + t*(rotated[seg+1].Lon()-rotated[seg].Lon()),
			rotated[seg].Lat() + t*(rotated[seg+1].Lat()-rotated[seg].Lat()),
		})
	}
	return samples
}
