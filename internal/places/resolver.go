// Package places looks up park-like areas near a coordinate through an
// Overpass-style query service and extracts a usable boundary polyline for
// each. Lookup failures are never fatal to route planning; they degrade to
// "no park found".
package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
	"go.uber.org/zap"

	"routeplanner/internal/geo"
	"routeplanner/internal/models"
)

// ErrNoParkFound is the legitimate "nothing suitable nearby" outcome. The
// planner answers it with a standard-loop fallback, not an error response.
var ErrNoParkFound = errors.New("places: no suitable park found")

const (
	// Candidates below these thresholds make a poor loop: traffic islands,
	// pocket parks.
	minAreaM2     = 25000.0
	minPerimeterM = 600.0

	// Size bonus cap for candidate scoring.
	maxSizeBonus = 300.0
)

// Park is one resolved park candidate with its boundary and entry geometry.
// The boundary is ring-like but not guaranteed closed, and for stitched
// multi-way relations it may be non-simple; that is a documented limitation
// of the greedy stitching, not something to correct here.
type Park struct {
	Name           string
	Boundary       orb.LineString // map order
	Entry          orb.Point
	EntrySegment   int
	EntryDistanceM float64
	AreaM2         float64
	PerimeterM     float64
	Warnings       []string
}

// Config holds resolver settings.
type Config struct {
	BaseURL        string
	NearestTimeout time.Duration
	NameTimeout    time.Duration
}

// Resolver queries the places service.
type Resolver struct {
	cfg  Config
	http *http.Client
	logr *zap.Logger
}

// NewResolver creates a places resolver.
func NewResolver(cfg Config, logr *zap.Logger) *Resolver {
	if cfg.NearestTimeout <= 0 {
		cfg.NearestTimeout = 3500 * time.Millisecond
	}
	if cfg.NameTimeout <= 0 {
		cfg.NameTimeout = 10 * time.Second
	}
	return &Resolver{cfg: cfg, http: &http.Client{}, logr: logr}
}

// NearestPark returns the best park candidate within radiusMeters of origin.
func (r *Resolver) NearestPark(ctx context.Context, origin models.LatLng, radiusMeters float64) (*Park, error) {
	elements, err := r.query(ctx, origin, radiusMeters, "", r.cfg.NearestTimeout)
	if err != nil {
		r.logr.Warn("nearest-park lookup failed", zap.Error(err))
		return nil, ErrNoParkFound
	}
	park := pickBest(elements, origin)
	if park == nil {
		return nil, ErrNoParkFound
	}
	return park, nil
}

// ParkByName returns the best park whose name contains name
// (case-insensitive). When no name match exists it falls back to the nearest
// park with a warning attached to the result.
func (r *Resolver) ParkByName(ctx context.Context, name string, origin models.LatLng, radiusMeters float64) (*Park, error) {
	elements, err := r.query(ctx, origin, radiusMeters, name, r.cfg.NameTimeout)
	if err == nil {
		if park := pickBest(elements, origin); park != nil {
			return park, nil
		}
	} else {
		r.logr.Warn("park-by-name lookup failed", zap.Error(err), zap.String("name", name))
	}

	park, err := r.NearestPark(ctx, origin, radiusMeters)
	if err != nil {
		return nil, err
	}
	park.Warnings = append(park.Warnings,
		fmt.Sprintf("No park matching %q was found; using the nearest park instead.", name))
	return park, nil
}

// query runs one area query and returns the raw elements.
func (r *Resolver) query(ctx context.Context, origin models.LatLng, radiusMeters float64, name string, timeout time.Duration) ([]element, error) {
	if r.cfg.BaseURL == "" {
		return nil, errors.New("places: not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	q := buildQuery(origin, radiusMeters, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.BaseURL,
		strings.NewReader(url.Values{"data": {q}}.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("places: status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, err
	}
	var decoded struct {
		Elements []element `json:"elements"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("places: decoding response: %w", err)
	}
	return decoded.Elements, nil
}

// buildQuery assembles an area query for park-like tag families around the
// origin, optionally filtered by a literal-escaped name regex.
func buildQuery(origin models.LatLng, radiusMeters float64, name string) string {
	tags := `["leisure"~"^(park|common|recreation_ground|garden|nature_reserve)$"]`
	nameFilter := ""
	if name != "" {
		escaped := strings.ReplaceAll(regexp.QuoteMeta(name), `"`, `\"`)
		nameFilter = fmt.Sprintf(`["name"~"%s",i]`, escaped)
	}
	around := fmt.Sprintf("(around:%.0f,%.6f,%.6f)", radiusMeters, origin.Lat, origin.Lng)

	var b strings.Builder
	b.WriteString("[out:json][timeout:10];(")
	b.WriteString("way" + tags + nameFilter + around + ";")
	b.WriteString("relation" + tags + nameFilter + around + ";")
	b.WriteString(");out geom;")
	return b.String()
}

// pickBest extracts boundaries, filters degenerate candidates and scores the
// rest by proximity with a modest size bonus. Lowest score wins; ties go to
// the first minimal candidate in iteration order.
func pickBest(elements []element, origin models.LatLng) *Park {
	originPt := origin.Point()

	var best *Park
	bestScore := math.Inf(1)
	for _, el := range elements {
		boundary := el.boundary()
		if len(boundary) < 3 {
			continue
		}

		area := geo.RingArea(boundary, origin.Lat)
		perimeter := geo.RingPerimeter(boundary, origin.Lat)
		if area < minAreaM2 || perimeter < minPerimeterM {
			continue
		}

		entry, seg, _ := geo.NearestOnPolyline(boundary, originPt, origin.Lat)
		entryDist := orbgeo.Distance(originPt, entry)

		score := entryDist - math.Min(maxSizeBonus, math.Sqrt(area)/10)
		if score < bestScore {
			bestScore = score
			best = &Park{
				Name:           el.Tags["name"],
				Boundary:       boundary,
				Entry:          entry,
				EntrySegment:   seg,
				EntryDistanceM: entryDist,
				AreaM2:         area,
				PerimeterM:     perimeter,
			}
		}
	}
	return best
}

type coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type member struct {
	Type     string  `json:"type"`
	Role     string  `json:"role"`
	Geometry []coord `json:"geometry"`
}

type element struct {
	Type     string            `json:"type"`
	ID       int64             `json:"id"`
	Tags     map[string]string `json:"tags"`
	Geometry []coord           `json:"geometry"`
	Members  []member          `json:"members"`
}

// boundary extracts a map-order polyline for the element: way geometry
// directly, or greedy nearest-endpoint stitching of relation member ways.
func (el element) boundary() orb.LineString {
	if len(el.Geometry) > 0 {
		return toLine(el.Geometry)
	}
	if el.Type == "relation" {
		var ways []orb.LineString
		for _, m := range el.Members {
			if m.Type == "way" && len(m.Geometry) > 1 && (m.Role == "outer" || m.Role == "") {
				ways = append(ways, toLine(m.Geometry))
			}
		}
		return stitchWays(ways)
	}
	return nil
}

func toLine(coords []coord) orb.LineString {
	line := make(orb.LineString, len(coords))
	for i, c := range coords {
		line[i] = orb.Point{c.Lon, c.Lat}
	}
	return line
}

// stitchWays joins member ways into one polyline by repeatedly attaching the
// unused way whose head or tail lies closest to the assembled tail, flipping
// the way when its tail is the closer end. Heuristic by design: complex
// relations can produce self-crossing or gapped polylines.
func stitchWays(ways []orb.LineString) orb.LineString {
	if len(ways) == 0 {
		return nil
	}
	assembled := append(orb.LineString{}, ways[0]...)
	used := make([]bool, len(ways))
	used[0] = true

	for attached := 1; attached < len(ways); attached++ {
		tail := assembled[len(assembled)-1]

		bestIdx := -1
		bestDist := math.Inf(1)
		bestFlip := false
		for i, w := range ways {
			if used[i] {
				continue
			}
			if d := euclid(tail, w[0]); d < bestDist {
				bestDist, bestIdx, bestFlip = d, i, false
			}
			if d := euclid(tail, w[len(w)-1]); d < bestDist {
				bestDist, bestIdx, bestFlip = d, i, true
			}
		}
		if bestIdx < 0 {
			break
		}
		used[bestIdx] = true

		next := ways[bestIdx]
		if bestFlip {
			next = reversed(next)
		}
		assembled = append(assembled, next...)
	}
	return assembled
}

func reversed(line orb.LineString) orb.LineString {
	out := make(orb.LineString, len(line))
	for i, p := range line {
		out[len(line)-1-i] = p
	}
	return out
}

// euclid is a raw degree-space distance, good enough to rank endpoints of
// adjacent ways.
func euclid(a, b orb.Point) float64 {
	return math.Hypot(a.Lon()-b.Lon(), a.Lat()-b.Lat())
}
