// Package services holds the route-candidate planner: the orchestration and
// fallback logic that turns one plan request into exactly three annotated
// GeoJSON features, real when the routing engine cooperates and synthetic
// with warnings when it does not.
package services

import (
	"context"
	"errors"
	"math"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"routeplanner/internal/cache"
	"routeplanner/internal/geo"
	"routeplanner/internal/metrics"
	"routeplanner/internal/models"
	"routeplanner/internal/places"
	"routeplanner/internal/router"
	"routeplanner/internal/synthetic"
)

const (
	candidateCount     = 3
	perimeterWaypoints = 8
	maxLaps            = 4
	minLapBudgetMeters = 600.0
	defaultParkRadiusM = 4000.0
	sourceReal         = "graphhopper"
	sourceMock         = "mock"

	warnNotConfigured = "Routing service is not configured; showing an illustrative route."
	warnUnavailable   = "Routing service was unavailable; showing an illustrative route."
	warnRateLimited   = "Routing service rate limit reached; showing an illustrative route. Wait a minute and try again."
	warnNoPark        = "No suitable park was found nearby; using a standard loop instead."
)

// RouterClient is the slice of the routing engine the planner needs.
type RouterClient interface {
	PointToPoint(ctx context.Context, waypoints []models.LatLng, opts router.Options) (*router.Path, error)
	RoundTrip(ctx context.Context, origin models.LatLng, distanceMeters float64, seed int, opts router.Options) (*router.Path, error)
}

// ParkResolver is the slice of the places service the planner needs.
type ParkResolver interface {
	NearestPark(ctx context.Context, origin models.LatLng, radiusMeters float64) (*places.Park, error)
	ParkByName(ctx context.Context, name string, origin models.LatLng, radiusMeters float64) (*places.Park, error)
}

// Config tunes planner behavior.
type Config struct {
	// ParkRadiusMeters bounds the park search around the origin.
	ParkRadiusMeters float64
	// Parallel generates the three candidates concurrently. Off by default:
	// sequential calls with the stagger below are what keeps the free-tier
	// router from rate-limiting us.
	Parallel bool
}

// Planner orchestrates candidate generation.
type Planner struct {
	router  RouterClient
	places  ParkResolver
	cache   *cache.Cache
	stagger *rate.Limiter
	cfg     Config
	logr    *zap.Logger
}

// NewPlanner wires a planner. cache may be nil to disable response caching;
// stagger paces the candidates' router calls and must allow at least one
// event.
func NewPlanner(rc RouterClient, pr ParkResolver, c *cache.Cache, stagger *rate.Limiter, cfg Config, logr *zap.Logger) *Planner {
	if cfg.ParkRadiusMeters <= 0 {
		cfg.ParkRadiusMeters = defaultParkRadiusM
	}
	return &Planner{router: rc, places: pr, cache: c, stagger: stagger, cfg: cfg, logr: logr}
}

// candidate holds the per-candidate derived parameters.
type candidate struct {
	index        int
	targetMeters float64
	bearingDeg   float64
	seed         int
	intensity    float64
}

// deriveCandidate jitters the target distance ({100%, 98%, 102%}), rotates
// the bearing so the three candidates point different ways, and derives a
// disjoint router seed per candidate and per user "generate" click.
func deriveCandidate(req models.PlanRequest, i int) candidate {
	mults := [candidateCount]float64{1.00, 0.98, 1.02}
	intensities := [candidateCount]float64{1, 0.85, 1.2}
	bearing := float64((req.DirectionSeed*137+i*120)%360 + 360)
	return candidate{
		index:        i,
		targetMeters: req.TargetMeters * mults[i],
		bearingDeg:   math.Mod(bearing, 360),
		seed:         req.DirectionSeed*3 + i,
		intensity:    intensities[i],
	}
}

// Plan produces exactly three candidate features for the request. Router and
// places failures degrade to synthetic features with warnings; Plan itself
// only fails on context cancellation.
func (p *Planner) Plan(ctx context.Context, req models.PlanRequest) (*geojson.FeatureCollection, error) {
	key := req.CacheKey()
	if fc, ok := p.cache.Get(key); ok {
		p.logr.Debug("serving plan from cache", zap.String("key", key))
		return fc, nil
	}

	// Resolve the park once; all three candidates share it.
	park, parkWarnings := p.resolvePark(ctx, req)

	features := make([]*geojson.Feature, candidateCount)
	if p.cfg.Parallel {
		errs := make(chan error, candidateCount)
		for i := 0; i < candidateCount; i++ {
			go func(i int) {
				f, err := p.buildCandidate(ctx, req, deriveCandidate(req, i), park, parkWarnings)
				features[i] = f
				errs <- err
			}(i)
		}
		for i := 0; i < candidateCount; i++ {
			if err := <-errs; err != nil {
				return nil, err
			}
		}
	} else {
		for i := 0; i < candidateCount; i++ {
			if err := p.stagger.Wait(ctx); err != nil {
				return nil, err
			}
			f, err := p.buildCandidate(ctx, req, deriveCandidate(req, i), park, parkWarnings)
			if err != nil {
				return nil, err
			}
			features[i] = f
		}
	}

	fc := geojson.NewFeatureCollection()
	for _, f := range features {
		fc.Append(f)
	}
	p.cache.Set(key, fc)
	return fc, nil
}

// resolvePark finds the park to loop around when requested. Any failure is a
// legitimate outcome: the candidates degrade to standard loops with a
// warning.
func (p *Planner) resolvePark(ctx context.Context, req models.PlanRequest) (*places.Park, []string) {
	if !req.LoopAtPark || req.RouteType != models.RouteLoop {
		return nil, nil
	}

	var park *places.Park
	var err error
	if req.ParkSearch != "" {
		park, err = p.places.ParkByName(ctx, req.ParkSearch, req.Origin, p.cfg.ParkRadiusMeters)
	} else {
		park, err = p.places.NearestPark(ctx, req.Origin, p.cfg.ParkRadiusMeters)
	}
	if err != nil {
		p.logr.Info("park resolution failed, degrading to standard loop", zap.Error(err))
		return nil, []string{warnNoPark}
	}
	return park, park.Warnings
}

// buildCandidate runs one candidate through its state machine: mode
// selection, router call, synthetic fallback, feature assembly. A failure of
// one candidate never aborts the others, so the only error returned is
// context cancellation.
func (p *Planner) buildCandidate(ctx context.Context, req models.PlanRequest, cand candidate, park *places.Park, parkWarnings []string) (*geojson.Feature, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := router.Options{AvoidMajorRoads: req.AvoidMajorRoads, SurfacePref: req.SurfacePref}
	warnings := append([]string{}, parkWarnings...)

	var path *router.Path
	var parkMeta map[string]any
	var err error

	switch {
	case req.RouteType == models.RouteOutAndBack:
		mid := destination(req.Origin, cand.targetMeters/2, cand.bearingDeg)
		path, err = p.router.PointToPoint(ctx, []models.LatLng{req.Origin, mid, req.Origin}, opts)

	case park != nil:
		path, parkMeta, err = p.parkLoop(ctx, req.Origin, cand, park, opts)
		if err != nil && ctx.Err() == nil {
			// Park routing failed: degrade to a standard loop before giving
			// up on the router entirely.
			warnings = append(warnings, warnNoPark)
			parkMeta = nil
			path, err = p.router.RoundTrip(ctx, req.Origin, cand.targetMeters, cand.seed, opts)
		}

	default:
		path, err = p.router.RoundTrip(ctx, req.Origin, cand.targetMeters, cand.seed, opts)
	}

	source := sourceReal
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		warnings = append(warnings, fallbackWarning(err))
		path = p.syntheticPath(req, cand)
		source = sourceMock
		parkMeta = nil
	}

	f := p.assembleFeature(req, cand, path, source, warnings, parkMeta)
	p.logr.Info("candidate generated",
		zap.Int("candidate", cand.index),
		zap.String("source", source),
		zap.Float64("distance_m", path.DistanceMeters),
		zap.Int("warnings", len(warnings)),
	)
	return f, nil
}

// parkLoop routes the transit leg to the park entry, one lap around
// perimeter waypoints, then stitches transit + N laps + reversed transit.
// Lap count is the whole-lap fit of the remaining distance budget, capped.
func (p *Planner) parkLoop(ctx context.Context, origin models.LatLng, cand candidate, park *places.Park, opts router.Options) (*router.Path, map[string]any, error) {
	entry := models.FromPoint(park.Entry)

	transit, err := p.router.PointToPoint(ctx, []models.LatLng{origin, entry}, opts)
	if err != nil {
		return nil, nil, err
	}

	waypoints := geo.SampleRing(park.Boundary, park.EntrySegment, perimeterWaypoints, origin.Lat)
	lapPoints := make([]models.LatLng, 0, len(waypoints)+2)
	lapPoints = append(lapPoints, entry)
	for _, wp := range waypoints {
		lapPoints = append(lapPoints, models.FromPoint(wp))
	}
	lapPoints = append(lapPoints, entry)

	lap, err := p.router.PointToPoint(ctx, lapPoints, opts)
	if err != nil {
		return nil, nil, err
	}

	budget := cand.targetMeters - 2*transit.DistanceMeters
	if budget < minLapBudgetMeters {
		budget = minLapBudgetMeters
	}
	laps := 1
	if lap.DistanceMeters > 0 {
		laps = int(math.Round(budget / lap.DistanceMeters))
		if laps < 1 {
			laps = 1
		}
		if laps > maxLaps {
			laps = maxLaps
		}
	}

	stitched := stitch(transit, lap, laps)
	meta := map[string]any{
		"parkName":      park.Name,
		"parkEntry":     []float64{park.Entry.Lon(), park.Entry.Lat()},
		"laps":          laps,
		"transitMeters": math.Round(transit.DistanceMeters),
	}
	return stitched, meta, nil
}

// stitch assembles transit-out + laps×lap + reversed transit into one path,
// dropping the duplicated junction point at each seam.
func stitch(transit, lap *router.Path, laps int) *router.Path {
	points := append([]orb.Point{}, transit.Points...)
	for i := 0; i < laps; i++ {
		points = appendSkippingFirst(points, lap.Points)
	}
	back := make([]orb.Point, len(transit.Points))
	for i, pt := range transit.Points {
		back[len(transit.Points)-1-i] = pt
	}
	points = appendSkippingFirst(points, back)

	out := &router.Path{
		Points:         points,
		DistanceMeters: 2*transit.DistanceMeters + float64(laps)*lap.DistanceMeters,
		TimeMillis:     2*transit.TimeMillis + float64(laps)*lap.TimeMillis,
	}
	// Instructions for transit plus a single lap; repeating laps would just
	// repeat the text.
	out.Instructions = append(out.Instructions, transit.Instructions...)
	out.Instructions = append(out.Instructions, lap.Instructions...)

	if len(transit.Altitudes) == len(transit.Points) && len(lap.Altitudes) == len(lap.Points) {
		alts := append([]float64{}, transit.Altitudes...)
		for i := 0; i < laps; i++ {
			alts = append(alts, lap.Altitudes[1:]...)
		}
		for i := len(transit.Altitudes) - 2; i >= 0; i-- {
			alts = append(alts, transit.Altitudes[i])
		}
		out.Altitudes = alts
	}
	return out
}

func appendSkippingFirst(dst, src []orb.Point) []orb.Point {
	if len(src) == 0 {
		return dst
	}
	if len(dst) > 0 && dst[len(dst)-1] == src[0] {
		return append(dst, src[1:]...)
	}
	return append(dst, src...)
}

// syntheticPath builds idealized fallback geometry for the candidate's mode.
func (p *Planner) syntheticPath(req models.PlanRequest, cand candidate) *router.Path {
	hilly := req.ElevationPref == models.ElevationHills
	var line orb.LineString
	if req.RouteType == models.RouteOutAndBack {
		line = synthetic.OutAndBack(req.Origin, cand.targetMeters, cand.bearingDeg)
	} else {
		line = synthetic.Loop(req.Origin, cand.targetMeters, hilly)
	}
	return &router.Path{
		Points:         line,
		DistanceMeters: cand.targetMeters,
	}
}

// assembleFeature attaches the uniform metrics and provenance to the path.
func (p *Planner) assembleFeature(req models.PlanRequest, cand candidate, path *router.Path, source string, warnings []string, parkMeta map[string]any) *geojson.Feature {
	hilly := req.ElevationPref == models.ElevationHills
	fallback := synthetic.ElevationProfile(path.DistanceMeters, hilly, cand.intensity)
	profile := metrics.DeriveProfile(path.Altitudes, path.DistanceMeters, fallback)
	ascent := metrics.TotalAscent(profile)

	f := geojson.NewFeature(orb.LineString(path.Points))
	f.Properties["id"] = uuid.NewString()
	f.Properties["source"] = source
	f.Properties["distanceMiles"] = metrics.Miles(path.DistanceMeters)
	f.Properties["timeMinutes"] = metrics.Minutes(path.TimeMillis, path.DistanceMeters)
	f.Properties["ascentMeters"] = math.Round(ascent)
	f.Properties["descentMeters"] = math.Round(ascent) // no independent descent model
	f.Properties["score"] = metrics.MatchScore(ascent, req.ElevationPref)
	f.Properties["warnings"] = warnings
	f.Properties["elevationProfile"] = profile
	if len(path.Instructions) > 0 {
		f.Properties["instructions"] = path.Instructions
	}
	for k, v := range parkMeta {
		f.Properties[k] = v
	}
	return f
}

// fallbackWarning picks the user-facing warning for a router failure. The
// texts are distinct so the caller can decide whether to offer a "try again
// later" affordance.
func fallbackWarning(err error) string {
	switch {
	case errors.Is(err, router.ErrNotConfigured):
		return warnNotConfigured
	case errors.Is(err, router.ErrRateLimited):
		return warnRateLimited
	default:
		return warnUnavailable
	}
}

// destination offsets origin by meters along bearingDeg (0 = north,
// 90 = east) under the local flat projection.
func destination(origin models.LatLng, meters, bearingDeg float64) models.LatLng {
	rad := bearingDeg * math.Pi / 180
	return models.LatLng{
		Lat: origin.Lat + geo.MetersToLatDelta(meters*math.Cos(rad)),
		Lng: origin.Lng + geo.MetersToLonDelta(meters*math.Sin(rad), origin.Lat),
	}
}
