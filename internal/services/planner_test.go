package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"routeplanner/internal/cache"
	"routeplanner/internal/models"
	"routeplanner/internal/places"
	"routeplanner/internal/router"
)

var origin = models.LatLng{Lat: 34.09, Lng: -118.28}

// stubRouter records calls and replies from canned responses.
type stubRouter struct {
	err            error
	path           *router.Path
	roundTrips     []float64 // recorded round_trip distances
	roundTripSeeds []int
	p2pCalls       [][]models.LatLng
}

func (s *stubRouter) PointToPoint(_ context.Context, wps []models.LatLng, _ router.Options) (*router.Path, error) {
	s.p2pCalls = append(s.p2pCalls, wps)
	if s.err != nil {
		return nil, s.err
	}
	return s.path, nil
}

func (s *stubRouter) RoundTrip(_ context.Context, _ models.LatLng, distance float64, seed int, _ router.Options) (*router.Path, error) {
	s.roundTrips = append(s.roundTrips, distance)
	s.roundTripSeeds = append(s.roundTripSeeds, seed)
	if s.err != nil {
		return nil, s.err
	}
	return s.path, nil
}

type stubPlaces struct {
	park *places.Park
	err  error
}

func (s *stubPlaces) NearestPark(context.Context, models.LatLng, float64) (*places.Park, error) {
	return s.park, s.err
}

func (s *stubPlaces) ParkByName(context.Context, string, models.LatLng, float64) (*places.Park, error) {
	return s.park, s.err
}

func fixedPath(points int, distance, timeMillis float64) *router.Path {
	pts := make([]orb.Point, points)
	for i := range pts {
		pts[i] = orb.Point{-118.28 + float64(i)*0.0005, 34.09 + float64(i)*0.0002}
	}
	return &router.Path{Points: pts, DistanceMeters: distance, TimeMillis: timeMillis}
}

func newTestPlanner(rc RouterClient, pr ParkResolver, c *cache.Cache) *Planner {
	return NewPlanner(rc, pr, c, rate.NewLimiter(rate.Inf, 1), Config{}, zap.NewNop())
}

func loopRequest(target float64) models.PlanRequest {
	return models.PlanRequest{
		Origin:        origin,
		TargetMeters:  target,
		RouteType:     models.RouteLoop,
		ElevationPref: models.ElevationFlat,
		SurfacePref:   models.SurfaceMixed,
	}
}

func TestPlanScenarioARealRoundTrip(t *testing.T) {
	rt := &stubRouter{path: fixedPath(40, 8100, 3000000)}
	p := newTestPlanner(rt, &stubPlaces{}, nil)

	fc, err := p.Plan(context.Background(), loopRequest(8046))
	require.NoError(t, err)
	require.Len(t, fc.Features, 3)

	first := fc.Features[0]
	assert.Equal(t, 5.03, first.Properties["distanceMiles"])
	assert.Equal(t, 50, first.Properties["timeMinutes"])
	assert.Equal(t, "graphhopper", first.Properties["source"])
	assert.Empty(t, first.Properties["warnings"])
}

func TestPlanDistanceJitterMultipliers(t *testing.T) {
	rt := &stubRouter{path: fixedPath(10, 8046, 0)}
	p := newTestPlanner(rt, &stubPlaces{}, nil)

	_, err := p.Plan(context.Background(), loopRequest(8046))
	require.NoError(t, err)

	require.Len(t, rt.roundTrips, 3)
	assert.InDelta(t, 8046*1.00, rt.roundTrips[0], 1e-9)
	assert.InDelta(t, 8046*0.98, rt.roundTrips[1], 1e-9)
	assert.InDelta(t, 8046*1.02, rt.roundTrips[2], 1e-9)

	// Seeds are disjoint per candidate.
	assert.Equal(t, []int{0, 1, 2}, rt.roundTripSeeds)
}

func TestPlanScenarioBSyntheticFallback(t *testing.T) {
	rt := &stubRouter{err: fmt.Errorf("%w: status 502", router.ErrFailure)}
	p := newTestPlanner(rt, &stubPlaces{}, nil)

	fc, err := p.Plan(context.Background(), loopRequest(8046))
	require.NoError(t, err)
	require.Len(t, fc.Features, 3)

	for _, f := range fc.Features {
		assert.Equal(t, "mock", f.Properties["source"])
		warnings := f.Properties["warnings"].([]string)
		assert.NotEmpty(t, warnings)
	}

	line := fc.Features[0].Geometry.(orb.LineString)
	require.Len(t, line, 71)
	assert.InDelta(t, -118.28, line[0].Lon(), 1e-9)
	assert.InDelta(t, 34.09, line[0].Lat(), 1e-9)
	assert.InDelta(t, -118.28, line[70].Lon(), 1e-9)
	assert.InDelta(t, 34.09, line[70].Lat(), 1e-9)
}

func TestPlanRateLimitWarningSuggestsRetry(t *testing.T) {
	rt := &stubRouter{err: fmt.Errorf("%w: status 429", router.ErrRateLimited)}
	p := newTestPlanner(rt, &stubPlaces{}, nil)

	fc, err := p.Plan(context.Background(), loopRequest(8046))
	require.NoError(t, err)

	for _, f := range fc.Features {
		warnings := f.Properties["warnings"].([]string)
		require.NotEmpty(t, warnings)
		assert.Contains(t, warnings[0], "try again")
	}
}

func TestPlanNotConfiguredWarning(t *testing.T) {
	rt := &stubRouter{err: router.ErrNotConfigured}
	p := newTestPlanner(rt, &stubPlaces{}, nil)

	fc, err := p.Plan(context.Background(), loopRequest(8046))
	require.NoError(t, err)
	warnings := fc.Features[0].Properties["warnings"].([]string)
	require.NotEmpty(t, warnings)
	assert.Contains(t, warnings[0], "not configured")
}

func TestPlanScenarioCOutAndBackSynthetic(t *testing.T) {
	rt := &stubRouter{err: fmt.Errorf("%w: down", router.ErrFailure)}
	p := newTestPlanner(rt, &stubPlaces{}, nil)

	req := loopRequest(1609)
	req.RouteType = models.RouteOutAndBack

	fc, err := p.Plan(context.Background(), req)
	require.NoError(t, err)

	line := fc.Features[0].Geometry.(orb.LineString)
	require.Len(t, line, 3)
	assert.Equal(t, line[0], line[2])
	assert.InDelta(t, -118.28, line[0].Lon(), 1e-9)
	assert.InDelta(t, 34.09, line[0].Lat(), 1e-9)
}

func TestPlanParkLoopDegradesToStandardLoop(t *testing.T) {
	rt := &stubRouter{path: fixedPath(10, 8046, 0)}
	p := newTestPlanner(rt, &stubPlaces{err: places.ErrNoParkFound}, nil)

	req := loopRequest(8046)
	req.LoopAtPark = true

	fc, err := p.Plan(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, fc.Features, 3)

	// Same code path as a plain loop: three round_trip calls, no
	// point-to-point attempts.
	assert.Len(t, rt.roundTrips, 3)
	assert.Empty(t, rt.p2pCalls)

	for _, f := range fc.Features {
		assert.Equal(t, "graphhopper", f.Properties["source"])
		warnings := f.Properties["warnings"].([]string)
		require.NotEmpty(t, warnings)
		assert.Contains(t, warnings[0], "standard loop")
	}
}

func TestPlanParkLoopStitchesLaps(t *testing.T) {
	boundary := orb.LineString{
		{-118.275, 34.09},
		{-118.273, 34.09},
		{-118.273, 34.092},
		{-118.275, 34.092},
	}
	park := &places.Park{
		Name:         "Near Green",
		Boundary:     boundary,
		Entry:        orb.Point{-118.275, 34.09},
		EntrySegment: 0,
	}

	// Transit 500m, lap 2000m: budget = 8046 - 1000 = 7046 → round(3.52) = 4 laps.
	rt := &lapRouter{
		transit: fixedPath(5, 500, 300000),
		lap:     fixedPath(9, 2000, 1200000),
	}
	p := newTestPlanner(rt, &stubPlaces{park: park}, nil)

	req := loopRequest(8046)
	req.LoopAtPark = true

	fc, err := p.Plan(context.Background(), req)
	require.NoError(t, err)

	first := fc.Features[0]
	assert.Equal(t, "graphhopper", first.Properties["source"])
	assert.Equal(t, "Near Green", first.Properties["parkName"])
	assert.Equal(t, 4, first.Properties["laps"])
	assert.Equal(t, 500.0, first.Properties["transitMeters"])
	// 2×500 transit + 4×2000 laps.
	assert.Equal(t, 5.59, first.Properties["distanceMiles"])
	assert.Empty(t, first.Properties["warnings"])
}

// lapRouter answers the first point-to-point call per candidate with the
// transit leg and the second with the lap.
type lapRouter struct {
	transit *router.Path
	lap     *router.Path
	calls   int
}

func (s *lapRouter) PointToPoint(_ context.Context, wps []models.LatLng, _ router.Options) (*router.Path, error) {
	s.calls++
	if len(wps) == 2 {
		return s.transit, nil
	}
	return s.lap, nil
}

func (s *lapRouter) RoundTrip(context.Context, models.LatLng, float64, int, router.Options) (*router.Path, error) {
	return nil, errors.New("unexpected round trip")
}

func TestPlanUsesCache(t *testing.T) {
	rt := &stubRouter{path: fixedPath(10, 8046, 0)}
	c := cache.New(time.Minute, 10)
	p := newTestPlanner(rt, &stubPlaces{}, c)

	req := loopRequest(8046)
	_, err := p.Plan(context.Background(), req)
	require.NoError(t, err)
	first := len(rt.roundTrips)

	_, err = p.Plan(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first, len(rt.roundTrips), "second plan should come from cache")
}

func TestPlanCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rt := &stubRouter{path: fixedPath(10, 8046, 0)}
	p := newTestPlanner(rt, &stubPlaces{}, nil)

	_, err := p.Plan(ctx, loopRequest(8046))
	assert.Error(t, err)
}
