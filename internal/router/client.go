// Package router is the client for the external routing engine. The engine
// is a black box reached over HTTP: given waypoints, or a single origin plus
// a distance and seed, it returns an ordered path. This package only shapes
// requests, enforces timeouts and classifies failures; it never computes
// routes itself.
package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"routeplanner/internal/models"
)

var (
	// ErrNotConfigured means no router endpoint was configured at all.
	ErrNotConfigured = errors.New("router: not configured")
	// ErrFailure covers any transport or response failure.
	ErrFailure = errors.New("router: request failed")
	// ErrRateLimited is a subtype of ErrFailure, sniffed from the failure
	// message; callers can suggest waiting and retrying.
	ErrRateLimited = fmt.Errorf("%w: rate limited", ErrFailure)
	// ErrUnsupportedModel means the engine rejected the road-avoidance
	// weighting hint. Handled internally with one bare retry.
	ErrUnsupportedModel = errors.New("router: custom model rejected")
)

// Options carries the soft routing preferences.
type Options struct {
	AvoidMajorRoads bool
	SurfacePref     models.SurfacePref
}

// Instruction is one turn-by-turn step.
type Instruction struct {
	Text           string  `json:"text"`
	DistanceMeters float64 `json:"distanceMeters"`
	Sign           int     `json:"sign"`
}

// Path is the result of one router call: map-order coordinates, optional
// per-point altitudes, totals and optional instructions.
type Path struct {
	Points         []orb.Point
	Altitudes      []float64
	DistanceMeters float64
	TimeMillis     float64
	Instructions   []Instruction
}

// Config holds the client settings.
type Config struct {
	BaseURL string
	APIKey  string
	Profile string
	Timeout time.Duration
}

// Client talks to the routing engine.
type Client struct {
	cfg  Config
	http *http.Client
	logr *zap.Logger
}

// NewClient creates a router client. An empty BaseURL yields a client whose
// calls fail with ErrNotConfigured, which the planner turns into synthetic
// fallbacks.
func NewClient(cfg Config, logr *zap.Logger) *Client {
	if cfg.Profile == "" {
		cfg.Profile = "foot"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		logr: logr,
	}
}

// PointToPoint routes through the given waypoints in order. At least two
// waypoints are required.
func (c *Client) PointToPoint(ctx context.Context, waypoints []models.LatLng, opts Options) (*Path, error) {
	if len(waypoints) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 waypoints", ErrFailure)
	}
	return c.route(ctx, c.requestBody(waypoints, opts, nil))
}

// RoundTrip asks the engine for a loop of roughly distanceMeters from a
// single origin. The engine varies the loop shape by seed and minimizes road
// reuse; distinct seeds per candidate are this client's half of that
// contract.
func (c *Client) RoundTrip(ctx context.Context, origin models.LatLng, distanceMeters float64, seed int, opts Options) (*Path, error) {
	extra := map[string]any{
		"algorithm":           "round_trip",
		"round_trip.distance": distanceMeters,
		"round_trip.seed":     seed,
	}
	return c.route(ctx, c.requestBody([]models.LatLng{origin}, opts, extra))
}

func (c *Client) requestBody(waypoints []models.LatLng, opts Options, extra map[string]any) map[string]any {
	points := make([][]float64, len(waypoints))
	for i, wp := range waypoints {
		points[i] = []float64{wp.Lng, wp.Lat} // engine wire order is lng, lat
	}

	profile := c.cfg.Profile
	if opts.SurfacePref == models.SurfaceTrail {
		profile = "hike"
	}

	body := map[string]any{
		"points":         points,
		"profile":        profile,
		"points_encoded": false,
		"elevation":      true,
		"instructions":   true,
		"calc_points":    true,
	}
	for k, v := range extra {
		body[k] = v
	}
	if opts.AvoidMajorRoads {
		body["ch.disable"] = true
		body["custom_model"] = map[string]any{
			"priority": []map[string]any{
				{"if": "road_class == PRIMARY || road_class == SECONDARY || road_class == TRUNK", "multiply_by": "0.3"},
			},
		}
	}
	return body
}

// route posts one request, retrying exactly once without the custom model if
// the engine rejects it. Road avoidance is a soft preference; a hint the
// engine cannot honor must never break routing entirely.
func (c *Client) route(ctx context.Context, body map[string]any) (*Path, error) {
	path, err := c.post(ctx, body)
	if errors.Is(err, ErrUnsupportedModel) {
		c.logr.Warn("router rejected custom model, retrying without road-avoidance hint")
		delete(body, "custom_model")
		delete(body, "ch.disable")
		path, err = c.post(ctx, body)
	}
	return path, err
}

func (c *Client) post(ctx context.Context, body map[string]any) (*Path, error) {
	if c.cfg.BaseURL == "" {
		return nil, ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailure, err)
	}

	url := c.cfg.BaseURL + "/route"
	if c.cfg.APIKey != "" {
		url += "?key=" + c.cfg.APIKey
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailure, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logr.Warn("router call failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrFailure, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrFailure, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.classify(resp.StatusCode, raw, body)
	}

	var decoded routeResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrFailure, err)
	}
	if len(decoded.Paths) == 0 || len(decoded.Paths[0].Points.Coordinates) == 0 {
		return nil, fmt.Errorf("%w: response contained no path coordinates", ErrFailure)
	}

	first := decoded.Paths[0]
	path := &Path{
		DistanceMeters: first.Distance,
		TimeMillis:     first.Time,
		Points:         make([]orb.Point, 0, len(first.Points.Coordinates)),
	}
	hasAltitude := true
	for _, coord := range first.Points.Coordinates {
		if len(coord) < 2 {
			return nil, fmt.Errorf("%w: malformed coordinate in response", ErrFailure)
		}
		path.Points = append(path.Points, orb.Point{coord[0], coord[1]})
		if len(coord) >= 3 {
			path.Altitudes = append(path.Altitudes, coord[2])
		} else {
			hasAltitude = false
		}
	}
	if !hasAltitude {
		path.Altitudes = nil
	}
	for _, in := range first.Instructions {
		path.Instructions = append(path.Instructions, Instruction{
			Text:           in.Text,
			DistanceMeters: in.Distance,
			Sign:           in.Sign,
		})
	}

	c.logr.Debug("router call succeeded",
		zap.Float64("distance_m", path.DistanceMeters),
		zap.Int("points", len(path.Points)),
		zap.Duration("took", time.Since(start)),
	)
	return path, nil
}

// classify turns a non-success response into the failure taxonomy: a message
// mentioning the custom model triggers the bare retry, "limit" anywhere marks
// a rate limit, everything else is a generic failure.
func (c *Client) classify(status int, raw []byte, body map[string]any) error {
	var msg struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(raw, &msg)
	lower := strings.ToLower(msg.Message)

	_, hadModel := body["custom_model"]
	if hadModel && status == http.StatusBadRequest &&
		(strings.Contains(lower, "custom_model") || strings.Contains(lower, "custom model")) {
		return fmt.Errorf("%w: %s", ErrUnsupportedModel, msg.Message)
	}
	if strings.Contains(lower, "limit") || status == http.StatusTooManyRequests {
		return fmt.Errorf("%w: status %d: %s", ErrRateLimited, status, msg.Message)
	}
	return fmt.Errorf("%w: status %d: %s", ErrFailure, status, msg.Message)
}

type routeResponse struct {
	Paths []struct {
		Distance float64 `json:"distance"`
		Time     float64 `json:"time"`
		Points   struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"points"`
		Instructions []struct {
			Text     string  `json:"text"`
			Distance float64 `json:"distance"`
			Sign     int     `json:"sign"`
		} `json:"instructions"`
	} `json:"paths"`
}
