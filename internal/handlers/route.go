package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"routeplanner/internal/models"
	"routeplanner/internal/services"
)

// RouteHandler handles HTTP requests for route suggestions
type RouteHandler struct {
	planner             *services.Planner
	avoidMajorRoadsDflt bool
	logr                *zap.Logger
}

// NewRouteHandler creates a new route handler
func NewRouteHandler(planner *services.Planner, avoidMajorRoadsDefault bool, logr *zap.Logger) *RouteHandler {
	return &RouteHandler{
		planner:             planner,
		avoidMajorRoadsDflt: avoidMajorRoadsDefault,
		logr:                logr,
	}
}

// planRequest is the POST /route wire format.
type planRequest struct {
	StartLatLng     []float64 `json:"startLatLng"`
	RouteType       string    `json:"routeType"`
	TargetMeters    float64   `json:"targetMeters"`
	ElevationPref   string    `json:"elevationPref"`
	DirectionSeed   int       `json:"directionSeed"`
	SurfacePref     string    `json:"surfacePref"`
	AvoidMajorRoads *bool     `json:"avoidMajorRoads"`
	LoopAtPark      bool      `json:"loopAtPark"`
	ParkSearch      string    `json:"parkSearch"`
}

// Ping handles GET /route. It answers immediately and never touches the
// router, the places service or the request body.
func (h *RouteHandler) Ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// PlanRoutes handles POST /route
func (h *RouteHandler) PlanRoutes(w http.ResponseWriter, r *http.Request) {
	var req planRequest

	// Decode request body
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logr.Warn("failed to decode request body", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Invalid request body",
		})
		return
	}

	// Validate required fields
	if len(req.StartLatLng) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "startLatLng is required",
		})
		return
	}
	origin, err := models.NormalizeLatLng(req.StartLatLng, "startLatLng")
	if err != nil {
		h.logr.Warn("invalid startLatLng", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}
	if req.TargetMeters <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "targetMeters must be a positive number",
		})
		return
	}

	plan := models.PlanRequest{
		Origin:          origin,
		TargetMeters:    req.TargetMeters,
		RouteType:       routeType(req.RouteType),
		ElevationPref:   elevationPref(req.ElevationPref),
		SurfacePref:     surfacePref(req.SurfacePref),
		AvoidMajorRoads: h.avoidMajorRoadsDflt,
		LoopAtPark:      req.LoopAtPark,
		ParkSearch:      req.ParkSearch,
		DirectionSeed:   req.DirectionSeed,
	}
	if req.AvoidMajorRoads != nil {
		plan.AvoidMajorRoads = *req.AvoidMajorRoads
	}

	fc, err := h.planner.Plan(r.Context(), plan)
	if err != nil {
		if errors.Is(err, models.ErrInvalidInput) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		h.logr.Error("failed to plan routes", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to generate routes",
		})
		return
	}

	writeJSON(w, http.StatusOK, fc)
}

// MethodNotAllowed is the catch-all for unsupported methods on /route.
func (h *RouteHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Use POST"})
}

func routeType(s string) models.RouteType {
	if s == string(models.RouteOutAndBack) {
		return models.RouteOutAndBack
	}
	return models.RouteLoop
}

func elevationPref(s string) models.ElevationPref {
	if s == string(models.ElevationHills) {
		return models.ElevationHills
	}
	return models.ElevationFlat
}

func surfacePref(s string) models.SurfacePref {
	switch models.SurfacePref(s) {
	case models.SurfaceTrail:
		return models.SurfaceTrail
	case models.SurfaceRoad:
		return models.SurfaceRoad
	default:
		return models.SurfaceMixed
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(data)
}
