package routes

import (
	"net/http"

	"routeplanner/internal/config"
	"routeplanner/internal/handlers"
	"routeplanner/internal/logger"
	"routeplanner/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func NewRouter(planner *services.Planner, cfg *config.Config, logr *logger.Logger) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(noStore)

	// CORS middleware with config
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	routeHandler := handlers.NewRouteHandler(planner, cfg.AvoidMajorRoadsDefault, logr.Logger)

	r.MethodNotAllowed(routeHandler.MethodNotAllowed)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte("ok"))
		if err != nil {
			return
		}
	})

	r.Get("/route", routeHandler.Ping)
	r.Post("/route", routeHandler.PlanRoutes)

	return r
}

// noStore disables HTTP-level caching: every response reflects a fresh
// computation (or the internal short-TTL cache).
func noStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
