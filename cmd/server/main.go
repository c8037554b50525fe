package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"routeplanner/internal/cache"
	"routeplanner/internal/config"
	"routeplanner/internal/logger"
	"routeplanner/internal/places"
	"routeplanner/internal/router"
	"routeplanner/internal/routes"
	"routeplanner/internal/services"
)

func main() {
	cfg := config.Load()
	logr := logger.New(cfg)
	defer logr.Sync()

	routerClient := router.NewClient(router.Config{
		BaseURL: cfg.RouterURL,
		APIKey:  cfg.RouterAPIKey,
		Profile: cfg.RouterProfile,
		Timeout: cfg.RouterTimeout,
	}, logr.Logger.Named("router"))

	parkResolver := places.NewResolver(places.Config{
		BaseURL:        cfg.PlacesURL,
		NearestTimeout: cfg.PlacesNearestTimeout,
		NameTimeout:    cfg.PlacesNameTimeout,
	}, logr.Logger.Named("places"))

	responseCache := cache.New(cfg.CacheTTL, cfg.CacheMaxEntries)
	stagger := rate.NewLimiter(rate.Every(cfg.CandidateStagger), 1)

	planner := services.NewPlanner(routerClient, parkResolver, responseCache, stagger, services.Config{
		ParkRadiusMeters: cfg.ParkRadiusMeters,
		Parallel:         cfg.ParallelCandidates,
	}, logr.Logger.Named("planner"))

	r := routes.NewRouter(planner, cfg, logr)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logr.Info("server started",
			zap.String("port", cfg.Port),
			zap.Bool("router_configured", cfg.RouterURL != ""),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logr.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logr.Fatal("server forced to shutdown", zap.Error(err))
	}

	logr.Info("server exited gracefully")
}
