package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Environment string

	// Routing engine
	RouterURL     string
	RouterAPIKey  string
	RouterProfile string
	RouterTimeout time.Duration

	// Place search
	PlacesURL            string
	PlacesNearestTimeout time.Duration
	PlacesNameTimeout    time.Duration
	ParkRadiusMeters     float64

	// Candidate generation
	CandidateStagger       time.Duration
	AvoidMajorRoadsDefault bool
	ParallelCandidates     bool

	// Response cache
	CacheTTL        time.Duration
	CacheMaxEntries int

	// CORS
	AllowedOrigins []string
}

// Load loads environment variables and returns a Config struct
func Load() *Config {
	_ = godotenv.Load()

	routerTimeoutSec := getEnvAsInt("ROUTER_TIMEOUT_SECONDS", 8)
	placesNearestMs := getEnvAsInt("PLACES_NEAREST_TIMEOUT_MS", 3500)
	placesNameSec := getEnvAsInt("PLACES_NAME_TIMEOUT_SECONDS", 10)
	staggerMs := getEnvAsInt("CANDIDATE_STAGGER_MS", 300)
	cacheTTLMin := getEnvAsInt("CACHE_TTL_MINUTES", 10)

	// Parse allowed origins from env (comma-separated)
	allowedOrigins := strings.Split(
		getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173"),
		",",
	)

	return &Config{
		Port:        getEnv("APP_PORT", "8790"),
		Environment: getEnv("ENVIRONMENT", "development"),

		RouterURL:     getEnv("ROUTER_URL", ""),
		RouterAPIKey:  getEnv("ROUTER_API_KEY", ""),
		RouterProfile: getEnv("ROUTER_PROFILE", "foot"),
		RouterTimeout: time.Duration(routerTimeoutSec) * time.Second,

		PlacesURL:            getEnv("PLACES_URL", "https://overpass-api.de/api/interpreter"),
		PlacesNearestTimeout: time.Duration(placesNearestMs) * time.Millisecond,
		PlacesNameTimeout:    time.Duration(placesNameSec) * time.Second,
		ParkRadiusMeters:     float64(getEnvAsInt("PARK_RADIUS_METERS", 4000)),

		CandidateStagger:       time.Duration(staggerMs) * time.Millisecond,
		AvoidMajorRoadsDefault: getEnvAsBool("AVOID_MAJOR_ROADS_DEFAULT", true),
		ParallelCandidates:     getEnvAsBool("PARALLEL_CANDIDATES", false),

		CacheTTL:        time.Duration(cacheTTLMin) * time.Minute,
		CacheMaxEntries: getEnvAsInt("CACHE_MAX_ENTRIES", 256),

		AllowedOrigins: allowedOrigins,
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valStr := os.Getenv(key)
	if valStr == "" {
		return fallback
	}
	val, err := strconv.ParseBool(valStr)
	if err != nil {
		log.Printf("invalid bool for %s, defaulting to %v\n", key, fallback)
		return fallback
	}
	return val
}

func getEnvAsInt(key string, fallback int) int {
	valStr := os.Getenv(key)
	if valStr == "" {
		return fallback
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		log.Printf("invalid int for %s, defaulting to %v\n", key, fallback)
		return fallback
	}
	return val
}
