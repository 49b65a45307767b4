// Package config reads service configuration: scalar settings from the
// environment (with .env support for development) and the provider
// chain from an optional YAML file.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Port      string
	VersionID string

	// Cache settings.
	CacheBackend string // "memory" or "redis"
	CacheTTL     time.Duration
	CacheMaxSize int
	CachePrefix  string
	RedisAddr    string

	// Per-client admission windows.
	RateMaxPerMinute int
	RateMaxPerHour   int
	RateMaxClients   int

	// Imagery backend.
	SceneBaseURL string
	SceneAPIKey  string

	// Orchestration.
	ChainFile        string // optional YAML override of the default chain
	ParallelAttempts int
	BaseBackoff      time.Duration

	// HTTP surface.
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg := &AppConfig{
		Port:      getenvDefault("PORT", "8080"),
		VersionID: getenvDefault("NUTRIGATE_VERSION", "v1"),

		CacheBackend: getenvDefault("CACHE_BACKEND", "memory"),
		CacheMaxSize: getenvInt("CACHE_MAX_SIZE", 1000),
		CachePrefix:  getenvDefault("CACHE_PREFIX", "nutrigate"),
		RedisAddr:    getenvDefault("REDIS_ADDR", "127.0.0.1:6379"),

		RateMaxPerMinute: getenvInt("RATE_MAX_PER_MINUTE", 60),
		RateMaxPerHour:   getenvInt("RATE_MAX_PER_HOUR", 1000),
		RateMaxClients:   getenvInt("RATE_MAX_CLIENTS", 10000),

		SceneBaseURL: getenvDefault("SCENE_BASE_URL", "https://planetarycomputer.microsoft.com/api"),
		SceneAPIKey:  os.Getenv("SCENE_API_KEY"),

		ChainFile:        os.Getenv("CHAIN_CONFIG"),
		ParallelAttempts: getenvInt("PARALLEL_ATTEMPTS", 1),

		MaxBodyBytes: int64(getenvInt("MAX_BODY_BYTES", 1<<20)),
	}

	var err error
	if cfg.CacheTTL, err = getenvDuration("CACHE_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.BaseBackoff, err = getenvDuration("RETRY_BASE_BACKOFF", 500*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = getenvDuration("REQUEST_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}

	if cfg.RateMaxPerMinute <= 0 || cfg.RateMaxPerHour <= 0 {
		return nil, fmt.Errorf("rate limits must be positive (minute=%d hour=%d)",
			cfg.RateMaxPerMinute, cfg.RateMaxPerHour)
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
