package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"nutrigate/internal/cache"
	"nutrigate/internal/config"
	"nutrigate/internal/handlers"
	"nutrigate/internal/httpserver"
	"nutrigate/internal/metrics"
	"nutrigate/internal/ratelimit"
	"nutrigate/internal/satellite"
	"nutrigate/internal/satellite/providers"
	"nutrigate/pkg/logging/logging"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("nutrigate exited with error: %v", err)
	}
}

func run() error {
	// ----- Logger -----
	logger := logging.DefaultLogger()
	defer logger.Sync()

	// ----- Metrics -----
	metrics.Register()

	// ----- Config -----
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger.Info("loaded config",
		zap.String("port", cfg.Port),
		zap.String("cache_backend", cfg.CacheBackend),
		zap.String("version_id", cfg.VersionID),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("rate_max_per_minute", cfg.RateMaxPerMinute),
		zap.Int("rate_max_per_hour", cfg.RateMaxPerHour),
		zap.String("scene_base_url", cfg.SceneBaseURL),
	)

	// ----- Redis client (only if needed) -----
	var redisClient *redis.Client
	if cfg.CacheBackend == "redis" {
		redisClient = redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})

		// Fail fast if Redis is misconfigured
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Error("redis connection failed", zap.Error(err))
			return err
		}
		logger.Info("redis connection established",
			zap.String("addr", cfg.RedisAddr),
		)
	}

	// ----- Result cache -----
	resultCache := cache.New(cache.Config{
		Backend: cfg.CacheBackend,
		TTL:     cfg.CacheTTL,
		MaxSize: cfg.CacheMaxSize,
		Prefix:  cfg.CachePrefix,
	}, redisClient)
	resultCache = cache.NewLoggingCache(resultCache)

	// ----- Rate limiter -----
	limiter := ratelimit.New(ratelimit.Config{
		MaxPerMinute: cfg.RateMaxPerMinute,
		MaxPerHour:   cfg.RateMaxPerHour,
		MaxClients:   cfg.RateMaxClients,
	}, logger)

	// ----- Provider chain -----
	descs, err := cfg.Descriptors()
	if err != nil {
		return err
	}
	chain, err := providers.Build(descs, providers.ClientConfig{
		APIKey: cfg.SceneAPIKey,
	}, logger)
	if err != nil {
		return err
	}

	// ----- Orchestrator -----
	orch, err := satellite.NewOrchestrator(chain, satellite.OrchestratorConfig{
		Cache:            resultCache,
		Logger:           logger,
		BaseBackoff:      cfg.BaseBackoff,
		ParallelAttempts: cfg.ParallelAttempts,
	})
	if err != nil {
		return err
	}

	// ----- Handlers -----
	analysisHandler := handlers.NewAnalysisHandler(orch, cfg.VersionID)
	statsHandler := handlers.NewStatsHandler(orch.Stats(), resultCache, limiter)

	// ----- Router + middleware -----
	r := chi.NewRouter()
	httpserver.SetupRouter(r, logger, analysisHandler, statsHandler, limiter, httpserver.Options{
		RequestTimeout: cfg.RequestTimeout,
		MaxBodyBytes:   cfg.MaxBodyBytes,
	})

	// ----- HTTP server -----
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("starting nutrigate",
		zap.String("addr", srv.Addr),
		zap.Int("chain_length", len(chain)),
		zap.String("cache_backend", cfg.CacheBackend),
		zap.String("version_id", cfg.VersionID),
	)

	// Start server in background
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
		}
	}()

	// ----- Graceful shutdown -----
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return err
	}

	logger.Info("server shutdown complete")
	return nil
}
