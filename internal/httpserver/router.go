package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"nutrigate/internal/handlers"
	"nutrigate/internal/metrics"
	"nutrigate/internal/middleware"
	"nutrigate/internal/ratelimit"
)

// Options carries the tunables the router needs beyond its handlers.
type Options struct {
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

func (o Options) withDefaults() Options {
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 60 * time.Second
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = 1 << 20
	}
	return o
}

func SetupRouter(
	r *chi.Mux,
	baseLogger *zap.Logger,
	analysis *handlers.AnalysisHandler,
	stats *handlers.StatsHandler,
	limiter *ratelimit.Limiter,
	opts Options,
) {
	opts = opts.withDefaults()

	r.Use(metrics.Middleware)

	// base middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)

	r.Use(middleware.LoggingContext(baseLogger))
	r.Use(middleware.Recoverer())                 // panic recovery
	r.Use(middleware.Timeout(opts.RequestTimeout))
	r.Use(middleware.MaxBodySize(opts.MaxBodyBytes))

	// routes
	r.Route("/api", func(r chi.Router) {
		r.With(middleware.RateLimit(limiter)).Post("/npk-analysis", analysis.Analyze)

		r.Route("/stats", func(r chi.Router) {
			r.Get("/fallback", stats.Fallback)
			r.Get("/cache", stats.CacheStats)
			r.Get("/rate-limit", stats.RateLimitStats)
		})
	})

	// health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Handle("/metrics", metrics.Handler())
}
