package cache

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"nutrigate/internal/metrics"
	"nutrigate/pkg/logging/logging"
)

// LoggingCache wraps a Cache with structured logging + metrics.
type LoggingCache struct {
	inner Cache
}

// NewLoggingCache returns a cache that logs and records metrics.
func NewLoggingCache(inner Cache) Cache {
	return &LoggingCache{inner: inner}
}

func (c *LoggingCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	value, ok, err := c.inner.Get(ctx, key)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	logger := logging.L(ctx)

	result := "miss"
	if err != nil {
		result = "error"
	} else if ok {
		result = "hit"
		metrics.CacheHitsTotal.Inc()
	} else {
		metrics.CacheMissesTotal.Inc()
	}

	fields := []zap.Field{
		zap.String("cache_key", key),
		zap.String("cache_result", result), // hit | miss | error
		zap.Float64("latency_ms", latencyMs),
	}
	if parts, ok := parseKey(key); ok {
		fields = append(fields,
			zap.String("crop", parts.crop),
			zap.String("date", parts.date),
		)
	}

	if err != nil {
		logger.Warn("cache_get", append(fields, zap.Error(err))...)
	} else {
		logger.Debug("cache_get", fields...)
	}

	return value, ok, err
}

func (c *LoggingCache) Set(ctx context.Context, key string, value []byte) error {
	start := time.Now()
	err := c.inner.Set(ctx, key, value)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	logger := logging.L(ctx)

	fields := []zap.Field{
		zap.String("cache_key", key),
		zap.Int("value_bytes", len(value)),
		zap.Float64("latency_ms", latencyMs),
	}

	if err != nil {
		logger.Warn("cache_set", append(fields, zap.Error(err))...)
	} else {
		logger.Debug("cache_set", fields...)
	}

	return err
}

func (c *LoggingCache) Stats() Stats {
	return c.inner.Stats()
}

type keyParts struct {
	crop string
	date string
	hash string
}

// Expecting: npk:<CROP>:<DATE>:<HASH>
func parseKey(key string) (keyParts, bool) {
	parts := strings.Split(key, ":")
	if len(parts) != 4 || parts[0] != "npk" {
		return keyParts{}, false
	}
	return keyParts{crop: parts[1], date: parts[2], hash: parts[3]}, true
}
