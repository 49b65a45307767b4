package cache

import (
	"time"

	"github.com/redis/go-redis/v9"

	"nutrigate/internal/clock"
)

type Config struct {
	Backend string // "memory" or "redis"
	TTL     time.Duration
	MaxSize int
	Prefix  string
	Clock   clock.Clock
}

// New selects a cache backend based on config.
func New(cfg Config, redisClient *redis.Client) Cache {
	switch cfg.Backend {
	case "redis":
		return NewRedisCache(redisClient, RedisConfig{
			Prefix: cfg.Prefix,
			TTL:    cfg.TTL,
		})
	default:
		return NewMemoryCache(MemoryConfig{
			TTL:     cfg.TTL,
			MaxSize: cfg.MaxSize,
			Clock:   cfg.Clock,
		})
	}
}
