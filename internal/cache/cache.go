package cache

import (
	"context"
	"time"
)

// Cache is the interface the orchestrator uses to short-circuit
// provider walks. TTL is fixed per cache instance, not per entry.
// Implemented by the in-memory cache (dev) and the Redis cache (prod).
type Cache interface {
	// Get returns the stored value, or ok=false when the key was never
	// stored or its entry has expired. A backend error is reported so the
	// caller can log it, but it must be treated as a miss.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set stores value under key with the cache's configured TTL.
	Set(ctx context.Context, key string, value []byte) error

	// Stats returns a snapshot of the lifetime counters.
	Stats() Stats
}

// Stats holds cache counters. Everything except Size is monotonically
// non-decreasing for the life of the process.
type Stats struct {
	Hits      uint64        `json:"hits"`
	Misses    uint64        `json:"misses"`
	Stores    uint64        `json:"stores"`
	Evictions uint64        `json:"evictions"`
	Size      int           `json:"currentSize"`
	MaxSize   int           `json:"maxSize"`
	TTL       time.Duration `json:"ttl"`
}

// HitRate derives the hit ratio from the counters.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
