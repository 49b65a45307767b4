package satellite

import (
	"sync"
	"time"
)

// Stats aggregates fallback outcomes process-wide. It is injected into
// the orchestrator so tests can construct a fresh aggregator per case.
// Counters are monotonic; rates and averages are derived on read.
type Stats struct {
	mu sync.Mutex

	totalRequests      uint64
	successfulRequests uint64
	failedRequests     uint64
	cacheHits          uint64
	avgResponseSec     float64

	perProvider map[string]uint64
	perLevel    map[int]uint64
}

// NewStats creates an empty aggregator.
func NewStats() *Stats {
	return &Stats{
		perProvider: make(map[string]uint64),
		perLevel:    make(map[int]uint64),
	}
}

// RecordSuccess accounts one completed request answered by provider at
// the given default-chain fallback level.
func (s *Stats) RecordSuccess(provider string, level int, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalRequests++
	s.successfulRequests++
	s.perProvider[provider]++
	s.perLevel[level]++
	s.rollAverage(elapsed)
}

// RecordCacheHit accounts one request answered straight from cache.
func (s *Stats) RecordCacheHit(elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalRequests++
	s.successfulRequests++
	s.cacheHits++
	s.rollAverage(elapsed)
}

// RecordFailure accounts one request that exhausted the whole chain.
func (s *Stats) RecordFailure(elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalRequests++
	s.failedRequests++
	s.rollAverage(elapsed)
}

// rollAverage keeps a running mean. Caller holds the lock and has
// already incremented totalRequests.
func (s *Stats) rollAverage(elapsed time.Duration) {
	n := float64(s.totalRequests)
	s.avgResponseSec = (s.avgResponseSec*(n-1) + elapsed.Seconds()) / n
}

// Snapshot is a point-in-time copy of the aggregator, safe to
// serialize.
type Snapshot struct {
	TotalRequests      uint64            `json:"totalRequests"`
	SuccessfulRequests uint64            `json:"successfulRequests"`
	FailedRequests     uint64            `json:"failedRequests"`
	CacheHits          uint64            `json:"cacheHits"`
	AvgResponseSec     float64           `json:"averageResponseSeconds"`
	SuccessRate        float64           `json:"successRate"`
	ProviderUsage      map[string]uint64 `json:"providerUsage"`
	LevelUsage         map[int]uint64    `json:"fallbackLevelUsage"`
}

// Snapshot copies the current counters.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		TotalRequests:      s.totalRequests,
		SuccessfulRequests: s.successfulRequests,
		FailedRequests:     s.failedRequests,
		CacheHits:          s.cacheHits,
		AvgResponseSec:     s.avgResponseSec,
		ProviderUsage:      make(map[string]uint64, len(s.perProvider)),
		LevelUsage:         make(map[int]uint64, len(s.perLevel)),
	}
	if s.totalRequests > 0 {
		snap.SuccessRate = float64(s.successfulRequests) / float64(s.totalRequests)
	}
	for k, v := range s.perProvider {
		snap.ProviderUsage[k] = v
	}
	for k, v := range s.perLevel {
		snap.LevelUsage[k] = v
	}
	return snap
}
