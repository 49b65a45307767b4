package cache

import (
	"context"
	"sync"
	"time"

	"nutrigate/internal/clock"
)

type memoryEntry struct {
	value     []byte
	storedAt  time.Time
	expiresAt time.Time
	seq       uint64 // insertion order, breaks eviction ties
}

// MemoryCache is an in-memory Cache with a fixed TTL and a hard entry
// cap. At capacity, inserting a new key evicts the resident entry with
// the earliest expiry (ties broken by insertion order).
type MemoryCache struct {
	mu      sync.Mutex
	items   map[string]*memoryEntry
	ttl     time.Duration
	maxSize int
	clock   clock.Clock
	nextSeq uint64

	hits      uint64
	misses    uint64
	stores    uint64
	evictions uint64
}

// MemoryConfig holds configuration for the in-memory cache.
type MemoryConfig struct {
	TTL     time.Duration // entry lifetime (default: 24h)
	MaxSize int           // maximum resident entries (default: 1000)
	Clock   clock.Clock   // defaults to the wall clock
}

// NewMemoryCache creates an in-memory cache backend.
func NewMemoryCache(cfg MemoryConfig) *MemoryCache {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 1000
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	return &MemoryCache{
		items:   make(map[string]*memoryEntry),
		ttl:     cfg.TTL,
		maxSize: cfg.MaxSize,
		clock:   cfg.Clock,
	}
}

// Get retrieves a value. An expired entry is treated as a miss and is
// removed at that point.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false, nil
	}

	if c.clock.Now().After(entry.expiresAt) {
		delete(c.items, key)
		c.misses++
		return nil, false, nil
	}

	c.hits++
	return entry.value, true, nil
}

// Set stores value under key with the cache's TTL. Overwriting a live
// key replaces the value in place: no eviction, size unchanged, and the
// stores counter untouched.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte) error {
	// Copy to decouple from caller's buffer.
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()

	if entry, ok := c.items[key]; ok {
		live := !now.After(entry.expiresAt)
		entry.value = valueCopy
		entry.storedAt = now
		entry.expiresAt = now.Add(c.ttl)
		if !live {
			// The key was logically absent, so this counts as a store.
			c.stores++
		}
		return nil
	}

	if len(c.items) >= c.maxSize {
		c.evictEarliest()
	}

	c.nextSeq++
	c.items[key] = &memoryEntry{
		value:     valueCopy,
		storedAt:  now,
		expiresAt: now.Add(c.ttl),
		seq:       c.nextSeq,
	}
	c.stores++
	return nil
}

// evictEarliest removes the entry with the earliest expiry, preferring
// the one inserted first when several share it. Caller holds the lock.
func (c *MemoryCache) evictEarliest() {
	var victim string
	var victimEntry *memoryEntry

	for key, entry := range c.items {
		if victimEntry == nil ||
			entry.expiresAt.Before(victimEntry.expiresAt) ||
			(entry.expiresAt.Equal(victimEntry.expiresAt) && entry.seq < victimEntry.seq) {
			victim = key
			victimEntry = entry
		}
	}

	if victimEntry != nil {
		delete(c.items, victim)
		c.evictions++
	}
}

// Stats returns a snapshot of the counters.
func (c *MemoryCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Stores:    c.stores,
		Evictions: c.evictions,
		Size:      len(c.items),
		MaxSize:   c.maxSize,
		TTL:       c.ttl,
	}
}

// Len returns the number of resident entries.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Clear removes all entries. Useful for tests or manual resets.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	c.items = make(map[string]*memoryEntry)
	c.mu.Unlock()
}
