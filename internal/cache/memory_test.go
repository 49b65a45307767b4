package cache

import (
	"context"
	"testing"
	"time"

	"nutrigate/internal/clock"
)

func TestMemoryCache_TTL(t *testing.T) {
	clk := clock.NewManual(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	c := NewMemoryCache(MemoryConfig{TTL: 2 * time.Second, MaxSize: 10, Clock: clk})

	ctx := context.Background()
	if err := c.Set(ctx, "k", []byte("hello")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, hit, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !hit {
		t.Fatalf("expected hit immediately after Set")
	}
	if string(got) != "hello" {
		t.Fatalf("expected 'hello', got %q", got)
	}

	clk.Advance(3 * time.Second)

	_, hit, err = c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get after TTL failed: %v", err)
	}
	if hit {
		t.Fatalf("expected miss after TTL expiry")
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Fatalf("expected 1 hit 1 miss, got %d/%d", stats.Hits, stats.Misses)
	}
	if stats.Size != 0 {
		t.Fatalf("expected expired entry removed on read, size=%d", stats.Size)
	}
}

func TestMemoryCache_EvictsEarliestExpiry(t *testing.T) {
	clk := clock.NewManual(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	c := NewMemoryCache(MemoryConfig{TTL: 2 * time.Second, MaxSize: 1, Clock: clk})

	ctx := context.Background()
	if err := c.Set(ctx, "a", []byte("A")); err != nil {
		t.Fatalf("Set a: %v", err)
	}

	clk.Advance(time.Second)
	if err := c.Set(ctx, "b", []byte("B")); err != nil {
		t.Fatalf("Set b: %v", err)
	}

	if _, hit, _ := c.Get(ctx, "a"); hit {
		t.Fatalf("expected a evicted at capacity")
	}
	if _, hit, _ := c.Get(ctx, "b"); !hit {
		t.Fatalf("expected b resident")
	}

	stats := c.Stats()
	if stats.Evictions != 1 {
		t.Fatalf("expected 1 eviction, got %d", stats.Evictions)
	}
	if stats.Size != 1 {
		t.Fatalf("expected size 1, got %d", stats.Size)
	}
}

func TestMemoryCache_EvictionTieBreaksByInsertionOrder(t *testing.T) {
	clk := clock.NewManual(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	c := NewMemoryCache(MemoryConfig{TTL: time.Minute, MaxSize: 2, Clock: clk})

	ctx := context.Background()
	// Same expiry for both: the clock does not move between stores.
	_ = c.Set(ctx, "first", []byte("1"))
	_ = c.Set(ctx, "second", []byte("2"))
	_ = c.Set(ctx, "third", []byte("3"))

	if _, hit, _ := c.Get(ctx, "first"); hit {
		t.Fatalf("expected first insert to lose the tie")
	}
	if _, hit, _ := c.Get(ctx, "second"); !hit {
		t.Fatalf("expected second insert to survive")
	}
	if _, hit, _ := c.Get(ctx, "third"); !hit {
		t.Fatalf("expected third insert resident")
	}
}

func TestMemoryCache_OverwriteLiveKey(t *testing.T) {
	clk := clock.NewManual(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	c := NewMemoryCache(MemoryConfig{TTL: 10 * time.Second, MaxSize: 5, Clock: clk})

	ctx := context.Background()
	_ = c.Set(ctx, "k", []byte("old"))

	clk.Advance(5 * time.Second)
	_ = c.Set(ctx, "k", []byte("new"))

	got, hit, _ := c.Get(ctx, "k")
	if !hit || string(got) != "new" {
		t.Fatalf("expected overwritten value, hit=%v got=%q", hit, got)
	}

	stats := c.Stats()
	if stats.Stores != 1 {
		t.Fatalf("overwriting a live key must not count as a store, got %d", stats.Stores)
	}
	if stats.Size != 1 {
		t.Fatalf("expected size 1, got %d", stats.Size)
	}

	// The overwrite refreshed the TTL: 9s after the rewrite is still live.
	clk.Advance(9 * time.Second)
	if _, hit, _ := c.Get(ctx, "k"); !hit {
		t.Fatalf("expected TTL refreshed by overwrite")
	}
}

func TestMemoryCache_ReplacingExpiredKeyCountsAsStore(t *testing.T) {
	clk := clock.NewManual(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	c := NewMemoryCache(MemoryConfig{TTL: time.Second, MaxSize: 5, Clock: clk})

	ctx := context.Background()
	_ = c.Set(ctx, "k", []byte("old"))

	clk.Advance(2 * time.Second)
	_ = c.Set(ctx, "k", []byte("new"))

	stats := c.Stats()
	if stats.Stores != 2 {
		t.Fatalf("replacing an expired entry is a store, got %d", stats.Stores)
	}
}

func TestMemoryCache_ValueIsolation(t *testing.T) {
	c := NewMemoryCache(MemoryConfig{})
	ctx := context.Background()

	buf := []byte("original")
	_ = c.Set(ctx, "k", buf)
	buf[0] = 'X'

	got, _, _ := c.Get(ctx, "k")
	if string(got) != "original" {
		t.Fatalf("cache must copy the caller's buffer, got %q", got)
	}
}
