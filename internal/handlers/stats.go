package handlers

import (
	"net/http"

	"nutrigate/internal/cache"
	"nutrigate/internal/ratelimit"
	"nutrigate/internal/satellite"
)

// StatsHandler exposes engine introspection snapshots.
type StatsHandler struct {
	Stats   *satellite.Stats
	Cache   cache.Cache
	Limiter *ratelimit.Limiter
}

func NewStatsHandler(stats *satellite.Stats, c cache.Cache, l *ratelimit.Limiter) *StatsHandler {
	return &StatsHandler{Stats: stats, Cache: c, Limiter: l}
}

// Fallback handles GET /api/stats/fallback.
func (h *StatsHandler) Fallback(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Stats.Snapshot())
}

// CacheStats handles GET /api/stats/cache.
func (h *StatsHandler) CacheStats(w http.ResponseWriter, r *http.Request) {
	stats := h.Cache.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"hits":       stats.Hits,
		"misses":     stats.Misses,
		"stores":     stats.Stores,
		"evictions":  stats.Evictions,
		"size":       stats.Size,
		"maxSize":    stats.MaxSize,
		"ttlSeconds": stats.TTL.Seconds(),
		"hitRate":    stats.HitRate(),
	})
}

// RateLimitStats handles GET /api/stats/rate-limit. With ?client= it
// reports that client's window view, otherwise process-wide totals.
func (h *StatsHandler) RateLimitStats(w http.ResponseWriter, r *http.Request) {
	if client := r.URL.Query().Get("client"); client != "" {
		writeJSON(w, http.StatusOK, h.Limiter.ClientStats(client))
		return
	}
	writeJSON(w, http.StatusOK, h.Limiter.Snapshot())
}
