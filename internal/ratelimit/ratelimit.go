// Package ratelimit gates requests before any provider work happens.
// Each client identity gets two independent fixed windows: 60 seconds
// and 3600 seconds. A request is admitted only when both windows have
// budget left, and admission consumes one unit from each.
package ratelimit

import (
	"container/list"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"nutrigate/internal/clock"
)

const (
	minuteWindow = time.Minute
	hourWindow   = time.Hour
)

// Error is returned by Admit when a window is exhausted. RetryAfter is
// the smaller of the two windows' remaining reset times.
type Error struct {
	ClientID   string
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	return fmt.Sprintf("rate limit exceeded for client %s, retry after %s", e.ClientID, e.RetryAfter)
}

// Config holds limiter settings.
type Config struct {
	MaxPerMinute int
	MaxPerHour   int
	// MaxClients bounds the per-client state map. When exceeded, the
	// least recently seen client's state is dropped. 0 means 10000.
	MaxClients int
	Clock      clock.Clock
}

type clientState struct {
	id          string
	minuteCount int
	minuteReset time.Time
	hourCount   int
	hourReset   time.Time
	elem        *list.Element
}

// Limiter implements per-client fixed-window admission control.
type Limiter struct {
	mu      sync.Mutex
	clients map[string]*clientState
	lru     *list.List // front = most recently seen
	cfg     Config
	clock   clock.Clock
	logger  *zap.Logger

	admitted uint64
	blocked  uint64
	dropped  uint64 // client states evicted by the LRU bound
}

// New creates a limiter. Logger may be nil.
func New(cfg Config, logger *zap.Logger) *Limiter {
	if cfg.MaxPerMinute <= 0 {
		cfg.MaxPerMinute = 60
	}
	if cfg.MaxPerHour <= 0 {
		cfg.MaxPerHour = 1000
	}
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = 10000
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{
		clients: make(map[string]*clientState),
		lru:     list.New(),
		cfg:     cfg,
		clock:   cfg.Clock,
		logger:  logger.Named("ratelimit"),
	}
}

// Admit checks whether a request from clientID may proceed. It returns
// nil and consumes one unit from both windows when allowed, or an *Error
// carrying the retry-after hint when denied. Denied requests consume no
// budget.
func (l *Limiter) Admit(clientID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	st := l.touch(clientID, now)

	// Lazy window reset: a passed window restarts at the moment of the
	// triggering check.
	if !now.Before(st.minuteReset) {
		st.minuteCount = 0
		st.minuteReset = now.Add(minuteWindow)
	}
	if !now.Before(st.hourReset) {
		st.hourCount = 0
		st.hourReset = now.Add(hourWindow)
	}

	if st.minuteCount >= l.cfg.MaxPerMinute || st.hourCount >= l.cfg.MaxPerHour {
		l.blocked++
		retryAfter := minDuration(st.minuteReset.Sub(now), st.hourReset.Sub(now))
		if retryAfter < 0 {
			retryAfter = 0
		}
		l.logger.Warn("request denied",
			zap.String("client_id", clientID),
			zap.Int("minute_count", st.minuteCount),
			zap.Int("hour_count", st.hourCount),
			zap.Duration("retry_after", retryAfter),
		)
		return &Error{ClientID: clientID, RetryAfter: retryAfter}
	}

	st.minuteCount++
	st.hourCount++
	l.admitted++
	return nil
}

// touch returns the state for clientID, creating it (and evicting the
// least recently seen client when over the bound) on first sight.
// Caller holds the lock.
func (l *Limiter) touch(clientID string, now time.Time) *clientState {
	if st, ok := l.clients[clientID]; ok {
		l.lru.MoveToFront(st.elem)
		return st
	}

	if len(l.clients) >= l.cfg.MaxClients {
		if oldest := l.lru.Back(); oldest != nil {
			victim := oldest.Value.(*clientState)
			l.lru.Remove(oldest)
			delete(l.clients, victim.id)
			l.dropped++
		}
	}

	st := &clientState{
		id:          clientID,
		minuteReset: now.Add(minuteWindow),
		hourReset:   now.Add(hourWindow),
	}
	st.elem = l.lru.PushFront(st)
	l.clients[clientID] = st
	return st
}

// ClientStats is the per-client introspection view.
type ClientStats struct {
	ClientID        string `json:"clientId"`
	CurrentMinute   int    `json:"currentRequestsMinute"`
	MaxPerMinute    int    `json:"maxRequestsMinute"`
	CurrentHour     int    `json:"currentRequestsHour"`
	MaxPerHour      int    `json:"maxRequestsHour"`
	MinuteRemaining int    `json:"minuteRemaining"`
	HourRemaining   int    `json:"hourRemaining"`
}

// ClientStats reports the effective window counts for clientID without
// mutating any state. Windows whose reset time has passed are reported
// as empty.
func (l *Limiter) ClientStats(clientID string) ClientStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	stats := ClientStats{
		ClientID:     clientID,
		MaxPerMinute: l.cfg.MaxPerMinute,
		MaxPerHour:   l.cfg.MaxPerHour,
	}

	if st, ok := l.clients[clientID]; ok {
		if now.Before(st.minuteReset) {
			stats.CurrentMinute = st.minuteCount
		}
		if now.Before(st.hourReset) {
			stats.CurrentHour = st.hourCount
		}
	}
	stats.MinuteRemaining = maxInt(0, l.cfg.MaxPerMinute-stats.CurrentMinute)
	stats.HourRemaining = maxInt(0, l.cfg.MaxPerHour-stats.CurrentHour)
	return stats
}

// Snapshot is the process-wide limiter view.
type Snapshot struct {
	Admitted      uint64 `json:"admittedRequests"`
	Blocked       uint64 `json:"blockedRequests"`
	ActiveClients int    `json:"activeClients"`
	DroppedStates uint64 `json:"droppedClientStates"`
	MaxPerMinute  int    `json:"maxRequestsMinute"`
	MaxPerHour    int    `json:"maxRequestsHour"`
}

// Snapshot returns global counters.
func (l *Limiter) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Snapshot{
		Admitted:      l.admitted,
		Blocked:       l.blocked,
		ActiveClients: len(l.clients),
		DroppedStates: l.dropped,
		MaxPerMinute:  l.cfg.MaxPerMinute,
		MaxPerHour:    l.cfg.MaxPerHour,
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
