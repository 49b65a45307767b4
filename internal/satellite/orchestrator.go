package satellite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"nutrigate/internal/cache"
	"nutrigate/internal/clock"
	"nutrigate/internal/metrics"
	"nutrigate/internal/npk"
)

// CalibrateFunc converts a provider's raw indices into a nutrient
// estimate. It is a pure external collaborator; the orchestrator only
// invokes it.
type CalibrateFunc func(crop string, idx npk.Indices) npk.Estimate

// OrchestratorConfig wires the engine's collaborators.
type OrchestratorConfig struct {
	Cache     cache.Cache
	Stats     *Stats
	Clock     clock.Clock
	Logger    *zap.Logger
	Calibrate CalibrateFunc

	// BaseBackoff seeds the exponential backoff between retries of the
	// same provider (default: 500ms).
	BaseBackoff time.Duration

	// ParallelAttempts races the leading N providers of the reordered
	// chain instead of walking them one by one. 1 disables racing.
	ParallelAttempts int
}

// Orchestrator walks the provider chain for each request: cache check,
// policy-ordered provider walk with per-attempt timeout and per-provider
// retries, then the terminal baseline.
type Orchestrator struct {
	defaultChain []Descriptor
	byName       map[string]Provider
	baseline     *Descriptor

	cache     cache.Cache
	stats     *Stats
	clock     clock.Clock
	logger    *zap.Logger
	calibrate CalibrateFunc

	baseBackoff time.Duration
	parallel    int
}

// NewOrchestrator builds the engine over the given providers. Provider
// rank defines the default fallback sequence; ties keep declaration
// order. At least one baseline provider is required so the chain cannot
// fully fail.
func NewOrchestrator(providers []Provider, cfg OrchestratorConfig) (*Orchestrator, error) {
	if len(providers) == 0 {
		return nil, errors.New("satellite: at least one provider is required")
	}
	if cfg.Cache == nil {
		return nil, errors.New("satellite: cache is required")
	}
	if cfg.Stats == nil {
		cfg.Stats = NewStats()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Calibrate == nil {
		cfg.Calibrate = npk.Calibrate
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 500 * time.Millisecond
	}
	if cfg.ParallelAttempts <= 0 {
		cfg.ParallelAttempts = 1
	}

	o := &Orchestrator{
		byName:      make(map[string]Provider, len(providers)),
		cache:       cfg.Cache,
		stats:       cfg.Stats,
		clock:       cfg.Clock,
		logger:      cfg.Logger.Named("orchestrator"),
		calibrate:   cfg.Calibrate,
		baseBackoff: cfg.BaseBackoff,
		parallel:    cfg.ParallelAttempts,
	}

	for _, p := range providers {
		d := p.Descriptor()
		if _, dup := o.byName[d.Name]; dup {
			return nil, fmt.Errorf("satellite: duplicate provider %q", d.Name)
		}
		o.byName[d.Name] = p
		o.defaultChain = append(o.defaultChain, d)
	}

	sort.SliceStable(o.defaultChain, func(i, j int) bool {
		return o.defaultChain[i].Rank < o.defaultChain[j].Rank
	})

	for i := range o.defaultChain {
		if o.defaultChain[i].Baseline {
			o.baseline = &o.defaultChain[i]
		}
	}
	if o.baseline == nil {
		return nil, errors.New("satellite: a baseline provider is required")
	}

	return o, nil
}

// DefaultChain returns the configured fallback sequence.
func (o *Orchestrator) DefaultChain() []Descriptor {
	out := make([]Descriptor, len(o.defaultChain))
	copy(out, o.defaultChain)
	return out
}

// Stats exposes the injected aggregator.
func (o *Orchestrator) Stats() *Stats { return o.stats }

// cachedPayload is what gets serialized into the cache for a key.
type cachedPayload struct {
	Estimate npk.Estimate   `json:"estimate"`
	Source   SourceMetadata `json:"source"`
}

// Handle answers one request: cache check, provider walk, cache store.
// It returns ErrChainExhausted only when every provider including the
// baseline failed, which indicates a configuration defect.
func (o *Orchestrator) Handle(ctx context.Context, q Query, sc SelectionContext) (*Result, error) {
	start := o.clock.Now()
	requestID := uuid.NewString()
	key := cache.NewKey(q.Latitude, q.Longitude, q.Date, q.Crop).String()

	logger := o.logger.With(
		zap.String("request_id", requestID),
		zap.String("crop", q.Crop),
		zap.Float64("lat", q.Latitude),
		zap.Float64("lon", q.Longitude),
	)

	if result, ok := o.fromCache(ctx, logger, key, requestID, start); ok {
		return result, nil
	}

	ordered := o.orderFor(sc)
	logger.Debug("provider walk starting",
		zap.Int("chain_length", len(ordered)),
		zap.Int("parallel_attempts", o.parallel),
	)

	var attempts []AttemptRecord

	if o.parallel > 1 {
		n := o.parallel
		if n > len(ordered) {
			n = len(ordered)
		}
		obs, winner, recs, ok := o.race(ctx, ordered[:n], q)
		attempts = append(attempts, recs...)
		if ok {
			return o.finish(ctx, logger, q, key, requestID, winner, obs, attempts, start), nil
		}
		ordered = ordered[n:]
	}

	for _, d := range ordered {
		p := o.byName[d.Name]
		obs, recs, err := o.attemptProvider(ctx, p, q)
		attempts = append(attempts, recs...)
		if err == nil {
			return o.finish(ctx, logger, q, key, requestID, p, obs, attempts, start), nil
		}
		logger.Warn("provider exhausted",
			zap.String("provider", d.Name),
			zap.String("failure_kind", string(Kind(err))),
			zap.Error(err),
		)
		if ctx.Err() != nil {
			break
		}
	}

	elapsed := o.clock.Now().Sub(start)
	o.stats.RecordFailure(elapsed)
	logger.Error("all fallback levels failed",
		zap.Duration("elapsed", elapsed),
		zap.Int("attempts", len(attempts)),
	)
	return nil, fmt.Errorf("request %s: %w", requestID, ErrChainExhausted)
}

// fromCache serves a request straight from cache when possible. Cache
// faults (backend error or a corrupt payload) degrade to a miss.
func (o *Orchestrator) fromCache(ctx context.Context, logger *zap.Logger, key, requestID string, start time.Time) (*Result, bool) {
	raw, ok, err := o.cache.Get(ctx, key)
	if err != nil {
		logger.Warn("cache get failed, treating as miss", zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var payload cachedPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		logger.Warn("corrupt cache payload, treating as miss", zap.Error(err))
		return nil, false
	}

	elapsed := o.clock.Now().Sub(start)
	o.stats.RecordCacheHit(elapsed)

	meta := payload.Source
	meta.Cached = true
	meta.ProcessingTime = elapsed

	logger.Debug("cache hit", zap.String("source", meta.Source))
	return &Result{
		RequestID: requestID,
		Estimate:  payload.Estimate,
		Source:    meta,
	}, true
}

// orderFor applies the selection policy and guarantees the baseline is
// still reachable even when a hard exclusion named it.
func (o *Orchestrator) orderFor(sc SelectionContext) []Descriptor {
	ordered := Reorder(o.defaultChain, sc)
	for _, d := range ordered {
		if d.Baseline {
			return ordered
		}
	}
	return append(ordered, *o.baseline)
}

// attemptProvider runs one provider's full retry budget: up to
// 1+MaxRetries physical attempts, each bounded by the provider's
// per-attempt timeout, with jittered exponential backoff in between.
// An open circuit breaker aborts the budget immediately (the attempt is
// recorded as skipped).
func (o *Orchestrator) attemptProvider(ctx context.Context, p Provider, q Query) (Observation, []AttemptRecord, error) {
	d := p.Descriptor()
	maxAttempts := 1 + d.MaxRetries
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var records []AttemptRecord
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				lastErr = err
			}
			return Observation{}, records, lastErr
		}

		startedAt := o.clock.Now()
		actx := ctx
		cancel := context.CancelFunc(func() {})
		if d.AttemptTimeout > 0 {
			actx, cancel = context.WithTimeout(ctx, d.AttemptTimeout)
		}
		obs, err := p.Fetch(actx, q)
		cancel()
		latency := o.clock.Now().Sub(startedAt)

		if err == nil {
			records = append(records, AttemptRecord{
				Provider: d.Name, StartedAt: startedAt, Outcome: OutcomeSuccess, Latency: latency,
			})
			metrics.ProviderAttemptsTotal.WithLabelValues(d.Name, string(OutcomeSuccess)).Inc()
			return obs, records, nil
		}

		outcome := OutcomeError
		switch {
		case errors.Is(err, ErrCircuitOpen):
			outcome = OutcomeSkipped
		case Kind(err) == FailureTimeout:
			outcome = OutcomeTimeout
		}
		records = append(records, AttemptRecord{
			Provider: d.Name, StartedAt: startedAt, Outcome: outcome, Latency: latency,
		})
		metrics.ProviderAttemptsTotal.WithLabelValues(d.Name, string(outcome)).Inc()
		lastErr = err

		o.logger.Debug("provider attempt failed",
			zap.String("provider", d.Name),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", maxAttempts),
			zap.String("outcome", string(outcome)),
			zap.Error(err),
		)

		if outcome == OutcomeSkipped {
			// Breaker is open; retrying now cannot help.
			break
		}
		if attempt == maxAttempts-1 {
			break
		}

		select {
		case <-time.After(computeBackoff(o.baseBackoff, attempt)):
		case <-ctx.Done():
			return Observation{}, records, lastErr
		}
	}

	return Observation{}, records, lastErr
}

// errWinner aborts the race group once any provider succeeds.
var errWinner = errors.New("race winner found")

type raceOut struct {
	idx      int
	provider Provider
	obs      Observation
	recs     []AttemptRecord
	err      error
}

// race runs the leading providers concurrently and returns the
// earliest-ranked success. The first success cancels the remaining
// in-flight attempts; their late results are discarded and never reach
// the cache.
func (o *Orchestrator) race(ctx context.Context, leading []Descriptor, q Query) (Observation, Provider, []AttemptRecord, bool) {
	results := make(chan raceOut, len(leading))
	g, gctx := errgroup.WithContext(ctx)

	for i, d := range leading {
		i, p := i, o.byName[d.Name]
		g.Go(func() error {
			obs, recs, err := o.attemptProvider(gctx, p, q)
			results <- raceOut{idx: i, provider: p, obs: obs, recs: recs, err: err}
			if err == nil {
				return errWinner
			}
			return nil
		})
	}

	// Wait drains every goroutine, so stragglers are fully accounted
	// before a winner is chosen.
	_ = g.Wait()
	close(results)

	outs := make([]raceOut, 0, len(leading))
	for out := range results {
		outs = append(outs, out)
	}
	sort.Slice(outs, func(i, j int) bool { return outs[i].idx < outs[j].idx })

	var attempts []AttemptRecord
	var winner *raceOut
	for i := range outs {
		attempts = append(attempts, outs[i].recs...)
		if outs[i].err != nil {
			continue
		}
		if winner == nil || o.levelOf(outs[i].provider) < o.levelOf(winner.provider) {
			winner = &outs[i]
		}
	}

	if winner == nil {
		return Observation{}, nil, attempts, false
	}
	return winner.obs, winner.provider, attempts, true
}

// finish calibrates the winning observation, stores it and updates the
// aggregator. The fallback level reported is the provider's rank in the
// default chain, not its position after reordering.
func (o *Orchestrator) finish(ctx context.Context, logger *zap.Logger, q Query, key, requestID string, p Provider, obs Observation, attempts []AttemptRecord, start time.Time) *Result {
	d := p.Descriptor()
	level := o.levelOf(p)

	var est npk.Estimate
	confidence := d.Confidence
	if obs.Estimate != nil {
		// Baseline providers compute a final estimate offline.
		est = *obs.Estimate
		confidence = est.Confidence
	} else {
		est = o.calibrate(q.Crop, obs.Indices)
	}

	elapsed := o.clock.Now().Sub(start)
	meta := SourceMetadata{
		Source:          d.Name,
		FallbackLevel:   level,
		DataQuality:     d.DataQuality,
		ConfidenceScore: confidence,
		Resolution:      d.Resolution,
		RevisitDays:     d.RevisitDays,
	}

	if raw, err := json.Marshal(cachedPayload{Estimate: est, Source: meta}); err != nil {
		logger.Warn("cache payload marshal failed", zap.Error(err))
	} else if err := o.cache.Set(ctx, key, raw); err != nil {
		logger.Warn("cache set failed", zap.Error(err))
	}

	o.stats.RecordSuccess(d.Name, level, elapsed)
	metrics.FallbackResultsTotal.WithLabelValues(d.Name).Inc()

	logger.Info("fallback succeeded",
		zap.String("source", d.Name),
		zap.Int("fallback_level", level),
		zap.Duration("elapsed", elapsed),
		zap.Int("attempts", len(attempts)),
	)

	meta.ProcessingTime = elapsed
	return &Result{
		RequestID: requestID,
		Estimate:  est,
		Source:    meta,
		Attempts:  attempts,
	}
}

// levelOf returns a provider's fallback level: its position in the
// default chain.
func (o *Orchestrator) levelOf(p Provider) int {
	return p.Descriptor().Rank
}

// computeBackoff calculates exponential backoff with full jitter, so
// simultaneous retries against a recovering provider spread out.
func computeBackoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	const maxExponent = 10
	if attempt > maxExponent {
		attempt = maxExponent
	}

	backoff := time.Duration(float64(base) * math.Pow(2, float64(attempt)))

	const maxAllowed = 30 * time.Second
	if backoff > maxAllowed {
		backoff = maxAllowed
	}

	return time.Duration(rand.Float64() * float64(backoff))
}
