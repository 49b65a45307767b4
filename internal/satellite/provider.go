// Package satellite contains the provider-fallback engine: the ordered
// chain of satellite data sources, the per-request selection policy and
// the orchestrator that walks the chain under timeout/retry discipline.
package satellite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nutrigate/internal/npk"
)

// Query identifies the field, date and crop a nutrient estimate is
// requested for.
type Query struct {
	Latitude    float64
	Longitude   float64
	Date        time.Time
	Crop        string
	FieldAreaHa float64
}

// Observation is a single provider's raw result, before calibration.
// Baseline providers that compute a final estimate offline set Estimate
// directly and leave Indices zero.
type Observation struct {
	Source        string        `json:"source"`
	SceneDate     time.Time     `json:"sceneDate"`
	CloudCoverPct float64       `json:"cloudCoverPct"`
	Indices       npk.Indices   `json:"indices"`
	Estimate      *npk.Estimate `json:"estimate,omitempty"`
}

// Descriptor is the immutable, startup-time description of a provider.
// Rank ordering across descriptors defines the default fallback
// sequence; Rank is also the fallback level reported in stats,
// regardless of any per-request reordering.
type Descriptor struct {
	Rank           int
	Name           string
	Resolution     string // display form, e.g. "10m"
	ResolutionM    float64
	RevisitDays    int
	AttemptTimeout time.Duration
	MaxRetries     int
	CloudTolerant  bool
	Baseline       bool
	DataQuality    string
	Confidence     float64
	BaseURL        string
}

// Provider abstracts a satellite data source consulted in fallback
// order. Fetch must honor ctx cancellation and its deadline.
type Provider interface {
	Descriptor() Descriptor
	Fetch(ctx context.Context, q Query) (Observation, error)
}

// FailureKind classifies provider fetch failures.
type FailureKind string

const (
	FailureTimeout         FailureKind = "timeout"
	FailureUnavailable     FailureKind = "unavailable"
	FailureInvalidResponse FailureKind = "invalid_response"
)

// ProviderError is a classified fetch failure. All kinds are recovered
// locally by retry and fallback; none cross the engine boundary when a
// later provider succeeds.
type ProviderError struct {
	Provider string
	Kind     FailureKind
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ErrCircuitOpen signals a provider whose circuit breaker is open.
// The orchestrator records the attempt as skipped and moves on without
// burning the provider's retry budget.
var ErrCircuitOpen = errors.New("provider circuit open")

// ErrChainExhausted is returned when every provider, including the
// baseline, has failed. The baseline cannot fail by design, so seeing
// this error means the chain is misconfigured.
var ErrChainExhausted = errors.New("all providers exhausted")

// Kind extracts the failure kind from err, mapping context deadline
// errors to FailureTimeout and everything unclassified to
// FailureUnavailable.
func Kind(err error) FailureKind {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	return FailureUnavailable
}

// AttemptOutcome is the result class of one physical fetch attempt.
type AttemptOutcome string

const (
	OutcomeSuccess AttemptOutcome = "success"
	OutcomeTimeout AttemptOutcome = "timeout"
	OutcomeError   AttemptOutcome = "error"
	OutcomeSkipped AttemptOutcome = "skipped"
)

// AttemptRecord describes one physical provider attempt within a
// request.
type AttemptRecord struct {
	Provider  string         `json:"provider"`
	StartedAt time.Time      `json:"startedAt"`
	Outcome   AttemptOutcome `json:"outcome"`
	Latency   time.Duration  `json:"latencyMs"`
}

// SourceMetadata describes where a result came from and how much to
// trust it.
type SourceMetadata struct {
	Source          string        `json:"satelliteSource"`
	FallbackLevel   int           `json:"fallbackLevel"`
	DataQuality     string        `json:"dataQuality"`
	ConfidenceScore float64       `json:"confidenceScore"`
	Resolution      string        `json:"resolution"`
	RevisitDays     int           `json:"revisitDays"`
	ProcessingTime  time.Duration `json:"processingTimeMs"`
	Cached          bool          `json:"cached"`
}

// Result is the engine's answer to one request.
type Result struct {
	RequestID string          `json:"requestId"`
	Estimate  npk.Estimate    `json:"estimate"`
	Source    SourceMetadata  `json:"source"`
	Attempts  []AttemptRecord `json:"attempts,omitempty"`
}
