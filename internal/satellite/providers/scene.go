package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"nutrigate/internal/npk"
	"nutrigate/internal/satellite"
)

// sceneResponse is the wire shape of the imagery backend's indices
// endpoint.
type sceneResponse struct {
	SceneDate     string   `json:"sceneDate"`
	CloudCoverPct *float64 `json:"cloudCoverPct"`
	Indices       struct {
		NDVI *float64 `json:"ndvi"`
		NDMI *float64 `json:"ndmi"`
		SAVI *float64 `json:"savi"`
	} `json:"indices"`
}

// SceneProvider fetches precomputed vegetation indices for one imagery
// collection over HTTP. Every instance carries its own circuit breaker
// so a dead backend is skipped instead of burning its retry budget on
// each request.
type SceneProvider struct {
	desc       satellite.Descriptor
	collection string
	maxCloud   float64
	apiKey     string

	httpClient *http.Client
	circuit    *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

// scene collections and cloud ceilings per source.
const (
	sentinelCollection = "sentinel-2-l2a"
	landsatCollection  = "landsat-c2-l2"
	modisCollection    = "modis-09q1-061"

	opticalMaxCloudPct = 80.0
	modisMaxCloudPct   = 90.0
)

// NewScene builds an HTTP adapter for the given descriptor. The
// descriptor's Name selects the upstream collection and cloud ceiling.
func NewScene(d satellite.Descriptor, cfg ClientConfig, logger *zap.Logger) (*SceneProvider, error) {
	if d.BaseURL == "" {
		return nil, fmt.Errorf("providers: %s: BaseURL is required", d.Name)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.WithDefaults()

	var collection string
	maxCloud := opticalMaxCloudPct
	switch d.Name {
	case satellite.SourceSentinel:
		collection = sentinelCollection
	case satellite.SourceLandsat:
		collection = landsatCollection
	case satellite.SourceMODIS:
		collection = modisCollection
		maxCloud = modisMaxCloudPct
	default:
		return nil, fmt.Errorf("providers: no collection for source %q", d.Name)
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        d.Name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &SceneProvider{
		desc:       d,
		collection: collection,
		maxCloud:   maxCloud,
		apiKey:     cfg.APIKey,
		httpClient: cfg.httpClient(),
		circuit:    cb,
		logger:     logger.Named(d.Name),
	}, nil
}

func (p *SceneProvider) Descriptor() satellite.Descriptor { return p.desc }

// Fetch retrieves the best usable scene for the query and returns its
// indices. The attempt timeout is owned by the caller's ctx; retries
// are too, so a single HTTP round trip happens per call.
func (p *SceneProvider) Fetch(ctx context.Context, q satellite.Query) (satellite.Observation, error) {
	u := p.requestURL(q)

	out, err := p.circuit.Execute(func() (any, error) {
		return p.doFetch(ctx, u)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return satellite.Observation{}, fmt.Errorf("%s: %w", p.desc.Name, satellite.ErrCircuitOpen)
		}
		return satellite.Observation{}, err
	}

	obs, ok := out.(satellite.Observation)
	if !ok {
		return satellite.Observation{}, &satellite.ProviderError{
			Provider: p.desc.Name,
			Kind:     satellite.FailureInvalidResponse,
			Err:      errors.New("unexpected result type from circuit breaker"),
		}
	}
	return obs, nil
}

func (p *SceneProvider) requestURL(q satellite.Query) string {
	values := url.Values{}
	values.Set("collection", p.collection)
	values.Set("lat", strconv.FormatFloat(q.Latitude, 'f', 4, 64))
	values.Set("lon", strconv.FormatFloat(q.Longitude, 'f', 4, 64))
	values.Set("date", q.Date.Format("2006-01-02"))
	values.Set("max_cloud", strconv.FormatFloat(p.maxCloud, 'f', 0, 64))
	return trimBase(p.desc.BaseURL) + "/v1/indices?" + values.Encode()
}

func (p *SceneProvider) doFetch(ctx context.Context, u string) (satellite.Observation, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return satellite.Observation{}, &satellite.ProviderError{
			Provider: p.desc.Name, Kind: satellite.FailureUnavailable, Err: err,
		}
	}
	req.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		kind := satellite.FailureUnavailable
		if errors.Is(err, context.DeadlineExceeded) {
			kind = satellite.FailureTimeout
		}
		return satellite.Observation{}, &satellite.ProviderError{
			Provider: p.desc.Name, Kind: kind, Err: err,
		}
	}
	defer resp.Body.Close()

	p.logger.Debug("scene request",
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return satellite.Observation{}, &satellite.ProviderError{
			Provider: p.desc.Name,
			Kind:     satellite.FailureUnavailable,
			Err:      fmt.Errorf("upstream status %d", resp.StatusCode),
		}
	}

	var payload sceneResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return satellite.Observation{}, &satellite.ProviderError{
			Provider: p.desc.Name, Kind: satellite.FailureInvalidResponse, Err: err,
		}
	}

	return p.toObservation(payload)
}

// toObservation validates the payload. A scene missing any index or an
// unusably cloudy scene is an invalid response: the data exists but
// cannot feed calibration.
func (p *SceneProvider) toObservation(payload sceneResponse) (satellite.Observation, error) {
	if payload.Indices.NDVI == nil || payload.Indices.NDMI == nil || payload.Indices.SAVI == nil {
		return satellite.Observation{}, &satellite.ProviderError{
			Provider: p.desc.Name,
			Kind:     satellite.FailureInvalidResponse,
			Err:      errors.New("scene payload missing vegetation indices"),
		}
	}

	cloud := 0.0
	if payload.CloudCoverPct != nil {
		cloud = *payload.CloudCoverPct
	}
	if cloud > p.maxCloud {
		return satellite.Observation{}, &satellite.ProviderError{
			Provider: p.desc.Name,
			Kind:     satellite.FailureInvalidResponse,
			Err:      fmt.Errorf("scene cloud cover %.1f%% above ceiling %.0f%%", cloud, p.maxCloud),
		}
	}

	sceneDate, err := time.Parse(time.RFC3339, payload.SceneDate)
	if err != nil {
		// Some backends report date only.
		sceneDate, err = time.Parse("2006-01-02", payload.SceneDate)
		if err != nil {
			return satellite.Observation{}, &satellite.ProviderError{
				Provider: p.desc.Name,
				Kind:     satellite.FailureInvalidResponse,
				Err:      fmt.Errorf("unparseable scene date %q", payload.SceneDate),
			}
		}
	}

	return satellite.Observation{
		Source:        p.desc.Name,
		SceneDate:     sceneDate.UTC(),
		CloudCoverPct: cloud,
		Indices: npk.Indices{
			NDVI: *payload.Indices.NDVI,
			NDMI: *payload.Indices.NDMI,
			SAVI: *payload.Indices.SAVI,
		},
	}, nil
}
