package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"nutrigate/internal/satellite"
)

func sentinelDesc(baseURL string) satellite.Descriptor {
	d := satellite.DefaultDescriptors()[0]
	d.BaseURL = baseURL
	return d
}

func testQuery() satellite.Query {
	return satellite.Query{
		Latitude: 20.27, Longitude: 81.33,
		Date: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Crop: "RICE",
	}
}

func TestSceneFetchSuccess(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		q := r.URL.Query()
		if q.Get("collection") != sentinelCollection {
			t.Errorf("unexpected collection %q", q.Get("collection"))
		}
		if q.Get("lat") != "20.2700" || q.Get("lon") != "81.3300" {
			t.Errorf("unexpected coordinates %s,%s", q.Get("lat"), q.Get("lon"))
		}
		if q.Get("date") != "2025-06-01" {
			t.Errorf("unexpected date %q", q.Get("date"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"sceneDate": "2025-05-29T10:30:00Z",
			"cloudCoverPct": 12.5,
			"indices": {"ndvi": 0.61, "ndmi": 0.28, "savi": 0.49}
		}`))
	}))
	defer srv.Close()

	p, err := NewScene(sentinelDesc(srv.URL), ClientConfig{}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewScene: %v", err)
	}

	obs, err := p.Fetch(context.Background(), testQuery())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if gotPath != "/v1/indices" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if obs.Source != satellite.SourceSentinel {
		t.Fatalf("unexpected source %q", obs.Source)
	}
	if obs.Indices.NDVI != 0.61 || obs.Indices.NDMI != 0.28 || obs.Indices.SAVI != 0.49 {
		t.Fatalf("unexpected indices %+v", obs.Indices)
	}
	if obs.CloudCoverPct != 12.5 {
		t.Fatalf("unexpected cloud cover %v", obs.CloudCoverPct)
	}
	if obs.Estimate != nil {
		t.Fatalf("imagery sources never return a final estimate")
	}
}

func TestSceneFetchDateOnlySceneDate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"sceneDate":"2025-05-29","indices":{"ndvi":0.5,"ndmi":0.2,"savi":0.4}}`))
	}))
	defer srv.Close()

	p, _ := NewScene(sentinelDesc(srv.URL), ClientConfig{}, zaptest.NewLogger(t))
	obs, err := p.Fetch(context.Background(), testQuery())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if obs.SceneDate.Format("2006-01-02") != "2025-05-29" {
		t.Fatalf("unexpected scene date %v", obs.SceneDate)
	}
}

func TestSceneFetchUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	p, _ := NewScene(sentinelDesc(srv.URL), ClientConfig{}, zaptest.NewLogger(t))
	_, err := p.Fetch(context.Background(), testQuery())
	if err == nil {
		t.Fatalf("expected error for 502")
	}
	if satellite.Kind(err) != satellite.FailureUnavailable {
		t.Fatalf("expected unavailable, got %s", satellite.Kind(err))
	}
}

func TestSceneFetchMalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	p, _ := NewScene(sentinelDesc(srv.URL), ClientConfig{}, zaptest.NewLogger(t))
	_, err := p.Fetch(context.Background(), testQuery())
	if satellite.Kind(err) != satellite.FailureInvalidResponse {
		t.Fatalf("expected invalid_response, got %v", err)
	}
}

func TestSceneFetchMissingIndices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"sceneDate":"2025-05-29","indices":{"ndvi":0.5}}`))
	}))
	defer srv.Close()

	p, _ := NewScene(sentinelDesc(srv.URL), ClientConfig{}, zaptest.NewLogger(t))
	_, err := p.Fetch(context.Background(), testQuery())
	if satellite.Kind(err) != satellite.FailureInvalidResponse {
		t.Fatalf("expected invalid_response for partial indices, got %v", err)
	}
}

func TestSceneFetchTooCloudy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"sceneDate":"2025-05-29","cloudCoverPct":95,"indices":{"ndvi":0.5,"ndmi":0.2,"savi":0.4}}`))
	}))
	defer srv.Close()

	p, _ := NewScene(sentinelDesc(srv.URL), ClientConfig{}, zaptest.NewLogger(t))
	_, err := p.Fetch(context.Background(), testQuery())
	if satellite.Kind(err) != satellite.FailureInvalidResponse {
		t.Fatalf("expected invalid_response above the cloud ceiling, got %v", err)
	}
}

func TestSceneFetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	p, _ := NewScene(sentinelDesc(srv.URL), ClientConfig{}, zaptest.NewLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.Fetch(ctx, testQuery())
	if satellite.Kind(err) != satellite.FailureTimeout {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestSceneCircuitOpensAfterConsecutiveFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, _ := NewScene(sentinelDesc(srv.URL), ClientConfig{}, zaptest.NewLogger(t))

	// gobreaker trips after more than five consecutive failures.
	var err error
	for i := 0; i < 10; i++ {
		_, err = p.Fetch(context.Background(), testQuery())
		if errors.Is(err, satellite.ErrCircuitOpen) {
			return
		}
	}
	t.Fatalf("breaker never opened, last err: %v", err)
}

func TestSceneSendsAPIKey(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"sceneDate":"2025-05-29","indices":{"ndvi":0.5,"ndmi":0.2,"savi":0.4}}`))
	}))
	defer srv.Close()

	p, _ := NewScene(sentinelDesc(srv.URL), ClientConfig{APIKey: "sk-test"}, zaptest.NewLogger(t))
	if _, err := p.Fetch(context.Background(), testQuery()); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if auth != "Bearer sk-test" {
		t.Fatalf("unexpected Authorization header %q", auth)
	}
}

func TestNewSceneRequiresBaseURL(t *testing.T) {
	d := satellite.DefaultDescriptors()[0]
	d.BaseURL = ""
	if _, err := NewScene(d, ClientConfig{}, zaptest.NewLogger(t)); err == nil {
		t.Fatalf("expected error for missing base URL")
	}
}
