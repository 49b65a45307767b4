package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"nutrigate/internal/satellite"
	"nutrigate/pkg/logging/logging"
)

// AnalysisRequest is the body of POST /api/npk-analysis.
type AnalysisRequest struct {
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Date        string   `json:"analysisDate,omitempty"` // YYYY-MM-DD, defaults to today
	CropType    string   `json:"cropType"`
	FieldAreaHa float64  `json:"fieldAreaHa,omitempty"`

	// Selection hints.
	WeatherCondition string   `json:"weatherCondition,omitempty"`
	RemoteArea       bool     `json:"remoteArea,omitempty"`
	ExcludeSources   []string `json:"excludeSources,omitempty"`
}

// AnalysisHandler holds dependencies for the /api/npk-analysis endpoint.
type AnalysisHandler struct {
	Orch      *satellite.Orchestrator
	VersionID string
}

func NewAnalysisHandler(orch *satellite.Orchestrator, versionID string) *AnalysisHandler {
	return &AnalysisHandler{Orch: orch, VersionID: versionID}
}

// Analyze handles POST /api/npk-analysis.
func (h *AnalysisHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)
	start := time.Now()

	var req AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid request body", zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	q, errMsg := req.toQuery()
	if errMsg != "" {
		logger.Warn("request validation failed", zap.String("reason", errMsg))
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	sc := satellite.ContextFor(q, req.WeatherCondition, req.RemoteArea)
	sc.Exclude = req.ExcludeSources

	result, err := h.Orch.Handle(ctx, q, sc)
	if err != nil {
		if errors.Is(err, satellite.ErrChainExhausted) {
			logger.Error("analysis failed, chain exhausted", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "no data source available")
			return
		}
		logger.Error("analysis failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	logger.Info("analysis served",
		zap.String("request_id", result.RequestID),
		zap.String("source", result.Source.Source),
		zap.Int("fallback_level", result.Source.FallbackLevel),
		zap.Bool("cached", result.Source.Cached),
		zap.Duration("total_latency_ms", time.Since(start)),
	)

	writeJSON(w, http.StatusOK, result)
}

// toQuery validates the request and converts it to an engine query.
// It returns a non-empty message on the first validation failure.
func (r *AnalysisRequest) toQuery() (satellite.Query, string) {
	var q satellite.Query

	if r.Latitude == nil || r.Longitude == nil {
		return q, "latitude and longitude are required"
	}
	if *r.Latitude < -90 || *r.Latitude > 90 {
		return q, "latitude must be between -90 and 90"
	}
	if *r.Longitude < -180 || *r.Longitude > 180 {
		return q, "longitude must be between -180 and 180"
	}

	crop := strings.ToUpper(strings.TrimSpace(r.CropType))
	if crop == "" {
		crop = "GENERIC"
	}

	date := time.Now().UTC().Truncate(24 * time.Hour)
	if r.Date != "" {
		parsed, err := time.Parse("2006-01-02", r.Date)
		if err != nil {
			return q, "analysisDate must be YYYY-MM-DD"
		}
		date = parsed
	}

	area := r.FieldAreaHa
	if area < 0 {
		return q, "fieldAreaHa must be positive"
	}
	if area == 0 {
		area = 1.0
	}

	return satellite.Query{
		Latitude:    *r.Latitude,
		Longitude:   *r.Longitude,
		Date:        date,
		Crop:        crop,
		FieldAreaHa: area,
	}, ""
}

// writeJSON sends JSON responses consistently.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
