package api

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/heron-analytics/heron/internal/analytics"
	"github.com/heron-analytics/heron/internal/domain"
	"github.com/heron-analytics/heron/internal/encoder"
	"github.com/heron-analytics/heron/internal/insights"
	"github.com/heron-analytics/heron/internal/model"
)

// SnapshotTTL bounds how long a computed aggregate snapshot may be
// served from cache. The dataset is immutable, so staleness only
// matters after an insight rule reload.
const SnapshotTTL = 5 * time.Minute

// Handler holds dependencies for API handlers.
type Handler struct {
	repo      domain.Repository
	cache     domain.Cache
	bus       domain.EventBus
	engine    *insights.Engine
	predictor *model.Predictor
	incidents []*domain.Incident
	version   string
	started   time.Time

	predictions atomic.Int64
	queries     atomic.Int64
	cacheHits   atomic.Int64
}

// NewHandler creates a new API handler. The incident slice is the
// dataset loaded at startup; it is never mutated after construction.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *insights.Engine, predictor *model.Predictor, incidents []*domain.Incident, version string) *Handler {
	return &Handler{
		repo:      repo,
		cache:     cache,
		bus:       bus,
		engine:    engine,
		predictor: predictor,
		incidents: incidents,
		version:   version,
		started:   time.Now().UTC(),
	}
}

// PredictResponse is the response for POST /churn/predict.
type PredictResponse struct {
	Prediction *domain.Prediction `json:"prediction"`
	Metadata   struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// ChurnAlert is the payload published on the churn alert topic when a
// prediction crosses the high-risk threshold.
type ChurnAlert struct {
	PredictionID string  `json:"predictionId"`
	Probability  float64 `json:"probability"`
	Threshold    float64 `json:"threshold"`
}

// Predict handles POST /churn/predict requests: validate the record
// against the artifact schema, encode, score, summarize, persist.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	traceID := GetTraceID(ctx)

	var rec domain.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if len(rec) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "record must not be empty",
		})
		return
	}

	schema := &h.predictor.Artifact().Schema

	if err := encoder.ValidateRecord(rec, schema); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	vec, err := encoder.Encode(rec, schema)
	if err != nil {
		if errors.Is(err, domain.ErrSchemaMismatch) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
			return
		}
		slog.Error("encoding failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "encoding failed",
		})
		return
	}

	pred, err := h.predictor.Predict(vec)
	if err != nil {
		slog.Error("prediction failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "prediction failed",
		})
		return
	}

	pred.Input = rec
	pred.Insights = h.engine.SummarizePrediction(pred)

	if h.repo != nil {
		if err := h.repo.SavePrediction(ctx, pred); err != nil {
			slog.Error("failed to save prediction", "id", pred.ID, "error", err)
		}
	}

	// High-risk predictions go out on the alert topic for subscribers.
	if pred.RiskLabel == domain.RiskHigh && h.bus != nil {
		alert := ChurnAlert{
			PredictionID: pred.ID,
			Probability:  pred.Probability,
			Threshold:    pred.Threshold,
		}
		payload, _ := json.Marshal(alert)
		if err := h.bus.Publish(ctx, domain.TopicChurnAlert, payload); err != nil {
			slog.Error("failed to publish churn alert", "id", pred.ID, "error", err)
		}
	}

	h.predictions.Add(1)
	if h.cache != nil {
		_, _ = h.cache.IncrementCounter(ctx, "predictions:daily", 24*time.Hour)
	}

	resp := PredictResponse{Prediction: pred}
	resp.Metadata.TraceID = traceID
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// GetPrediction retrieves a stored prediction by ID.
func (h *Handler) GetPrediction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	predID := chi.URLParam(r, "id")

	if predID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "prediction id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	pred, err := h.repo.GetPrediction(ctx, predID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "prediction not found",
			})
			return
		}
		slog.Error("failed to get prediction", "id", predID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get prediction",
		})
		return
	}

	writeJSON(w, http.StatusOK, pred)
}

// ModelInfo describes the loaded churn model artifact.
func (h *Handler) ModelInfo(w http.ResponseWriter, r *http.Request) {
	artifact := h.predictor.Artifact()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"version":      artifact.Version,
		"featureWidth": artifact.Schema.Width(),
		"fields":       len(artifact.Schema.Fields),
		"threshold":    artifact.LabelThreshold(),
	})
}

// IncidentAlert is the payload published on the incident alert topic
// when a query surfaces a warning-level insight.
type IncidentAlert struct {
	RuleID  string `json:"ruleId"`
	Message string `json:"message"`
}

// QueryIncidents handles POST /incidents/query: filter body in,
// complete aggregate snapshot out. Snapshots are cached by filter
// hash; identical filters within the TTL are served from cache.
func (h *Handler) QueryIncidents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var filter domain.IncidentFilter
	if err := json.NewDecoder(r.Body).Decode(&filter); err != nil && err != io.EOF {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	h.queries.Add(1)

	hash := hashFilter(&filter)

	if h.cache != nil {
		if snap, err := h.cache.GetSnapshot(ctx, hash); err == nil && snap != nil {
			h.cacheHits.Add(1)
			w.Header().Set("X-Cache", "hit")
			writeJSON(w, http.StatusOK, snap)
			return
		}
	}

	snap := analytics.BuildSnapshot(h.incidents, &filter)
	snap.Insights = h.engine.SummarizeSnapshot(snap)

	if h.cache != nil {
		if err := h.cache.SetSnapshot(ctx, hash, snap, SnapshotTTL); err != nil {
			slog.Error("failed to cache snapshot", "error", err)
		}
	}

	// Warning-level insights go out on the alert topic.
	if h.bus != nil {
		for _, ins := range snap.Insights {
			if ins.Severity != domain.SeverityWarning {
				continue
			}
			payload, _ := json.Marshal(IncidentAlert{RuleID: ins.RuleID, Message: ins.Message})
			if err := h.bus.Publish(ctx, domain.TopicIncidentAlert, payload); err != nil {
				slog.Error("failed to publish incident alert", "rule_id", ins.RuleID, "error", err)
			}
		}
	}

	w.Header().Set("X-Cache", "miss")
	writeJSON(w, http.StatusOK, snap)
}

// filterDimensions are the incident fields exposed as dropdown feeds.
var filterDimensions = []string{
	analytics.DimRegion,
	analytics.DimChannel,
	analytics.DimSeverity,
	analytics.DimCategory,
	analytics.DimSubsystem,
	analytics.DimRootCause,
}

// IncidentFilters returns the distinct values per filterable dimension
// plus the dataset's date range.
func (h *Handler) IncidentFilters(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	dims := make(map[string][]string, len(filterDimensions))
	for _, dim := range filterDimensions {
		values, err := h.repo.DistinctValues(ctx, dim)
		if err != nil {
			slog.Error("failed to list distinct values", "dimension", dim, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to list filter values",
			})
			return
		}
		dims[dim] = values
	}

	resp := map[string]interface{}{
		"dimensions": dims,
	}

	if from, to, ok := dateRange(h.incidents); ok {
		resp["dateRange"] = map[string]string{
			"from": from.Format("2006-01-02"),
			"to":   to.Format("2006-01-02"),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListInsightRules returns all rules loaded in the engine.
func (h *Handler) ListInsightRules(w http.ResponseWriter, r *http.Request) {
	loaded := h.engine.GetLoadedRules()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules":  loaded,
		"count":  len(loaded),
		"source": "database",
	})
}

// CreateInsightRuleRequest is the request body for creating a rule.
type CreateInsightRuleRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Scope       string `json:"scope"`
	Expression  string `json:"expression"`
	Message     string `json:"message"`
	Severity    string `json:"severity"`
	Rank        int    `json:"rank"`
	Enabled     bool   `json:"enabled"`
}

// CreateInsightRule validates and persists a new insight rule.
// After saving, call POST /insights/rules/reload to apply it.
func (h *Handler) CreateInsightRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateInsightRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" || req.Message == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, expression, and message are required",
		})
		return
	}
	if req.Scope != domain.ScopeChurn && req.Scope != domain.ScopeIncidents {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "scope must be \"churn\" or \"incidents\"",
		})
		return
	}

	severity := req.Severity
	if severity == "" {
		severity = domain.SeverityInfo
	}

	rule := &domain.InsightRule{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Scope:       req.Scope,
		Expression:  req.Expression,
		Message:     req.Message,
		Severity:    severity,
		Rank:        req.Rank,
		Enabled:     req.Enabled,
	}

	// Compile the CEL expression before persisting.
	if err := h.engine.ValidateRule(rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveInsightRule(ctx, rule); err != nil {
			slog.Error("failed to save insight rule", "id", rule.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save rule",
			})
			return
		}
	}

	slog.Info("insight rule created", "id", rule.ID, "name", rule.Name, "scope", rule.Scope)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule":    rule,
		"message": "Rule created. Call POST /insights/rules/reload to apply changes.",
	})
}

// DeleteInsightRule disables a rule and auto-reloads the engine.
func (h *Handler) DeleteInsightRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	if err := h.repo.DeleteInsightRule(ctx, ruleID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "rule not found",
			})
			return
		}
		slog.Error("failed to delete insight rule", "id", ruleID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to delete rule",
		})
		return
	}

	// Auto-reload the engine after delete
	dbRules, err := h.repo.ListInsightRules(ctx, "")
	if err != nil {
		slog.Error("failed to reload rules after delete", "error", err)
	} else if err := h.engine.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload rules into engine", "error", err)
	} else {
		slog.Info("rules auto-reloaded after delete", "count", len(dbRules))
	}

	slog.Info("insight rule deleted", "id", ruleID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Rule deleted and engine reloaded.",
	})
}

// ReloadInsightRules reloads all rules from the database into the
// engine, enabling hot-reload without server restart.
func (h *Handler) ReloadInsightRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	dbRules, err := h.repo.ListInsightRules(ctx, "")
	if err != nil {
		slog.Error("failed to list rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	if err := h.engine.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload rules into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("insight rules reloaded from database", "count", len(dbRules))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   len(dbRules),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic: the
// model artifact and the incident dataset must both be loaded.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ready := h.predictor != nil && len(h.incidents) > 0

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]interface{}{
		"ready":     ready,
		"incidents": len(h.incidents),
		"rules":     h.engine.RulesCount(),
	})
}

// Stats returns runtime counters.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"version":        h.version,
		"uptimeSeconds":  int64(time.Since(h.started).Seconds()),
		"incidents":      len(h.incidents),
		"rules":          h.engine.RulesCount(),
		"predictions":    h.predictions.Load(),
		"queries":        h.queries.Load(),
		"queryCacheHits": h.cacheHits.Load(),
	}

	if statter, ok := h.cache.(interface{ Stats() (int, int) }); ok {
		size, capacity := statter.Stats()
		resp["cacheSize"] = size
		resp["cacheCapacity"] = capacity
	}

	writeJSON(w, http.StatusOK, resp)
}

// hashFilter derives the cache key for a filter. Filters marshal
// deterministically (fixed struct field order), so identical filters
// share a hash.
func hashFilter(f *domain.IncidentFilter) string {
	data, _ := json.Marshal(f)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func dateRange(incidents []*domain.Incident) (from, to time.Time, ok bool) {
	for _, inc := range incidents {
		if !ok {
			from, to, ok = inc.Date, inc.Date, true
			continue
		}
		if inc.Date.Before(from) {
			from = inc.Date
		}
		if inc.Date.After(to) {
			to = inc.Date
		}
	}
	return from, to, ok
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
