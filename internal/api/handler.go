package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/opensource-retail/heron/internal/domain"
	"github.com/opensource-retail/heron/internal/pipeline"
	"github.com/opensource-retail/heron/internal/predict"
	"github.com/opensource-retail/heron/internal/segment"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo     domain.Repository
	cache    domain.Cache
	bus      domain.EventBus
	scorer   *predict.Scorer
	segments *segment.Engine
	runner   *pipeline.Runner
	version  string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, scorer *predict.Scorer, segments *segment.Engine, runner *pipeline.Runner, version string) *Handler {
	return &Handler{
		repo:     repo,
		cache:    cache,
		bus:      bus,
		scorer:   scorer,
		segments: segments,
		runner:   runner,
		version:  version,
	}
}

// PredictRequest is the request body for POST /predict and /predict/proba.
// Records holds one feature record per customer; each record must carry
// every scoring column.
type PredictRequest struct {
	CustomerID string           `json:"customerId,omitempty"`
	Records    []map[string]any `json:"records"`
}

// PredictResponse is the response for POST /predict.
type PredictResponse struct {
	Predictions   []int     `json:"predictions,omitempty"`
	Probabilities []float64 `json:"probabilities,omitempty"`
	Model         string    `json:"model"`
	Metadata      struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// Predict handles POST /predict requests, returning churn labels.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	h.predict(w, r, false)
}

// PredictProba handles POST /predict/proba requests, returning churn
// probabilities.
func (h *Handler) PredictProba(w http.ResponseWriter, r *http.Request) {
	h.predict(w, r, true)
}

func (h *Handler) predict(w http.ResponseWriter, r *http.Request, proba bool) {
	start := time.Now()
	ctx := r.Context()
	traceID := GetTraceID(ctx)

	if h.scorer == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "no model loaded; run training first",
		})
		return
	}

	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if len(req.Records) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "records is required",
		})
		return
	}

	resp := PredictResponse{Model: h.scorer.ModelName()}

	probas, err := h.scorer.PredictProba(ctx, req.Records)
	if err != nil {
		writeScoringError(w, err)
		return
	}

	if proba {
		resp.Probabilities = probas
	} else {
		labels := make([]int, len(probas))
		for i, p := range probas {
			if p >= 0.5 {
				labels[i] = 1
			}
		}
		resp.Predictions = labels
	}

	h.saveScores(r, &req, probas)

	resp.Metadata.TraceID = traceID
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// saveScores records scoring history when a customer ID was supplied.
func (h *Handler) saveScores(r *http.Request, req *PredictRequest, probas []float64) {
	if h.repo == nil || req.CustomerID == "" {
		return
	}
	for _, p := range probas {
		label := 0
		if p >= 0.5 {
			label = 1
		}
		score := &domain.Score{
			ID:          uuid.New().String(),
			CustomerID:  req.CustomerID,
			Label:       label,
			Probability: p,
			Model:       h.scorer.ModelName(),
			CreatedAt:   time.Now().UTC(),
		}
		if err := h.repo.SaveScore(r.Context(), score); err != nil {
			slog.Error("failed to save score", "customer_id", req.CustomerID, "error", err)
		}
	}
}

func writeScoringError(w http.ResponseWriter, err error) {
	var schemaErr *domain.SchemaError
	var coercionErr *domain.CoercionError
	switch {
	case errors.As(err, &schemaErr), errors.As(err, &coercionErr), errors.Is(err, domain.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		slog.Error("scoring failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "scoring failed"})
	}
}

// ListCustomerScores retrieves scoring history for a customer.
func (h *Handler) ListCustomerScores(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "id")
	if customerID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "customer id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	scores, err := h.repo.ListScoresByCustomer(r.Context(), customerID)
	if err != nil {
		slog.Error("failed to list scores", "customer_id", customerID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list scores",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"customerId": customerID,
		"scores":     scores,
		"count":      len(scores),
	})
}

// StartRun handles POST /runs: kicks off a pipeline run in the background
// and returns 202 with the run ID.
func (h *Handler) StartRun(w http.ResponseWriter, r *http.Request) {
	if h.runner == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "pipeline runner not available",
		})
		return
	}

	runID := uuid.New().String()

	// The run outlives the request; detach from the request context.
	go func() {
		if _, err := h.runner.RunWithID(context.Background(), runID); err != nil {
			slog.Error("pipeline run failed", "run_id", runID, "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"runId":  runID,
		"status": domain.RunStatusRunning,
	})
}

// GetRun retrieves a pipeline run by ID.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	if runID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "run id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	run, err := h.repo.GetRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "run not found",
			})
			return
		}
		slog.Error("failed to get run", "id", runID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get run",
		})
		return
	}

	writeJSON(w, http.StatusOK, run)
}

// ListRuns retrieves recent pipeline runs.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	runs, err := h.repo.ListRuns(r.Context(), 20)
	if err != nil {
		slog.Error("failed to list runs", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list runs",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// ListSegmentRules returns all segment rules from the repository.
func (h *Handler) ListSegmentRules(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	rules, err := h.repo.ListSegmentRules(r.Context())
	if err != nil {
		slog.Error("failed to list segment rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list segment rules",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"rules": rules,
		"count": len(rules),
	})
}

// GetSegmentRule retrieves a segment rule by ID.
func (h *Handler) GetSegmentRule(w http.ResponseWriter, r *http.Request) {
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

	rule, err := h.repo.GetSegmentRule(r.Context(), ruleID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "segment rule not found",
			})
			return
		}
		slog.Error("failed to get segment rule", "id", ruleID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get segment rule",
		})
		return
	}

	writeJSON(w, http.StatusOK, rule)
}

// CreateSegmentRuleRequest is the request body for creating a segment rule.
type CreateSegmentRuleRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Expression  string `json:"expression"`
	Enabled     bool   `json:"enabled"`
}

// CreateSegmentRule creates a new segment rule and saves it to the database.
// After saving, call POST /segments/reload to hot-reload into the engine.
func (h *Handler) CreateSegmentRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateSegmentRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	// Validate
	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}

	rule := &domain.SegmentRule{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Expression:  req.Expression,
		Enabled:     req.Enabled,
	}

	// Validate CEL expression before persisting
	if h.segments != nil {
		if err := h.segments.ValidateRule(rule); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid CEL expression: " + err.Error(),
			})
			return
		}
	}

	if h.repo != nil {
		if err := h.repo.SaveSegmentRule(ctx, rule); err != nil {
			slog.Error("failed to save segment rule", "id", rule.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save segment rule",
			})
			return
		}
	}

	slog.Info("segment rule created", "id", rule.ID, "name", rule.Name)
	writeJSON(w, http.StatusCreated, map[string]any{
		"rule":    rule,
		"message": "Segment rule created. Call POST /segments/reload to apply changes.",
	})
}

// DeleteSegmentRule removes a segment rule by ID.
func (h *Handler) DeleteSegmentRule(w http.ResponseWriter, r *http.Request) {
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

	if err := h.repo.DeleteSegmentRule(r.Context(), ruleID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "segment rule not found",
			})
			return
		}
		slog.Error("failed to delete segment rule", "id", ruleID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to delete segment rule",
		})
		return
	}

	slog.Info("segment rule deleted", "id", ruleID)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "segment rule deleted",
	})
}

// ReloadSegmentRules reloads all enabled segment rules from the database
// into the engine. This enables hot-reloading without server restart.
func (h *Handler) ReloadSegmentRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil || h.segments == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository or segment engine not available",
		})
		return
	}

	rules, err := h.repo.ListSegmentRules(ctx)
	if err != nil {
		slog.Error("failed to list segment rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load segment rules from database",
		})
		return
	}

	if err := h.segments.ReloadRules(rules); err != nil {
		slog.Error("failed to reload segment rules into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload segment rules: " + err.Error(),
		})
		return
	}

	slog.Info("segment rules reloaded from database", "count", h.segments.RuleCount())
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "segment rules reloaded successfully",
		"count":   h.segments.RuleCount(),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
