package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/santiagomg2003-png/motor-credito/internal/domain"
	"github.com/santiagomg2003-png/motor-credito/internal/hardrules"
	"github.com/santiagomg2003-png/motor-credito/internal/metrics"
	"github.com/santiagomg2003-png/motor-credito/internal/pipeline"
	"github.com/santiagomg2003-png/motor-credito/internal/repository"
	"github.com/santiagomg2003-png/motor-credito/internal/rules"
)

// maxBodyBytes bounds request bodies; applications carry base64 documents.
const maxBodyBytes = 16 << 20

// Evaluator runs one application through the evaluation pipeline.
type Evaluator interface {
	Evaluate(ctx context.Context, req *pipeline.Request) (*domain.Evaluation, error)
}

// Deps are the collaborators of the API handlers. Only Pipeline and Engine
// are required.
type Deps struct {
	Pipeline Evaluator
	Engine   *rules.Engine
	Reloader *rules.Reloader
	Payers   *hardrules.PayerRegistry
	Repo     domain.Repository
	Cache    domain.Cache
	Bus      domain.EventBus
	Metrics  *metrics.Metrics
	Version  string
}

// Handler holds dependencies for API handlers.
type Handler struct {
	Deps
}

// NewHandler creates a new API handler.
func NewHandler(deps Deps) *Handler {
	if deps.Payers == nil {
		deps.Payers = hardrules.DefaultPayers()
	}
	return &Handler{Deps: deps}
}

// Evaluate handles POST /credit/evaluate: the synchronous evaluation.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var app domain.ApplicationRequest
	if !decodeBody(w, r, &app) {
		return
	}

	eval, err := h.Pipeline.Evaluate(ctx, &pipeline.Request{
		TenantID:    GetTenantID(ctx),
		TraceID:     GetTraceID(ctx),
		Application: app,
	})
	if errors.Is(err, domain.ErrInvalidApplication) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		slog.Error("evaluation failed",
			"tenant_id", GetTenantID(ctx),
			"request_id", GetRequestID(ctx),
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "evaluation failed")
		return
	}

	writeJSON(w, http.StatusOK, eval.ToResponse())
}

// SubmitApplication handles POST /credit/applications: it queues the
// application on the bus for the worker and returns 202.
func (h *Handler) SubmitApplication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.Bus == nil {
		writeError(w, http.StatusServiceUnavailable, "event bus not available")
		return
	}

	var app domain.ApplicationRequest
	if !decodeBody(w, r, &app) {
		return
	}
	if err := app.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	payload, _ := json.Marshal(pipeline.Request{
		TenantID:    tenantID,
		TraceID:     GetTraceID(ctx),
		Application: app,
	})
	if err := h.Bus.Publish(ctx, tenantID, domain.TopicApplicationReceived, payload); err != nil {
		slog.Error("failed to queue application",
			"tenant_id", tenantID,
			"request_id", GetRequestID(ctx),
			"error", err,
		)
		writeError(w, http.StatusServiceUnavailable, "failed to queue application")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "queued",
		"traceId": GetTraceID(ctx),
		"topic":   domain.TopicDecision,
	})
}

// GetEvaluation handles GET /credit/evaluations/{id}.
func (h *Handler) GetEvaluation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	evalID := chi.URLParam(r, "id")

	if h.Repo == nil {
		writeError(w, http.StatusServiceUnavailable, "repository not available")
		return
	}

	eval, err := h.Repo.GetEvaluation(ctx, GetTenantID(ctx), evalID)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "evaluation not found")
		return
	}
	if err != nil {
		slog.Error("failed to get evaluation", "id", evalID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get evaluation")
		return
	}

	writeJSON(w, http.StatusOK, eval.ToResponse())
}

// ListApplicantEvaluations handles GET /credit/applications/{document}/evaluations.
func (h *Handler) ListApplicantEvaluations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	document := chi.URLParam(r, "document")

	if h.Repo == nil {
		writeError(w, http.StatusServiceUnavailable, "repository not available")
		return
	}

	evals, err := h.Repo.ListEvaluationsByDocument(ctx, GetTenantID(ctx), document)
	if err != nil {
		slog.Error("failed to list evaluations", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list evaluations")
		return
	}

	resp := make([]*domain.EvaluationResponse, len(evals))
	for i, eval := range evals {
		resp[i] = eval.ToResponse()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"documentNumber": document,
		"evaluations":    resp,
		"count":          len(resp),
	})
}

// ListPayers handles GET /credit/payers.
func (h *Handler) ListPayers(w http.ResponseWriter, r *http.Request) {
	payers := h.Payers.Names()
	writeJSON(w, http.StatusOK, map[string]any{
		"payers": payers,
		"count":  len(payers),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	checks := map[string]string{}
	status := "healthy"

	check := func(name string, ping func() error) {
		if err := ping(); err != nil {
			checks[name] = err.Error()
			status = "degraded"
			return
		}
		checks[name] = "ok"
	}

	if h.Repo != nil {
		check("repository", func() error { return h.Repo.Ping(ctx) })
	}
	if h.Cache != nil {
		check("cache", func() error { return h.Cache.Ping(ctx) })
	}
	if h.Bus != nil {
		check("bus", func() error { return h.Bus.Ping(ctx) })
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"version": h.Version,
		"checks":  checks,
	})
}

// Ready reports whether the server can evaluate applications.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.Repo != nil {
		if err := h.Repo.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"ready": "false",
				"error": "repository unavailable",
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// ListPolicyRules returns the policy rules loaded in the engine, in evaluation order.
func (h *Handler) ListPolicyRules(w http.ResponseWriter, r *http.Request) {
	loaded := h.Engine.GetLoadedRules()
	writeJSON(w, http.StatusOK, map[string]any{
		"rules": loaded,
		"count": len(loaded),
	})
}

// GetPolicyRule returns one loaded policy rule.
func (h *Handler) GetPolicyRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	for _, rule := range h.Engine.GetLoadedRules() {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeError(w, http.StatusNotFound, "policy rule not found")
}

// PolicyRuleRequest is the request body for creating or replacing a policy rule.
type PolicyRuleRequest struct {
	ID            string               `json:"id"`
	Name          string               `json:"name"`
	Description   string               `json:"description,omitempty"`
	Version       string               `json:"version,omitempty"`
	Expression    string               `json:"expression"`
	RejectionCode domain.RejectionCode `json:"rejectionCode"`
	Reason        string               `json:"reason"`
	Priority      int                  `json:"priority"`
	Enabled       *bool                `json:"enabled,omitempty"`
}

// CreatePolicyRule validates, persists and loads a policy rule.
// Rules are global (tenant "*") and take effect immediately.
func (h *Handler) CreatePolicyRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req PolicyRuleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required")
		return
	}

	rule := &domain.PolicyRule{
		ID:            req.ID,
		TenantID:      domain.GlobalTenantID,
		Name:          req.Name,
		Description:   req.Description,
		Version:       req.Version,
		Expression:    req.Expression,
		RejectionCode: req.RejectionCode,
		Reason:        req.Reason,
		Priority:      req.Priority,
		Enabled:       req.Enabled == nil || *req.Enabled,
	}
	if rule.Version == "" {
		rule.Version = "1"
	}

	if err := h.Engine.ValidateRule(rule); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if h.Repo != nil {
		if err := h.Repo.SavePolicyRule(ctx, domain.GlobalTenantID, rule); err != nil {
			slog.Error("failed to save policy rule", "rule_id", rule.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to save policy rule")
			return
		}
	}

	if err := h.Engine.LoadRule(rule); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.Metrics.SetPolicyRulesLoaded(h.Engine.RulesCount())

	slog.Info("policy rule saved", "rule_id", rule.ID, "enabled", rule.Enabled)
	writeJSON(w, http.StatusCreated, rule)
}

// DeletePolicyRule removes a policy rule from storage and from the engine.
func (h *Handler) DeletePolicyRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ruleID := chi.URLParam(r, "id")

	found := false
	if h.Repo != nil {
		err := h.Repo.DeletePolicyRule(ctx, domain.GlobalTenantID, ruleID)
		switch {
		case err == nil:
			found = true
		case !errors.Is(err, repository.ErrNotFound):
			slog.Error("failed to delete policy rule", "rule_id", ruleID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to delete policy rule")
			return
		}
	}
	if h.Engine.UnloadRule(ruleID) {
		found = true
	}
	if !found {
		writeError(w, http.StatusNotFound, "policy rule not found")
		return
	}
	h.Metrics.SetPolicyRulesLoaded(h.Engine.RulesCount())

	slog.Info("policy rule deleted", "rule_id", ruleID)
	w.WriteHeader(http.StatusNoContent)
}

// ReloadPolicyRules reloads every policy rule from the repository.
func (h *Handler) ReloadPolicyRules(w http.ResponseWriter, r *http.Request) {
	if h.Reloader == nil {
		writeError(w, http.StatusServiceUnavailable, "repository not available")
		return
	}

	start := time.Now()
	count, err := h.Reloader.Reload(r.Context())
	if err != nil {
		slog.Error("failed to reload policy rules", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reload policy rules: "+err.Error())
		return
	}
	h.Metrics.SetPolicyRulesLoaded(count)

	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "policy rules reloaded",
		"count":       count,
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

// decodeBody parses a JSON body, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
