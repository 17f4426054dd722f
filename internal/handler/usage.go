// Package handler contains the HTTP handlers for the writing API.
//
// This file implements the quota endpoints.
//
// Routes handled:
//   - GET  /api/plans                        -> ListPlans (public)
//   - GET  /api/usage                        -> ShowUsage
//   - GET  /api/tools/{tool}/access          -> ToolAccess
//   - GET  /api/features/{feature}/access    -> FeatureAccess
//   - POST /api/trial                        -> StartTrial
package handler

import (
	"log/slog"
	"net/http"

	"github.com/aiwriterpros/aiwriter/internal/auth"
	"github.com/aiwriterpros/aiwriter/internal/domain"
	"github.com/aiwriterpros/aiwriter/internal/service"
)

// maxSmallBody bounds the JSON bodies of the non-generation endpoints.
const maxSmallBody = 4 << 10

// UsageHandler serves usage status and entitlement checks.
type UsageHandler struct {
	quota  service.QuotaService
	logger *slog.Logger
}

// NewUsageHandler creates a new UsageHandler.
func NewUsageHandler(quota service.QuotaService, logger *slog.Logger) *UsageHandler {
	return &UsageHandler{quota: quota, logger: logger}
}

// RegisterRoutes registers usage routes on the provided mux.
func (h *UsageHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.HandleFunc("GET /api/plans", h.ListPlans)
	mux.Handle("GET /api/usage", requireUser(http.HandlerFunc(h.ShowUsage)))
	mux.Handle("GET /api/tools/{tool}/access", requireUser(http.HandlerFunc(h.ToolAccess)))
	mux.Handle("GET /api/features/{feature}/access", requireUser(http.HandlerFunc(h.FeatureAccess)))
	mux.Handle("POST /api/trial", requireUser(http.HandlerFunc(h.StartTrial)))
}

// PlanResponse describes one tier of the catalog.
type PlanResponse struct {
	Plan            domain.PlanTier    `json:"plan"`
	Name            string             `json:"name"`
	WordLimit       domain.Limit       `json:"word_limit"`
	GenerationLimit domain.Limit       `json:"generation_limit"`
	Tools           []domain.ToolID    `json:"tools"`
	Features        []domain.FeatureID `json:"features"`
}

// ListPlans returns the plan catalog.
func (h *UsageHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans := make([]PlanResponse, 0, len(domain.AllPlans))
	for _, p := range domain.AllPlans {
		e := domain.Entitlements(p)
		plans = append(plans, PlanResponse{
			Plan:            p,
			Name:            p.DisplayName(),
			WordLimit:       e.WordLimit,
			GenerationLimit: e.GenerationLimit,
			Tools:           e.Tools,
			Features:        e.Features,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"plans": plans})
}

// ShowUsage returns the caller's normalized usage snapshot.
func (h *UsageHandler) ShowUsage(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	status, err := h.quota.Status(r.Context(), user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// AccessResponse reports whether a tool or feature is unlocked.
type AccessResponse struct {
	Tool    domain.ToolID    `json:"tool,omitempty"`
	Feature domain.FeatureID `json:"feature,omitempty"`
	Allowed bool             `json:"allowed"`
}

// ToolAccess reports whether the caller's plan unlocks a tool.
func (h *UsageHandler) ToolAccess(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	tool := domain.ToolID(r.PathValue("tool"))
	if !tool.IsValid() {
		ErrorResponse(w, r, h.logger, domain.NotFound("handler.tool_access", "Tool", string(tool)))
		return
	}

	allowed, err := h.quota.CanAccessTool(r.Context(), user.ID, tool)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, AccessResponse{Tool: tool, Allowed: allowed})
}

// FeatureAccess reports whether the caller's plan unlocks a feature.
func (h *UsageHandler) FeatureAccess(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	feature := domain.FeatureID(r.PathValue("feature"))
	if !feature.IsValid() {
		ErrorResponse(w, r, h.logger, domain.NotFound("handler.feature_access", "Feature", string(feature)))
		return
	}

	allowed, err := h.quota.CanUseFeature(r.Context(), user.ID, feature)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, AccessResponse{Feature: feature, Allowed: allowed})
}

// TrialRequest is the body of POST /api/trial.
type TrialRequest struct {
	Plan string `json:"plan"`
}

// StartTrial starts a 7-day trial of a paid plan. A trial can only begin
// from the Free state; any other state answers 409.
func (h *UsageHandler) StartTrial(w http.ResponseWriter, r *http.Request) {
	const op = "handler.start_trial"

	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var req TrialRequest
	if err := decodeJSON(w, r, maxSmallBody, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	plan, ok := domain.ParsePlanTier(req.Plan)
	if !ok || !plan.IsPaid() {
		ErrorResponse(w, r, h.logger, domain.NewValidationError(op, "plan", "Plan must be pro or business"))
		return
	}

	started, err := h.quota.StartTrial(r.Context(), user.ID, plan)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if !started {
		ErrorResponse(w, r, h.logger, domain.Conflict(op, "A trial can only be started from the Free plan"))
		return
	}

	status, err := h.quota.Status(r.Context(), user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
