package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/recallcode-api/internal/api/shared"
	"github.com/phrazzld/recallcode-api/internal/domain"
	"github.com/phrazzld/recallcode-api/internal/platform/logger"
	"github.com/phrazzld/recallcode-api/internal/service/plan"
	"github.com/phrazzld/recallcode-api/internal/service/retry"
)

// PlanHandler serves daily plans.
type PlanHandler struct {
	plans  plan.Service
	policy retry.Policy
	logger *slog.Logger
}

// NewPlanHandler creates a PlanHandler. Transient store failures are
// retried under policy before they reach the client.
func NewPlanHandler(plans plan.Service, policy retry.Policy, logger *slog.Logger) *PlanHandler {
	if plans == nil {
		panic("plans cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil for PlanHandler")
	}
	return &PlanHandler{
		plans:  plans,
		policy: policy,
		logger: logger.With(slog.String("component", "plan_handler")),
	}
}

// GetTodayPlan handles GET /api/plans/today.
func (h *PlanHandler) GetTodayPlan(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	p, err := retry.DoValue(r.Context(), h.policy, func(ctx context.Context) (domain.DailyPlan, error) {
		return h.plans.GetOrCreateTodayPlan(ctx, userID)
	})
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, planToResponse(p))
}

// GetPlanByDate handles GET /api/plans/{date}. Past plans are read-only and
// never composed on demand.
func (h *PlanHandler) GetPlanByDate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	date, err := domain.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	p, err := retry.DoValue(r.Context(), h.policy, func(ctx context.Context) (domain.DailyPlan, error) {
		return h.plans.GetPlan(ctx, userID, date)
	})
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, planToResponse(p))
}

// CompleteProblem handles POST /api/plans/today/complete.
func (h *PlanHandler) CompleteProblem(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req CompleteRequest
	if err := shared.DecodeAndValidate(w, r, &req); err != nil {
		HandleAPIError(w, r, err)
		return
	}

	p, err := retry.DoValue(r.Context(), h.policy, func(ctx context.Context) (domain.DailyPlan, error) {
		return h.plans.MarkCompleted(ctx, userID, req.ProblemID)
	})
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	log.Debug("plan problem marked complete",
		slog.Int64("problem_id", req.ProblemID),
		slog.Bool("plan_completed", p.IsCompleted))
	shared.RespondWithJSON(w, r, http.StatusOK, planToResponse(p))
}
