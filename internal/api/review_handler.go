package api

import (
	"context"
	"log/slog"
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/recallcode-api/internal/api/shared"
	"github.com/phrazzld/recallcode-api/internal/domain"
	"github.com/phrazzld/recallcode-api/internal/platform/logger"
	"github.com/phrazzld/recallcode-api/internal/service/retry"
	"github.com/phrazzld/recallcode-api/internal/service/scheduler"
)

// DefaultDueLimit is used when GET /api/reviews/due has no limit.
const DefaultDueLimit = 10

// ReviewHandler records ratings and lists due cards.
type ReviewHandler struct {
	scheduler    scheduler.Service
	policy       retry.Policy
	defaultLimit int
	logger       *slog.Logger
}

// NewReviewHandler creates a ReviewHandler. defaultLimit below 1 means
// DefaultDueLimit.
func NewReviewHandler(
	sched scheduler.Service,
	policy retry.Policy,
	defaultLimit int,
	logger *slog.Logger,
) *ReviewHandler {
	if sched == nil {
		panic("scheduler cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil for ReviewHandler")
	}
	if defaultLimit < 1 {
		defaultLimit = DefaultDueLimit
	}
	return &ReviewHandler{
		scheduler:    sched,
		policy:       policy,
		defaultLimit: defaultLimit,
		logger:       logger.With(slog.String("component", "review_handler")),
	}
}

// SubmitRating handles POST /api/reviews and POST /api/problems/{id}/rate.
// A path id wins over the body's problem_id.
func (h *ReviewHandler) SubmitRating(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req RateRequest
	if err := shared.DecodeAndValidate(w, r, &req); err != nil {
		HandleAPIError(w, r, err)
		return
	}

	problemID := req.ProblemID
	if chi.URLParam(r, "id") != "" {
		id, err := getPathProblemID(r, "id")
		if err != nil {
			HandleAPIError(w, r, err)
			return
		}
		problemID = id
	}
	if problemID <= 0 {
		HandleAPIError(w, r, domain.NewValidationError("problem_id", "is required", domain.ErrValidation))
		return
	}
	rating, err := ratingFromRequest(*req.Rating)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	card, err := retry.DoValue(r.Context(), h.policy, func(ctx context.Context) (domain.Card, error) {
		return h.scheduler.RecordReview(ctx, userID, problemID, rating)
	})
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	log.Debug("rating accepted",
		slog.Int64("problem_id", problemID),
		slog.Int("rating", int(rating)))
	shared.RespondWithJSON(w, r, http.StatusOK, cardToResponse(card))
}

// ratingFromRequest accepts whole numbers only. The 1..5 range is checked
// by the scheduler.
func ratingFromRequest(v float64) (domain.Rating, error) {
	if math.IsNaN(v) || v != math.Trunc(v) || v < math.MinInt32 || v > math.MaxInt32 {
		return 0, domain.ErrInvalidRating
	}
	return domain.Rating(v), nil
}

// ListDue handles GET /api/reviews/due?limit=n.
func (h *ReviewHandler) ListDue(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	limit, err := getQueryLimit(r, h.defaultLimit)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	cards, err := retry.DoValue(r.Context(), h.policy, func(ctx context.Context) ([]domain.Card, error) {
		return h.scheduler.GetDueCards(ctx, userID, limit)
	})
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, dueCardsToResponse(cards))
}
