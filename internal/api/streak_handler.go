package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/phrazzld/recallcode-api/internal/api/shared"
	"github.com/phrazzld/recallcode-api/internal/domain"
	"github.com/phrazzld/recallcode-api/internal/service/retry"
	"github.com/phrazzld/recallcode-api/internal/service/streak"
)

// StreakHandler serves review streaks.
type StreakHandler struct {
	streaks streak.Service
	policy  retry.Policy
	logger  *slog.Logger
}

// NewStreakHandler creates a StreakHandler.
func NewStreakHandler(streaks streak.Service, policy retry.Policy, logger *slog.Logger) *StreakHandler {
	if streaks == nil {
		panic("streaks cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil for StreakHandler")
	}
	return &StreakHandler{
		streaks: streaks,
		policy:  policy,
		logger:  logger.With(slog.String("component", "streak_handler")),
	}
}

// GetStreak handles GET /api/stats/streak.
func (h *StreakHandler) GetStreak(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	s, err := retry.DoValue(r.Context(), h.policy, func(ctx context.Context) (domain.Streak, error) {
		return h.streaks.GetStreak(ctx, userID)
	})
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, streakToResponse(s, h.streaks.Today()))
}
