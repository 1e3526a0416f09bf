package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/recallcode-api/internal/api/middleware"
)

// RouterConfig collects what NewRouter mounts.
type RouterConfig struct {
	Plans   *PlanHandler
	Reviews *ReviewHandler
	Streaks *StreakHandler
	Auth    *middleware.AuthMiddleware
	// RequestTimeout bounds each request's context. Zero disables it.
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

// NewRouter builds the HTTP routes. Everything under /api requires a bearer
// token; /health does not.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewTraceMiddleware(cfg.Logger))
	if cfg.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(cfg.RequestTimeout))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(cfg.Auth.Authenticate)

		r.Get("/plans/today", cfg.Plans.GetTodayPlan)
		r.Post("/plans/today/complete", cfg.Plans.CompleteProblem)
		r.Get("/plans/{date}", cfg.Plans.GetPlanByDate)

		r.Post("/reviews", cfg.Reviews.SubmitRating)
		r.Get("/reviews/due", cfg.Reviews.ListDue)
		r.Post("/problems/{id}/rate", cfg.Reviews.SubmitRating)

		if cfg.Streaks != nil {
			r.Get("/stats/streak", cfg.Streaks.GetStreak)
		}
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return r
}
