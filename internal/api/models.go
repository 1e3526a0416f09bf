package api

import (
	"time"

	"github.com/phrazzld/recallcode-api/internal/domain"
)

// RateRequest is the body of POST /api/reviews. On /api/problems/{id}/rate
// the path id is used and problem_id may be omitted.
type RateRequest struct {
	ProblemID int64 `json:"problem_id" validate:"gte=0"`
	// Rating is a pointer so a missing rating is told apart from rating 0.
	// It decodes as a float so 3.5 is rejected as a rating, not as a
	// malformed body.
	Rating *float64 `json:"rating" validate:"required"`
}

// CompleteRequest is the body of POST /api/plans/today/complete.
type CompleteRequest struct {
	ProblemID int64 `json:"problem_id" validate:"required,gt=0"`
}

// PlanResponse renders a daily plan.
type PlanResponse struct {
	Date              string  `json:"date"`
	NewProblems       []int64 `json:"new_problems"`
	SRSProblems       []int64 `json:"srs_problems"`
	CompletedProblems []int64 `json:"completed_problems"`
	IsCompleted       bool    `json:"is_completed"`
}

// CardResponse renders the scheduling state after a review.
type CardResponse struct {
	ProblemID    int64      `json:"problem_id"`
	State        string     `json:"state"`
	Repetitions  int        `json:"repetitions"`
	IntervalDays int        `json:"interval_days"`
	EaseFactor   float64    `json:"ease_factor"`
	DueAt        *time.Time `json:"due_at"`
	LastRating   *int       `json:"last_rating"`
}

// DueCardResponse is one entry of GET /api/reviews/due.
type DueCardResponse struct {
	ProblemID    int64      `json:"problem_id"`
	DueAt        *time.Time `json:"due_at"`
	Repetitions  int        `json:"repetitions"`
	IntervalDays int        `json:"interval_days"`
}

// StreakResponse renders GET /api/stats/streak. CurrentStreak is zero once a
// day has been missed; StreakCount keeps the last stored run.
type StreakResponse struct {
	CurrentStreak  int     `json:"current_streak"`
	StreakCount    int     `json:"streak_count"`
	LongestStreak  int     `json:"longest_streak"`
	LastReviewDate *string `json:"last_review_date"`
	ReviewedToday  bool    `json:"reviewed_today"`
}

func streakToResponse(s domain.Streak, today time.Time) StreakResponse {
	resp := StreakResponse{
		CurrentStreak: s.Current(today),
		StreakCount:   s.Count,
		LongestStreak: s.Longest,
	}
	if !s.LastReviewDate.IsZero() {
		d := s.LastReviewDate.Format(domain.DateLayout)
		resp.LastReviewDate = &d
		resp.ReviewedToday = s.LastReviewDate.Equal(today)
	}
	return resp
}

func planToResponse(p domain.DailyPlan) PlanResponse {
	return PlanResponse{
		Date:              p.Date.Format(domain.DateLayout),
		NewProblems:       nonNil(p.NewProblems),
		SRSProblems:       nonNil(p.SRSProblems),
		CompletedProblems: nonNil(p.CompletedProblems),
		IsCompleted:       p.IsCompleted,
	}
}

func cardToResponse(c domain.Card) CardResponse {
	resp := CardResponse{
		ProblemID:    c.ProblemID,
		State:        string(c.State),
		Repetitions:  c.Repetitions,
		IntervalDays: c.IntervalDays,
		EaseFactor:   c.EaseFactor,
		DueAt:        c.DueAt,
	}
	if c.LastRating != nil {
		r := int(*c.LastRating)
		resp.LastRating = &r
	}
	return resp
}

func dueCardsToResponse(cards []domain.Card) []DueCardResponse {
	out := make([]DueCardResponse, 0, len(cards))
	for _, c := range cards {
		out = append(out, DueCardResponse{
			ProblemID:    c.ProblemID,
			DueAt:        c.DueAt,
			Repetitions:  c.Repetitions,
			IntervalDays: c.IntervalDays,
		})
	}
	return out
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
