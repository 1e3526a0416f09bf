package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrStreakUserIDEmpty is returned when a streak has no owner.
var ErrStreakUserIDEmpty = errors.New("streak user ID cannot be empty")

// Streak counts consecutive calendar days on which a user reviewed at least
// one problem. Days are midnight UTC values produced by CalendarDate.
type Streak struct {
	UserID uuid.UUID `json:"user_id"`
	Count  int       `json:"count"`
	// Longest is the best Count the user has reached.
	Longest int `json:"longest"`
	// LastReviewDate is zero until the first review.
	LastReviewDate time.Time `json:"last_review_date"`
	Version        int64     `json:"version"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewStreak returns an empty streak for userID.
func NewStreak(userID uuid.UUID, now time.Time) *Streak {
	return &Streak{UserID: userID, CreatedAt: now.UTC(), UpdatedAt: now.UTC()}
}

// Validate checks the streak's identity and counters.
func (s *Streak) Validate() error {
	if s.UserID == uuid.Nil {
		return ErrStreakUserIDEmpty
	}
	if s.Count < 0 || s.Longest < s.Count {
		return NewValidationError("count", "must be between zero and the longest streak", ErrValidation)
	}
	if s.Count > 0 && s.LastReviewDate.IsZero() {
		return NewValidationError("last_review_date", "is required once a review is counted", ErrValidation)
	}
	return nil
}

// RecordReview counts a review made on day. A second review on the same day
// changes nothing, a review on the following day extends the streak, and a
// review after a gap starts over at one. Reviews dated before the last
// counted day are late deliveries and are ignored. It reports whether the
// streak changed.
func (s *Streak) RecordReview(day time.Time, now time.Time) bool {
	day = CalendarDate(day, time.UTC)

	switch {
	case s.LastReviewDate.IsZero() || s.Count == 0:
		s.Count = 1
	case !day.After(s.LastReviewDate):
		return false
	case day.Equal(s.LastReviewDate.AddDate(0, 0, 1)):
		s.Count++
	default:
		s.Count = 1
	}

	s.LastReviewDate = day
	if s.Count > s.Longest {
		s.Longest = s.Count
	}
	s.UpdatedAt = now.UTC()
	return true
}

// Current is the streak as seen on today. A streak whose last review is
// older than yesterday has lapsed and reads as zero.
func (s Streak) Current(today time.Time) int {
	if s.LastReviewDate.IsZero() {
		return 0
	}
	today = CalendarDate(today, time.UTC)
	if s.LastReviewDate.Before(today.AddDate(0, 0, -1)) {
		return 0
	}
	return s.Count
}
