package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// CardState is the lifecycle stage of a card.
type CardState string

// Possible card states.
const (
	CardStateNew      CardState = "new"
	CardStateLearning CardState = "learning"
	CardStateReview   CardState = "review"
	CardStateRelapsed CardState = "relapsed"
)

// Valid reports whether s is a known card state.
func (s CardState) Valid() bool {
	switch s {
	case CardStateNew, CardStateLearning, CardStateReview, CardStateRelapsed:
		return true
	default:
		return false
	}
}

// Rating is a recall-quality score from 1 (forgotten) to 5 (perfect).
type Rating int

// Rating boundaries and the pass threshold.
const (
	RatingMin  Rating = 1
	RatingMax  Rating = 5
	RatingPass Rating = 3
)

// Valid reports whether r lies within 1..5.
func (r Rating) Valid() bool {
	return r >= RatingMin && r <= RatingMax
}

// Passed reports whether r counts as a successful recall.
func (r Rating) Passed() bool {
	return r >= RatingPass
}

// DefaultEaseFactor is the ease factor assigned to a card on first exposure.
const DefaultEaseFactor = 2.5

// MinEaseFactor is the lowest ease factor a card may carry. The cards
// table enforces the same floor.
const MinEaseFactor = 1.3

// MaxIntervalDays bounds a single review gap. It keeps due dates far
// inside the range PostgreSQL timestamps can hold.
const MaxIntervalDays = 36500

// Card validation errors.
var (
	ErrCardUserIDEmpty    = errors.New("card user ID cannot be empty")
	ErrCardProblemIDEmpty = errors.New("card problem ID must be positive")
	ErrCardInvalidState   = errors.New("card state is invalid")
	ErrCardNegativeValues = errors.New("card repetitions and interval must be non-negative")
	ErrCardEaseTooLow     = errors.New("card ease factor is below the minimum")
	ErrCardNewInvariant   = errors.New("new card must have no repetitions, no interval and no due date")
)

// Card holds the spaced-repetition scheduling state of one problem for one user.
// Cards are created lazily on first exposure and owned by UserID.
type Card struct {
	UserID         uuid.UUID  `json:"user_id"`
	ProblemID      int64      `json:"problem_id"`
	State          CardState  `json:"state"`
	Repetitions    int        `json:"repetitions"`
	EaseFactor     float64    `json:"ease_factor"`
	IntervalDays   int        `json:"interval_days"`
	DueAt          *time.Time `json:"due_at,omitempty"`
	LastRating     *Rating    `json:"last_rating,omitempty"`
	LastReviewedAt *time.Time `json:"last_reviewed_at,omitempty"`
	TotalReviews   int        `json:"total_reviews"`
	Version        int64      `json:"version"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// NewCard returns a card in the New state for the given pair.
func NewCard(userID uuid.UUID, problemID int64, now time.Time) (*Card, error) {
	card := &Card{
		UserID:     userID,
		ProblemID:  problemID,
		State:      CardStateNew,
		EaseFactor: DefaultEaseFactor,
		CreatedAt:  now.UTC(),
		UpdatedAt:  now.UTC(),
	}

	if err := card.Validate(); err != nil {
		return nil, err
	}

	return card, nil
}

// Validate checks identity fields and the New-state invariant.
// The ease floor is enforced by the algorithm's configured minimum, so here
// only values at or below 1.0 are rejected.
func (c *Card) Validate() error {
	if c.UserID == uuid.Nil {
		return ErrCardUserIDEmpty
	}
	if c.ProblemID <= 0 {
		return ErrCardProblemIDEmpty
	}
	if !c.State.Valid() {
		return ErrCardInvalidState
	}
	if c.Repetitions < 0 || c.IntervalDays < 0 || c.TotalReviews < 0 {
		return ErrCardNegativeValues
	}
	if c.EaseFactor <= 1.0 {
		return ErrCardEaseTooLow
	}

	isNewShape := c.Repetitions == 0 && c.IntervalDays == 0 && c.DueAt == nil
	if (c.State == CardStateNew) != isNewShape {
		return ErrCardNewInvariant
	}

	return nil
}

// IsNew reports whether the card has never been rated.
func (c *Card) IsNew() bool {
	return c.State == CardStateNew
}

// IsDue reports whether the card is eligible for review at now.
// New cards are never due.
func (c *Card) IsDue(now time.Time) bool {
	return c.DueAt != nil && !c.DueAt.After(now)
}

// Clone returns a deep copy so callers can derive new states without aliasing
// the pointer fields of the original.
func (c Card) Clone() Card {
	out := c
	if c.DueAt != nil {
		due := *c.DueAt
		out.DueAt = &due
	}
	if c.LastRating != nil {
		r := *c.LastRating
		out.LastRating = &r
	}
	if c.LastReviewedAt != nil {
		t := *c.LastReviewedAt
		out.LastReviewedAt = &t
	}
	return out
}
