// Package scheduler decides which problems are due for review and records
// recall ratings against a user's cards.
package scheduler

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/recallcode-api/internal/domain"
	"github.com/phrazzld/recallcode-api/internal/service"
)

const serviceName = "scheduler"

// Service exposes the review schedule of each user.
type Service interface {
	// GetDueCards returns the user's cards whose due time has passed, earliest
	// first with ties broken by problem ID, truncated to limit.
	//
	// Returns:
	//   - an empty slice for a user with no cards
	//   - domain.ErrInvalidLimit when limit is not positive
	//
	// Limits above the configured maximum are capped. Nothing is modified.
	GetDueCards(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Card, error)

	// RecordReview applies a 1..5 recall rating to the user's card for the
	// problem, creating the card on first exposure.
	//
	// The card is read under a row lock, advanced by the interval algorithm
	// and written with a version check inside one store transaction, so
	// concurrent ratings of the same problem are applied one after the other.
	// A ReviewRecorded event is emitted after commit.
	//
	// Returns:
	//   - domain.ErrInvalidRating for ratings outside 1..5, before any store access
	//   - domain.ErrNotFound when the problem is not in the catalog
	//   - domain.ErrConcurrentModification or domain.ErrStoreUnavailable for
	//     transient failures; nothing is written and the call may be retried
	RecordReview(ctx context.Context, userID uuid.UUID, problemID int64, rating domain.Rating) (domain.Card, error)
}

// Config bounds due-list sizes.
type Config struct {
	MaxDueLimit int
}

func newError(op string, err error) error {
	return service.NewServiceError(serviceName, op, err)
}
