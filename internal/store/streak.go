package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/recallcode-api/internal/domain"
)

// StreakStore persists one review streak per user.
type StreakStore interface {
	// Get returns the user's streak, or ErrStreakNotFound before the first
	// counted review.
	Get(ctx context.Context, userID uuid.UUID) (*domain.Streak, error)

	// CreateIfAbsent stores streak unless the user already has one. It
	// returns the stored streak, which is the existing one when another
	// writer won the race, and whether this call created it.
	CreateIfAbsent(ctx context.Context, streak *domain.Streak) (*domain.Streak, bool, error)

	// Update persists streak if its Version still matches the stored
	// version. On success streak.Version is incremented; a mismatch returns
	// domain.ErrConcurrentModification and nothing is written.
	Update(ctx context.Context, streak *domain.Streak) error
}
