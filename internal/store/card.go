package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/recallcode-api/internal/domain"
)

// CardTxFn runs against a CardStore bound to a single transaction.
type CardTxFn func(ctx context.Context, cards CardStore) error

// CardStore defines the interface for scheduling-state persistence.
// There is at most one card per (user, problem) pair.
type CardStore interface {
	// Get retrieves the card for a user and problem.
	// Returns ErrCardNotFound if the user has never been exposed to the problem.
	// NOTE: This method does NOT provide any row locking.
	Get(ctx context.Context, userID uuid.UUID, problemID int64) (*domain.Card, error)

	// GetForUpdate retrieves the card and locks it until the surrounding
	// transaction ends. Only meaningful inside RunInTx.
	// Returns ErrCardNotFound if the card does not exist.
	GetForUpdate(ctx context.Context, userID uuid.UUID, problemID int64) (*domain.Card, error)

	// CreateIfAbsent inserts card unless a card for the same pair already exists.
	// It reports whether a row was inserted. Two concurrent first ratings of
	// the same problem therefore never produce two cards.
	CreateIfAbsent(ctx context.Context, card *domain.Card) (bool, error)

	// Update persists card if its Version still matches the stored version.
	// On success card.Version is incremented. A mismatch returns
	// domain.ErrConcurrentModification and nothing is written.
	Update(ctx context.Context, card *domain.Card) error

	// ListDue returns the user's cards with DueAt <= now, ordered by DueAt
	// ascending with ties broken by problem id, truncated to limit.
	// Cards in the New state are never due. An unknown user yields an empty slice.
	ListDue(ctx context.Context, userID uuid.UUID, now time.Time, limit int) ([]domain.Card, error)

	// ListExposedProblemIDs returns the ids of every problem the user has a card for.
	ListExposedProblemIDs(ctx context.Context, userID uuid.UUID) ([]int64, error)

	// RunInTx executes fn with a CardStore bound to one transaction.
	// Writes made through that store commit together or not at all.
	//
	// Usage example:
	//   err := cards.RunInTx(ctx, func(ctx context.Context, tx store.CardStore) error {
	//       card, err := tx.GetForUpdate(ctx, userID, problemID)
	//       ...
	//       return tx.Update(ctx, card)
	//   })
	RunInTx(ctx context.Context, fn CardTxFn) error
}
