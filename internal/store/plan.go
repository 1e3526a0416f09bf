package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/recallcode-api/internal/domain"
)

// PlanTxFn runs against a PlanStore bound to a single transaction.
type PlanTxFn func(ctx context.Context, plans PlanStore) error

// PlanStore persists daily plans, one per (user, date).
// Dates are calendar days represented as midnight UTC (see domain.CalendarDate).
type PlanStore interface {
	// Get returns the plan for the user and date, or ErrPlanNotFound.
	Get(ctx context.Context, userID uuid.UUID, date time.Time) (*domain.DailyPlan, error)

	// GetForUpdate is Get with a row lock held until the transaction ends.
	GetForUpdate(ctx context.Context, userID uuid.UUID, date time.Time) (*domain.DailyPlan, error)

	// CreateIfAbsent stores plan unless one already exists for its user and date.
	// It returns the stored plan, which is the existing one when another writer
	// won the race, and whether this call created it.
	CreateIfAbsent(ctx context.Context, plan *domain.DailyPlan) (*domain.DailyPlan, bool, error)

	// Update persists the completion fields of plan with a version check.
	// The planned problem sets are never rewritten. On success plan.Version is
	// incremented; a mismatch returns domain.ErrConcurrentModification.
	Update(ctx context.Context, plan *domain.DailyPlan) error

	// ListActiveUsers returns users who reviewed a card or owned a plan at or after since.
	ListActiveUsers(ctx context.Context, since time.Time) ([]uuid.UUID, error)

	// RunInTx executes fn with a PlanStore bound to one transaction.
	RunInTx(ctx context.Context, fn PlanTxFn) error
}
