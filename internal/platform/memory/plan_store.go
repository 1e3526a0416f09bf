package memory

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/recallcode-api/internal/domain"
	"github.com/phrazzld/recallcode-api/internal/platform/logger"
	"github.com/phrazzld/recallcode-api/internal/store"
)

// PlanStore implements store.PlanStore in memory.
type PlanStore struct {
	db     *DB
	tx     *tx[planKey, domain.DailyPlan] // nil outside RunInTx
	logger *slog.Logger
}

var _ store.PlanStore = (*PlanStore)(nil)

func planKeyOf(userID uuid.UUID, date time.Time) planKey {
	return planKey{userID: userID, date: date.UTC().Format(domain.DateLayout)}
}

// Get implements store.PlanStore.Get
func (s *PlanStore) Get(ctx context.Context, userID uuid.UUID, date time.Time) (*domain.DailyPlan, error) {
	key := planKeyOf(userID, date)

	var (
		plan domain.DailyPlan
		ok   bool
	)
	if s.tx != nil {
		plan, ok = s.tx.get(key)
	} else {
		plan, ok = s.db.plans.get(key)
	}
	if !ok {
		return nil, store.ErrPlanNotFound
	}
	return &plan, nil
}

// GetForUpdate implements store.PlanStore.GetForUpdate
func (s *PlanStore) GetForUpdate(ctx context.Context, userID uuid.UUID, date time.Time) (*domain.DailyPlan, error) {
	if s.tx != nil {
		if err := s.tx.lock(ctx, planKeyOf(userID, date)); err != nil {
			return nil, err
		}
	}
	return s.Get(ctx, userID, date)
}

// CreateIfAbsent implements store.PlanStore.CreateIfAbsent
func (s *PlanStore) CreateIfAbsent(ctx context.Context, plan *domain.DailyPlan) (*domain.DailyPlan, bool, error) {
	if s.tx == nil {
		var (
			stored  *domain.DailyPlan
			created bool
		)
		err := s.RunInTx(ctx, func(ctx context.Context, plans store.PlanStore) error {
			var err error
			stored, created, err = plans.CreateIfAbsent(ctx, plan)
			return err
		})
		return stored, created, err
	}

	if err := plan.Validate(); err != nil {
		return nil, false, err
	}

	key := keyOfPlan(*plan)
	if err := s.tx.lock(ctx, key); err != nil {
		return nil, false, err
	}
	if existing, ok := s.tx.get(key); ok {
		return &existing, false, nil
	}

	row := plan.Clone()
	row.Date = domain.CalendarDate(row.Date, time.UTC)
	s.tx.stage(key, row, true, 0)

	logger.FromContextOrDefault(ctx, s.logger).Info("daily plan created",
		slog.String("user_id", plan.UserID.String()),
		slog.String("date", key.date),
		slog.Int("srs_problems", len(row.SRSProblems)),
		slog.Int("new_problems", len(row.NewProblems)))

	stored := row.Clone()
	return &stored, true, nil
}

// Update implements store.PlanStore.Update. Only completion state is written.
func (s *PlanStore) Update(ctx context.Context, plan *domain.DailyPlan) error {
	if s.tx == nil {
		return s.RunInTx(ctx, func(ctx context.Context, plans store.PlanStore) error {
			return plans.Update(ctx, plan)
		})
	}

	if err := plan.Validate(); err != nil {
		return err
	}

	key := keyOfPlan(*plan)
	if err := s.tx.lock(ctx, key); err != nil {
		return err
	}

	current, ok := s.tx.get(key)
	if !ok {
		return store.ErrPlanNotFound
	}
	if current.Version != plan.Version {
		return fmt.Errorf("%w: daily plan %s/%s changed since version %d",
			domain.ErrConcurrentModification, plan.UserID, key.date, plan.Version)
	}

	next := current.Clone()
	next.CompletedProblems = slices.Clone(plan.CompletedProblems)
	next.IsCompleted = plan.IsCompleted
	next.UpdatedAt = plan.UpdatedAt.UTC()
	next.Version = current.Version + 1
	if err := next.Validate(); err != nil {
		return err
	}
	s.tx.stage(key, next, false, current.Version)

	plan.Version = next.Version
	return nil
}

// ListActiveUsers implements store.PlanStore.ListActiveUsers
func (s *PlanStore) ListActiveUsers(ctx context.Context, since time.Time) ([]uuid.UUID, error) {
	day := domain.CalendarDate(since, time.UTC)
	seen := make(map[uuid.UUID]struct{})

	for _, c := range s.db.cards.scan(func(c domain.Card) bool {
		return c.LastReviewedAt != nil && !c.LastReviewedAt.Before(since)
	}) {
		seen[c.UserID] = struct{}{}
	}
	for _, p := range s.db.plans.scan(func(p domain.DailyPlan) bool {
		return !p.Date.Before(day)
	}) {
		seen[p.UserID] = struct{}{}
	}

	users := make([]uuid.UUID, 0, len(seen))
	for id := range seen {
		users = append(users, id)
	}
	slices.SortFunc(users, func(a, b uuid.UUID) int {
		return slices.Compare(a[:], b[:])
	})
	return users, nil
}

// RunInTx implements store.PlanStore.RunInTx
func (s *PlanStore) RunInTx(ctx context.Context, fn store.PlanTxFn) error {
	if s.tx != nil {
		return fn(ctx, s)
	}

	return s.db.plans.runInTx(func(x *tx[planKey, domain.DailyPlan]) error {
		return fn(ctx, &PlanStore{db: s.db, tx: x, logger: s.logger})
	})
}
