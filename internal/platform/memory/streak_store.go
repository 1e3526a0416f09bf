package memory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/recallcode-api/internal/domain"
	"github.com/phrazzld/recallcode-api/internal/platform/logger"
	"github.com/phrazzld/recallcode-api/internal/store"
)

// StreakStore implements store.StreakStore in memory. Each call is its own
// transaction.
type StreakStore struct {
	db     *DB
	logger *slog.Logger
}

var _ store.StreakStore = (*StreakStore)(nil)

// Get implements store.StreakStore.Get
func (s *StreakStore) Get(ctx context.Context, userID uuid.UUID) (*domain.Streak, error) {
	streak, ok := s.db.streaks.get(userID)
	if !ok {
		return nil, store.ErrStreakNotFound
	}
	return &streak, nil
}

// CreateIfAbsent implements store.StreakStore.CreateIfAbsent
func (s *StreakStore) CreateIfAbsent(ctx context.Context, streak *domain.Streak) (*domain.Streak, bool, error) {
	if err := streak.Validate(); err != nil {
		return nil, false, err
	}

	var (
		stored  domain.Streak
		created bool
	)
	err := s.db.streaks.runInTx(func(x *tx[uuid.UUID, domain.Streak]) error {
		if err := x.lock(ctx, streak.UserID); err != nil {
			return err
		}
		if existing, ok := x.get(streak.UserID); ok {
			stored = existing
			return nil
		}
		stored = *streak
		x.stage(streak.UserID, stored, true, 0)
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		logger.FromContextOrDefault(ctx, s.logger).Debug("streak created",
			slog.String("user_id", streak.UserID.String()),
			slog.Int("count", stored.Count))
	}
	return &stored, created, nil
}

// Update implements store.StreakStore.Update
func (s *StreakStore) Update(ctx context.Context, streak *domain.Streak) error {
	if err := streak.Validate(); err != nil {
		return err
	}

	var next domain.Streak
	err := s.db.streaks.runInTx(func(x *tx[uuid.UUID, domain.Streak]) error {
		if err := x.lock(ctx, streak.UserID); err != nil {
			return err
		}
		current, ok := x.get(streak.UserID)
		if !ok {
			return store.ErrStreakNotFound
		}
		if current.Version != streak.Version {
			return fmt.Errorf("%w: streak %s changed since version %d",
				domain.ErrConcurrentModification, streak.UserID, streak.Version)
		}

		next = *streak
		next.CreatedAt = current.CreatedAt
		next.Version = current.Version + 1
		x.stage(streak.UserID, next, false, current.Version)
		return nil
	})
	if err != nil {
		return err
	}

	streak.Version = next.Version
	return nil
}
