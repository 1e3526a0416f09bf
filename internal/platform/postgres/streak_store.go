package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/recallcode-api/internal/domain"
	"github.com/phrazzld/recallcode-api/internal/platform/logger"
	"github.com/phrazzld/recallcode-api/internal/store"
)

const streakColumns = `user_id, streak_count, longest_streak, last_review_date, version, created_at, updated_at`

// PostgresStreakStore implements store.StreakStore on the streaks table.
type PostgresStreakStore struct {
	db     store.DBTX
	logger *slog.Logger
	opts   options
}

// NewPostgresStreakStore creates a new PostgreSQL implementation of the StreakStore interface.
func NewPostgresStreakStore(db store.DBTX, logger *slog.Logger, opts ...Option) *PostgresStreakStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStreakStore{
		db:     db,
		logger: logger.With(slog.String("component", "streak_store")),
		opts:   newOptions(opts),
	}
}

var _ store.StreakStore = (*PostgresStreakStore)(nil)

func scanStreak(row rowScanner) (*domain.Streak, error) {
	var (
		streak domain.Streak
		last   sql.NullTime
	)
	err := row.Scan(
		&streak.UserID,
		&streak.Count,
		&streak.Longest,
		&last,
		&streak.Version,
		&streak.CreatedAt,
		&streak.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if last.Valid {
		streak.LastReviewDate = domain.CalendarDate(last.Time, time.UTC)
	}
	streak.CreatedAt = streak.CreatedAt.UTC()
	streak.UpdatedAt = streak.UpdatedAt.UTC()
	return &streak, nil
}

// lastReviewDate maps the zero date to NULL.
func lastReviewDate(s *domain.Streak) any {
	if s.LastReviewDate.IsZero() {
		return nil
	}
	return s.LastReviewDate.Format(domain.DateLayout)
}

// Get implements store.StreakStore.Get
func (s *PostgresStreakStore) Get(ctx context.Context, userID uuid.UUID) (*domain.Streak, error) {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + streakColumns + ` FROM streaks WHERE user_id = $1`
	streak, err := scanStreak(s.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrStreakNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get streak",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, MapError(err)
	}
	return streak, nil
}

// CreateIfAbsent implements store.StreakStore.CreateIfAbsent using
// INSERT ... ON CONFLICT DO NOTHING followed by a read of the winner.
func (s *PostgresStreakStore) CreateIfAbsent(
	ctx context.Context,
	streak *domain.Streak,
) (*domain.Streak, bool, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := streak.Validate(); err != nil {
		return nil, false, err
	}

	query := `
		INSERT INTO streaks (` + streakColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO NOTHING
	`

	execCtx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	result, err := s.db.ExecContext(execCtx, query,
		streak.UserID,
		streak.Count,
		streak.Longest,
		lastReviewDate(streak),
		streak.Version,
		streak.CreatedAt.UTC(),
		streak.UpdatedAt.UTC(),
	)
	if err != nil {
		log.Error("failed to create streak",
			slog.String("error", err.Error()),
			slog.String("user_id", streak.UserID.String()))
		return nil, false, MapError(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, false, MapError(err)
	}

	stored, err := s.Get(ctx, streak.UserID)
	if err != nil {
		return nil, false, err
	}
	return stored, rows == 1, nil
}

// Update implements store.StreakStore.Update
func (s *PostgresStreakStore) Update(ctx context.Context, streak *domain.Streak) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := streak.Validate(); err != nil {
		return err
	}

	query := `
		UPDATE streaks
		SET streak_count = $2,
			longest_streak = $3,
			last_review_date = $4,
			updated_at = $5,
			version = version + 1
		WHERE user_id = $1 AND version = $6
	`

	execCtx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	result, err := s.db.ExecContext(execCtx, query,
		streak.UserID,
		streak.Count,
		streak.Longest,
		lastReviewDate(streak),
		streak.UpdatedAt.UTC(),
		streak.Version,
	)
	if err != nil {
		log.Error("failed to update streak",
			slog.String("error", err.Error()),
			slog.String("user_id", streak.UserID.String()))
		return MapError(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return MapError(err)
	}
	if rows == 0 {
		if _, getErr := s.Get(ctx, streak.UserID); getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: streak %s changed since version %d",
			domain.ErrConcurrentModification, streak.UserID, streak.Version)
	}

	streak.Version++
	return nil
}
