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

const planColumns = `user_id, plan_date, new_problems, srs_problems, completed_problems,
	is_completed, version, created_at, updated_at`

// PostgresPlanStore implements the store.PlanStore interface
// using a PostgreSQL database as the storage backend.
type PostgresPlanStore struct {
	db     store.DBTX
	sqlDB  *sql.DB
	logger *slog.Logger
	opts   options
}

// NewPostgresPlanStore creates a new PostgreSQL implementation of the PlanStore interface.
func NewPostgresPlanStore(db store.DBTX, logger *slog.Logger, opts ...Option) *PostgresPlanStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	sqlDB, _ := db.(*sql.DB)
	return &PostgresPlanStore{
		db:     db,
		sqlDB:  sqlDB,
		logger: logger.With(slog.String("component", "plan_store")),
		opts:   newOptions(opts),
	}
}

// Ensure PostgresPlanStore implements store.PlanStore interface
var _ store.PlanStore = (*PostgresPlanStore)(nil)

func scanPlan(row rowScanner) (*domain.DailyPlan, error) {
	var plan domain.DailyPlan
	err := row.Scan(
		&plan.UserID,
		&plan.Date,
		int64Array(&plan.NewProblems),
		int64Array(&plan.SRSProblems),
		int64Array(&plan.CompletedProblems),
		&plan.IsCompleted,
		&plan.Version,
		&plan.CreatedAt,
		&plan.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	plan.Date = domain.CalendarDate(plan.Date, time.UTC)
	plan.NewProblems = nonNil(plan.NewProblems)
	plan.SRSProblems = nonNil(plan.SRSProblems)
	plan.CompletedProblems = nonNil(plan.CompletedProblems)
	plan.CreatedAt = plan.CreatedAt.UTC()
	plan.UpdatedAt = plan.UpdatedAt.UTC()
	return &plan, nil
}

func (s *PostgresPlanStore) getPlan(
	ctx context.Context,
	userID uuid.UUID,
	date time.Time,
	forUpdate bool,
) (*domain.DailyPlan, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + planColumns + ` FROM daily_plans WHERE user_id = $1 AND plan_date = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	plan, err := scanPlan(s.db.QueryRowContext(ctx, query, userID, date.Format(domain.DateLayout)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrPlanNotFound
		}
		log.Error("failed to get daily plan",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()),
			slog.String("date", date.Format(domain.DateLayout)))
		return nil, MapError(err)
	}
	return plan, nil
}

// Get implements store.PlanStore.Get
func (s *PostgresPlanStore) Get(ctx context.Context, userID uuid.UUID, date time.Time) (*domain.DailyPlan, error) {
	return s.getPlan(ctx, userID, date, false)
}

// GetForUpdate implements store.PlanStore.GetForUpdate
func (s *PostgresPlanStore) GetForUpdate(
	ctx context.Context,
	userID uuid.UUID,
	date time.Time,
) (*domain.DailyPlan, error) {
	return s.getPlan(ctx, userID, date, true)
}

// CreateIfAbsent implements store.PlanStore.CreateIfAbsent using
// INSERT ... ON CONFLICT DO NOTHING followed by a read of the winner.
func (s *PostgresPlanStore) CreateIfAbsent(
	ctx context.Context,
	plan *domain.DailyPlan,
) (*domain.DailyPlan, bool, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := plan.Validate(); err != nil {
		log.Warn("plan validation failed during create",
			slog.String("error", err.Error()),
			slog.String("user_id", plan.UserID.String()))
		return nil, false, err
	}

	query := `
		INSERT INTO daily_plans (` + planColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, plan_date) DO NOTHING
	`

	execCtx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	result, err := s.db.ExecContext(execCtx, query,
		plan.UserID,
		plan.Date.Format(domain.DateLayout),
		nonNil(plan.NewProblems),
		nonNil(plan.SRSProblems),
		nonNil(plan.CompletedProblems),
		plan.IsCompleted,
		plan.Version,
		plan.CreatedAt.UTC(),
		plan.UpdatedAt.UTC(),
	)
	if err != nil {
		log.Error("failed to create daily plan",
			slog.String("error", err.Error()),
			slog.String("user_id", plan.UserID.String()))
		return nil, false, MapError(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, false, MapError(err)
	}

	stored, err := s.Get(ctx, plan.UserID, plan.Date)
	if err != nil {
		return nil, false, err
	}

	if rows == 1 {
		log.Info("daily plan created",
			slog.String("user_id", plan.UserID.String()),
			slog.String("date", plan.Date.Format(domain.DateLayout)),
			slog.Int("srs_problems", len(stored.SRSProblems)),
			slog.Int("new_problems", len(stored.NewProblems)))
	}
	return stored, rows == 1, nil
}

// Update implements store.PlanStore.Update. Only completion state is written.
func (s *PostgresPlanStore) Update(ctx context.Context, plan *domain.DailyPlan) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := plan.Validate(); err != nil {
		return err
	}

	query := `
		UPDATE daily_plans
		SET completed_problems = $3,
			is_completed = $4,
			updated_at = $5,
			version = version + 1
		WHERE user_id = $1 AND plan_date = $2 AND version = $6
	`

	execCtx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	result, err := s.db.ExecContext(execCtx, query,
		plan.UserID,
		plan.Date.Format(domain.DateLayout),
		nonNil(plan.CompletedProblems),
		plan.IsCompleted,
		plan.UpdatedAt.UTC(),
		plan.Version,
	)
	if err != nil {
		log.Error("failed to update daily plan",
			slog.String("error", err.Error()),
			slog.String("user_id", plan.UserID.String()))
		return MapError(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return MapError(err)
	}
	if rows == 0 {
		if _, getErr := s.Get(ctx, plan.UserID, plan.Date); getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: daily plan %s/%s changed since version %d",
			domain.ErrConcurrentModification, plan.UserID, plan.Date.Format(domain.DateLayout), plan.Version)
	}

	plan.Version++
	return nil
}

// ListActiveUsers implements store.PlanStore.ListActiveUsers.
func (s *PostgresPlanStore) ListActiveUsers(ctx context.Context, since time.Time) ([]uuid.UUID, error) {
	query := `
		SELECT user_id FROM cards WHERE last_reviewed_at >= $1
		UNION
		SELECT user_id FROM daily_plans WHERE plan_date >= $2
		ORDER BY 1
	`

	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, query,
		since.UTC(), domain.CalendarDate(since, time.UTC).Format(domain.DateLayout))
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	users := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, MapError(err)
		}
		users = append(users, id)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return users, nil
}

// WithTx returns a new PostgresPlanStore instance that uses the provided transaction.
func (s *PostgresPlanStore) WithTx(tx *sql.Tx) *PostgresPlanStore {
	return &PostgresPlanStore{
		db:     tx,
		logger: s.logger,
		opts:   s.opts,
	}
}

// RunInTx implements store.PlanStore.RunInTx.
func (s *PostgresPlanStore) RunInTx(ctx context.Context, fn store.PlanTxFn) error {
	if s.sqlDB == nil {
		return fn(ctx, s)
	}

	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	err := store.RunInTransaction(ctx, s.sqlDB, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, s.WithTx(tx))
	})
	return MapError(err)
}
