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

var cardColumns = []string{
	"user_id", "problem_id", "state", "repetitions", "ease_factor", "interval_days",
	"due_at", "last_rating", "last_reviewed_at", "total_reviews", "version",
	"created_at", "updated_at",
}

// PostgresCardStore implements the store.CardStore interface
// using a PostgreSQL database as the storage backend.
type PostgresCardStore struct {
	db     store.DBTX
	sqlDB  *sql.DB // nil when bound to a transaction
	logger *slog.Logger
	opts   options
}

// NewPostgresCardStore creates a new PostgreSQL implementation of the CardStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresCardStore(db store.DBTX, logger *slog.Logger, opts ...Option) *PostgresCardStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	sqlDB, _ := db.(*sql.DB)
	return &PostgresCardStore{
		db:     db,
		sqlDB:  sqlDB,
		logger: logger.With(slog.String("component", "card_store")),
		opts:   newOptions(opts),
	}
}

// Ensure PostgresCardStore implements store.CardStore interface
var _ store.CardStore = (*PostgresCardStore)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (*domain.Card, error) {
	var (
		card           domain.Card
		state          string
		dueAt          sql.NullTime
		lastRating     sql.NullInt16
		lastReviewedAt sql.NullTime
	)

	err := row.Scan(
		&card.UserID,
		&card.ProblemID,
		&state,
		&card.Repetitions,
		&card.EaseFactor,
		&card.IntervalDays,
		&dueAt,
		&lastRating,
		&lastReviewedAt,
		&card.TotalReviews,
		&card.Version,
		&card.CreatedAt,
		&card.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	card.State = domain.CardState(state)
	if dueAt.Valid {
		t := dueAt.Time.UTC()
		card.DueAt = &t
	}
	if lastRating.Valid {
		r := domain.Rating(lastRating.Int16)
		card.LastRating = &r
	}
	if lastReviewedAt.Valid {
		t := lastReviewedAt.Time.UTC()
		card.LastReviewedAt = &t
	}
	card.CreatedAt = card.CreatedAt.UTC()
	card.UpdatedAt = card.UpdatedAt.UTC()

	return &card, nil
}

func (s *PostgresCardStore) getCard(
	ctx context.Context,
	userID uuid.UUID,
	problemID int64,
	forUpdate bool,
) (*domain.Card, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	builder := psql.Select(cardColumns...).
		From("cards").
		Where("user_id = ? AND problem_id = ?", userID, problemID)
	if forUpdate {
		builder = builder.Suffix("FOR UPDATE")
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build card query: %w", err)
	}

	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	card, err := scanCard(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("card not found",
				slog.String("user_id", userID.String()),
				slog.Int64("problem_id", problemID))
			return nil, store.ErrCardNotFound
		}
		log.Error("failed to get card",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()),
			slog.Int64("problem_id", problemID),
			slog.Bool("for_update", forUpdate))
		return nil, MapError(err)
	}

	return card, nil
}

// Get implements store.CardStore.Get
func (s *PostgresCardStore) Get(ctx context.Context, userID uuid.UUID, problemID int64) (*domain.Card, error) {
	return s.getCard(ctx, userID, problemID, false)
}

// GetForUpdate implements store.CardStore.GetForUpdate using SELECT ... FOR UPDATE.
func (s *PostgresCardStore) GetForUpdate(
	ctx context.Context,
	userID uuid.UUID,
	problemID int64,
) (*domain.Card, error) {
	return s.getCard(ctx, userID, problemID, true)
}

// CreateIfAbsent implements store.CardStore.CreateIfAbsent.
// A missing catalog problem surfaces as store.ErrInvalidEntity through the foreign key.
func (s *PostgresCardStore) CreateIfAbsent(ctx context.Context, card *domain.Card) (bool, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := card.Validate(); err != nil {
		log.Warn("card validation failed during create",
			slog.String("error", err.Error()),
			slog.String("user_id", card.UserID.String()),
			slog.Int64("problem_id", card.ProblemID))
		return false, err
	}

	var lastRating any
	if card.LastRating != nil {
		lastRating = int16(*card.LastRating)
	}

	query := `
		INSERT INTO cards (
			user_id, problem_id, state, repetitions, ease_factor, interval_days,
			due_at, last_rating, last_reviewed_at, total_reviews, version,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (user_id, problem_id) DO NOTHING
	`

	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	result, err := s.db.ExecContext(ctx, query,
		card.UserID,
		card.ProblemID,
		string(card.State),
		card.Repetitions,
		card.EaseFactor,
		card.IntervalDays,
		nullableTime(card.DueAt),
		lastRating,
		nullableTime(card.LastReviewedAt),
		card.TotalReviews,
		card.Version,
		card.CreatedAt.UTC(),
		card.UpdatedAt.UTC(),
	)
	if err != nil {
		log.Error("failed to create card",
			slog.String("error", err.Error()),
			slog.String("user_id", card.UserID.String()),
			slog.Int64("problem_id", card.ProblemID))
		return false, MapError(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, MapError(err)
	}

	if rows == 1 {
		log.Debug("card created",
			slog.String("user_id", card.UserID.String()),
			slog.Int64("problem_id", card.ProblemID))
	}
	return rows == 1, nil
}

// Update implements store.CardStore.Update with an optimistic version check.
func (s *PostgresCardStore) Update(ctx context.Context, card *domain.Card) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := card.Validate(); err != nil {
		log.Warn("card validation failed during update",
			slog.String("error", err.Error()),
			slog.String("user_id", card.UserID.String()),
			slog.Int64("problem_id", card.ProblemID))
		return err
	}

	var lastRating any
	if card.LastRating != nil {
		lastRating = int16(*card.LastRating)
	}

	query := `
		UPDATE cards
		SET state = $3,
			repetitions = $4,
			ease_factor = $5,
			interval_days = $6,
			due_at = $7,
			last_rating = $8,
			last_reviewed_at = $9,
			total_reviews = $10,
			updated_at = $11,
			version = version + 1
		WHERE user_id = $1 AND problem_id = $2 AND version = $12
	`

	execCtx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	result, err := s.db.ExecContext(execCtx, query,
		card.UserID,
		card.ProblemID,
		string(card.State),
		card.Repetitions,
		card.EaseFactor,
		card.IntervalDays,
		nullableTime(card.DueAt),
		lastRating,
		nullableTime(card.LastReviewedAt),
		card.TotalReviews,
		card.UpdatedAt.UTC(),
		card.Version,
	)
	if err != nil {
		log.Error("failed to update card",
			slog.String("error", err.Error()),
			slog.String("user_id", card.UserID.String()),
			slog.Int64("problem_id", card.ProblemID))
		return MapError(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return MapError(err)
	}

	if rows == 0 {
		if _, getErr := s.Get(ctx, card.UserID, card.ProblemID); getErr != nil {
			return getErr
		}
		log.Warn("card version conflict",
			slog.String("user_id", card.UserID.String()),
			slog.Int64("problem_id", card.ProblemID),
			slog.Int64("expected_version", card.Version))
		return fmt.Errorf("%w: card %s/%d changed since version %d",
			domain.ErrConcurrentModification, card.UserID, card.ProblemID, card.Version)
	}

	card.Version++
	log.Debug("card updated",
		slog.String("user_id", card.UserID.String()),
		slog.Int64("problem_id", card.ProblemID),
		slog.Int64("version", card.Version))
	return nil
}

// ListDue implements store.CardStore.ListDue.
func (s *PostgresCardStore) ListDue(
	ctx context.Context,
	userID uuid.UUID,
	now time.Time,
	limit int,
) ([]domain.Card, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if limit <= 0 {
		return nil, domain.ErrInvalidLimit
	}

	query, args, err := psql.Select(cardColumns...).
		From("cards").
		Where("user_id = ?", userID).
		Where("due_at IS NOT NULL").
		Where("due_at <= ?", now.UTC()).
		OrderBy("due_at ASC", "problem_id ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build due query: %w", err)
	}

	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list due cards",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	cards := make([]domain.Card, 0, limit)
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, MapError(err)
		}
		cards = append(cards, *card)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return cards, nil
}

// ListExposedProblemIDs implements store.CardStore.ListExposedProblemIDs.
func (s *PostgresCardStore) ListExposedProblemIDs(ctx context.Context, userID uuid.UUID) ([]int64, error) {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT problem_id FROM cards WHERE user_id = $1 ORDER BY problem_id`, userID)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, MapError(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return ids, nil
}

// WithTx returns a new PostgresCardStore instance that uses the provided transaction.
func (s *PostgresCardStore) WithTx(tx *sql.Tx) *PostgresCardStore {
	return &PostgresCardStore{
		db:     tx,
		logger: s.logger,
		opts:   s.opts,
	}
}

// RunInTx implements store.CardStore.RunInTx. A store already bound to a
// transaction runs fn inside that transaction.
func (s *PostgresCardStore) RunInTx(ctx context.Context, fn store.CardTxFn) error {
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
