package postgres

import (
	"context"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/phrazzld/recallcode-api/internal/domain"
	"github.com/phrazzld/recallcode-api/internal/platform/logger"
	"github.com/phrazzld/recallcode-api/internal/store"
)

// PostgresCatalogStore reads the problems table. It also derives the
// weak-pattern signal from the cards table.
type PostgresCatalogStore struct {
	db     store.DBTX
	logger *slog.Logger
	opts   options
}

// NewPostgresCatalogStore creates a read-only catalog over db.
func NewPostgresCatalogStore(db store.DBTX, logger *slog.Logger, opts ...Option) *PostgresCatalogStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresCatalogStore{
		db:     db,
		logger: logger.With(slog.String("component", "catalog_store")),
		opts:   newOptions(opts),
	}
}

var (
	_ store.ProblemCatalog = (*PostgresCatalogStore)(nil)
	_ store.PatternSignal  = (*PostgresCatalogStore)(nil)
)

// Exists implements store.ProblemCatalog.Exists
func (s *PostgresCatalogStore) Exists(ctx context.Context, problemID int64) (bool, error) {
	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM problems WHERE id = $1)`, problemID).Scan(&exists)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to check problem existence",
			slog.String("error", err.Error()),
			slog.Int64("problem_id", problemID))
		return false, MapError(err)
	}
	return exists, nil
}

// buildCandidateQuery selects problems the user has no card for, skipping
// q.Excluding and ranking preferred patterns first, then by catalog order.
func buildCandidateQuery(q store.CandidateQuery) (string, []any, error) {
	builder := psql.Select("p.id", "p.title", "p.slug", "p.difficulty", "p.patterns", "p.created_at").
		From("problems p").
		Where("NOT EXISTS (SELECT 1 FROM cards c WHERE c.user_id = ? AND c.problem_id = p.id)", q.UserID)

	if len(q.Excluding) > 0 {
		builder = builder.Where(sq.NotEq{"p.id": q.Excluding})
	}
	if len(q.PreferPatterns) > 0 {
		builder = builder.OrderByClause("(p.patterns && ?::text[]) DESC", q.PreferPatterns)
	}

	return builder.OrderBy("p.id ASC").Limit(uint64(q.Limit)).ToSql()
}

// ListCandidates implements store.ProblemCatalog.ListCandidates
func (s *PostgresCatalogStore) ListCandidates(ctx context.Context, q store.CandidateQuery) ([]domain.Problem, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if q.Limit <= 0 {
		return []domain.Problem{}, nil
	}

	query, args, err := buildCandidateQuery(q)
	if err != nil {
		return nil, fmt.Errorf("failed to build candidate query: %w", err)
	}

	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list candidate problems",
			slog.String("error", err.Error()),
			slog.String("user_id", q.UserID.String()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	problems := make([]domain.Problem, 0, q.Limit)
	for rows.Next() {
		var (
			p          domain.Problem
			difficulty string
		)
		if err := rows.Scan(&p.ID, &p.Title, &p.Slug, &difficulty, textArray(&p.Patterns), &p.CreatedAt); err != nil {
			return nil, MapError(err)
		}
		p.Difficulty = domain.Difficulty(difficulty)
		problems = append(problems, p)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return problems, nil
}

// WeakestPatterns implements store.PatternSignal. A pattern's weakness is the
// mean ease factor of the user's reviewed cards carrying it; lower is weaker.
// Ties prefer more relapsed cards, then pattern name.
func (s *PostgresCatalogStore) WeakestPatterns(ctx context.Context, userID uuid.UUID, limit int) ([]string, error) {
	if limit <= 0 {
		return []string{}, nil
	}

	query := `
		SELECT pattern
		FROM (
			SELECT unnest(p.patterns) AS pattern, c.ease_factor, c.state
			FROM cards c
			JOIN problems p ON p.id = c.problem_id
			WHERE c.user_id = $1 AND c.state <> 'new'
		) reviewed
		GROUP BY pattern
		ORDER BY AVG(ease_factor) ASC,
			COUNT(*) FILTER (WHERE state = 'relapsed') DESC,
			pattern ASC
		LIMIT $2
	`

	ctx, cancel := s.opts.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	patterns := make([]string, 0, limit)
	for rows.Next() {
		var pattern string
		if err := rows.Scan(&pattern); err != nil {
			return nil, MapError(err)
		}
		patterns = append(patterns, pattern)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return patterns, nil
}
