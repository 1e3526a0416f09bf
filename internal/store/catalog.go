package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/recallcode-api/internal/domain"
)

// CandidateQuery selects problems a user has never been exposed to.
type CandidateQuery struct {
	UserID uuid.UUID
	// Excluding lists problem ids that must not be returned.
	Excluding []int64
	// PreferPatterns ranks problems tagged with any of these patterns first.
	// Within each group problems keep catalog order (ascending id).
	PreferPatterns []string
	Limit          int
}

// ProblemCatalog is the read-only view of the problem catalog.
type ProblemCatalog interface {
	// Exists reports whether a problem with the given id is in the catalog.
	Exists(ctx context.Context, problemID int64) (bool, error)

	// ListCandidates returns up to q.Limit problems the user has no card for.
	ListCandidates(ctx context.Context, q CandidateQuery) ([]domain.Problem, error)
}

// PatternSignal reports which problem patterns a user struggles with most.
type PatternSignal interface {
	// WeakestPatterns returns at most limit pattern names, weakest first.
	WeakestPatterns(ctx context.Context, userID uuid.UUID, limit int) ([]string, error)
}
