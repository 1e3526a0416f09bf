// Package memory provides in-process implementations of the store interfaces.
//
// The stores share one DB. Transactions take per-row locks as rows are touched
// and hold them until the transaction ends, mirroring SELECT ... FOR UPDATE.
// Writes are buffered and applied atomically at commit. Every write carries
// an optimistic version check. The backend is used for local development and
// for exercising the services under concurrency without PostgreSQL.
package memory

import (
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/recallcode-api/internal/domain"
)

type cardKey struct {
	userID    uuid.UUID
	problemID int64
}

type planKey struct {
	userID uuid.UUID
	date   string
}

func keyOfCard(c domain.Card) cardKey {
	return cardKey{userID: c.UserID, problemID: c.ProblemID}
}

func keyOfPlan(p domain.DailyPlan) planKey {
	return planKey{userID: p.UserID, date: p.Date.Format(domain.DateLayout)}
}

// DB is the shared state behind the in-memory stores.
type DB struct {
	cards    *table[cardKey, domain.Card]
	plans    *table[planKey, domain.DailyPlan]
	streaks  *table[uuid.UUID, domain.Streak]
	problems map[int64]domain.Problem
	order    []int64
	logger   *slog.Logger
}

// NewDB creates an empty database whose read-only catalog holds problems.
// Problems are ordered by ID; a zero CreatedAt is left as is.
func NewDB(problems []domain.Problem, logger *slog.Logger) *DB {
	if logger == nil {
		logger = slog.Default()
	}

	db := &DB{
		cards: newTable[cardKey, domain.Card](
			func(c domain.Card) domain.Card { return c.Clone() },
			func(c domain.Card) int64 { return c.Version },
		),
		plans: newTable[planKey, domain.DailyPlan](
			func(p domain.DailyPlan) domain.DailyPlan { return p.Clone() },
			func(p domain.DailyPlan) int64 { return p.Version },
		),
		streaks: newTable[uuid.UUID, domain.Streak](
			func(s domain.Streak) domain.Streak { return s },
			func(s domain.Streak) int64 { return s.Version },
		),
		problems: make(map[int64]domain.Problem, len(problems)),
		logger:   logger,
	}

	for _, p := range problems {
		p.Patterns = slices.Clone(p.Patterns)
		db.problems[p.ID] = p
	}
	for id := range db.problems {
		db.order = append(db.order, id)
	}
	slices.Sort(db.order)

	return db
}

// CardStore returns a card store over db.
func (db *DB) CardStore() *CardStore {
	return &CardStore{db: db, logger: db.logger.With(slog.String("component", "card_store"))}
}

// PlanStore returns a plan store over db.
func (db *DB) PlanStore() *PlanStore {
	return &PlanStore{db: db, logger: db.logger.With(slog.String("component", "plan_store"))}
}

// StreakStore returns a streak store over db.
func (db *DB) StreakStore() *StreakStore {
	return &StreakStore{db: db, logger: db.logger.With(slog.String("component", "streak_store"))}
}

// Catalog returns the problem catalog and pattern signal over db.
func (db *DB) Catalog() *Catalog {
	return &Catalog{db: db, logger: db.logger.With(slog.String("component", "catalog_store"))}
}

// SeedProblems is the starter catalog used when running without PostgreSQL.
// It matches the rows seeded by the SQL migrations.
func SeedProblems(now time.Time) []domain.Problem {
	rows := []struct {
		title, slug string
		difficulty  domain.Difficulty
		patterns    []string
	}{
		{"Two Sum", "two-sum", domain.DifficultyEasy, []string{"Hash Map"}},
		{"Valid Palindrome", "valid-palindrome", domain.DifficultyEasy, []string{"Two Pointers"}},
		{"Best Time to Buy and Sell Stock", "best-time-to-buy-and-sell-stock", domain.DifficultyEasy, []string{"Sliding Window"}},
		{"Container With Most Water", "container-with-most-water", domain.DifficultyMedium, []string{"Two Pointers", "Greedy"}},
		{"Longest Substring Without Repeating Characters", "longest-substring-without-repeating-characters", domain.DifficultyMedium, []string{"Sliding Window", "Hash Map"}},
		{"Number of Islands", "number-of-islands", domain.DifficultyMedium, []string{"Graph", "BFS", "DFS"}},
		{"Course Schedule", "course-schedule", domain.DifficultyMedium, []string{"Graph", "Topological Sort"}},
		{"Coin Change", "coin-change", domain.DifficultyMedium, []string{"Dynamic Programming"}},
		{"Merge k Sorted Lists", "merge-k-sorted-lists", domain.DifficultyHard, []string{"Heap", "Linked List"}},
		{"Trapping Rain Water", "trapping-rain-water", domain.DifficultyHard, []string{"Two Pointers", "Stack"}},
	}

	problems := make([]domain.Problem, 0, len(rows))
	for i, r := range rows {
		problems = append(problems, domain.Problem{
			ID:         int64(i + 1),
			Title:      r.title,
			Slug:       r.slug,
			Difficulty: r.difficulty,
			Patterns:   r.patterns,
			CreatedAt:  now.UTC(),
		})
	}
	return problems
}
