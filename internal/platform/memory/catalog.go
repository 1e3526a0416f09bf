package memory

import (
	"cmp"
	"context"
	"log/slog"
	"slices"

	"github.com/google/uuid"
	"github.com/phrazzld/recallcode-api/internal/domain"
	"github.com/phrazzld/recallcode-api/internal/store"
)

// Catalog implements store.ProblemCatalog and store.PatternSignal in memory.
type Catalog struct {
	db     *DB
	logger *slog.Logger
}

var (
	_ store.ProblemCatalog = (*Catalog)(nil)
	_ store.PatternSignal  = (*Catalog)(nil)
)

// Exists implements store.ProblemCatalog.Exists
func (c *Catalog) Exists(ctx context.Context, problemID int64) (bool, error) {
	_, ok := c.db.problems[problemID]
	return ok, nil
}

// ListCandidates implements store.ProblemCatalog.ListCandidates
func (c *Catalog) ListCandidates(ctx context.Context, q store.CandidateQuery) ([]domain.Problem, error) {
	if q.Limit <= 0 {
		return []domain.Problem{}, nil
	}

	skip := make(map[int64]struct{}, len(q.Excluding))
	for _, id := range q.Excluding {
		skip[id] = struct{}{}
	}
	for _, card := range c.db.cards.scan(func(card domain.Card) bool { return card.UserID == q.UserID }) {
		skip[card.ProblemID] = struct{}{}
	}

	var preferred, rest []domain.Problem
	for _, id := range c.db.order {
		if _, ok := skip[id]; ok {
			continue
		}
		p := c.db.problems[id]
		p.Patterns = slices.Clone(p.Patterns)
		if len(q.PreferPatterns) > 0 && p.MatchesAny(q.PreferPatterns) {
			preferred = append(preferred, p)
		} else {
			rest = append(rest, p)
		}
	}

	out := append(preferred, rest...)
	if len(out) > q.Limit {
		out = out[:q.Limit]
	}
	if out == nil {
		out = []domain.Problem{}
	}
	return out, nil
}

type patternScore struct {
	name     string
	easeSum  float64
	count    int
	relapsed int
}

func (p patternScore) mean() float64 {
	return p.easeSum / float64(p.count)
}

// WeakestPatterns implements store.PatternSignal. Weakness is the mean ease
// factor of reviewed cards tagged with the pattern; lower is weaker. Ties
// prefer more relapsed cards, then pattern name.
func (c *Catalog) WeakestPatterns(ctx context.Context, userID uuid.UUID, limit int) ([]string, error) {
	if limit <= 0 {
		return []string{}, nil
	}

	scores := make(map[string]*patternScore)
	reviewed := c.db.cards.scan(func(card domain.Card) bool {
		return card.UserID == userID && !card.IsNew()
	})
	for _, card := range reviewed {
		problem, ok := c.db.problems[card.ProblemID]
		if !ok {
			continue
		}
		for _, name := range problem.Patterns {
			s, ok := scores[name]
			if !ok {
				s = &patternScore{name: name}
				scores[name] = s
			}
			s.easeSum += card.EaseFactor
			s.count++
			if card.State == domain.CardStateRelapsed {
				s.relapsed++
			}
		}
	}

	ranked := make([]*patternScore, 0, len(scores))
	for _, s := range scores {
		ranked = append(ranked, s)
	}
	slices.SortFunc(ranked, func(a, b *patternScore) int {
		if c := cmp.Compare(a.mean(), b.mean()); c != 0 {
			return c
		}
		if c := cmp.Compare(b.relapsed, a.relapsed); c != 0 {
			return c
		}
		return cmp.Compare(a.name, b.name)
	})

	patterns := make([]string, 0, min(limit, len(ranked)))
	for _, s := range ranked {
		if len(patterns) == limit {
			break
		}
		patterns = append(patterns, s.name)
	}
	return patterns, nil
}
