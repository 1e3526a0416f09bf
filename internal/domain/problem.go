package domain

import "time"

// Difficulty is the catalog difficulty of a problem.
type Difficulty string

// Known difficulties.
const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Problem is a read-only catalog entry. The scheduler only needs its ID;
// the remaining fields are used for candidate selection.
type Problem struct {
	ID         int64      `json:"id"`
	Title      string     `json:"title"`
	Slug       string     `json:"slug"`
	Difficulty Difficulty `json:"difficulty"`
	Patterns   []string   `json:"patterns"`
	CreatedAt  time.Time  `json:"created_at"`
}

// MatchesAny reports whether the problem is tagged with any of patterns.
func (p *Problem) MatchesAny(patterns []string) bool {
	for _, want := range patterns {
		for _, have := range p.Patterns {
			if want == have {
				return true
			}
		}
	}
	return false
}
