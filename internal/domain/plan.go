package domain

import (
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the wire format of a plan date.
const DateLayout = "2006-01-02"

// Plan validation errors.
var (
	ErrPlanUserIDEmpty      = errors.New("plan user ID cannot be empty")
	ErrPlanDateEmpty        = errors.New("plan date cannot be empty")
	ErrPlanSetsOverlap      = errors.New("plan new and review problems must be disjoint")
	ErrPlanCompletedOutside = errors.New("plan completed problems must be planned problems")
)

// DailyPlan is the snapshot of problems chosen for a user on one calendar day.
// NewProblems and SRSProblems never change after creation; only
// CompletedProblems grows.
type DailyPlan struct {
	UserID            uuid.UUID `json:"user_id"`
	Date              time.Time `json:"date"`
	NewProblems       []int64   `json:"new_problems"`
	SRSProblems       []int64   `json:"srs_problems"`
	CompletedProblems []int64   `json:"completed_problems"`
	IsCompleted       bool      `json:"is_completed"`
	Version           int64     `json:"version"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// CalendarDate truncates t to its calendar day in loc and returns that day
// as midnight UTC, which is how plan dates are keyed and stored.
func CalendarDate(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD plan date.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, NewValidationError("date", "must be formatted as YYYY-MM-DD", ErrValidation)
	}
	return d, nil
}

// NewDailyPlan builds a plan snapshot. Any new problem that also appears in
// srsProblems is dropped so the two sets stay disjoint. Duplicates within a set
// are removed while keeping first-seen order.
func NewDailyPlan(userID uuid.UUID, date time.Time, newProblems, srsProblems []int64, now time.Time) (*DailyPlan, error) {
	srs := dedupe(srsProblems)
	fresh := make([]int64, 0, len(newProblems))
	for _, id := range dedupe(newProblems) {
		if !slices.Contains(srs, id) {
			fresh = append(fresh, id)
		}
	}

	plan := &DailyPlan{
		UserID:            userID,
		Date:              date,
		NewProblems:       fresh,
		SRSProblems:       srs,
		CompletedProblems: []int64{},
		CreatedAt:         now.UTC(),
		UpdatedAt:         now.UTC(),
	}

	if err := plan.Validate(); err != nil {
		return nil, err
	}

	return plan, nil
}

// Validate checks identity and the cross-set invariants.
func (p *DailyPlan) Validate() error {
	if p.UserID == uuid.Nil {
		return ErrPlanUserIDEmpty
	}
	if p.Date.IsZero() {
		return ErrPlanDateEmpty
	}
	for _, id := range p.NewProblems {
		if slices.Contains(p.SRSProblems, id) {
			return ErrPlanSetsOverlap
		}
	}
	for _, id := range p.CompletedProblems {
		if !p.Contains(id) {
			return ErrPlanCompletedOutside
		}
	}
	return nil
}

// Contains reports whether problemID is part of the plan snapshot.
func (p *DailyPlan) Contains(problemID int64) bool {
	return slices.Contains(p.NewProblems, problemID) || slices.Contains(p.SRSProblems, problemID)
}

// IsDone reports whether problemID has been completed.
func (p *DailyPlan) IsDone(problemID int64) bool {
	return slices.Contains(p.CompletedProblems, problemID)
}

// Size is the number of planned problems.
func (p *DailyPlan) Size() int {
	return len(p.NewProblems) + len(p.SRSProblems)
}

// Complete records problemID as completed. It returns false when the problem
// was already completed, and ErrNotInPlan when it is not in the snapshot.
func (p *DailyPlan) Complete(problemID int64, now time.Time) (bool, error) {
	if !p.Contains(problemID) {
		return false, ErrNotInPlan
	}
	if p.IsDone(problemID) {
		return false, nil
	}

	p.CompletedProblems = append(p.CompletedProblems, problemID)
	p.IsCompleted = len(p.CompletedProblems) >= p.Size()
	p.UpdatedAt = now.UTC()
	return true, nil
}

// Clone returns a deep copy of the plan.
func (p DailyPlan) Clone() DailyPlan {
	out := p
	out.NewProblems = slices.Clone(p.NewProblems)
	out.SRSProblems = slices.Clone(p.SRSProblems)
	out.CompletedProblems = slices.Clone(p.CompletedProblems)
	if out.CompletedProblems == nil {
		out.CompletedProblems = []int64{}
	}
	return out
}

func dedupe(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
