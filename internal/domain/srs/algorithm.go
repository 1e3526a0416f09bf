package srs

import (
	"math"
	"time"

	"github.com/phrazzld/recallcode-api/internal/domain"
)

// calculateNewEaseFactor determines the ease factor after a rating.
//
// Failed recalls subtract RelapseEasePenalty. Passing recalls apply the SM-2
// update, which grows ease for 5, holds it for 4 and shrinks it for 3.
// The result never drops below MinEaseFactor and, when MaxEaseFactor is set,
// never exceeds it.
func calculateNewEaseFactor(currentEF float64, rating domain.Rating, params *Params) float64 {
	var newEF float64
	if !rating.Passed() {
		newEF = currentEF - params.RelapseEasePenalty
	} else {
		miss := float64(domain.RatingMax - rating)
		newEF = currentEF + (params.EaseBase - miss*(params.EaseLinear+miss*params.EaseQuadratic))
	}

	if newEF < params.MinEaseFactor {
		newEF = params.MinEaseFactor
	}
	if params.MaxEaseFactor > 0 && newEF > params.MaxEaseFactor {
		newEF = params.MaxEaseFactor
	}

	return newEF
}

// calculateNewInterval determines the next gap in days.
//
// A failed recall restarts the short cycle no matter how long the previous
// interval was. The first two successes use fixed intervals; after that the
// previous interval is multiplied by the card's current ease factor (the
// value before this rating's adjustment), rounded and capped at
// MaxIntervalDays. The cap is applied before converting to int.
func calculateNewInterval(
	currentInterval int,
	newRepetitions int,
	easeFactor float64,
	rating domain.Rating,
	params *Params,
) int {
	if !rating.Passed() {
		return params.RelapseIntervalDays
	}

	switch newRepetitions {
	case 1:
		return params.FirstIntervalDays
	case 2:
		return params.SecondIntervalDays
	}

	maxDays := float64(params.MaxIntervalDays)
	if maxDays <= 0 {
		maxDays = domain.MaxIntervalDays
	}
	scaled := math.Round(float64(currentInterval) * easeFactor)
	switch {
	case math.IsNaN(scaled) || scaled < 1:
		return 1
	case scaled > maxDays:
		return int(maxDays)
	}
	return int(scaled)
}

// calculateNewState maps the outcome onto the card lifecycle.
func calculateNewState(newRepetitions int, rating domain.Rating) domain.CardState {
	switch {
	case !rating.Passed():
		return domain.CardStateRelapsed
	case newRepetitions <= 2:
		return domain.CardStateLearning
	default:
		return domain.CardStateReview
	}
}

// calculateNextState returns the card that results from rating card at now.
//
// The input is never modified; a fresh copy carries the new values. Identity,
// creation time and Version pass through unchanged because version bumps are
// the store's concern.
func calculateNextState(card domain.Card, rating domain.Rating, now time.Time, params *Params) domain.Card {
	next := card.Clone()

	if rating.Passed() {
		next.Repetitions = card.Repetitions + 1
	} else {
		next.Repetitions = 0
	}

	next.IntervalDays = calculateNewInterval(card.IntervalDays, next.Repetitions, card.EaseFactor, rating, params)
	next.EaseFactor = calculateNewEaseFactor(card.EaseFactor, rating, params)
	next.State = calculateNewState(next.Repetitions, rating)

	due := now.AddDate(0, 0, next.IntervalDays)
	next.DueAt = &due

	r := rating
	next.LastRating = &r
	reviewed := now
	next.LastReviewedAt = &reviewed
	next.TotalReviews = card.TotalReviews + 1
	next.UpdatedAt = now

	return next
}

// NextState applies rating to card using params and returns the new card.
// It is pure and deterministic: identical inputs always yield identical output.
// Ratings outside 1..5 are rejected with domain.ErrInvalidRating.
func NextState(card domain.Card, rating domain.Rating, now time.Time, params *Params) (domain.Card, error) {
	if !rating.Valid() {
		return domain.Card{}, domain.ErrInvalidRating
	}
	if params == nil {
		params = NewDefaultParams()
	}
	return calculateNextState(card, rating, now, params), nil
}
