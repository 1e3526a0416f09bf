package srs

import (
	"errors"
	"fmt"

	"github.com/phrazzld/recallcode-api/internal/domain"
)

// ErrInvalidParams is returned when a Params value cannot produce a valid schedule.
var ErrInvalidParams = errors.New("invalid SRS parameters")

// Params defines all configurable parameters for the SRS algorithm
type Params struct {
	// Ease factor limits. MaxEaseFactor of 0 means uncapped.
	InitialEaseFactor float64
	MinEaseFactor     float64
	MaxEaseFactor     float64

	// Relapse handling for ratings below the pass threshold
	RelapseEasePenalty  float64
	RelapseIntervalDays int

	// Fixed intervals for the first two successful reviews
	FirstIntervalDays  int
	SecondIntervalDays int

	// MaxIntervalDays caps every computed interval.
	MaxIntervalDays int

	// Coefficients of the ease update
	// EF' = EF + (EaseBase - (5-q) * (EaseLinear + (5-q) * EaseQuadratic))
	EaseBase      float64
	EaseLinear    float64
	EaseQuadratic float64
}

// ParamsConfig allows overriding the default parameters when creating a new Params instance.
// Zero values keep the default.
type ParamsConfig struct {
	InitialEaseFactor   float64
	MinEaseFactor       float64
	MaxEaseFactor       float64
	RelapseEasePenalty  float64
	RelapseIntervalDays int
	FirstIntervalDays   int
	SecondIntervalDays  int
	MaxIntervalDays     int
	EaseBase            float64
	EaseLinear          float64
	EaseQuadratic       float64
}

// NewDefaultParams creates a new Params instance with the classic SM-2 values
func NewDefaultParams() *Params {
	return &Params{
		InitialEaseFactor: domain.DefaultEaseFactor,
		MinEaseFactor:     domain.MinEaseFactor,
		MaxEaseFactor:     0,

		RelapseEasePenalty:  0.2,
		RelapseIntervalDays: 1,

		FirstIntervalDays:  1,
		SecondIntervalDays: 6,
		MaxIntervalDays:    domain.MaxIntervalDays,

		EaseBase:      0.1,
		EaseLinear:    0.08,
		EaseQuadratic: 0.02,
	}
}

// NewParams creates a new Params instance with custom configuration
func NewParams(config ParamsConfig) *Params {
	params := NewDefaultParams()

	if config.InitialEaseFactor > 0 {
		params.InitialEaseFactor = config.InitialEaseFactor
	}
	if config.MinEaseFactor > 0 {
		params.MinEaseFactor = config.MinEaseFactor
	}
	if config.MaxEaseFactor > 0 {
		params.MaxEaseFactor = config.MaxEaseFactor
	}
	if config.RelapseEasePenalty > 0 {
		params.RelapseEasePenalty = config.RelapseEasePenalty
	}
	if config.RelapseIntervalDays > 0 {
		params.RelapseIntervalDays = config.RelapseIntervalDays
	}
	if config.FirstIntervalDays > 0 {
		params.FirstIntervalDays = config.FirstIntervalDays
	}
	if config.SecondIntervalDays > 0 {
		params.SecondIntervalDays = config.SecondIntervalDays
	}
	if config.MaxIntervalDays > 0 {
		params.MaxIntervalDays = config.MaxIntervalDays
	}
	if config.EaseBase > 0 {
		params.EaseBase = config.EaseBase
	}
	if config.EaseLinear > 0 {
		params.EaseLinear = config.EaseLinear
	}
	if config.EaseQuadratic > 0 {
		params.EaseQuadratic = config.EaseQuadratic
	}

	return params
}

// Validate checks that the parameters keep the schedule well formed and
// storable: an ease floor of at least domain.MinEaseFactor, positive fixed
// intervals, and an interval cap no longer than domain.MaxIntervalDays.
func (p *Params) Validate() error {
	switch {
	case p == nil:
		return ErrInvalidParams
	case p.MinEaseFactor < domain.MinEaseFactor:
		return errors.Join(ErrInvalidParams, fmt.Errorf("min ease factor must be at least %.1f", domain.MinEaseFactor))
	case p.MaxEaseFactor != 0 && p.MaxEaseFactor < p.MinEaseFactor:
		return errors.Join(ErrInvalidParams, errors.New("max ease factor is below the minimum"))
	case p.InitialEaseFactor < p.MinEaseFactor:
		return errors.Join(ErrInvalidParams, errors.New("initial ease factor is below the minimum"))
	case p.RelapseIntervalDays < 1 || p.FirstIntervalDays < 1 || p.SecondIntervalDays < 1:
		return errors.Join(ErrInvalidParams, errors.New("fixed intervals must be at least one day"))
	case p.MaxIntervalDays < p.SecondIntervalDays || p.MaxIntervalDays < p.RelapseIntervalDays:
		return errors.Join(ErrInvalidParams, errors.New("max interval is shorter than a fixed interval"))
	case p.MaxIntervalDays > domain.MaxIntervalDays:
		return errors.Join(ErrInvalidParams, fmt.Errorf("max interval cannot exceed %d days", domain.MaxIntervalDays))
	case p.RelapseEasePenalty < 0:
		return errors.Join(ErrInvalidParams, errors.New("relapse penalty cannot be negative"))
	}
	return nil
}
