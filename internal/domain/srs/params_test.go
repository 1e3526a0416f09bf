package srs

import (
	"errors"
	"testing"
)

func TestNewDefaultParams(t *testing.T) {
	t.Parallel()
	params := NewDefaultParams()

	if params.MinEaseFactor != 1.3 {
		t.Errorf("Expected MinEaseFactor 1.3, got %v", params.MinEaseFactor)
	}
	if params.InitialEaseFactor != 2.5 {
		t.Errorf("Expected InitialEaseFactor 2.5, got %v", params.InitialEaseFactor)
	}
	if params.FirstIntervalDays != 1 || params.SecondIntervalDays != 6 {
		t.Errorf("Expected fixed intervals 1 and 6, got %d and %d",
			params.FirstIntervalDays, params.SecondIntervalDays)
	}
	if params.RelapseIntervalDays != 1 || params.RelapseEasePenalty != 0.2 {
		t.Errorf("Unexpected relapse settings: %d days, %v penalty",
			params.RelapseIntervalDays, params.RelapseEasePenalty)
	}
	if err := params.Validate(); err != nil {
		t.Errorf("Default params should validate, got %v", err)
	}
}

func TestNewParamsOverrides(t *testing.T) {
	t.Parallel()
	params := NewParams(ParamsConfig{
		MinEaseFactor:      1.5,
		SecondIntervalDays: 4,
		EaseQuadratic:      0.03,
	})

	if params.MinEaseFactor != 1.5 {
		t.Errorf("Expected MinEaseFactor 1.5, got %v", params.MinEaseFactor)
	}
	if params.SecondIntervalDays != 4 {
		t.Errorf("Expected SecondIntervalDays 4, got %d", params.SecondIntervalDays)
	}
	if params.MaxIntervalDays != 36500 {
		t.Errorf("Expected default MaxIntervalDays 36500, got %d", params.MaxIntervalDays)
	}
	if params.EaseQuadratic != 0.03 {
		t.Errorf("Expected EaseQuadratic 0.03, got %v", params.EaseQuadratic)
	}
	// Untouched values keep their defaults
	if params.FirstIntervalDays != 1 {
		t.Errorf("Expected FirstIntervalDays 1, got %d", params.FirstIntervalDays)
	}
}

func TestParamsValidate(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name   string
		mutate func(p *Params)
	}{
		{name: "floor at 1.0", mutate: func(p *Params) { p.MinEaseFactor = 1.0 }},
		{name: "floor below stored minimum", mutate: func(p *Params) {
			p.MinEaseFactor = 1.2
			p.InitialEaseFactor = 2.5
		}},
		{name: "max interval below second interval", mutate: func(p *Params) { p.MaxIntervalDays = 5 }},
		{name: "max interval beyond storable range", mutate: func(p *Params) { p.MaxIntervalDays = 100000 }},
		{name: "cap below floor", mutate: func(p *Params) { p.MaxEaseFactor = 1.2 }},
		{name: "initial below floor", mutate: func(p *Params) { p.InitialEaseFactor = 1.2 }},
		{name: "zero first interval", mutate: func(p *Params) { p.FirstIntervalDays = 0 }},
		{name: "negative penalty", mutate: func(p *Params) { p.RelapseEasePenalty = -0.1 }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			params := NewDefaultParams()
			tc.mutate(params)
			if err := params.Validate(); !errors.Is(err, ErrInvalidParams) {
				t.Errorf("Expected ErrInvalidParams, got %v", err)
			}
		})
	}

	var nilParams *Params
	if err := nilParams.Validate(); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("Expected ErrInvalidParams for nil params, got %v", err)
	}
}
