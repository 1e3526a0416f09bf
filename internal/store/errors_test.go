package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/phrazzld/recallcode-api/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestIsNotFoundError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil error", err: nil, expected: false},
		{name: "generic error", err: errors.New("some error"), expected: false},
		{name: "domain ErrNotFound", err: domain.ErrNotFound, expected: true},
		{name: "ErrCardNotFound", err: ErrCardNotFound, expected: true},
		{name: "ErrPlanNotFound", err: ErrPlanNotFound, expected: true},
		{name: "wrapped ErrProblemNotFound", err: fmt.Errorf("lookup: %w", ErrProblemNotFound), expected: true},
		{name: "duplicate", err: ErrDuplicate, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotFoundError(tt.err); got != tt.expected {
				t.Errorf("IsNotFoundError() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestIsDuplicateError(t *testing.T) {
	assert.True(t, IsDuplicateError(ErrDuplicate))
	assert.True(t, IsDuplicateError(fmt.Errorf("create: %w", ErrDuplicate)))
	assert.False(t, IsDuplicateError(nil))
	assert.False(t, IsDuplicateError(ErrCardNotFound))
}

func TestStoreError(t *testing.T) {
	cause := errors.New("connection reset")

	err := NewStoreError("card", "update", "write failed", cause)
	assert.Equal(t, "update operation on card failed: write failed: connection reset", err.Error())
	assert.ErrorIs(t, err, cause)

	bare := NewStoreError("daily_plan", "create", "invalid", nil)
	assert.Equal(t, "create operation on daily_plan failed: invalid", bare.Error())
	assert.Nil(t, errors.Unwrap(bare))
}
