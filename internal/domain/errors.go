// Package domain defines the core business entities and errors.
package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every layer. Callers classify failures with
// errors.Is; stores and services wrap these with additional context.
var (
	// ErrInvalidRating is returned when a recall rating is outside 1..5.
	// It is a caller error and must not be retried.
	ErrInvalidRating = errors.New("rating must be an integer between 1 and 5")

	// ErrNotFound is returned when a referenced problem, card or plan does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNotInPlan is returned when completion is marked for a problem outside
	// today's plan snapshot.
	ErrNotInPlan = errors.New("problem is not part of today's plan")

	// ErrStoreUnavailable is returned for transient storage failures.
	// The operation was not applied and is safe to retry with backoff.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrConcurrentModification is returned when an optimistic version check
	// fails. The whole operation should be retried against fresh state.
	ErrConcurrentModification = errors.New("concurrent modification")

	// ErrValidation is returned when a domain entity fails validation.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidLimit is returned when a list limit is not positive.
	ErrInvalidLimit = fmt.Errorf("%w: limit must be positive", ErrValidation)

	// ErrUnauthorized is returned when no authenticated user is present.
	ErrUnauthorized = errors.New("unauthorized operation")
)

// ValidationError describes which field failed validation and why.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// Unwrap returns the wrapped sentinel, normally ErrValidation.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a ValidationError wrapping err.
// If err is nil, ErrValidation is used.
func NewValidationError(field, message string, err error) *ValidationError {
	if err == nil {
		err = ErrValidation
	}
	return &ValidationError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}

// IsRetryable reports whether err is a transient failure that a caller may
// retry by re-running the whole operation.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrConcurrentModification)
}
