package retry_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/phrazzld/recallcode-api/internal/domain"
	"github.com/phrazzld/recallcode-api/internal/service/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fast = retry.Policy{MaxAttempts: 4, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

func TestDoRetriesTransientErrors(t *testing.T) {
	t.Parallel()

	for _, transient := range []error{domain.ErrConcurrentModification, domain.ErrStoreUnavailable} {
		calls := 0
		err := retry.Do(context.Background(), fast, func(context.Context) error {
			calls++
			if calls < 3 {
				return fmt.Errorf("attempt %d: %w", calls, transient)
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	t.Parallel()

	calls := 0
	err := retry.Do(context.Background(), fast, func(context.Context) error {
		calls++
		return domain.ErrNotInPlan
	})
	assert.ErrorIs(t, err, domain.ErrNotInPlan)
	assert.Equal(t, 1, calls)
}

func TestDoGivesUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	calls := 0
	err := retry.Do(context.Background(), fast, func(context.Context) error {
		calls++
		return domain.ErrConcurrentModification
	})
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)
	assert.Equal(t, fast.MaxAttempts, calls)
}

func TestDoSingleAttempt(t *testing.T) {
	t.Parallel()

	calls := 0
	err := retry.Do(context.Background(), retry.Policy{MaxAttempts: 1}, func(context.Context) error {
		calls++
		return domain.ErrStoreUnavailable
	})
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.Equal(t, 1, calls)
}

func TestDoKeepsLastErrorWhenContextEnds(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	slow := retry.Policy{MaxAttempts: 5, BaseDelay: time.Hour, MaxDelay: time.Hour}

	err := retry.Do(ctx, slow, func(context.Context) error {
		cancel()
		return domain.ErrStoreUnavailable
	})
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoValue(t *testing.T) {
	t.Parallel()

	calls := 0
	got, err := retry.DoValue(context.Background(), fast, func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, domain.ErrConcurrentModification
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)

	_, err = retry.DoValue(context.Background(), fast, func(context.Context) (string, error) {
		return "", errors.New("boom")
	})
	assert.EqualError(t, err, "boom")
}

func TestDefaultPolicy(t *testing.T) {
	p := retry.DefaultPolicy()
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Less(t, p.BaseDelay, p.MaxDelay)
}
