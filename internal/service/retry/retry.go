// Package retry reruns operations that failed with a transient store error.
//
// Only domain.ErrConcurrentModification and domain.ErrStoreUnavailable are
// retried. Each attempt reruns the whole operation against fresh state, so
// the operation must be safe to repeat.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/phrazzld/recallcode-api/internal/domain"
	"github.com/phrazzld/recallcode-api/internal/platform/logger"
	goretry "github.com/sethvargo/go-retry"
)

// Policy bounds how often and how slowly an operation is retried.
type Policy struct {
	// MaxAttempts counts the first call. Values below 1 mean a single attempt.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy matches the configuration defaults.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   50 * time.Millisecond,
		MaxDelay:    time.Second,
	}
}

func (p Policy) backoff() goretry.Backoff {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Millisecond
	}

	b := goretry.NewExponential(base)
	b = goretry.WithJitterPercent(20, b)
	if p.MaxDelay > 0 {
		b = goretry.WithCappedDuration(p.MaxDelay, b)
	}

	retries := 0
	if p.MaxAttempts > 1 {
		retries = p.MaxAttempts - 1
	}
	return goretry.WithMaxRetries(uint64(retries), b)
}

// Do calls fn until it succeeds, fails with a non-retryable error, or the
// policy is exhausted. The last error from fn is returned. If ctx ends while
// waiting between attempts, the last error is returned joined with ctx.Err().
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	log := logger.FromContext(ctx)

	var (
		lastErr error
		attempt int
	)
	err := goretry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		attempt++
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !domain.IsRetryable(lastErr) {
			return lastErr
		}
		log.Debug("retrying transient failure",
			slog.Int("attempt", attempt),
			slog.String("error", lastErr.Error()))
		return goretry.RetryableError(lastErr)
	})

	if err != nil && lastErr != nil && !errors.Is(err, lastErr) {
		return errors.Join(lastErr, err)
	}
	return err
}

// DoValue is Do for operations that return a value.
func DoValue[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := Do(ctx, p, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}
