package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/recallcode-api/internal/platform/clock"
	"github.com/phrazzld/recallcode-api/internal/service/retry"
)

// ActiveUserLister finds users worth warming. It is satisfied by
// store.PlanStore.
type ActiveUserLister interface {
	ListActiveUsers(ctx context.Context, since time.Time) ([]uuid.UUID, error)
}

// WarmerConfig controls how often and for whom plans are pre-generated.
type WarmerConfig struct {
	Interval     time.Duration
	ActiveWindow time.Duration
	Retry        retry.Policy
}

// Warmer enqueues a PlanGenerationTask for each recently active user.
type Warmer struct {
	users  ActiveUserLister
	plans  PlanGenerator
	queue  TaskSink
	clock  clock.Clock
	config WarmerConfig
	logger *slog.Logger
}

// NewWarmer creates a Warmer.
func NewWarmer(
	users ActiveUserLister,
	plans PlanGenerator,
	queue TaskSink,
	clk clock.Clock,
	config WarmerConfig,
	logger *slog.Logger,
) *Warmer {
	if users == nil {
		panic("users cannot be nil")
	}
	if plans == nil {
		panic("plans cannot be nil")
	}
	if queue == nil {
		panic("queue cannot be nil")
	}
	if clk == nil {
		clk = clock.System()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Warmer{
		users:  users,
		plans:  plans,
		queue:  queue,
		clock:  clk,
		config: config,
		logger: logger.With(slog.String("component", "plan_warmer")),
	}
}

// WarmOnce enqueues one task per user active within the window and returns
// how many were accepted. A full queue ends the sweep early; the skipped
// users are picked up next tick or on their first request.
func (w *Warmer) WarmOnce(ctx context.Context) (int, error) {
	since := w.clock.Now().Add(-w.config.ActiveWindow)
	users, err := w.users.ListActiveUsers(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("failed to list active users: %w", err)
	}

	enqueued := 0
	for _, userID := range users {
		t, err := NewPlanGenerationTask(userID, w.plans, w.config.Retry, w.logger)
		if err != nil {
			return enqueued, err
		}
		if err := w.queue.Enqueue(t); err != nil {
			if errors.Is(err, ErrQueueFull) {
				w.logger.Warn("task queue full, deferring remaining users",
					slog.Int("enqueued", enqueued),
					slog.Int("skipped", len(users)-enqueued))
				return enqueued, nil
			}
			return enqueued, err
		}
		enqueued++
	}

	w.logger.Info("plan warm-up sweep queued",
		slog.Int("active_users", len(users)),
		slog.Int("enqueued", enqueued))
	return enqueued, nil
}

// Run sweeps immediately and then every Interval until ctx ends. Sweep
// failures are logged; only ErrQueueClosed stops the loop.
func (w *Warmer) Run(ctx context.Context) error {
	interval := w.config.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := w.WarmOnce(ctx); err != nil {
			if errors.Is(err, ErrQueueClosed) {
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Error("plan warm-up sweep failed", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
