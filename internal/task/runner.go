package task

import (
	"context"
	"log/slog"
	"time"

	"github.com/phrazzld/recallcode-api/internal/config"
	"github.com/phrazzld/recallcode-api/internal/platform/clock"
	"github.com/phrazzld/recallcode-api/internal/service/retry"
	"golang.org/x/sync/errgroup"
)

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// WorkerCount determines how many concurrent workers process tasks
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory task queue
	QueueSize int

	// WarmInterval is the time between warm-up sweeps.
	WarmInterval time.Duration

	// ActiveWindow is how far back a user must have been active to be warmed.
	ActiveWindow time.Duration

	Retry retry.Policy
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		WorkerCount:  2,
		QueueSize:    100,
		WarmInterval: time.Hour,
		ActiveWindow: 7 * 24 * time.Hour,
		Retry:        retry.DefaultPolicy(),
	}
}

// TaskRunnerConfigFrom maps the tasks and retry configuration sections.
func TaskRunnerConfigFrom(tasks config.TasksConfig, rc config.RetryConfig) TaskRunnerConfig {
	return TaskRunnerConfig{
		WorkerCount:  tasks.WorkerCount,
		QueueSize:    tasks.QueueSize,
		WarmInterval: tasks.WarmInterval,
		ActiveWindow: tasks.ActiveWindow,
		Retry: retry.Policy{
			MaxAttempts: rc.MaxAttempts,
			BaseDelay:   rc.BaseDelay,
			MaxDelay:    rc.MaxDelay,
		},
	}
}

// TaskRunner owns the warm-up queue, its workers and the sweep loop.
type TaskRunner struct {
	queue  *TaskQueue
	pool   *WorkerPool
	warmer *Warmer
	logger *slog.Logger

	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewTaskRunner wires a Warmer and a WorkerPool around one queue.
func NewTaskRunner(
	users ActiveUserLister,
	plans PlanGenerator,
	clk clock.Clock,
	config TaskRunnerConfig,
	logger *slog.Logger,
) *TaskRunner {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "task_runner"))

	queue := NewTaskQueue(config.QueueSize, logger)
	pool := NewWorkerPool(queue, WorkerPoolConfig{WorkerCount: config.WorkerCount}, logger)
	warmer := NewWarmer(users, plans, queue, clk, WarmerConfig{
		Interval:     config.WarmInterval,
		ActiveWindow: config.ActiveWindow,
		Retry:        config.Retry,
	}, logger)

	return &TaskRunner{
		queue:  queue,
		pool:   pool,
		warmer: warmer,
		logger: logger,
	}
}

// Start runs the workers and the sweep loop in the background.
func (r *TaskRunner) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	r.group = g

	r.pool.Start(gctx)
	g.Go(func() error {
		r.pool.Wait()
		return nil
	})
	g.Go(func() error {
		return r.warmer.Run(gctx)
	})

	r.logger.Info("task runner started")
}

// Stop ends the sweep loop, closes the queue and waits for the workers.
// Tasks still queued are dropped; they are recreated by the next sweep.
func (r *TaskRunner) Stop() error {
	if r.cancel == nil {
		return nil
	}
	r.cancel()
	err := r.group.Wait()
	r.queue.Close()
	r.logger.Info("task runner stopped")
	return err
}
