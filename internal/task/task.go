package task

import (
	"context"

	"github.com/google/uuid"
)

// TaskTypePlanGeneration composes a user's plan for today.
const TaskTypePlanGeneration = "plan_generation"

// Task is one unit of background work. Execute must be safe to run again
// after a failure; the next sweep re-enqueues anything that did not finish.
type Task interface {
	ID() uuid.UUID
	Type() string
	// Payload is the JSON form of the task's input, used for logging.
	Payload() []byte
	Execute(ctx context.Context) error
}

// TaskSource hands queued tasks to workers. The channel closes when the
// queue is closed.
type TaskSource interface {
	GetChannel() <-chan Task
}

// TaskSink accepts tasks without blocking.
type TaskSink interface {
	// Enqueue returns ErrQueueFull or ErrQueueClosed when task is refused.
	Enqueue(task Task) error
	Close()
}
