package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/recallcode-api/internal/domain"
	"github.com/phrazzld/recallcode-api/internal/service/retry"
)

// Common errors
var (
	ErrNilPlanGenerator = errors.New("plan generator cannot be nil")
	ErrEmptyUserID      = errors.New("user ID cannot be empty")
)

// PlanGenerator composes today's plan. It is satisfied by plan.Service.
type PlanGenerator interface {
	GetOrCreateTodayPlan(ctx context.Context, userID uuid.UUID) (domain.DailyPlan, error)
}

type planGenerationPayload struct {
	UserID uuid.UUID `json:"user_id"`
}

// PlanGenerationTask makes sure one user's plan for today exists. Running it
// for a user who already has a plan is a read.
type PlanGenerationTask struct {
	id     uuid.UUID
	userID uuid.UUID
	plans  PlanGenerator
	policy retry.Policy
	logger *slog.Logger
}

var _ Task = (*PlanGenerationTask)(nil)

// NewPlanGenerationTask creates a task for userID.
func NewPlanGenerationTask(
	userID uuid.UUID,
	plans PlanGenerator,
	policy retry.Policy,
	logger *slog.Logger,
) (*PlanGenerationTask, error) {
	if userID == uuid.Nil {
		return nil, ErrEmptyUserID
	}
	if plans == nil {
		return nil, ErrNilPlanGenerator
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PlanGenerationTask{
		id:     uuid.New(),
		userID: userID,
		plans:  plans,
		policy: policy,
		logger: logger,
	}, nil
}

// ID implements Task.
func (t *PlanGenerationTask) ID() uuid.UUID { return t.id }

// Type implements Task.
func (t *PlanGenerationTask) Type() string { return TaskTypePlanGeneration }

// UserID is the user whose plan is generated.
func (t *PlanGenerationTask) UserID() uuid.UUID { return t.userID }

// Payload implements Task.
func (t *PlanGenerationTask) Payload() []byte {
	payload, err := json.Marshal(planGenerationPayload{UserID: t.userID})
	if err != nil {
		t.logger.Error("failed to marshal task payload", slog.String("error", err.Error()))
		return nil
	}
	return payload
}

// Execute implements Task. Conflicts with a concurrent request creating the
// same plan are retried under the task's policy.
func (t *PlanGenerationTask) Execute(ctx context.Context) error {
	p, err := retry.DoValue(ctx, t.policy, func(ctx context.Context) (domain.DailyPlan, error) {
		return t.plans.GetOrCreateTodayPlan(ctx, t.userID)
	})
	if err != nil {
		return fmt.Errorf("failed to generate plan for user %s: %w", t.userID, err)
	}

	t.logger.Debug("plan ready",
		slog.String("user_id", t.userID.String()),
		slog.String("date", p.Date.Format(domain.DateLayout)),
		slog.Int("size", p.Size()))
	return nil
}
