// Package plan composes each user's daily plan and tracks its completion.
//
// A plan is a snapshot: the review and new problems are chosen once, on the
// first request of the day, and never change afterwards. Only the completed
// set grows.
package plan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/recallcode-api/internal/domain"
	"github.com/phrazzld/recallcode-api/internal/events"
	"github.com/phrazzld/recallcode-api/internal/platform/clock"
	"github.com/phrazzld/recallcode-api/internal/platform/logger"
	"github.com/phrazzld/recallcode-api/internal/service"
	"github.com/phrazzld/recallcode-api/internal/service/scheduler"
	"github.com/phrazzld/recallcode-api/internal/store"
)

const serviceName = "plan"

// Default plan sizes.
const (
	DefaultMaxReviewsPerDay = 3
	DefaultMaxNewPerDay     = 2
)

// Service composes and completes daily plans.
type Service interface {
	// GetOrCreateTodayPlan returns the user's plan for today in the configured
	// time zone, composing and storing it on first use. Concurrent first
	// calls all return the same stored plan.
	GetOrCreateTodayPlan(ctx context.Context, userID uuid.UUID) (domain.DailyPlan, error)

	// MarkCompleted adds problemID to today's completed set. It is idempotent
	// and returns domain.ErrNotInPlan, changing nothing, for a problem outside
	// the snapshot.
	MarkCompleted(ctx context.Context, userID uuid.UUID, problemID int64) (domain.DailyPlan, error)

	// GetPlan returns a previously composed plan or domain.ErrNotFound.
	GetPlan(ctx context.Context, userID uuid.UUID, date time.Time) (domain.DailyPlan, error)
}

// Config sizes plans and fixes the calendar they follow.
type Config struct {
	MaxReviewsPerDay int
	MaxNewPerDay     int
	// WeakPatterns is how many weak patterns steer new-problem selection.
	// Zero disables the preference.
	WeakPatterns int
	// Location decides where a day begins. Nil means UTC.
	Location *time.Location
}

// Composer implements Service and handles review events.
type Composer struct {
	plans     store.PlanStore
	scheduler scheduler.Service
	catalog   store.ProblemCatalog
	signal    store.PatternSignal
	clock     clock.Clock
	config    Config
	logger    *slog.Logger
}

var (
	_ Service             = (*Composer)(nil)
	_ events.EventHandler = (*Composer)(nil)
)

// NewService creates a Composer. signal may be nil, in which case new
// problems follow catalog order.
func NewService(
	plans store.PlanStore,
	sched scheduler.Service,
	catalog store.ProblemCatalog,
	signal store.PatternSignal,
	clk clock.Clock,
	config Config,
	logger *slog.Logger,
) *Composer {
	if plans == nil {
		panic("plans cannot be nil")
	}
	if sched == nil {
		panic("scheduler cannot be nil")
	}
	if catalog == nil {
		panic("catalog cannot be nil")
	}
	if clk == nil {
		clk = clock.System()
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Composer{
		plans:     plans,
		scheduler: sched,
		catalog:   catalog,
		signal:    signal,
		clock:     clk,
		config:    config,
		logger:    logger.With(slog.String("component", "plan_service")),
	}
}

// Today returns the current plan date.
func (c *Composer) Today() time.Time {
	return domain.CalendarDate(c.clock.Now(), c.config.Location)
}

// GetOrCreateTodayPlan implements Service.
func (c *Composer) GetOrCreateTodayPlan(ctx context.Context, userID uuid.UUID) (domain.DailyPlan, error) {
	log := logger.FromContextOrDefault(ctx, c.logger)
	now := c.clock.Now()
	today := domain.CalendarDate(now, c.config.Location)

	existing, err := c.plans.Get(ctx, userID, today)
	if err == nil {
		return *existing, nil
	}
	if !store.IsNotFoundError(err) {
		log.Error("failed to load today's plan",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return domain.DailyPlan{}, service.NewServiceError(serviceName, "get_or_create_today_plan", err)
	}

	composed, err := c.compose(ctx, userID, today, now)
	if err != nil {
		return domain.DailyPlan{}, service.NewServiceError(serviceName, "get_or_create_today_plan", err)
	}

	stored, created, err := c.plans.CreateIfAbsent(ctx, composed)
	if err != nil {
		log.Error("failed to store daily plan",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return domain.DailyPlan{}, service.NewServiceError(serviceName, "get_or_create_today_plan", err)
	}

	if created {
		log.Info("daily plan composed",
			slog.String("user_id", userID.String()),
			slog.String("date", today.Format(domain.DateLayout)),
			slog.Any("srs_problems", stored.SRSProblems),
			slog.Any("new_problems", stored.NewProblems))
	} else {
		log.Debug("daily plan created concurrently, using stored plan",
			slog.String("user_id", userID.String()))
	}
	return *stored, nil
}

// compose picks due reviews first, then unseen problems, preferring the
// user's weakest patterns.
func (c *Composer) compose(
	ctx context.Context,
	userID uuid.UUID,
	today time.Time,
	now time.Time,
) (*domain.DailyPlan, error) {
	log := logger.FromContextOrDefault(ctx, c.logger)

	srsIDs := []int64{}
	if c.config.MaxReviewsPerDay > 0 {
		due, err := c.scheduler.GetDueCards(ctx, userID, c.config.MaxReviewsPerDay)
		if err != nil {
			return nil, fmt.Errorf("failed to list due cards: %w", err)
		}
		for _, card := range due {
			srsIDs = append(srsIDs, card.ProblemID)
		}
	}

	newIDs := []int64{}
	if c.config.MaxNewPerDay > 0 {
		candidates, err := c.catalog.ListCandidates(ctx, store.CandidateQuery{
			UserID:         userID,
			Excluding:      srsIDs,
			PreferPatterns: c.weakPatterns(ctx, userID),
			Limit:          c.config.MaxNewPerDay,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list candidate problems: %w", err)
		}
		for _, p := range candidates {
			if !slices.Contains(srsIDs, p.ID) {
				newIDs = append(newIDs, p.ID)
			}
		}
	}

	log.Debug("composed plan candidates",
		slog.String("user_id", userID.String()),
		slog.Int("srs_count", len(srsIDs)),
		slog.Int("new_count", len(newIDs)))

	return domain.NewDailyPlan(userID, today, newIDs, srsIDs, now)
}

// weakPatterns consults the pattern signal. Failures only cost the
// preference, so they are logged and swallowed.
func (c *Composer) weakPatterns(ctx context.Context, userID uuid.UUID) []string {
	if c.signal == nil || c.config.WeakPatterns <= 0 {
		return nil
	}

	patterns, err := c.signal.WeakestPatterns(ctx, userID, c.config.WeakPatterns)
	if err != nil {
		logger.FromContextOrDefault(ctx, c.logger).Warn("weak pattern signal unavailable, using catalog order",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil
	}
	return patterns
}

// MarkCompleted implements Service.
func (c *Composer) MarkCompleted(ctx context.Context, userID uuid.UUID, problemID int64) (domain.DailyPlan, error) {
	today, err := c.GetOrCreateTodayPlan(ctx, userID)
	if err != nil {
		return domain.DailyPlan{}, err
	}
	if !today.Contains(problemID) {
		return domain.DailyPlan{}, domain.ErrNotInPlan
	}

	updated, err := c.complete(ctx, userID, today.Date, problemID)
	if err != nil {
		return domain.DailyPlan{}, service.NewServiceError(serviceName, "mark_completed", err)
	}
	return updated, nil
}

// complete appends problemID to the plan's completed set under a row lock.
func (c *Composer) complete(
	ctx context.Context,
	userID uuid.UUID,
	date time.Time,
	problemID int64,
) (domain.DailyPlan, error) {
	log := logger.FromContextOrDefault(ctx, c.logger)

	var updated domain.DailyPlan
	err := c.plans.RunInTx(ctx, func(ctx context.Context, plans store.PlanStore) error {
		p, err := plans.GetForUpdate(ctx, userID, date)
		if err != nil {
			return err
		}

		changed, err := p.Complete(problemID, c.clock.Now())
		if err != nil {
			return err
		}
		if changed {
			if err := plans.Update(ctx, p); err != nil {
				return err
			}
		}

		updated = *p
		return nil
	})
	if err != nil {
		return domain.DailyPlan{}, err
	}

	log.Info("plan problem completed",
		slog.String("user_id", userID.String()),
		slog.Int64("problem_id", problemID),
		slog.Int("completed", len(updated.CompletedProblems)),
		slog.Bool("plan_completed", updated.IsCompleted))
	return updated, nil
}

// GetPlan implements Service.
func (c *Composer) GetPlan(ctx context.Context, userID uuid.UUID, date time.Time) (domain.DailyPlan, error) {
	p, err := c.plans.Get(ctx, userID, domain.CalendarDate(date, time.UTC))
	if err != nil {
		return domain.DailyPlan{}, service.NewServiceError(serviceName, "get_plan", err)
	}
	return *p, nil
}

// HandleEvent implements events.EventHandler. A recorded review completes
// the problem in the plan for the day it was reviewed. Reviews of problems
// outside that plan, or on a day without a plan, are ignored.
func (c *Composer) HandleEvent(ctx context.Context, event *events.Event) error {
	if event.Type != events.TypeReviewRecorded {
		return nil
	}
	log := logger.FromContextOrDefault(ctx, c.logger)

	var review events.ReviewRecorded
	if err := event.UnmarshalPayload(&review); err != nil {
		return fmt.Errorf("failed to decode %s event: %w", event.Type, err)
	}

	reviewedAt := c.clock.Now()
	if review.Card.LastReviewedAt != nil {
		reviewedAt = *review.Card.LastReviewedAt
	}
	date := domain.CalendarDate(reviewedAt, c.config.Location)

	p, err := c.plans.Get(ctx, review.UserID, date)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil
		}
		return service.NewServiceError(serviceName, "handle_review", err)
	}
	if !p.Contains(review.ProblemID) || p.IsDone(review.ProblemID) {
		return nil
	}

	if _, err := c.complete(ctx, review.UserID, date, review.ProblemID); err != nil {
		if errors.Is(err, domain.ErrNotInPlan) {
			return nil
		}
		log.Warn("failed to complete reviewed problem",
			slog.String("error", err.Error()),
			slog.String("user_id", review.UserID.String()),
			slog.Int64("problem_id", review.ProblemID))
		return service.NewServiceError(serviceName, "handle_review", err)
	}
	return nil
}
