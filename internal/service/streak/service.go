// Package streak tracks how many consecutive days each user has reviewed.
//
// The tracker listens for recorded reviews. The first review of a calendar
// day extends or restarts the streak; later reviews that day change nothing.
package streak

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/recallcode-api/internal/domain"
	"github.com/phrazzld/recallcode-api/internal/events"
	"github.com/phrazzld/recallcode-api/internal/platform/clock"
	"github.com/phrazzld/recallcode-api/internal/platform/logger"
	"github.com/phrazzld/recallcode-api/internal/service"
	"github.com/phrazzld/recallcode-api/internal/service/retry"
	"github.com/phrazzld/recallcode-api/internal/store"
)

const serviceName = "streak"

// Service reads and advances review streaks.
type Service interface {
	// GetStreak returns the user's stored streak. A user who never reviewed
	// gets an empty streak, not an error.
	GetStreak(ctx context.Context, userID uuid.UUID) (domain.Streak, error)

	// RecordReview counts a review made at reviewedAt.
	RecordReview(ctx context.Context, userID uuid.UUID, reviewedAt time.Time) (domain.Streak, error)

	// Today returns the current calendar date.
	Today() time.Time
}

// Config fixes the calendar streaks follow.
type Config struct {
	// Location decides where a day begins. Nil means UTC.
	Location *time.Location
	// Retry bounds how often a version conflict is retried.
	Retry retry.Policy
}

// Tracker implements Service and handles review events.
type Tracker struct {
	streaks store.StreakStore
	clock   clock.Clock
	config  Config
	logger  *slog.Logger
}

var (
	_ Service             = (*Tracker)(nil)
	_ events.EventHandler = (*Tracker)(nil)
)

// NewService creates a Tracker.
func NewService(streaks store.StreakStore, clk clock.Clock, config Config, logger *slog.Logger) *Tracker {
	if streaks == nil {
		panic("streaks cannot be nil")
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
	return &Tracker{
		streaks: streaks,
		clock:   clk,
		config:  config,
		logger:  logger.With(slog.String("component", "streak_service")),
	}
}

// Today implements Service.
func (t *Tracker) Today() time.Time {
	return domain.CalendarDate(t.clock.Now(), t.config.Location)
}

// GetStreak implements Service.
func (t *Tracker) GetStreak(ctx context.Context, userID uuid.UUID) (domain.Streak, error) {
	s, err := t.streaks.Get(ctx, userID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return domain.Streak{UserID: userID}, nil
		}
		return domain.Streak{}, service.NewServiceError(serviceName, "get_streak", err)
	}
	return *s, nil
}

// RecordReview implements Service. Concurrent first reviews resolve through
// CreateIfAbsent and version conflicts rerun the whole read-modify-write.
func (t *Tracker) RecordReview(ctx context.Context, userID uuid.UUID, reviewedAt time.Time) (domain.Streak, error) {
	day := domain.CalendarDate(reviewedAt, t.config.Location)

	s, err := retry.DoValue(ctx, t.config.Retry, func(ctx context.Context) (domain.Streak, error) {
		return t.advance(ctx, userID, day)
	})
	if err != nil {
		return domain.Streak{}, service.NewServiceError(serviceName, "record_review", err)
	}
	return s, nil
}

func (t *Tracker) advance(ctx context.Context, userID uuid.UUID, day time.Time) (domain.Streak, error) {
	log := logger.FromContextOrDefault(ctx, t.logger)
	now := t.clock.Now()

	current, err := t.streaks.Get(ctx, userID)
	if err != nil {
		if !store.IsNotFoundError(err) {
			return domain.Streak{}, err
		}

		fresh := domain.NewStreak(userID, now)
		fresh.RecordReview(day, now)
		stored, created, err := t.streaks.CreateIfAbsent(ctx, fresh)
		if err != nil {
			return domain.Streak{}, err
		}
		if created {
			log.Info("streak started",
				slog.String("user_id", userID.String()),
				slog.String("date", day.Format(domain.DateLayout)))
			return *stored, nil
		}
		current = stored
	}

	previous := current.Count
	if !current.RecordReview(day, now) {
		return *current, nil
	}
	if err := t.streaks.Update(ctx, current); err != nil {
		return domain.Streak{}, err
	}

	log.Info("streak advanced",
		slog.String("user_id", userID.String()),
		slog.String("date", day.Format(domain.DateLayout)),
		slog.Int("previous", previous),
		slog.Int("count", current.Count))
	return *current, nil
}

// HandleEvent implements events.EventHandler. The review counts toward the
// day of the card's LastReviewedAt.
func (t *Tracker) HandleEvent(ctx context.Context, event *events.Event) error {
	if event.Type != events.TypeReviewRecorded {
		return nil
	}

	var review events.ReviewRecorded
	if err := event.UnmarshalPayload(&review); err != nil {
		return fmt.Errorf("failed to decode %s event: %w", event.Type, err)
	}

	reviewedAt := t.clock.Now()
	if review.Card.LastReviewedAt != nil {
		reviewedAt = *review.Card.LastReviewedAt
	}

	_, err := t.RecordReview(ctx, review.UserID, reviewedAt)
	return err
}
