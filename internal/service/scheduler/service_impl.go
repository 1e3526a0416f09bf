package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/recallcode-api/internal/domain"
	"github.com/phrazzld/recallcode-api/internal/domain/srs"
	"github.com/phrazzld/recallcode-api/internal/events"
	"github.com/phrazzld/recallcode-api/internal/platform/clock"
	"github.com/phrazzld/recallcode-api/internal/platform/logger"
	"github.com/phrazzld/recallcode-api/internal/store"
)

// Verify interface compliance at compile time
var _ Service = (*serviceImpl)(nil)

type serviceImpl struct {
	cards      store.CardStore
	catalog    store.ProblemCatalog
	srsService srs.Service
	emitter    events.EventEmitter
	clock      clock.Clock
	config     Config
	logger     *slog.Logger
}

// NewService creates the scheduler. emitter may be nil when nothing listens
// for reviews.
func NewService(
	cards store.CardStore,
	catalog store.ProblemCatalog,
	srsService srs.Service,
	emitter events.EventEmitter,
	clk clock.Clock,
	config Config,
	logger *slog.Logger,
) Service {
	if cards == nil {
		panic("cards cannot be nil")
	}
	if catalog == nil {
		panic("catalog cannot be nil")
	}
	if srsService == nil {
		panic("srsService cannot be nil")
	}
	if clk == nil {
		clk = clock.System()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &serviceImpl{
		cards:      cards,
		catalog:    catalog,
		srsService: srsService,
		emitter:    emitter,
		clock:      clk,
		config:     config,
		logger:     logger.With(slog.String("component", "scheduler_service")),
	}
}

// GetDueCards implements Service.GetDueCards.
func (s *serviceImpl) GetDueCards(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Card, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if limit <= 0 {
		return nil, domain.ErrInvalidLimit
	}
	if s.config.MaxDueLimit > 0 && limit > s.config.MaxDueLimit {
		log.Debug("capping due card limit",
			slog.Int("requested", limit),
			slog.Int("max", s.config.MaxDueLimit))
		limit = s.config.MaxDueLimit
	}

	cards, err := s.cards.ListDue(ctx, userID, s.clock.Now(), limit)
	if err != nil {
		log.Error("failed to list due cards",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, newError("get_due_cards", err)
	}

	log.Debug("listed due cards",
		slog.String("user_id", userID.String()),
		slog.Int("count", len(cards)))
	return cards, nil
}

// RecordReview implements Service.RecordReview.
func (s *serviceImpl) RecordReview(
	ctx context.Context,
	userID uuid.UUID,
	problemID int64,
	rating domain.Rating,
) (domain.Card, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !rating.Valid() {
		log.Warn("invalid rating",
			slog.String("user_id", userID.String()),
			slog.Int64("problem_id", problemID),
			slog.Int("rating", int(rating)))
		return domain.Card{}, domain.ErrInvalidRating
	}

	exists, err := s.catalog.Exists(ctx, problemID)
	if err != nil {
		log.Error("failed to check catalog",
			slog.String("error", err.Error()),
			slog.Int64("problem_id", problemID))
		return domain.Card{}, newError("record_review", err)
	}
	if !exists {
		log.Warn("rating for unknown problem",
			slog.String("user_id", userID.String()),
			slog.Int64("problem_id", problemID))
		return domain.Card{}, newError("record_review",
			fmt.Errorf("%w: %d", store.ErrProblemNotFound, problemID))
	}

	now := s.clock.Now()
	var updated domain.Card
	err = s.cards.RunInTx(ctx, func(ctx context.Context, cards store.CardStore) error {
		fresh, err := s.srsService.NewCard(userID, problemID, now)
		if err != nil {
			return err
		}
		created, err := cards.CreateIfAbsent(ctx, fresh)
		if err != nil {
			return fmt.Errorf("failed to create card: %w", err)
		}

		card, err := cards.GetForUpdate(ctx, userID, problemID)
		if err != nil {
			return fmt.Errorf("failed to lock card: %w", err)
		}

		next, err := s.srsService.CalculateNextState(*card, rating, now)
		if err != nil {
			return err
		}
		next.UpdatedAt = now.UTC()

		if err := cards.Update(ctx, &next); err != nil {
			return fmt.Errorf("failed to save card: %w", err)
		}

		if created {
			log.Debug("card created on first review",
				slog.String("user_id", userID.String()),
				slog.Int64("problem_id", problemID))
		}
		updated = next
		return nil
	})
	if err != nil {
		log.Error("failed to record review",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()),
			slog.Int64("problem_id", problemID),
			slog.Bool("retryable", domain.IsRetryable(err)))
		return domain.Card{}, newError("record_review", err)
	}

	log.Info("review recorded",
		slog.String("user_id", userID.String()),
		slog.Int64("problem_id", problemID),
		slog.Int("rating", int(rating)),
		slog.String("state", string(updated.State)),
		slog.Int("interval_days", updated.IntervalDays),
		slog.Float64("ease_factor", updated.EaseFactor))

	s.emit(ctx, updated, rating, now)
	return updated, nil
}

// emit publishes the committed review. The rating is already durable, so a
// failing handler is logged and not returned.
func (s *serviceImpl) emit(ctx context.Context, card domain.Card, rating domain.Rating, now time.Time) {
	if s.emitter == nil {
		return
	}
	log := logger.FromContextOrDefault(ctx, s.logger)

	event, err := events.NewReviewRecordedEvent(card, rating, now)
	if err != nil {
		log.Error("failed to build review event", slog.String("error", err.Error()))
		return
	}
	if err := s.emitter.EmitEvent(ctx, event); err != nil {
		log.Warn("review event handler failed",
			slog.String("error", err.Error()),
			slog.String("user_id", card.UserID.String()),
			slog.Int64("problem_id", card.ProblemID))
	}
}
