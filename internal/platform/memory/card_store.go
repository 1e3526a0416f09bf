package memory

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/recallcode-api/internal/domain"
	"github.com/phrazzld/recallcode-api/internal/platform/logger"
	"github.com/phrazzld/recallcode-api/internal/store"
)

// CardStore implements store.CardStore in memory.
type CardStore struct {
	db     *DB
	tx     *tx[cardKey, domain.Card] // nil outside RunInTx
	logger *slog.Logger
}

var _ store.CardStore = (*CardStore)(nil)

// Get implements store.CardStore.Get
func (s *CardStore) Get(ctx context.Context, userID uuid.UUID, problemID int64) (*domain.Card, error) {
	key := cardKey{userID: userID, problemID: problemID}

	var (
		card domain.Card
		ok   bool
	)
	if s.tx != nil {
		card, ok = s.tx.get(key)
	} else {
		card, ok = s.db.cards.get(key)
	}
	if !ok {
		return nil, store.ErrCardNotFound
	}
	return &card, nil
}

// GetForUpdate implements store.CardStore.GetForUpdate. Outside a
// transaction the lock would be released immediately, so it behaves like Get.
func (s *CardStore) GetForUpdate(ctx context.Context, userID uuid.UUID, problemID int64) (*domain.Card, error) {
	if s.tx != nil {
		if err := s.tx.lock(ctx, cardKey{userID: userID, problemID: problemID}); err != nil {
			logger.FromContextOrDefault(ctx, s.logger).Warn("card row lock not acquired",
				slog.String("error", err.Error()),
				slog.String("user_id", userID.String()),
				slog.Int64("problem_id", problemID))
			return nil, err
		}
	}
	return s.Get(ctx, userID, problemID)
}

// CreateIfAbsent implements store.CardStore.CreateIfAbsent
func (s *CardStore) CreateIfAbsent(ctx context.Context, card *domain.Card) (bool, error) {
	if s.tx == nil {
		var created bool
		err := s.RunInTx(ctx, func(ctx context.Context, cards store.CardStore) error {
			var err error
			created, err = cards.CreateIfAbsent(ctx, card)
			return err
		})
		return created, err
	}

	if err := card.Validate(); err != nil {
		return false, err
	}
	if _, ok := s.db.problems[card.ProblemID]; !ok {
		return false, fmt.Errorf("%w: problem %d is not in the catalog", store.ErrInvalidEntity, card.ProblemID)
	}

	key := keyOfCard(*card)
	if err := s.tx.lock(ctx, key); err != nil {
		return false, err
	}
	if _, exists := s.tx.get(key); exists {
		return false, nil
	}

	s.tx.stage(key, *card, true, 0)
	logger.FromContextOrDefault(ctx, s.logger).Debug("card created",
		slog.String("user_id", card.UserID.String()),
		slog.Int64("problem_id", card.ProblemID))
	return true, nil
}

// Update implements store.CardStore.Update
func (s *CardStore) Update(ctx context.Context, card *domain.Card) error {
	if s.tx == nil {
		return s.RunInTx(ctx, func(ctx context.Context, cards store.CardStore) error {
			return cards.Update(ctx, card)
		})
	}

	if err := card.Validate(); err != nil {
		return err
	}

	key := keyOfCard(*card)
	if err := s.tx.lock(ctx, key); err != nil {
		return err
	}

	current, ok := s.tx.get(key)
	if !ok {
		return store.ErrCardNotFound
	}
	if current.Version != card.Version {
		logger.FromContextOrDefault(ctx, s.logger).Warn("card version conflict",
			slog.String("user_id", card.UserID.String()),
			slog.Int64("problem_id", card.ProblemID),
			slog.Int64("expected_version", card.Version),
			slog.Int64("actual_version", current.Version))
		return fmt.Errorf("%w: card %s/%d changed since version %d",
			domain.ErrConcurrentModification, card.UserID, card.ProblemID, card.Version)
	}

	next := card.Clone()
	next.CreatedAt = current.CreatedAt
	next.Version = current.Version + 1
	s.tx.stage(key, next, false, current.Version)

	card.Version = next.Version
	return nil
}

// ListDue implements store.CardStore.ListDue
func (s *CardStore) ListDue(ctx context.Context, userID uuid.UUID, now time.Time, limit int) ([]domain.Card, error) {
	if limit <= 0 {
		return nil, domain.ErrInvalidLimit
	}

	due := s.rows(func(c domain.Card) bool {
		return c.UserID == userID && c.IsDue(now)
	})
	slices.SortFunc(due, func(a, b domain.Card) int {
		if c := a.DueAt.Compare(*b.DueAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ProblemID, b.ProblemID)
	})

	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// ListExposedProblemIDs implements store.CardStore.ListExposedProblemIDs
func (s *CardStore) ListExposedProblemIDs(ctx context.Context, userID uuid.UUID) ([]int64, error) {
	cards := s.rows(func(c domain.Card) bool { return c.UserID == userID })

	ids := make([]int64, 0, len(cards))
	for _, c := range cards {
		ids = append(ids, c.ProblemID)
	}
	slices.Sort(ids)
	return ids, nil
}

// RunInTx implements store.CardStore.RunInTx
func (s *CardStore) RunInTx(ctx context.Context, fn store.CardTxFn) error {
	if s.tx != nil {
		return fn(ctx, s)
	}

	return s.db.cards.runInTx(func(x *tx[cardKey, domain.Card]) error {
		return fn(ctx, &CardStore{db: s.db, tx: x, logger: s.logger})
	})
}

func (s *CardStore) rows(keep func(domain.Card) bool) []domain.Card {
	committed := s.db.cards.scan(keep)
	if s.tx == nil {
		return committed
	}
	return s.tx.overlay(committed, keyOfCard, keep)
}
