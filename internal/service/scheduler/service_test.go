package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/recallcode-api/internal/domain"
	"github.com/phrazzld/recallcode-api/internal/domain/srs"
	"github.com/phrazzld/recallcode-api/internal/events"
	"github.com/phrazzld/recallcode-api/internal/platform/clock"
	"github.com/phrazzld/recallcode-api/internal/platform/logger"
	"github.com/phrazzld/recallcode-api/internal/platform/memory"
	"github.com/phrazzld/recallcode-api/internal/service/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc     scheduler.Service
	db      *memory.DB
	clock   *clock.Fake
	emitter *recordingEmitter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log, _ := logger.NewTestLogger()
	db := memory.NewDB(memory.SeedProblems(start), log)
	clk := clock.NewFake(start)
	emitter := &recordingEmitter{}

	svc := scheduler.NewService(db.CardStore(), db.Catalog(), srs.NewDefaultService(),
		emitter, clk, scheduler.Config{MaxDueLimit: 100}, log)
	return &fixture{svc: svc, db: db, clock: clk, emitter: emitter}
}

func TestRecordReviewWorkedExample(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	card, err := f.svc.RecordReview(ctx, userID, 1, 4)
	require.NoError(t, err)
	assert.Equal(t, 1, card.Repetitions)
	assert.Equal(t, 1, card.IntervalDays)
	assert.Equal(t, domain.CardStateLearning, card.State)
	assert.InDelta(t, 2.5, card.EaseFactor, 1e-9)
	require.NotNil(t, card.DueAt)
	assert.True(t, card.DueAt.Equal(start.AddDate(0, 0, 1)))

	f.clock.Advance(24 * time.Hour)
	card, err = f.svc.RecordReview(ctx, userID, 1, 4)
	require.NoError(t, err)
	assert.Equal(t, 2, card.Repetitions)
	assert.Equal(t, 6, card.IntervalDays)
	assert.Equal(t, domain.CardStateLearning, card.State)

	f.clock.Advance(6 * 24 * time.Hour)
	card, err = f.svc.RecordReview(ctx, userID, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, card.Repetitions)
	assert.Equal(t, 1, card.IntervalDays)
	assert.Equal(t, domain.CardStateRelapsed, card.State)
	assert.InDelta(t, 2.3, card.EaseFactor, 1e-9)
	assert.Equal(t, 3, card.TotalReviews)

	stored, err := f.db.CardStore().Get(ctx, userID, 1)
	require.NoError(t, err)
	assert.Equal(t, card.Version, stored.Version)
	assert.Equal(t, domain.CardStateRelapsed, stored.State)
}

func TestRecordReviewEmitsEventAfterCommit(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	userID := uuid.New()

	card, err := f.svc.RecordReview(context.Background(), userID, 3, 5)
	require.NoError(t, err)

	emitted := f.emitter.emitted()
	require.Len(t, emitted, 1)
	event := emitted[0]
	assert.Equal(t, events.TypeReviewRecorded, event.Type)

	var payload events.ReviewRecorded
	require.NoError(t, event.UnmarshalPayload(&payload))
	assert.Equal(t, userID, payload.UserID)
	assert.Equal(t, int64(3), payload.ProblemID)
	assert.Equal(t, domain.Rating(5), payload.Rating)
	assert.Equal(t, card.Version, payload.Card.Version)
}

func TestRecordReviewSurvivesFailingHandler(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.emitter.err = errors.New("handler down")

	_, err := f.svc.RecordReview(context.Background(), uuid.New(), 1, 3)
	assert.NoError(t, err)
}

func TestRecordReviewRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	for _, rating := range []domain.Rating{0, 6, -1} {
		cards := new(MockCardStore)
		catalog := new(MockCatalog)
		svc := scheduler.NewService(cards, catalog, srs.NewDefaultService(), nil,
			clock.NewFake(start), scheduler.Config{}, nil)

		_, err := svc.RecordReview(context.Background(), uuid.New(), 1, rating)
		assert.ErrorIs(t, err, domain.ErrInvalidRating, "rating %d", rating)
		catalog.AssertNotCalled(t, "Exists", mock.Anything, mock.Anything)
		cards.AssertNotCalled(t, "RunInTx", mock.Anything)
	}
}

func TestRecordReviewUnknownProblem(t *testing.T) {
	t.Parallel()
	cards := new(MockCardStore)
	catalog := new(MockCatalog)
	catalog.On("Exists", mock.Anything, int64(404)).Return(false, nil)
	svc := scheduler.NewService(cards, catalog, srs.NewDefaultService(), nil,
		clock.NewFake(start), scheduler.Config{}, nil)

	_, err := svc.RecordReview(context.Background(), uuid.New(), 404, 4)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	cards.AssertNotCalled(t, "RunInTx", mock.Anything)
}

func TestRecordReviewStoreFailures(t *testing.T) {
	t.Parallel()
	userID := uuid.New()

	tests := []struct {
		name  string
		setup func(cards *MockCardStore, catalog *MockCatalog)
		want  error
	}{
		{
			name: "catalog unavailable",
			setup: func(cards *MockCardStore, catalog *MockCatalog) {
				catalog.On("Exists", mock.Anything, int64(1)).Return(false, domain.ErrStoreUnavailable)
			},
			want: domain.ErrStoreUnavailable,
		},
		{
			name: "version conflict",
			setup: func(cards *MockCardStore, catalog *MockCatalog) {
				existing, _ := domain.NewCard(userID, 1, start)
				catalog.On("Exists", mock.Anything, int64(1)).Return(true, nil)
				cards.On("RunInTx", mock.Anything).Return()
				cards.On("CreateIfAbsent", mock.Anything, mock.Anything).Return(false, nil)
				cards.On("GetForUpdate", mock.Anything, userID, int64(1)).Return(existing, nil)
				cards.On("Update", mock.Anything, mock.Anything).Return(domain.ErrConcurrentModification)
			},
			want: domain.ErrConcurrentModification,
		},
		{
			name: "lock timeout",
			setup: func(cards *MockCardStore, catalog *MockCatalog) {
				catalog.On("Exists", mock.Anything, int64(1)).Return(true, nil)
				cards.On("RunInTx", mock.Anything).Return()
				cards.On("CreateIfAbsent", mock.Anything, mock.Anything).Return(false, nil)
				cards.On("GetForUpdate", mock.Anything, userID, int64(1)).Return(nil, domain.ErrStoreUnavailable)
			},
			want: domain.ErrStoreUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cards := new(MockCardStore)
			catalog := new(MockCatalog)
			tt.setup(cards, catalog)
			emitter := &recordingEmitter{}
			svc := scheduler.NewService(cards, catalog, srs.NewDefaultService(), emitter,
				clock.NewFake(start), scheduler.Config{}, nil)

			_, err := svc.RecordReview(context.Background(), userID, 1, 4)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, domain.IsRetryable(err))
			assert.Empty(t, emitter.emitted(), "no event for an uncommitted review")
		})
	}
}

func TestRecordReviewConcurrentRatingsAreNotLost(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	userID := uuid.New()

	const raters = 20
	var wg sync.WaitGroup
	for i := 0; i < raters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.RecordReview(context.Background(), userID, 2, 4)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	card, err := f.db.CardStore().Get(context.Background(), userID, 2)
	require.NoError(t, err)
	assert.Equal(t, raters, card.TotalReviews)
	assert.Equal(t, raters, card.Repetitions)
	assert.Equal(t, int64(raters), card.Version)
	assert.Len(t, f.emitter.emitted(), raters, "one event per committed review")
}

func TestGetDueCards(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	for _, id := range []int64{5, 2, 7} {
		_, err := f.svc.RecordReview(ctx, userID, id, 3)
		require.NoError(t, err)
		f.clock.Advance(time.Minute)
	}

	due, err := f.svc.GetDueCards(ctx, userID, 10)
	require.NoError(t, err)
	assert.Empty(t, due, "nothing is due on the day it was reviewed")

	f.clock.Advance(24 * time.Hour)
	due, err = f.svc.GetDueCards(ctx, userID, 2)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, int64(5), due[0].ProblemID)
	assert.Equal(t, int64(2), due[1].ProblemID)

	due, err = f.svc.GetDueCards(ctx, uuid.New(), 10)
	require.NoError(t, err)
	assert.NotNil(t, due)
	assert.Empty(t, due)

	_, err = f.svc.GetDueCards(ctx, userID, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidLimit)
}

func TestGetDueCardsCapsLimit(t *testing.T) {
	t.Parallel()
	cards := new(MockCardStore)
	userID := uuid.New()
	cards.On("ListDue", mock.Anything, userID, start, 5).Return([]domain.Card{}, nil)

	svc := scheduler.NewService(cards, new(MockCatalog), srs.NewDefaultService(), nil,
		clock.NewFake(start), scheduler.Config{MaxDueLimit: 5}, nil)

	_, err := svc.GetDueCards(context.Background(), userID, 500)
	require.NoError(t, err)
	cards.AssertExpectations(t)
}

func TestGetDueCardsWrapsStoreErrors(t *testing.T) {
	t.Parallel()
	cards := new(MockCardStore)
	cards.On("ListDue", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, domain.ErrStoreUnavailable)

	svc := scheduler.NewService(cards, new(MockCatalog), srs.NewDefaultService(), nil,
		clock.NewFake(start), scheduler.Config{}, nil)

	_, err := svc.GetDueCards(context.Background(), uuid.New(), 3)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}
