package postgres_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/recallcode-api/internal/domain"
		"github.com/phrazzld/recallcode-api/internal/platform/postgres"
	"github.com/phrazzld/recallcode-api/internal/store"
	"github.com/phrazzld/recallcode-api/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func problemIDBySlug(t *testing.T, db *sql.DB, slug string) int64 {
	t.Helper()
	var id int64
	require.NoError(t, db.QueryRow(`SELECT id FROM problems WHERE slug = $1`, slug).Scan(&id))
	return id
}

func reviewCard(card *domain.Card, state domain.CardState, ease float64, due time.Time) {
	rating := domain.Rating(3)
	card.State = state
	card.Repetitions = 1
	card.EaseFactor = ease
	card.IntervalDays = 1
	card.DueAt = &due
	card.LastRating = &rating
	card.LastReviewedAt = &due
	card.TotalReviews++
}

func TestCardStoreIntegration(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()
	cards := postgres.NewPostgresCardStore(db, nil)

	userID := uuid.New()
	now := time.Now().UTC().Truncate(time.Second)
	twoSum := problemIDBySlug(t, db, "two-sum")

	t.Run("create is idempotent", func(t *testing.T) {
		card, err := domain.NewCard(userID, twoSum, now)
		require.NoError(t, err)

		created, err := cards.CreateIfAbsent(ctx, card)
		require.NoError(t, err)
		assert.True(t, created)

		created, err = cards.CreateIfAbsent(ctx, card)
		require.NoError(t, err)
		assert.False(t, created)
	})

	t.Run("unknown problem is rejected", func(t *testing.T) {
		card, err := domain.NewCard(userID, 1_000_000, now)
		require.NoError(t, err)

		_, err = cards.CreateIfAbsent(ctx, card)
		assert.ErrorIs(t, err, store.ErrInvalidEntity)
	})

	t.Run("update checks version", func(t *testing.T) {
		card, err := cards.Get(ctx, userID, twoSum)
		require.NoError(t, err)
		stale := card.Clone()

		reviewCard(card, domain.CardStateLearning, 2.5, now.Add(-time.Hour))
		require.NoError(t, cards.Update(ctx, card))
		assert.Equal(t, stale.Version+1, card.Version)

		reviewCard(&stale, domain.CardStateLearning, 2.6, now)
		err = cards.Update(ctx, &stale)
		assert.ErrorIs(t, err, domain.ErrConcurrentModification)

		stored, err := cards.Get(ctx, userID, twoSum)
		require.NoError(t, err)
		assert.Equal(t, 2.5, stored.EaseFactor)
	})

	t.Run("due cards", func(t *testing.T) {
		due, err := cards.ListDue(ctx, userID, now, 10)
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, twoSum, due[0].ProblemID)

		none, err := cards.ListDue(ctx, uuid.New(), now, 10)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("transaction rolls back", func(t *testing.T) {
		sentinel := errors.New("abort")
		err := cards.RunInTx(ctx, func(ctx context.Context, tx store.CardStore) error {
			card, err := tx.GetForUpdate(ctx, userID, twoSum)
			if err != nil {
				return err
			}
			card.TotalReviews = 99
			if err := tx.Update(ctx, card); err != nil {
				return err
			}
			return sentinel
		})
		assert.ErrorIs(t, err, sentinel)

		stored, err := cards.Get(ctx, userID, twoSum)
		require.NoError(t, err)
		assert.NotEqual(t, 99, stored.TotalReviews)
	})
}

func TestPlanStoreIntegration(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()
	plans := postgres.NewPostgresPlanStore(db, nil)

	userID := uuid.New()
	now := time.Now().UTC()
	date := domain.CalendarDate(now, time.UTC)

	plan, err := domain.NewDailyPlan(userID, date, []int64{1, 2}, []int64{3}, now)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*domain.DailyPlan, 8)
	created := make([]bool, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], created[i], errs[i] = plans.CreateIfAbsent(ctx, plan)
		}(i)
	}
	wg.Wait()

	winners := 0
	for i := range results {
		require.NoError(t, errs[i])
		assert.ElementsMatch(t, []int64{1, 2}, results[i].NewProblems)
		if created[i] {
			winners++
		}
	}
	assert.Equal(t, 1, winners)

	err = plans.RunInTx(ctx, func(ctx context.Context, tx store.PlanStore) error {
		p, err := tx.GetForUpdate(ctx, userID, date)
		if err != nil {
			return err
		}
		if _, err := p.Complete(3, now); err != nil {
			return err
		}
		return tx.Update(ctx, p)
	})
	require.NoError(t, err)

	stored, err := plans.Get(ctx, userID, date)
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, stored.CompletedProblems)
	assert.False(t, stored.IsCompleted)
	assert.True(t, stored.Date.Equal(date))

	active, err := plans.ListActiveUsers(ctx, date)
	require.NoError(t, err)
	assert.Contains(t, active, userID)

	_, err = plans.Get(ctx, uuid.New(), date)
	assert.ErrorIs(t, err, store.ErrPlanNotFound)
}

func TestStreakStoreIntegration(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()
	streaks := postgres.NewPostgresStreakStore(db, nil)

	userID := uuid.New()
	now := time.Now().UTC()
	today := domain.CalendarDate(now, time.UTC)

	first := domain.NewStreak(userID, now)
	first.RecordReview(today, now)
	stored, created, err := streaks.CreateIfAbsent(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, stored.LastReviewDate.Equal(today))

	_, created, err = streaks.CreateIfAbsent(ctx, first)
	require.NoError(t, err)
	assert.False(t, created)

	stored.RecordReview(today.AddDate(0, 0, 1), now)
	require.NoError(t, streaks.Update(ctx, stored))

	stale := *stored
	stale.Version = 0
	assert.ErrorIs(t, streaks.Update(ctx, &stale), domain.ErrConcurrentModification)

	got, err := streaks.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Count)
	assert.Equal(t, 2, got.Longest)
	assert.Equal(t, int64(1), got.Version)

	_, err = streaks.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrStreakNotFound)
}

func TestCatalogStoreIntegration(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()
	catalog := postgres.NewPostgresCatalogStore(db, nil)
	cards := postgres.NewPostgresCardStore(db, nil)

	userID := uuid.New()
	now := time.Now().UTC()
	islands := problemIDBySlug(t, db, "number-of-islands")
	courses := problemIDBySlug(t, db, "course-schedule")
	twoSum := problemIDBySlug(t, db, "two-sum")

	exists, err := catalog.Exists(ctx, islands)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = catalog.Exists(ctx, 1_000_000)
	require.NoError(t, err)
	assert.False(t, exists)

	card, err := domain.NewCard(userID, islands, now)
	require.NoError(t, err)
	_, err = cards.CreateIfAbsent(ctx, card)
	require.NoError(t, err)
	reviewCard(card, domain.CardStateRelapsed, 1.3, now)
	require.NoError(t, cards.Update(ctx, card))

	weak, err := catalog.WeakestPatterns(ctx, userID, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"BFS", "DFS"}, weak)

	candidates, err := catalog.ListCandidates(ctx, store.CandidateQuery{
		UserID:         userID,
		Excluding:      []int64{twoSum},
		PreferPatterns: []string{"Graph"},
		Limit:          3,
	})
	require.NoError(t, err)
	require.NotEmpty(t, candidates)
	assert.Equal(t, courses, candidates[0].ID, "graph problems rank first")
	for _, p := range candidates {
		assert.NotEqual(t, islands, p.ID, "exposed problems are never candidates")
		assert.NotEqual(t, twoSum, p.ID, "excluded problems are never candidates")
	}
}

func TestCardStoreBoundToTransaction(t *testing.T) {
	db := testdb.Open(t)
	ctx := context.Background()
	userID := uuid.New()
	now := time.Now().UTC().Truncate(time.Second)
	twoSum := problemIDBySlug(t, db, "two-sum")

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		cards := postgres.NewPostgresCardStore(tx, nil)
		card, err := domain.NewCard(userID, twoSum, now)
		require.NoError(t, err)

		created, err := cards.CreateIfAbsent(ctx, card)
		require.NoError(t, err)
		assert.True(t, created)

		err = cards.RunInTx(ctx, func(ctx context.Context, cards store.CardStore) error {
			_, err := cards.GetForUpdate(ctx, userID, twoSum)
			return err
		})
		require.NoError(t, err)
	})

	_, err := postgres.NewPostgresCardStore(db, nil).Get(ctx, userID, twoSum)
	assert.ErrorIs(t, err, store.ErrCardNotFound, "rolled back writes are invisible")
}
