package api_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/recallcode-api/internal/api"
	"github.com/phrazzld/recallcode-api/internal/api/middleware"
	"github.com/phrazzld/recallcode-api/internal/api/shared"
	"github.com/phrazzld/recallcode-api/internal/domain"
	"github.com/phrazzld/recallcode-api/internal/platform/clock"
	"github.com/phrazzld/recallcode-api/internal/platform/logger"
	"github.com/phrazzld/recallcode-api/internal/service/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockScheduler struct {
	mock.Mock
}

func (m *mockScheduler) GetDueCards(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Card, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Card), args.Error(1)
}

func (m *mockScheduler) RecordReview(ctx context.Context, userID uuid.UUID, problemID int64, rating domain.Rating) (domain.Card, error) {
	args := m.Called(ctx, userID, problemID, rating)
	return args.Get(0).(domain.Card), args.Error(1)
}

type mockPlans struct {
	mock.Mock
}

func (m *mockPlans) GetOrCreateTodayPlan(ctx context.Context, userID uuid.UUID) (domain.DailyPlan, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(domain.DailyPlan), args.Error(1)
}

func (m *mockPlans) MarkCompleted(ctx context.Context, userID uuid.UUID, problemID int64) (domain.DailyPlan, error) {
	args := m.Called(ctx, userID, problemID)
	return args.Get(0).(domain.DailyPlan), args.Error(1)
}

func (m *mockPlans) GetPlan(ctx context.Context, userID uuid.UUID, date time.Time) (domain.DailyPlan, error) {
	args := m.Called(ctx, userID, date)
	return args.Get(0).(domain.DailyPlan), args.Error(1)
}

func newMockServer(t *testing.T, sched *mockScheduler, plans *mockPlans) *testServer {
	t.Helper()
	log, _ := logger.NewTestLogger()
	clk := clock.NewFake(now)
	validator, err := auth.NewJWTValidator(auth.TestAuthConfig(), clk)
	require.NoError(t, err)

	return &testServer{
		handler: api.NewRouter(api.RouterConfig{
			Plans:   api.NewPlanHandler(plans, fastPolicy(), log),
			Reviews: api.NewReviewHandler(sched, fastPolicy(), 7, log),
			Auth:    middleware.NewAuthMiddleware(validator),
			Logger:  log,
		}),
		clock:  clk,
		userID: uuid.New(),
	}
}

func TestSubmitRatingRetriesConflicts(t *testing.T) {
	sched := new(mockScheduler)
	s := newMockServer(t, sched, new(mockPlans))

	due := now.AddDate(0, 0, 1)
	sched.On("RecordReview", mock.Anything, s.userID, int64(5), domain.Rating(4)).
		Return(domain.Card{}, domain.ErrConcurrentModification).Twice()
	sched.On("RecordReview", mock.Anything, s.userID, int64(5), domain.Rating(4)).
		Return(domain.Card{ProblemID: 5, State: domain.CardStateLearning, Repetitions: 1, IntervalDays: 1, DueAt: &due}, nil).Once()

	rec := s.do(t, http.MethodPost, "/api/problems/5/rate", map[string]any{"rating": 4})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(5), decode[api.CardResponse](t, rec).ProblemID)
	sched.AssertNumberOfCalls(t, "RecordReview", 3)
}

func TestSubmitRatingGivesUpAfterRetries(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		status     int
		kind       string
		retryAfter string
	}{
		{"conflict", domain.ErrConcurrentModification, http.StatusConflict, shared.KindConcurrentModification, ""},
		{"unavailable", domain.ErrStoreUnavailable, http.StatusServiceUnavailable, shared.KindStoreUnavailable, "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sched := new(mockScheduler)
			s := newMockServer(t, sched, new(mockPlans))
			sched.On("RecordReview", mock.Anything, s.userID, int64(1), domain.Rating(3)).
				Return(domain.Card{}, tt.err)

			rec := s.do(t, http.MethodPost, "/api/reviews", map[string]any{"problem_id": 1, "rating": 3})
			assertError(t, rec, tt.status, tt.kind)
			assert.Equal(t, tt.retryAfter, rec.Header().Get("Retry-After"))
			sched.AssertNumberOfCalls(t, "RecordReview", 3)
		})
	}
}

func TestListDueUsesConfiguredDefaultLimit(t *testing.T) {
	sched := new(mockScheduler)
	s := newMockServer(t, sched, new(mockPlans))
	sched.On("GetDueCards", mock.Anything, s.userID, 7).Return([]domain.Card{}, nil)

	rec := s.do(t, http.MethodGet, "/api/reviews/due", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
	sched.AssertExpectations(t)
}

func TestCompleteProblemNotInPlanIsNotRetried(t *testing.T) {
	plans := new(mockPlans)
	s := newMockServer(t, new(mockScheduler), plans)
	plans.On("MarkCompleted", mock.Anything, s.userID, int64(8)).Return(domain.DailyPlan{}, domain.ErrNotInPlan)

	rec := s.do(t, http.MethodPost, "/api/plans/today/complete", map[string]any{"problem_id": 8})
	assertError(t, rec, http.StatusConflict, shared.KindNotInPlan)
	plans.AssertNumberOfCalls(t, "MarkCompleted", 1)
}
