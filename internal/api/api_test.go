package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/recallcode-api/internal/api"
	"github.com/phrazzld/recallcode-api/internal/api/middleware"
	"github.com/phrazzld/recallcode-api/internal/api/shared"
	"github.com/phrazzld/recallcode-api/internal/domain/srs"
	"github.com/phrazzld/recallcode-api/internal/events"
	"github.com/phrazzld/recallcode-api/internal/platform/clock"
	"github.com/phrazzld/recallcode-api/internal/platform/logger"
	"github.com/phrazzld/recallcode-api/internal/platform/memory"
	"github.com/phrazzld/recallcode-api/internal/service/auth"
	"github.com/phrazzld/recallcode-api/internal/service/plan"
	"github.com/phrazzld/recallcode-api/internal/service/retry"
	"github.com/phrazzld/recallcode-api/internal/service/scheduler"
	"github.com/phrazzld/recallcode-api/internal/service/streak"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func fastPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

type testServer struct {
	handler http.Handler
	clock   *clock.Fake
	userID  uuid.UUID
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log, _ := logger.NewTestLogger()
	clk := clock.NewFake(now)
	db := memory.NewDB(memory.SeedProblems(now), log)
	emitter := events.NewInMemoryEventEmitter(log)

	sched := scheduler.NewService(db.CardStore(), db.Catalog(), srs.NewDefaultService(),
		emitter, clk, scheduler.Config{MaxDueLimit: 50}, log)
	plans := plan.NewService(db.PlanStore(), sched, db.Catalog(), db.Catalog(), clk,
		plan.Config{MaxReviewsPerDay: 3, MaxNewPerDay: 2, WeakPatterns: 3}, log)
	emitter.RegisterHandler(plans)
	streaks := streak.NewService(db.StreakStore(), clk, streak.Config{Retry: fastPolicy()}, log)
	emitter.RegisterHandler(streaks)

	validator, err := auth.NewJWTValidator(auth.TestAuthConfig(), clk)
	require.NoError(t, err)

	handler := api.NewRouter(api.RouterConfig{
		Plans:   api.NewPlanHandler(plans, fastPolicy(), log),
		Reviews: api.NewReviewHandler(sched, fastPolicy(), 0, log),
		Streaks: api.NewStreakHandler(streaks, fastPolicy(), log),
		Auth:    middleware.NewAuthMiddleware(validator),
		Logger:  log,
	})
	return &testServer{handler: handler, clock: clk, userID: uuid.New()}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return s.doWithAuth(t, method, path, body, auth.TestAuthHeader(t, s.userID, s.clock.Now()))
}

func (s *testServer) doWithAuth(t *testing.T, method, path string, body any, authHeader string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, status int, kind string) shared.ErrorResponse {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	body := decode[shared.ErrorResponse](t, rec)
	assert.Equal(t, kind, body.Error)
	assert.NotEmpty(t, body.Message)
	return body
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.doWithAuth(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
		{"garbage token", "Bearer not-a-token"},
		{"expired", "Bearer " + auth.SignTestToken(t, auth.TestSecret, s.userID, now.Add(-3*time.Hour), time.Hour)},
		{"wrong secret", "Bearer " + auth.SignTestToken(t, "another-secret-that-is-32-chars-long!", s.userID, now, time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.doWithAuth(t, http.MethodGet, "/api/plans/today", nil, tt.header)
			body := assertError(t, rec, http.StatusUnauthorized, shared.KindUnauthorized)
			assert.Equal(t, rec.Header().Get(middleware.TraceIDHeader), body.TraceID)
		})
	}
}

func TestGetTodayPlan(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/plans/today", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	p := decode[api.PlanResponse](t, rec)
	assert.Equal(t, "2025-03-01", p.Date)
	assert.Equal(t, []int64{1, 2}, p.NewProblems)
	assert.Equal(t, []int64{}, p.SRSProblems)
	assert.Equal(t, []int64{}, p.CompletedProblems)
	assert.False(t, p.IsCompleted)

	again := decode[api.PlanResponse](t, s.do(t, http.MethodGet, "/api/plans/today", nil))
	assert.Equal(t, p, again)
}

func TestSubmitRating(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/plans/today", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/reviews", map[string]any{"problem_id": 1, "rating": 4})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	card := decode[api.CardResponse](t, rec)
	assert.Equal(t, int64(1), card.ProblemID)
	assert.Equal(t, "learning", card.State)
	assert.Equal(t, 1, card.Repetitions)
	assert.Equal(t, 1, card.IntervalDays)
	assert.InDelta(t, 2.5, card.EaseFactor, 1e-9)
	require.NotNil(t, card.DueAt)
	assert.True(t, card.DueAt.Equal(now.AddDate(0, 0, 1)))
	require.NotNil(t, card.LastRating)
	assert.Equal(t, 4, *card.LastRating)

	// Rating a planned problem completes it.
	p := decode[api.PlanResponse](t, s.do(t, http.MethodGet, "/api/plans/today", nil))
	assert.Equal(t, []int64{1}, p.CompletedProblems)

	rec = s.do(t, http.MethodPost, "/api/problems/2/rate", map[string]any{"rating": 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	card = decode[api.CardResponse](t, rec)
	assert.Equal(t, int64(2), card.ProblemID)
	assert.Equal(t, "relapsed", card.State)

	p = decode[api.PlanResponse](t, s.do(t, http.MethodGet, "/api/plans/today", nil))
	assert.True(t, p.IsCompleted)
}

func TestSubmitRatingErrors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		path   string
		body   any
		status int
		kind   string
	}{
		{"rating too high", "/api/reviews", map[string]any{"problem_id": 1, "rating": 6}, http.StatusBadRequest, shared.KindInvalidRating},
		{"rating zero", "/api/problems/3/rate", map[string]any{"rating": 0}, http.StatusBadRequest, shared.KindInvalidRating},
		{"fractional rating", "/api/reviews", map[string]any{"problem_id": 1, "rating": 3.5}, http.StatusBadRequest, shared.KindInvalidRating},
		{"huge rating", "/api/reviews", map[string]any{"problem_id": 1, "rating": 1e300}, http.StatusBadRequest, shared.KindInvalidRating},
		{"rating as string", "/api/reviews", map[string]any{"problem_id": 1, "rating": "3"}, http.StatusBadRequest, shared.KindInvalidRequest},
		{"missing rating", "/api/reviews", map[string]any{"problem_id": 1}, http.StatusBadRequest, shared.KindInvalidRequest},
		{"missing problem", "/api/reviews", map[string]any{"rating": 3}, http.StatusBadRequest, shared.KindInvalidRequest},
		{"unknown field", "/api/reviews", map[string]any{"problem_id": 1, "rating": 3, "extra": true}, http.StatusBadRequest, shared.KindInvalidRequest},
		{"malformed JSON", "/api/reviews", `{"problem_id": 1,`, http.StatusBadRequest, shared.KindInvalidRequest},
		{"bad path id", "/api/problems/abc/rate", map[string]any{"rating": 3}, http.StatusBadRequest, shared.KindInvalidRequest},
		{"unknown problem", "/api/reviews", map[string]any{"problem_id": 999, "rating": 3}, http.StatusNotFound, shared.KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, tt.path, tt.body)
			assertError(t, rec, tt.status, tt.kind)
		})
	}

	due := decode[[]api.DueCardResponse](t, s.do(t, http.MethodGet, "/api/reviews/due", nil))
	assert.Empty(t, due, "rejected ratings leave no cards behind")
}

func TestCompleteProblem(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/plans/today/complete", map[string]any{"problem_id": 9})
	assertError(t, rec, http.StatusConflict, shared.KindNotInPlan)

	rec = s.do(t, http.MethodPost, "/api/plans/today/complete", map[string]any{"problem_id": 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	p := decode[api.PlanResponse](t, rec)
	assert.Equal(t, []int64{2}, p.CompletedProblems)

	rec = s.do(t, http.MethodPost, "/api/plans/today/complete", map[string]any{"problem_id": 2})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{2}, decode[api.PlanResponse](t, rec).CompletedProblems)

	rec = s.do(t, http.MethodPost, "/api/plans/today/complete", map[string]any{})
	assertError(t, rec, http.StatusBadRequest, shared.KindInvalidRequest)
}

func TestGetPlanByDate(t *testing.T) {
	s := newTestServer(t)

	assertError(t, s.do(t, http.MethodGet, "/api/plans/2025-02-28", nil), http.StatusNotFound, shared.KindNotFound)
	assertError(t, s.do(t, http.MethodGet, "/api/plans/yesterday", nil), http.StatusBadRequest, shared.KindInvalidRequest)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/plans/today", nil).Code)
	s.clock.Advance(24 * time.Hour)

	rec := s.do(t, http.MethodGet, "/api/plans/2025-03-01", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []int64{1, 2}, decode[api.PlanResponse](t, rec).NewProblems)
}

func TestListDue(t *testing.T) {
	s := newTestServer(t)

	for _, id := range []int{4, 2, 7} {
		rec := s.do(t, http.MethodPost, "/api/reviews", map[string]any{"problem_id": id, "rating": 3})
		require.Equal(t, http.StatusOK, rec.Code)
		s.clock.Advance(time.Minute)
	}
	s.clock.Advance(24 * time.Hour)

	due := decode[[]api.DueCardResponse](t, s.do(t, http.MethodGet, "/api/reviews/due", nil))
	require.Len(t, due, 3)
	assert.Equal(t, int64(4), due[0].ProblemID)
	assert.Equal(t, 1, due[0].IntervalDays)

	due = decode[[]api.DueCardResponse](t, s.do(t, http.MethodGet, "/api/reviews/due?limit=1", nil))
	require.Len(t, due, 1)

	assertError(t, s.do(t, http.MethodGet, "/api/reviews/due?limit=0", nil), http.StatusBadRequest, shared.KindInvalidRequest)
	assertError(t, s.do(t, http.MethodGet, "/api/reviews/due?limit=abc", nil), http.StatusBadRequest, shared.KindInvalidRequest)
}

func TestUsersAreIsolated(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/reviews", map[string]any{"problem_id": 1, "rating": 2})
	require.Equal(t, http.StatusOK, rec.Code)
	s.clock.Advance(25 * time.Hour)

	other := auth.TestAuthHeader(t, uuid.New(), s.clock.Now())
	rec = s.doWithAuth(t, http.MethodGet, "/api/reviews/due", nil, other)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]api.DueCardResponse](t, rec))

	p := decode[api.PlanResponse](t, s.doWithAuth(t, http.MethodGet, "/api/plans/today", nil, other))
	assert.Equal(t, []int64{1, 2}, p.NewProblems)
}

func TestStreakFollowsDailyReviews(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/stats/streak", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[api.StreakResponse](t, rec)
	assert.Zero(t, got.CurrentStreak)
	assert.Nil(t, got.LastReviewDate)
	assert.False(t, got.ReviewedToday)

	for day := 0; day < 3; day++ {
		rec = s.do(t, http.MethodPost, "/api/reviews", map[string]any{"problem_id": day + 1, "rating": 4})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		rec = s.do(t, http.MethodPost, "/api/reviews", map[string]any{"problem_id": day + 1, "rating": 5})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		if day < 2 {
			s.clock.Advance(24 * time.Hour)
		}
	}

	rec = s.do(t, http.MethodGet, "/api/stats/streak", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got = decode[api.StreakResponse](t, rec)
	assert.Equal(t, 3, got.CurrentStreak)
	assert.Equal(t, 3, got.LongestStreak)
	assert.True(t, got.ReviewedToday)
	require.NotNil(t, got.LastReviewDate)
	assert.Equal(t, "2025-03-03", *got.LastReviewDate)

	s.clock.Advance(48 * time.Hour)
	rec = s.do(t, http.MethodGet, "/api/stats/streak", nil)
	got = decode[api.StreakResponse](t, rec)
	assert.Zero(t, got.CurrentStreak, "missed a day")
	assert.Equal(t, 3, got.StreakCount)
	assert.Equal(t, 3, got.LongestStreak)
	assert.False(t, got.ReviewedToday)
}
