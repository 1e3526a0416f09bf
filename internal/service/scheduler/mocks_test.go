package scheduler_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/recallcode-api/internal/domain"
	"github.com/phrazzld/recallcode-api/internal/events"
	"github.com/phrazzld/recallcode-api/internal/store"
	"github.com/stretchr/testify/mock"
)

// MockCardStore is a testify mock of store.CardStore. RunInTx hands the mock
// itself to fn.
type MockCardStore struct {
	mock.Mock
}

func (m *MockCardStore) Get(ctx context.Context, userID uuid.UUID, problemID int64) (*domain.Card, error) {
	args := m.Called(ctx, userID, problemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Card), args.Error(1)
}

func (m *MockCardStore) GetForUpdate(ctx context.Context, userID uuid.UUID, problemID int64) (*domain.Card, error) {
	args := m.Called(ctx, userID, problemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Card), args.Error(1)
}

func (m *MockCardStore) CreateIfAbsent(ctx context.Context, card *domain.Card) (bool, error) {
	args := m.Called(ctx, card)
	return args.Bool(0), args.Error(1)
}

func (m *MockCardStore) Update(ctx context.Context, card *domain.Card) error {
	args := m.Called(ctx, card)
	return args.Error(0)
}

func (m *MockCardStore) ListDue(ctx context.Context, userID uuid.UUID, now time.Time, limit int) ([]domain.Card, error) {
	args := m.Called(ctx, userID, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Card), args.Error(1)
}

func (m *MockCardStore) ListExposedProblemIDs(ctx context.Context, userID uuid.UUID) ([]int64, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockCardStore) RunInTx(ctx context.Context, fn store.CardTxFn) error {
	m.Called(ctx)
	return fn(ctx, m)
}

// MockCatalog is a testify mock of store.ProblemCatalog.
type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) Exists(ctx context.Context, problemID int64) (bool, error) {
	args := m.Called(ctx, problemID)
	return args.Bool(0), args.Error(1)
}

func (m *MockCatalog) ListCandidates(ctx context.Context, q store.CandidateQuery) ([]domain.Problem, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Problem), args.Error(1)
}

// recordingEmitter keeps every emitted event. It is safe for concurrent use.
type recordingEmitter struct {
	mu     sync.Mutex
	events []*events.Event
	err    error
}

func (r *recordingEmitter) EmitEvent(ctx context.Context, event *events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

// emitted returns a snapshot of the recorded events.
func (r *recordingEmitter) emitted() []*events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*events.Event(nil), r.events...)
}
