package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/recallcode-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	type testPayload struct {
		ID     uuid.UUID `json:"id"`
		Action string    `json:"action"`
	}

	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.FixedZone("X", 3600))
	payload := testPayload{ID: uuid.New(), Action: "test_action"}

	event, err := NewEvent("test_event", payload, now)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, "test_event", event.Type)
	assert.Equal(t, time.UTC, event.CreatedAt.Location())
	assert.True(t, event.CreatedAt.Equal(now))

	var decoded testPayload
	require.NoError(t, json.Unmarshal(event.Payload, &decoded))
	assert.Equal(t, payload, decoded)
}

func TestNewEventRejectsUnmarshalablePayload(t *testing.T) {
	_, err := NewEvent("bad", make(chan int), time.Now())
	assert.Error(t, err)
}

func TestReviewRecordedRoundTrip(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	card, err := domain.NewCard(uuid.New(), 42, now)
	require.NoError(t, err)

	event, err := NewReviewRecordedEvent(*card, domain.Rating(4), now)
	require.NoError(t, err)
	assert.Equal(t, TypeReviewRecorded, event.Type)

	var got ReviewRecorded
	require.NoError(t, event.UnmarshalPayload(&got))
	assert.Equal(t, card.UserID, got.UserID)
	assert.Equal(t, int64(42), got.ProblemID)
	assert.Equal(t, domain.Rating(4), got.Rating)
	assert.Equal(t, domain.CardStateNew, got.Card.State)
}

// MockEventHandler implements the EventHandler interface for testing
type MockEventHandler struct {
	// The last event received by this handler
	LastEvent *Event
	// Error to return from HandleEvent
	HandlerError error
	// Count of events handled
	HandledCount int
}

// HandleEvent implements the EventHandler interface
func (h *MockEventHandler) HandleEvent(ctx context.Context, event *Event) error {
	h.LastEvent = event
	h.HandledCount++
	return h.HandlerError
}
