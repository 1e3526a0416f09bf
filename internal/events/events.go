package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/recallcode-api/internal/domain"
)

// TypeReviewRecorded is emitted after a rating has been committed.
const TypeReviewRecorded = "review.recorded"

// Event is the envelope passed from emitters to handlers.
type Event struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type selects how Payload is decoded
	Type string `json:"type"`

	// Payload contains the type-specific data serialized as JSON
	Payload json.RawMessage `json:"payload"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// UnmarshalPayload decodes the event payload into the provided structure.
func (e *Event) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// NewEvent creates an Event with the specified type and payload.
func NewEvent(eventType string, payload any, now time.Time) (*Event, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}

	return &Event{
		ID:        uuid.New(),
		Type:      eventType,
		Payload:   payloadBytes,
		CreatedAt: now.UTC(),
	}, nil
}

// ReviewRecorded is the payload of a TypeReviewRecorded event.
type ReviewRecorded struct {
	UserID    uuid.UUID     `json:"user_id"`
	ProblemID int64         `json:"problem_id"`
	Rating    domain.Rating `json:"rating"`
	Card      domain.Card   `json:"card"`
}

// NewReviewRecordedEvent wraps a committed review in an Event.
func NewReviewRecordedEvent(card domain.Card, rating domain.Rating, now time.Time) (*Event, error) {
	return NewEvent(TypeReviewRecorded, ReviewRecorded{
		UserID:    card.UserID,
		ProblemID: card.ProblemID,
		Rating:    rating,
		Card:      card,
	}, now)
}

// EventHandler defines an interface for components that can handle events.
// Handlers ignore event types they do not understand.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *Event) error
}

// EventEmitter defines an interface for components that can emit events.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *Event) error
}

// HandlerFunc adapts a function to EventHandler.
type HandlerFunc func(ctx context.Context, event *Event) error

// HandleEvent implements EventHandler.
func (f HandlerFunc) HandleEvent(ctx context.Context, event *Event) error {
	return f(ctx, event)
}
