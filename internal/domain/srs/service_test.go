package srs

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/recallcode-api/internal/domain"
)

func TestServiceCalculateNextState(t *testing.T) {
	t.Parallel()
	service := NewDefaultService()
	card := newTestCard(t)

	next, err := service.CalculateNextState(card, 5, testNow)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if next.Repetitions != 1 {
		t.Errorf("Expected 1 repetition, got %d", next.Repetitions)
	}

	if _, err := service.CalculateNextState(card, 0, testNow); !errors.Is(err, domain.ErrInvalidRating) {
		t.Errorf("Expected ErrInvalidRating, got %v", err)
	}
}

func TestServiceNewCardUsesInitialEase(t *testing.T) {
	t.Parallel()
	service, err := NewServiceWithParams(NewParams(ParamsConfig{InitialEaseFactor: 2.2}))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	card, err := service.NewCard(uuid.New(), 3, testNow)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if card.EaseFactor != 2.2 {
		t.Errorf("Expected ease factor 2.2, got %v", card.EaseFactor)
	}
	if !card.IsNew() {
		t.Error("Expected a new card")
	}
}

func TestNewServiceWithParamsRejectsInvalid(t *testing.T) {
	t.Parallel()
	params := NewDefaultParams()
	params.MinEaseFactor = 0.9

	if _, err := NewServiceWithParams(params); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("Expected ErrInvalidParams, got %v", err)
	}
}
