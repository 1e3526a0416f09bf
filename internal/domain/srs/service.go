package srs

import (
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/recallcode-api/internal/domain"
)

// Service defines the interface for SRS algorithm operations
type Service interface {
	// CalculateNextState computes the card that results from a rating.
	// Returns domain.ErrInvalidRating for ratings outside 1..5.
	CalculateNextState(card domain.Card, rating domain.Rating, now time.Time) (domain.Card, error)

	// NewCard returns a card in the New state seeded with the configured
	// initial ease factor.
	NewCard(userID uuid.UUID, problemID int64, now time.Time) (*domain.Card, error)
}

// defaultService is the standard implementation of the Service interface
type defaultService struct {
	params *Params
}

// NewDefaultService creates a new SRS service with default parameters
func NewDefaultService() Service {
	return &defaultService{
		params: NewDefaultParams(),
	}
}

// NewServiceWithParams creates a new SRS service with custom parameters.
// Invalid parameters are rejected so a misconfiguration fails at startup.
func NewServiceWithParams(params *Params) (Service, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &defaultService{
		params: params,
	}, nil
}

// CalculateNextState implements Service.
func (s *defaultService) CalculateNextState(
	card domain.Card,
	rating domain.Rating,
	now time.Time,
) (domain.Card, error) {
	return NextState(card, rating, now, s.params)
}

// NewCard implements Service.
func (s *defaultService) NewCard(userID uuid.UUID, problemID int64, now time.Time) (*domain.Card, error) {
	card, err := domain.NewCard(userID, problemID, now)
	if err != nil {
		return nil, err
	}
	card.EaseFactor = s.params.InitialEaseFactor
	return card, nil
}
