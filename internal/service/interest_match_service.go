package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/eventscape/relevance/internal/apperrors"
	"github.com/eventscape/relevance/internal/models"
)

// Interest matching defaults.
const (
	DefaultInterestMatchThreshold = 0.5
	DefaultInterestMatchLimit     = 1000
)

// InterestMatcher finds users whose interest vector is similar to an embedding.
type InterestMatcher interface {
	InterestedUsers(ctx context.Context, embedding []float32, minSimilarity float64, limit int) ([]models.InterestMatch, error)
}

// EventReader loads a platform event.
type EventReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// InterestMatchService finds the users a newly embedded event is relevant to.
// Delivering anything to those users is up to the caller.
type InterestMatchService struct {
	matcher   InterestMatcher
	events    EventReader
	threshold float64
	limit     int
}

// NewInterestMatchService creates an InterestMatchService. A limit <= 0 uses DefaultInterestMatchLimit.
func NewInterestMatchService(matcher InterestMatcher, events EventReader, threshold float64, limit int) *InterestMatchService {
	if limit <= 0 {
		limit = DefaultInterestMatchLimit
	}

	return &InterestMatchService{
		matcher:   matcher,
		events:    events,
		threshold: threshold,
		limit:     limit,
	}
}

// InterestedUsers returns users whose interest similarity to the event is above the threshold,
// most similar first. An event without an embedding matches nobody.
func (s *InterestMatchService) InterestedUsers(ctx context.Context, eventID uuid.UUID) ([]models.InterestMatch, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	if len(event.Embedding) == 0 {
		return []models.InterestMatch{}, nil
	}

	return s.MatchEmbedding(ctx, event.Embedding)
}

// MatchEmbedding is InterestedUsers for an embedding that is already at hand.
func (s *InterestMatchService) MatchEmbedding(ctx context.Context, embedding []float32) ([]models.InterestMatch, error) {
	if len(embedding) == 0 {
		return nil, apperrors.NewValidationError("embedding", "embedding is required")
	}

	matches, err := s.matcher.InterestedUsers(ctx, embedding, s.threshold, s.limit)
	if err != nil {
		return nil, fmt.Errorf("match interests: %w", err)
	}

	if matches == nil {
		matches = []models.InterestMatch{}
	}

	return matches, nil
}
