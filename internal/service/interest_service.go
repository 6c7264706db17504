package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/eventscape/relevance/internal/apperrors"
	"github.com/eventscape/relevance/internal/models"
	"github.com/eventscape/relevance/internal/observability"
	"github.com/eventscape/relevance/internal/repository"
	"github.com/eventscape/relevance/internal/validation"
	"github.com/eventscape/relevance/pkg/embeddings"
)

// InterestOutcome is the result of one RecordInteraction call, also used as the metric status.
type InterestOutcome string

// Interest outcomes.
const (
	OutcomeCreated    InterestOutcome = "created"
	OutcomeUpdated    InterestOutcome = "updated"
	OutcomeSkipped    InterestOutcome = "skipped"
	OutcomeDegenerate InterestOutcome = "degenerate"
	OutcomeNotFound   InterestOutcome = "not_found"
	OutcomeInvalid    InterestOutcome = "invalid"
	OutcomeConflict   InterestOutcome = "conflict"
	OutcomeFailed     InterestOutcome = "failed"
)

// DefaultWriteRetries is how often a conflicting interest write is re-blended and retried.
const DefaultWriteRetries = 3

// InterestsRepository reads and conditionally writes a user's interest vector.
type InterestsRepository interface {
	GetInterest(ctx context.Context, userID uuid.UUID) (*models.UserInterest, error)
	SaveInterest(ctx context.Context, userID uuid.UUID, vector []float32, expectedVersion int64) (int64, error)
}

// InterestService folds interaction signals into users' interest vectors.
type InterestService struct {
	repo         InterestsRepository
	embedder     EmbeddingClient
	writeRetries int
	metrics      observability.InterestMetrics
	logger       *slog.Logger
}

// NewInterestService creates an InterestService. metrics may be nil when metrics are disabled.
func NewInterestService(
	repo InterestsRepository,
	embedder EmbeddingClient,
	writeRetries int,
	metrics observability.InterestMetrics,
) *InterestService {
	if writeRetries < 0 {
		writeRetries = DefaultWriteRetries
	}

	return &InterestService{
		repo:         repo,
		embedder:     embedder,
		writeRetries: writeRetries,
		metrics:      metrics,
		logger:       slog.Default(),
	}
}

// RecordInteraction embeds signal.Text and pulls the user's interest vector toward it:
// the first interaction becomes the vector, later ones are blended as
// old*(1-weight) + new*weight and re-normalized.
//
// Blank text is a no-op. The write is conditional on the version that was read; on a
// concurrent update the stored vector is re-read and the same embedding is blended again.
func (s *InterestService) RecordInteraction(ctx context.Context, signal models.InteractionSignal) (InterestOutcome, error) {
	ctx, span := observability.Tracer().Start(ctx, "interest.RecordInteraction",
		trace.WithAttributes(
			attribute.String("interaction.kind", signal.Kind.String()),
			attribute.Float64("interaction.weight", signal.Weight),
		))
	defer span.End()

	start := time.Now()
	outcome, err := s.record(ctx, signal)

	if s.metrics != nil {
		s.metrics.RecordOutcome(ctx, signal.Kind, string(outcome), time.Since(start))
	}

	span.SetAttributes(attribute.String("interest.outcome", string(outcome)))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(outcome))

		return outcome, err
	}

	s.logger.DebugContext(ctx, "interest: recorded",
		"user_id", signal.UserID,
		"kind", signal.Kind.String(),
		"outcome", string(outcome),
	)

	return outcome, nil
}

func (s *InterestService) record(ctx context.Context, signal models.InteractionSignal) (InterestOutcome, error) {
	if strings.TrimSpace(signal.Text) == "" {
		return OutcomeSkipped, nil
	}

	if err := validation.ValidateStruct(signal); err != nil {
		return OutcomeInvalid, err
	}

	next, err := s.embedder.CreateEmbedding(ctx, signal.Text)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("embed interaction text: %w", err)
	}

	if !embeddings.Finite(next) {
		return OutcomeDegenerate, apperrors.NewDegenerateVectorError("interaction embedding contains NaN or Inf")
	}

	for attempt := 0; ; attempt++ {
		current, err := s.repo.GetInterest(ctx, signal.UserID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return OutcomeNotFound, err
			}

			return OutcomeFailed, fmt.Errorf("load interest: %w", err)
		}

		final, outcome, err := blendInterest(current, next, signal.Weight)
		if err != nil {
			return outcome, err
		}

		_, err = s.repo.SaveInterest(ctx, signal.UserID, final, current.Version)
		if err == nil {
			return outcome, nil
		}

		switch {
		case errors.Is(err, repository.ErrVersionConflict) && attempt < s.writeRetries:
			if s.metrics != nil {
				s.metrics.RecordConflictRetry(ctx)
			}

			s.logger.DebugContext(ctx, "interest: concurrent update, retrying",
				"user_id", signal.UserID,
				"attempt", attempt+1,
			)

			continue
		case errors.Is(err, repository.ErrVersionConflict):
			return OutcomeConflict, apperrors.NewConflictError(
				fmt.Sprintf("interest of user %s changed concurrently %d times", signal.UserID, attempt+1))
		case errors.Is(err, apperrors.ErrNotFound):
			return OutcomeNotFound, err
		default:
			return OutcomeFailed, fmt.Errorf("save interest: %w", err)
		}
	}
}

// blendInterest computes the vector to store. It never returns a vector with zero norm or
// non-finite components. A stored vector from another embedding space (model or dimension
// change) is replaced by the new embedding rather than blended.
func blendInterest(current *models.UserInterest, next []float32, weight float64) ([]float32, InterestOutcome, error) {
	if !current.HasVector() {
		return baselineInterest(next, OutcomeCreated)
	}

	if len(current.Vector) != len(next) {
		return baselineInterest(next, OutcomeUpdated)
	}

	final, err := embeddings.Blend(current.Vector, next, weight)

	switch {
	case err == nil:
		return final, OutcomeUpdated, nil
	case errors.Is(err, embeddings.ErrInvalidWeight):
		return nil, OutcomeInvalid, apperrors.NewValidationError("weight", err.Error())
	default:
		return nil, OutcomeDegenerate, apperrors.NewDegenerateVectorError("blended interest: " + err.Error())
	}
}

func baselineInterest(next []float32, outcome InterestOutcome) ([]float32, InterestOutcome, error) {
	baseline, err := embeddings.Normalized(next)
	if err != nil {
		return nil, OutcomeDegenerate, apperrors.NewDegenerateVectorError("interaction embedding: " + err.Error())
	}

	return baseline, outcome, nil
}
