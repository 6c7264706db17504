package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/eventscape/relevance/internal/apperrors"
	"github.com/eventscape/relevance/internal/datatypes"
	"github.com/eventscape/relevance/internal/models"
	"github.com/eventscape/relevance/internal/observability"
)

const (
	defaultEmbeddingMaxAttempts = 5

	enqueueReasonCreated  = "created"
	enqueueReasonUpdated  = "updated"
	enqueueReasonBackfill = "backfill"
)

// ErrNoInserter is returned when a job is enqueued on a service built without a job inserter.
var ErrNoInserter = errors.New("job inserter not configured")

// EventEmbeddingStore reads platform events and stores their embeddings.
type EventEmbeddingStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error
	ListIDsForEmbeddingBackfill(ctx context.Context) ([]uuid.UUID, error)
}

// ExternalEventEmbeddingStore reads external events and stores their embeddings.
type ExternalEventEmbeddingStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.ExternalEvent, error)
	UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error
	ListIDsForEmbeddingBackfill(ctx context.Context) ([]uuid.UUID, error)
}

// BackfillStats holds statistics from a backfill run.
type BackfillStats struct {
	PlatformEnqueued int
	ExternalEnqueued int
	Errors           int
}

// CandidateEmbeddingService generates and stores candidate embeddings and enqueues the
// candidate_embedding jobs that do so in the background.
type CandidateEmbeddingService struct {
	inserter    JobInserter
	events      EventEmbeddingStore
	external    ExternalEventEmbeddingStore
	embedder    EmbeddingClient
	maxAttempts int
	metrics     observability.EmbeddingMetrics
}

// CandidateEmbeddingServiceParams configures CandidateEmbeddingService.
// Inserter may be nil when the service only embeds synchronously (e.g. inside a worker).
type CandidateEmbeddingServiceParams struct {
	Inserter    JobInserter
	Events      EventEmbeddingStore
	External    ExternalEventEmbeddingStore
	Embedder    EmbeddingClient
	MaxAttempts int
	Metrics     observability.EmbeddingMetrics
}

// NewCandidateEmbeddingService creates a CandidateEmbeddingService.
func NewCandidateEmbeddingService(p CandidateEmbeddingServiceParams) *CandidateEmbeddingService {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultEmbeddingMaxAttempts
	}

	return &CandidateEmbeddingService{
		inserter:    p.Inserter,
		events:      p.Events,
		external:    p.External,
		embedder:    p.Embedder,
		maxAttempts: p.MaxAttempts,
		metrics:     p.Metrics,
	}
}

// EnqueueCreated enqueues the embedding job for a candidate that was just created. For platform
// events the job also matches the new event against stored user interests.
func (s *CandidateEmbeddingService) EnqueueCreated(
	ctx context.Context, source datatypes.CandidateSource, id uuid.UUID,
) error {
	args := CandidateEmbeddingArgs{
		Source:         source,
		CandidateID:    id,
		MatchInterests: source == datatypes.SourcePlatform,
	}

	return s.enqueueCounted(ctx, args, enqueueReasonCreated)
}

// EnqueueEmbedding enqueues a job that re-embeds one candidate after its text changed. A job for
// the same candidate that is still queued or running absorbs the new one.
func (s *CandidateEmbeddingService) EnqueueEmbedding(
	ctx context.Context, source datatypes.CandidateSource, id uuid.UUID,
) error {
	return s.enqueueCounted(ctx, CandidateEmbeddingArgs{Source: source, CandidateID: id}, enqueueReasonUpdated)
}

func (s *CandidateEmbeddingService) enqueueCounted(ctx context.Context, args CandidateEmbeddingArgs, reason string) error {
	if err := s.enqueue(ctx, args); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.RecordJobsEnqueued(ctx, reason, 1)
	}

	return nil
}

func (s *CandidateEmbeddingService) enqueue(ctx context.Context, args CandidateEmbeddingArgs) error {
	if s.inserter == nil {
		return ErrNoInserter
	}

	if _, err := datatypes.ParseCandidateSource(string(args.Source)); err != nil {
		return apperrors.NewValidationError("source", err.Error())
	}

	_, err := s.inserter.Insert(ctx, args, &river.InsertOpts{
		Queue:       EmbeddingsQueueName,
		MaxAttempts: s.maxAttempts,
		UniqueOpts:  uniqueWhileQueued(),
	})
	if err != nil {
		return fmt.Errorf("enqueue candidate embedding: %w", err)
	}

	return nil
}

// BackfillEmbeddings enqueues embedding jobs for every candidate whose embedding is missing.
// A failed listing or enqueue is counted in Errors and does not stop the run.
func (s *CandidateEmbeddingService) BackfillEmbeddings(ctx context.Context) (*BackfillStats, error) {
	if s.inserter == nil {
		return nil, ErrNoInserter
	}

	stats := &BackfillStats{}

	platformIDs, err := s.events.ListIDsForEmbeddingBackfill(ctx)
	if err != nil {
		slog.Error("backfill: failed to list platform events", "error", err)
		stats.Errors++
	}

	stats.PlatformEnqueued = s.backfill(ctx, datatypes.SourcePlatform, platformIDs, stats)

	externalIDs, err := s.external.ListIDsForEmbeddingBackfill(ctx)
	if err != nil {
		slog.Error("backfill: failed to list external events", "error", err)
		stats.Errors++
	}

	stats.ExternalEnqueued = s.backfill(ctx, datatypes.SourceExternal, externalIDs, stats)

	if s.metrics != nil {
		s.metrics.RecordJobsEnqueued(ctx, enqueueReasonBackfill, int64(stats.PlatformEnqueued+stats.ExternalEnqueued))
	}

	return stats, nil
}

func (s *CandidateEmbeddingService) backfill(
	ctx context.Context, source datatypes.CandidateSource, ids []uuid.UUID, stats *BackfillStats,
) int {
	count := 0

	for _, id := range ids {
		if err := s.enqueue(ctx, CandidateEmbeddingArgs{Source: source, CandidateID: id}); err != nil {
			slog.Error("backfill: failed to enqueue embedding job", "source", source, "id", id, "error", err)

			stats.Errors++

			continue
		}

		count++
	}

	return count
}

// EmbedCandidate generates the candidate's embedding from its text and stores it.
// A candidate whose text is blank gets its embedding cleared and nil is returned.
func (s *CandidateEmbeddingService) EmbedCandidate(
	ctx context.Context, source datatypes.CandidateSource, id uuid.UUID,
) ([]float32, error) {
	text, err := s.embeddingText(ctx, source, id)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(text) == "" {
		return nil, s.store(ctx, source, id, nil)
	}

	vec, err := s.embedder.CreateEmbedding(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed %s candidate: %w", source, err)
	}

	if err := s.store(ctx, source, id, vec); err != nil {
		return nil, err
	}

	return vec, nil
}

func (s *CandidateEmbeddingService) embeddingText(
	ctx context.Context, source datatypes.CandidateSource, id uuid.UUID,
) (string, error) {
	switch source {
	case datatypes.SourcePlatform:
		event, err := s.events.GetByID(ctx, id)
		if err != nil {
			return "", err
		}

		return event.EmbeddingText(), nil
	case datatypes.SourceExternal:
		event, err := s.external.GetByID(ctx, id)
		if err != nil {
			return "", err
		}

		return event.EmbeddingText(), nil
	default:
		return "", apperrors.NewValidationError("source", fmt.Sprintf("unknown candidate source %q", source))
	}
}

func (s *CandidateEmbeddingService) store(
	ctx context.Context, source datatypes.CandidateSource, id uuid.UUID, vec []float32,
) error {
	var err error

	switch source {
	case datatypes.SourcePlatform:
		err = s.events.UpdateEmbedding(ctx, id, vec)
	case datatypes.SourceExternal:
		err = s.external.UpdateEmbedding(ctx, id, vec)
	default:
		return apperrors.NewValidationError("source", fmt.Sprintf("unknown candidate source %q", source))
	}

	if err != nil {
		return fmt.Errorf("store %s candidate embedding: %w", source, err)
	}

	return nil
}
