package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/eventscape/relevance/internal/apperrors"
	"github.com/eventscape/relevance/internal/datatypes"
	"github.com/eventscape/relevance/internal/models"
	"github.com/eventscape/relevance/internal/observability"
	"github.com/eventscape/relevance/internal/service"
)

const candidateEmbeddingTimeout = 30 * time.Second

// Job outcome statuses recorded in metrics.
const (
	statusSuccess     = "success"
	statusRetry       = "retry"
	statusFailedFinal = "failed_final"
	statusSkipped     = "skipped"
)

// candidateEmbedder is the minimal interface needed by the worker.
type candidateEmbedder interface {
	EmbedCandidate(ctx context.Context, source datatypes.CandidateSource, id uuid.UUID) ([]float32, error)
}

// interestMatcher finds users interested in a freshly embedded event.
type interestMatcher interface {
	MatchEmbedding(ctx context.Context, embedding []float32) ([]models.InterestMatch, error)
}

// CandidateEmbeddingWorker generates and stores the embedding of one ranking candidate.
type CandidateEmbeddingWorker struct {
	river.WorkerDefaults[service.CandidateEmbeddingArgs]

	embedder candidateEmbedder
	matcher  interestMatcher
	metrics  observability.EmbeddingMetrics
}

// NewCandidateEmbeddingWorker creates a CandidateEmbeddingWorker. matcher may be nil to skip
// interest matching; metrics may be nil when metrics are disabled.
func NewCandidateEmbeddingWorker(
	embedder candidateEmbedder,
	matcher interestMatcher,
	metrics observability.EmbeddingMetrics,
) *CandidateEmbeddingWorker {
	return &CandidateEmbeddingWorker{
		embedder: embedder,
		matcher:  matcher,
		metrics:  metrics,
	}
}

// Timeout limits how long a single embedding job can run.
func (w *CandidateEmbeddingWorker) Timeout(*river.Job[service.CandidateEmbeddingArgs]) time.Duration {
	return candidateEmbeddingTimeout
}

// Work embeds the candidate. For a newly created platform event (MatchInterests set) it then looks
// up the users whose interests match; a failed lookup is logged and does not fail the job.
// Re-embeds after edits and backfill jobs skip matching.
func (w *CandidateEmbeddingWorker) Work(ctx context.Context, job *river.Job[service.CandidateEmbeddingArgs]) error {
	ctx = observability.WithJobID(ctx, job.ID)
	args := job.Args
	start := time.Now()

	embedding, err := w.embedder.EmbedCandidate(ctx, args.Source, args.CandidateID)
	if err != nil {
		return w.handleError(ctx, job, err, start)
	}

	if embedding == nil {
		slog.InfoContext(ctx, "embedding: cleared (empty text)",
			"source", args.Source,
			"candidate_id", args.CandidateID,
		)
		w.record(ctx, args.Source, statusSuccess, start)

		return nil
	}

	slog.InfoContext(ctx, "embedding: stored",
		"source", args.Source,
		"candidate_id", args.CandidateID,
	)
	w.record(ctx, args.Source, statusSuccess, start)

	if args.MatchInterests && args.Source == datatypes.SourcePlatform && w.matcher != nil {
		w.matchInterests(ctx, args.CandidateID, embedding)
	}

	return nil
}

func (w *CandidateEmbeddingWorker) handleError(
	ctx context.Context, job *river.Job[service.CandidateEmbeddingArgs], err error, start time.Time,
) error {
	args := job.Args

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		w.workerError(ctx, "get_candidate")
		w.record(ctx, args.Source, statusSkipped, start)

		slog.WarnContext(ctx, "embedding: candidate not found",
			"source", args.Source,
			"candidate_id", args.CandidateID,
		)

		return nil // no retry when the candidate is gone
	case errors.Is(err, apperrors.ErrValidation):
		w.workerError(ctx, "unknown_source")
		w.record(ctx, args.Source, statusFailedFinal, start)

		slog.ErrorContext(ctx, "embedding: invalid job",
			"source", args.Source,
			"candidate_id", args.CandidateID,
			"error", err,
		)

		return nil
	case errors.Is(err, apperrors.ErrProvider):
		w.workerError(ctx, "embed")
	default:
		w.workerError(ctx, "update")
	}

	if job.Attempt >= job.MaxAttempts {
		w.record(ctx, args.Source, statusFailedFinal, start)

		slog.ErrorContext(ctx, "embedding: failed (final attempt)",
			"source", args.Source,
			"candidate_id", args.CandidateID,
			"error", err,
		)

		return nil
	}

	w.record(ctx, args.Source, statusRetry, start)

	return fmt.Errorf("candidate embedding: %w", err)
}

func (w *CandidateEmbeddingWorker) matchInterests(ctx context.Context, eventID uuid.UUID, embedding []float32) {
	matches, err := w.matcher.MatchEmbedding(ctx, embedding)
	if err != nil {
		w.workerError(ctx, "interest_match")

		slog.WarnContext(ctx, "embedding: interest matching failed",
			"candidate_id", eventID,
			"error", err,
		)

		return
	}

	slog.InfoContext(ctx, "embedding: interested users found",
		"candidate_id", eventID,
		"count", len(matches),
	)
}

func (w *CandidateEmbeddingWorker) workerError(ctx context.Context, reason string) {
	if w.metrics != nil {
		w.metrics.RecordWorkerError(ctx, reason)
	}
}

func (w *CandidateEmbeddingWorker) record(ctx context.Context, source datatypes.CandidateSource, status string, start time.Time) {
	if w.metrics != nil {
		w.metrics.RecordEmbeddingOutcome(ctx, source, status)
		w.metrics.RecordEmbeddingDuration(ctx, time.Since(start), status)
	}
}
