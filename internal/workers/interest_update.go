// Package workers provides the River job workers that update interest vectors and
// generate candidate embeddings.
package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/riverqueue/river"

	"github.com/eventscape/relevance/internal/apperrors"
	"github.com/eventscape/relevance/internal/models"
	"github.com/eventscape/relevance/internal/observability"
	"github.com/eventscape/relevance/internal/service"
)

const interestUpdateTimeout = 30 * time.Second

// InterestUpdateWorker folds one tracked interaction into the user's interest vector.
type InterestUpdateWorker struct {
	river.WorkerDefaults[service.InterestUpdateArgs]

	recorder service.InteractionRecorder
}

// NewInterestUpdateWorker creates an InterestUpdateWorker.
func NewInterestUpdateWorker(recorder service.InteractionRecorder) *InterestUpdateWorker {
	return &InterestUpdateWorker{recorder: recorder}
}

// Timeout limits how long a single interest update can run.
func (w *InterestUpdateWorker) Timeout(*river.Job[service.InterestUpdateArgs]) time.Duration {
	return interestUpdateTimeout
}

// Work applies the interaction. Failures that a retry cannot fix (unknown user, invalid or
// degenerate input) complete the job; provider, conflict and storage failures are retried
// until the last attempt.
func (w *InterestUpdateWorker) Work(ctx context.Context, job *river.Job[service.InterestUpdateArgs]) error {
	ctx = observability.WithJobID(ctx, job.ID)
	args := job.Args

	outcome, err := w.recorder.RecordInteraction(ctx, models.InteractionSignal{
		UserID: args.UserID,
		Text:   args.Text,
		Weight: args.Weight,
		Kind:   args.Interaction,
	})
	if err == nil {
		return nil
	}

	if permanent(err) {
		slog.WarnContext(ctx, "interest: update dropped",
			"user_id", args.UserID,
			"kind", args.Interaction.String(),
			"outcome", string(outcome),
			"error", err,
		)

		return nil
	}

	if job.Attempt >= job.MaxAttempts {
		slog.ErrorContext(ctx, "interest: update failed (final attempt)",
			"user_id", args.UserID,
			"kind", args.Interaction.String(),
			"outcome", string(outcome),
			"error", err,
		)

		return nil
	}

	return fmt.Errorf("interest update: %w", err)
}

// permanent reports whether err will recur on retry.
func permanent(err error) bool {
	return errors.Is(err, apperrors.ErrNotFound) ||
		errors.Is(err, apperrors.ErrValidation) ||
		errors.Is(err, apperrors.ErrDegenerateVector)
}
