package service

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/eventscape/relevance/internal/datatypes"
	"github.com/eventscape/relevance/internal/models"
	"github.com/eventscape/relevance/internal/observability"
	"github.com/eventscape/relevance/internal/validation"
)

const (
	defaultTrackTimeout     = 30 * time.Second
	defaultTrackMaxAttempts = 3

	trackReasonInvalidSignal = "invalid_signal"
	trackReasonEnqueueFailed = "enqueue_failed"
	trackReasonRecordFailed  = "record_failed"
)

// InteractionRecorder applies one interaction signal to a user's interest vector.
// Implemented by InterestService.
type InteractionRecorder interface {
	RecordInteraction(ctx context.Context, signal models.InteractionSignal) (InterestOutcome, error)
}

// ClickCounter increments the click counter of an external event and returns the updated row.
type ClickCounter interface {
	IncrementClicks(ctx context.Context, id uuid.UUID) (*models.ExternalEvent, error)
}

// InterestTrackerConfig configures an InterestTracker.
type InterestTrackerConfig struct {
	Weights     datatypes.InteractionWeights
	MaxAttempts int           // River attempts per interest_update job.
	Timeout     time.Duration // Bound for an enqueue or an in-process update; detached from the caller.
}

// InterestTracker records user interactions without making the caller wait or fail.
// With an inserter every signal becomes an interest_update job on the interests queue;
// without one the update runs in a background goroutine.
type InterestTracker struct {
	inserter    JobInserter
	recorder    InteractionRecorder
	clicks      ClickCounter
	weights     datatypes.InteractionWeights
	maxAttempts int
	timeout     time.Duration
	metrics     observability.InterestMetrics
	wg          sync.WaitGroup
}

// NewInterestTracker creates an InterestTracker. inserter may be nil to update in-process;
// clicks may be nil when external click counting is not needed. metrics may be nil.
func NewInterestTracker(
	inserter JobInserter,
	recorder InteractionRecorder,
	clicks ClickCounter,
	cfg InterestTrackerConfig,
	metrics observability.InterestMetrics,
) *InterestTracker {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultTrackMaxAttempts
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTrackTimeout
	}

	return &InterestTracker{
		inserter:    inserter,
		recorder:    recorder,
		clicks:      clicks,
		weights:     cfg.Weights,
		maxAttempts: cfg.MaxAttempts,
		timeout:     cfg.Timeout,
		metrics:     metrics,
	}
}

// Track records an interaction of kind using the kind's canonical weight.
// Custom interactions have no canonical weight; use TrackWeighted for them.
func (t *InterestTracker) Track(ctx context.Context, userID uuid.UUID, text string, kind datatypes.InteractionKind) {
	weight, ok := t.weights.For(kind)
	if !ok {
		t.fail(ctx, trackReasonInvalidSignal, "tracker: no canonical weight for interaction kind",
			"user_id", userID,
			"kind", kind.String(),
		)

		return
	}

	t.TrackWeighted(ctx, userID, text, weight, kind)
}

// TrackWeighted records an interaction with an explicit weight in (0, 1].
// Blank text is ignored. Errors are logged and counted, never returned.
func (t *InterestTracker) TrackWeighted(
	ctx context.Context, userID uuid.UUID, text string, weight float64, kind datatypes.InteractionKind,
) {
	if strings.TrimSpace(text) == "" {
		return
	}

	signal := models.InteractionSignal{UserID: userID, Text: text, Weight: weight, Kind: kind}
	if err := validation.ValidateStruct(signal); err != nil {
		t.fail(ctx, trackReasonInvalidSignal, "tracker: invalid interaction signal",
			"user_id", userID,
			"kind", kind.String(),
			"error", err,
		)

		return
	}

	if t.inserter == nil {
		t.recordInBackground(ctx, signal)
	} else if !t.enqueue(ctx, signal) {
		return
	}

	if t.metrics != nil {
		t.metrics.RecordTracked(ctx, kind)
	}
}

// TrackRegistration records that userID registered for event.
func (t *InterestTracker) TrackRegistration(ctx context.Context, userID uuid.UUID, event *models.Event) {
	t.Track(ctx, userID, event.EmbeddingText(), datatypes.InteractionRegistration)
}

// TrackBookmark records that userID bookmarked event.
func (t *InterestTracker) TrackBookmark(ctx context.Context, userID uuid.UUID, event *models.Event) {
	t.Track(ctx, userID, event.EmbeddingText(), datatypes.InteractionBookmark)
}

// TrackExternalClick counts a click on an external event and, for a signed-in user (not uuid.Nil
// userID), records an interest signal from the event's text. Runs in the background.
func (t *InterestTracker) TrackExternalClick(ctx context.Context, userID, externalID uuid.UUID) {
	if t.clicks == nil {
		slog.WarnContext(ctx, "tracker: external click dropped, no click counter configured",
			"external_event_id", externalID)

		return
	}

	detached := context.WithoutCancel(ctx)

	t.wg.Add(1)

	go func() {
		defer t.wg.Done()

		clickCtx, cancel := context.WithTimeout(detached, t.timeout)
		defer cancel()

		event, err := t.clicks.IncrementClicks(clickCtx, externalID)
		if err != nil {
			slog.WarnContext(clickCtx, "tracker: failed to count external click",
				"external_event_id", externalID,
				"error", err,
			)

			return
		}

		if userID == uuid.Nil {
			return
		}

		t.Track(detached, userID, event.EmbeddingText(), datatypes.InteractionExternalClick)
	}()
}

// Wait blocks until background updates and click counting started so far have finished.
func (t *InterestTracker) Wait() {
	t.wg.Wait()
}

func (t *InterestTracker) enqueue(ctx context.Context, signal models.InteractionSignal) bool {
	insertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.timeout)
	defer cancel()

	_, err := t.inserter.Insert(insertCtx, InterestUpdateArgs{
		UserID:      signal.UserID,
		Text:        signal.Text,
		Weight:      signal.Weight,
		Interaction: signal.Kind,
	}, &river.InsertOpts{
		Queue:       InterestsQueueName,
		MaxAttempts: t.maxAttempts,
	})
	if err != nil {
		t.fail(ctx, trackReasonEnqueueFailed, "tracker: failed to enqueue interest update",
			"user_id", signal.UserID,
			"kind", signal.Kind.String(),
			"error", err,
		)

		return false
	}

	return true
}

func (t *InterestTracker) recordInBackground(ctx context.Context, signal models.InteractionSignal) {
	detached := context.WithoutCancel(ctx)

	t.wg.Add(1)

	go func() {
		defer t.wg.Done()

		recordCtx, cancel := context.WithTimeout(detached, t.timeout)
		defer cancel()

		outcome, err := t.recorder.RecordInteraction(recordCtx, signal)
		if err != nil {
			t.fail(recordCtx, trackReasonRecordFailed, "tracker: interest update failed",
				"user_id", signal.UserID,
				"kind", signal.Kind.String(),
				"outcome", string(outcome),
				"error", err,
			)
		}
	}()
}

func (t *InterestTracker) fail(ctx context.Context, reason, msg string, args ...any) {
	slog.WarnContext(ctx, msg, args...)

	if t.metrics != nil {
		t.metrics.RecordTrackError(ctx, reason)
	}
}
