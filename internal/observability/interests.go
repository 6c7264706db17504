package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/eventscape/relevance/internal/datatypes"
)

// InterestMetrics records interest aggregation and tracking metrics.
type InterestMetrics interface {
	RecordOutcome(ctx context.Context, kind datatypes.InteractionKind, status string, duration time.Duration)
	RecordConflictRetry(ctx context.Context)
	RecordTracked(ctx context.Context, kind datatypes.InteractionKind)
	RecordTrackError(ctx context.Context, reason string)
}

type interestMetrics struct {
	outcomes    metric.Int64Counter
	duration    metric.Float64Histogram
	conflicts   metric.Int64Counter
	tracked     metric.Int64Counter
	trackErrors metric.Int64Counter
}

// NewInterestMetrics creates InterestMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewInterestMetrics(meter metric.Meter) (InterestMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	outcomes, err := meter.Int64Counter(
		MetricNameInterestOutcomes,
		metric.WithDescription("Interest vector updates by interaction kind and status"),
	)
	if err != nil {
		return nil, fmt.Errorf("create interest outcomes counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		MetricNameInterestDuration,
		metric.WithDescription("Interest update duration including embedding (seconds)"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create interest duration histogram: %w", err)
	}

	conflicts, err := meter.Int64Counter(
		MetricNameInterestConflicts,
		metric.WithDescription("Interest writes retried after a concurrent update"),
	)
	if err != nil {
		return nil, fmt.Errorf("create interest conflicts counter: %w", err)
	}

	tracked, err := meter.Int64Counter(
		MetricNameInterestTracked,
		metric.WithDescription("Interaction signals accepted for asynchronous processing"),
	)
	if err != nil {
		return nil, fmt.Errorf("create interest tracked counter: %w", err)
	}

	trackErrors, err := meter.Int64Counter(
		MetricNameInterestTrackErrors,
		metric.WithDescription("Interaction signals dropped by the tracker"),
	)
	if err != nil {
		return nil, fmt.Errorf("create interest track errors counter: %w", err)
	}

	return &interestMetrics{
		outcomes:    outcomes,
		duration:    duration,
		conflicts:   conflicts,
		tracked:     tracked,
		trackErrors: trackErrors,
	}, nil
}

func (m *interestMetrics) RecordOutcome(
	ctx context.Context, kind datatypes.InteractionKind, status string, duration time.Duration,
) {
	status = NormalizeReason(status, AllowedInterestStatuses)
	m.outcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrKind, NormalizeKind(kind)),
		attribute.String(AttrStatus, status),
	))
	m.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String(AttrStatus, status)))
}

func (m *interestMetrics) RecordConflictRetry(ctx context.Context) {
	m.conflicts.Add(ctx, 1)
}

func (m *interestMetrics) RecordTracked(ctx context.Context, kind datatypes.InteractionKind) {
	m.tracked.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrKind, NormalizeKind(kind))))
}

func (m *interestMetrics) RecordTrackError(ctx context.Context, reason string) {
	reason = NormalizeReason(reason, AllowedTrackReasons)
	m.trackErrors.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrReason, reason)))
}
