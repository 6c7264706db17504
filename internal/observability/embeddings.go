package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/eventscape/relevance/internal/datatypes"
)

// EmbeddingMetrics records embedding pipeline metrics (provider calls, candidate jobs).
// Methods accept ctx for future exemplar support.
type EmbeddingMetrics interface {
	RecordProviderCall(ctx context.Context, provider, outcome string, duration time.Duration)
	RecordJobsEnqueued(ctx context.Context, reason string, count int64)
	RecordEmbeddingOutcome(ctx context.Context, source datatypes.CandidateSource, status string)
	RecordWorkerError(ctx context.Context, reason string)
	RecordEmbeddingDuration(ctx context.Context, duration time.Duration, status string)
}

type embeddingMetrics struct {
	providerCalls    metric.Int64Counter
	providerDuration metric.Float64Histogram
	jobsEnqueued     metric.Int64Counter
	outcomes         metric.Int64Counter
	workerErrors     metric.Int64Counter
	duration         metric.Float64Histogram
}

// NewEmbeddingMetrics creates EmbeddingMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewEmbeddingMetrics(meter metric.Meter) (EmbeddingMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	providerCalls, err := meter.Int64Counter(
		MetricNameProviderCalls,
		metric.WithDescription("Embedding provider calls by provider and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("create provider calls counter: %w", err)
	}

	providerDuration, err := meter.Float64Histogram(
		MetricNameProviderDuration,
		metric.WithDescription("Embedding provider call duration (seconds)"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create provider duration histogram: %w", err)
	}

	jobsEnqueued, err := meter.Int64Counter(
		MetricNameEmbeddingJobsEnqueued,
		metric.WithDescription("Total candidate embedding jobs enqueued"),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding jobs enqueued counter: %w", err)
	}

	outcomes, err := meter.Int64Counter(
		MetricNameEmbeddingOutcomes,
		metric.WithDescription("Total candidate embedding job outcomes by source and status"),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding outcomes counter: %w", err)
	}

	workerErrors, err := meter.Int64Counter(
		MetricNameEmbeddingWorkerErrors,
		metric.WithDescription("Total candidate embedding worker errors (get candidate, embed, update)"),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding worker errors counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		MetricNameEmbeddingDuration,
		metric.WithDescription("Candidate embedding job duration (seconds)"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding duration histogram: %w", err)
	}

	return &embeddingMetrics{
		providerCalls:    providerCalls,
		providerDuration: providerDuration,
		jobsEnqueued:     jobsEnqueued,
		outcomes:         outcomes,
		workerErrors:     workerErrors,
		duration:         duration,
	}, nil
}

func (e *embeddingMetrics) RecordProviderCall(ctx context.Context, provider, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(AttrProvider, NormalizeReason(provider, AllowedProviders)),
		attribute.String(AttrOutcome, NormalizeReason(outcome, AllowedProviderOutcomes)),
	)
	e.providerCalls.Add(ctx, 1, attrs)
	e.providerDuration.Record(ctx, duration.Seconds(), attrs)
}

func (e *embeddingMetrics) RecordJobsEnqueued(ctx context.Context, reason string, count int64) {
	reason = NormalizeReason(reason, AllowedEmbeddingEnqueueReasons)
	e.jobsEnqueued.Add(ctx, count, metric.WithAttributes(attribute.String(AttrReason, reason)))
}

func (e *embeddingMetrics) RecordEmbeddingOutcome(ctx context.Context, source datatypes.CandidateSource, status string) {
	e.outcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrSource, NormalizeSource(source)),
		attribute.String(AttrStatus, NormalizeReason(status, AllowedEmbeddingJobStatuses)),
	))
}

func (e *embeddingMetrics) RecordWorkerError(ctx context.Context, reason string) {
	reason = NormalizeReason(reason, AllowedEmbeddingWorkerReasons)
	e.workerErrors.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrReason, reason)))
}

func (e *embeddingMetrics) RecordEmbeddingDuration(ctx context.Context, duration time.Duration, status string) {
	status = NormalizeReason(status, AllowedEmbeddingJobStatuses)
	e.duration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String(AttrStatus, status)))
}
