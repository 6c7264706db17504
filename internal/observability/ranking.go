package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RankingMetrics records ranking request metrics.
type RankingMetrics interface {
	RecordRequest(ctx context.Context, mode string, candidates int, duration time.Duration)
	RecordDegraded(ctx context.Context, reason string)
}

type rankingMetrics struct {
	requests   metric.Int64Counter
	degraded   metric.Int64Counter
	candidates metric.Int64Histogram
	duration   metric.Float64Histogram
}

// NewRankingMetrics creates RankingMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewRankingMetrics(meter metric.Meter) (RankingMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	requests, err := meter.Int64Counter(
		MetricNameRankingRequests,
		metric.WithDescription("Ranking requests by ordering mode (query, interest, proximity, recency)"),
	)
	if err != nil {
		return nil, fmt.Errorf("create ranking requests counter: %w", err)
	}

	degraded, err := meter.Int64Counter(
		MetricNameRankingDegraded,
		metric.WithDescription("Ranking requests served without the semantic reference"),
	)
	if err != nil {
		return nil, fmt.Errorf("create ranking degraded counter: %w", err)
	}

	candidates, err := meter.Int64Histogram(
		MetricNameRankingCandidates,
		metric.WithDescription("Candidates considered per ranking request"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create ranking candidates histogram: %w", err)
	}

	duration, err := meter.Float64Histogram(
		MetricNameRankingDuration,
		metric.WithDescription("Ranking request duration (seconds)"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create ranking duration histogram: %w", err)
	}

	return &rankingMetrics{
		requests:   requests,
		degraded:   degraded,
		candidates: candidates,
		duration:   duration,
	}, nil
}

func (m *rankingMetrics) RecordRequest(ctx context.Context, mode string, candidates int, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String(AttrMode, NormalizeReason(mode, AllowedRankingModes)))
	m.requests.Add(ctx, 1, attrs)
	m.candidates.Record(ctx, int64(candidates), attrs)
	m.duration.Record(ctx, duration.Seconds(), attrs)
}

func (m *rankingMetrics) RecordDegraded(ctx context.Context, reason string) {
	reason = NormalizeReason(reason, AllowedDegradedReasons)
	m.degraded.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrReason, reason)))
}
