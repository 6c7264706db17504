package observability

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all relevance metric collectors. When metrics are disabled, all fields are nil.
// Components accept the interface fields directly; they already handle nil.
type Metrics struct {
	Interest  InterestMetrics
	Ranking   RankingMetrics
	Embedding EmbeddingMetrics
	Cache     CacheMetrics
}

// NewMetrics creates every collector from the given meter.
// Returns (nil, nil) when meter is nil (metrics disabled).
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	interest, err := NewInterestMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("interest metrics: %w", err)
	}

	ranking, err := NewRankingMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("ranking metrics: %w", err)
	}

	embedding, err := NewEmbeddingMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("embedding metrics: %w", err)
	}

	cache, err := NewCacheMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("cache metrics: %w", err)
	}

	return &Metrics{
		Interest:  interest,
		Ranking:   ranking,
		Embedding: embedding,
		Cache:     cache,
	}, nil
}
