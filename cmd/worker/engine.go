package main

import (
	"fmt"

	"github.com/eventscape/relevance/internal/config"
	"github.com/eventscape/relevance/internal/observability"
	"github.com/eventscape/relevance/internal/service"
)

// engine holds the request-path services that run next to the workers: ranking and
// interaction tracking. Interaction updates are enqueued on the interests queue.
type engine struct {
	ranking *service.RankingService
	tracker *service.InterestTracker
}

// engineDeps are the stores and clients the engine reads from. metrics may be nil.
type engineDeps struct {
	inserter       service.JobInserter
	recorder       service.InteractionRecorder
	embedder       service.EmbeddingClient
	interests      service.InterestReader
	events         service.UpcomingEventsLister
	externalEvents service.UpcomingExternalEventsLister
	clicks         service.ClickCounter
	metrics        *observability.Metrics
}

// interestTrackerConfig maps INTEREST_* settings onto the tracker.
func interestTrackerConfig(cfg *config.Config) service.InterestTrackerConfig {
	return service.InterestTrackerConfig{
		Weights:     cfg.InterestWeights,
		MaxAttempts: cfg.InterestMaxAttempts,
	}
}

func newEngine(cfg *config.Config, deps engineDeps) (*engine, error) {
	var (
		interestMetrics observability.InterestMetrics
		rankingMetrics  observability.RankingMetrics
		cacheMetrics    observability.CacheMetrics
	)

	if deps.metrics != nil {
		interestMetrics = deps.metrics.Interest
		rankingMetrics = deps.metrics.Ranking
		cacheMetrics = deps.metrics.Cache
	}

	queryCache, err := service.NewQueryEmbeddingCache(cfg.QueryEmbeddingCacheSize, cfg.QueryEmbeddingCacheTTL)
	if err != nil {
		return nil, fmt.Errorf("create query embedding cache: %w", err)
	}

	ranking := service.NewRankingService(service.RankingServiceParams{
		Weights:        cfg.RankingWeights(),
		Embedder:       deps.embedder,
		Interests:      deps.interests,
		Events:         deps.events,
		ExternalEvents: deps.externalEvents,
		QueryCache:     queryCache,
		Metrics:        rankingMetrics,
		CacheMetrics:   cacheMetrics,
	})

	tracker := service.NewInterestTracker(deps.inserter, deps.recorder, deps.clicks,
		interestTrackerConfig(cfg), interestMetrics)

	return &engine{ranking: ranking, tracker: tracker}, nil
}
