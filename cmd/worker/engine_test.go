package main

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventscape/relevance/internal/config"
	"github.com/eventscape/relevance/internal/datatypes"
	"github.com/eventscape/relevance/internal/models"
	"github.com/eventscape/relevance/internal/ranking"
	"github.com/eventscape/relevance/internal/service"
)

type capturingInserter struct {
	mu   sync.Mutex
	args []river.JobArgs
	opts []*river.InsertOpts
}

func (c *capturingInserter) Insert(
	_ context.Context, args river.JobArgs, opts *river.InsertOpts,
) (*rivertype.JobInsertResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.args = append(c.args, args)
	c.opts = append(c.opts, opts)

	return &rivertype.JobInsertResult{Job: &rivertype.JobRow{ID: int64(len(c.args))}}, nil
}

type countingEmbedder struct {
	mu    sync.Mutex
	vec   []float32
	calls int
}

func (c *countingEmbedder) CreateEmbedding(context.Context, string) ([]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls++

	return c.vec, nil
}

func (c *countingEmbedder) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.calls
}

func loadConfig(t *testing.T, env map[string]string) *config.Config {
	t.Helper()

	for k, v := range env {
		t.Setenv(k, v)
	}

	cfg, err := config.Load()
	require.NoError(t, err)

	return cfg
}

func TestInterestTrackerConfig(t *testing.T) {
	cfg := loadConfig(t, map[string]string{
		"INTEREST_WEIGHT_REGISTRATION": "0.8",
		"INTEREST_MAX_ATTEMPTS":        "7",
	})

	got := interestTrackerConfig(cfg)

	assert.InDelta(t, 0.8, got.Weights.Registration, 1e-12)
	assert.InDelta(t, datatypes.DefaultBookmarkWeight, got.Weights.Bookmark, 1e-12)
	assert.Equal(t, 7, got.MaxAttempts)
}

func TestNewEngine_TrackerUsesConfiguredWeightsAndAttempts(t *testing.T) {
	cfg := loadConfig(t, map[string]string{
		"INTEREST_WEIGHT_BOOKMARK": "0.45",
		"INTEREST_MAX_ATTEMPTS":    "5",
	})

	inserter := &capturingInserter{}
	eng, err := newEngine(cfg, engineDeps{inserter: inserter, embedder: &countingEmbedder{vec: []float32{1, 0}}})
	require.NoError(t, err)

	userID := uuid.New()
	eng.tracker.Track(context.Background(), userID, "rooftop jazz", datatypes.InteractionBookmark)
	eng.tracker.Wait()

	require.Len(t, inserter.args, 1)

	args, ok := inserter.args[0].(service.InterestUpdateArgs)
	require.True(t, ok)
	assert.Equal(t, userID, args.UserID)
	assert.InDelta(t, 0.45, args.Weight, 1e-12)
	assert.Equal(t, datatypes.InteractionBookmark, args.Interaction)
	assert.Equal(t, 5, inserter.opts[0].MaxAttempts)
	assert.Equal(t, service.InterestsQueueName, inserter.opts[0].Queue)
}

func rankingCandidates(now time.Time) []ranking.Rankable {
	start := now.Add(24 * time.Hour)

	return ranking.PlatformEvents([]*models.Event{
		{ID: uuid.New(), Title: "exact", StartDate: start, Embedding: []float32{1, 0}, CreatedAt: now},
		{ID: uuid.New(), Title: "close", StartDate: start, Embedding: []float32{0.8, 0.6}, CreatedAt: now},
	})
}

func TestNewEngine_RankingUsesConfiguredThreshold(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	opts := service.RankOptions{QueryText: "jazz", Now: now}

	t.Run("default floor keeps both", func(t *testing.T) {
		cfg := loadConfig(t, nil)

		eng, err := newEngine(cfg, engineDeps{embedder: &countingEmbedder{vec: []float32{1, 0}}})
		require.NoError(t, err)

		result, err := eng.ranking.RankCandidates(context.Background(), rankingCandidates(now), opts)
		require.NoError(t, err)
		assert.Len(t, result.Items, 2)
	})

	t.Run("raised floor drops the weaker match", func(t *testing.T) {
		cfg := loadConfig(t, map[string]string{"RANKING_RELEVANCE_THRESHOLD": "0.9"})

		eng, err := newEngine(cfg, engineDeps{embedder: &countingEmbedder{vec: []float32{1, 0}}})
		require.NoError(t, err)

		result, err := eng.ranking.RankCandidates(context.Background(), rankingCandidates(now), opts)
		require.NoError(t, err)
		require.Len(t, result.Items, 1)
		assert.Equal(t, "query", result.Mode)
	})
}

func TestNewEngine_QueryCacheFollowsConfig(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	opts := service.RankOptions{QueryText: "jazz", Now: now}

	tests := []struct {
		name      string
		cacheSize string
		wantCalls int
	}{
		{"cached", "10", 1},
		{"disabled", "0", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loadConfig(t, map[string]string{"QUERY_EMBEDDING_CACHE_SIZE": tt.cacheSize})
			embedder := &countingEmbedder{vec: []float32{1, 0}}

			eng, err := newEngine(cfg, engineDeps{embedder: embedder})
			require.NoError(t, err)

			for range 3 {
				_, err := eng.ranking.RankCandidates(context.Background(), rankingCandidates(now), opts)
				require.NoError(t, err)
			}

			assert.Equal(t, tt.wantCalls, embedder.callCount())
		})
	}
}
