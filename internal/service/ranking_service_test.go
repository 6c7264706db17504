package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventscape/relevance/internal/apperrors"
	"github.com/eventscape/relevance/internal/models"
	"github.com/eventscape/relevance/internal/ranking"
	"github.com/eventscape/relevance/pkg/cache"
	"github.com/eventscape/relevance/pkg/geo"
)

var rankNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type recordingRankingMetrics struct {
	mu       sync.Mutex
	modes    []string
	degraded []string
}

func (r *recordingRankingMetrics) RecordRequest(_ context.Context, mode string, _ int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.modes = append(r.modes, mode)
}

func (r *recordingRankingMetrics) RecordDegraded(_ context.Context, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.degraded = append(r.degraded, reason)
}

type recordingCacheMetrics struct {
	mu     sync.Mutex
	hits   int
	misses int
}

func (r *recordingCacheMetrics) RecordHit(context.Context, string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.hits++
}

func (r *recordingCacheMetrics) RecordMiss(context.Context, string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.misses++
}

type fakeEventsLister struct {
	events  []*models.Event
	err     error
	filters *models.UpcomingFilters
}

func (f *fakeEventsLister) ListUpcoming(_ context.Context, filters *models.UpcomingFilters) ([]*models.Event, error) {
	f.filters = filters

	return f.events, f.err
}

type fakeExternalLister struct {
	events []*models.ExternalEvent
	err    error
}

func (f *fakeExternalLister) ListUpcoming(context.Context, *models.UpcomingFilters) ([]*models.ExternalEvent, error) {
	return f.events, f.err
}

func platformEvent(title string, vec []float32, ageHours int) *models.Event {
	return &models.Event{
		ID:        uuid.New(),
		Title:     title,
		Status:    models.EventStatusPublished,
		StartDate: rankNow.Add(48 * time.Hour),
		Embedding: vec,
		CreatedAt: rankNow.Add(-time.Duration(ageHours) * time.Hour),
	}
}

func externalEvent(title string, vec []float32, ageHours int) *models.ExternalEvent {
	return &models.ExternalEvent{
		ID:        uuid.New(),
		Title:     title,
		StartDate: rankNow.Add(24 * time.Hour),
		Embedding: vec,
		CreatedAt: rankNow.Add(-time.Duration(ageHours) * time.Hour),
	}
}

func titles(t *testing.T, results []ranking.Result) []string {
	t.Helper()

	out := make([]string, 0, len(results))

	for _, r := range results {
		switch item := r.Item.(type) {
		case ranking.PlatformItem:
			out = append(out, item.Event.Title)
		case ranking.ExternalItem:
			out = append(out, item.Event.Title)
		default:
			t.Fatalf("unexpected item type %T", r.Item)
		}
	}

	return out
}

type rankingFixture struct {
	svc          *RankingService
	embedder     *fakeEmbedder
	interests    *memoryInterests
	metrics      *recordingRankingMetrics
	cacheMetrics *recordingCacheMetrics
	events       *fakeEventsLister
	external     *fakeExternalLister
}

func newRankingFixture(t *testing.T, withCache bool) *rankingFixture {
	t.Helper()

	f := &rankingFixture{
		embedder: &fakeEmbedder{vectors: map[string][]float32{
			"jazz": {1, 0, 0},
		}},
		interests:    newMemoryInterests(),
		metrics:      &recordingRankingMetrics{},
		cacheMetrics: &recordingCacheMetrics{},
		events:       &fakeEventsLister{},
		external:     &fakeExternalLister{},
	}

	size := 0
	if withCache {
		size = 10
	}

	queryCache := mustQueryCache(t, size)

	f.svc = NewRankingService(RankingServiceParams{
		Weights:        ranking.DefaultWeights(),
		Embedder:       f.embedder,
		Interests:      f.interests,
		Events:         f.events,
		ExternalEvents: f.external,
		QueryCache:     queryCache,
		Metrics:        f.metrics,
		CacheMetrics:   f.cacheMetrics,
	})

	return f
}

func mustQueryCache(t *testing.T, size int) *cache.LoaderCache[string, []float32] {
	t.Helper()

	c, err := NewQueryEmbeddingCache(size, time.Minute)
	require.NoError(t, err)

	return c
}

func sampleCandidates() []ranking.Rankable {
	return []ranking.Rankable{
		ranking.PlatformEvent(platformEvent("Jazz Night", []float32{0.95, 0.3122499, 0}, 3)),
		ranking.PlatformEvent(platformEvent("Hackathon", []float32{0, 1, 0}, 1)),
		ranking.PlatformEvent(platformEvent("Untagged", nil, 0)),
		ranking.ExternalEvent(externalEvent("Blues Jam", []float32{0.6, 0.8, 0}, 2)),
	}
}

func TestRankCandidates_Query(t *testing.T) {
	f := newRankingFixture(t, false)

	result, err := f.svc.RankCandidates(context.Background(), sampleCandidates(), RankOptions{
		QueryText: "  jazz ",
		Now:       rankNow,
	})
	require.NoError(t, err)

	assert.Equal(t, ranking.ModeQuery, result.Mode)
	assert.False(t, result.Degraded)
	assert.Equal(t, []string{"Jazz Night", "Blues Jam"}, titles(t, result.Items))
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, []string{"jazz"}, f.embedder.calls, "query text is trimmed")
	assert.Equal(t, []string{ranking.ModeQuery}, f.metrics.modes)
}

func TestRankCandidates_QueryEmbeddingIsCached(t *testing.T) {
	f := newRankingFixture(t, true)

	for range 3 {
		_, err := f.svc.RankCandidates(context.Background(), sampleCandidates(), RankOptions{QueryText: "jazz", Now: rankNow})
		require.NoError(t, err)
	}

	assert.Equal(t, 1, f.embedder.callCount())
	assert.Equal(t, 1, f.cacheMetrics.misses)
	assert.Equal(t, 2, f.cacheMetrics.hits)
}

func TestRankCandidates_QueryProviderFailureDegrades(t *testing.T) {
	f := newRankingFixture(t, true)
	f.embedder.err = apperrors.NewProviderError("fake", "circuit_open", errors.New("open"))

	// A failed query does not fall back to the user's interests.
	userID := uuid.New()
	f.interests.users[userID] = &models.UserInterest{UserID: userID, Vector: []float32{0, 1, 0}, Version: 1}

	result, err := f.svc.RankCandidates(context.Background(), sampleCandidates(), RankOptions{
		QueryText: "jazz",
		UserID:    &userID,
		Now:       rankNow,
	})
	require.NoError(t, err)

	assert.True(t, result.Degraded)
	assert.Equal(t, ranking.ModeRecency, result.Mode)
	assert.Equal(t, []string{"Untagged", "Hackathon", "Blues Jam", "Jazz Night"}, titles(t, result.Items))
	assert.Equal(t, []string{degradedReasonQueryEmbedding}, f.metrics.degraded)

	// Failed loads are not cached.
	f.embedder.err = nil
	result, err = f.svc.RankCandidates(context.Background(), sampleCandidates(), RankOptions{QueryText: "jazz", Now: rankNow})
	require.NoError(t, err)
	assert.Equal(t, ranking.ModeQuery, result.Mode)
}

func TestRankCandidates_DegradedWithLocationUsesProximity(t *testing.T) {
	f := newRankingFixture(t, false)
	f.embedder.err = apperrors.NewProviderError("fake", "timeout", context.DeadlineExceeded)

	lat, lng := 52.52, 13.405
	near := platformEvent("Near", nil, 10)
	near.Latitude, near.Longitude = &lat, &lng

	candidates := []ranking.Rankable{
		ranking.PlatformEvent(platformEvent("Nowhere", nil, 0)),
		ranking.PlatformEvent(near),
	}

	here := geo.Point{Lat: 52.5, Lng: 13.4}

	result, err := f.svc.RankCandidates(context.Background(), candidates, RankOptions{
		QueryText: "jazz",
		Location:  &here,
		Now:       rankNow,
	})
	require.NoError(t, err)

	assert.True(t, result.Degraded)
	assert.Equal(t, ranking.ModeProximity, result.Mode)
	assert.Equal(t, []string{"Near", "Nowhere"}, titles(t, result.Items))
}

func TestRankCandidates_Interest(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name         string
		setup        func(f *rankingFixture)
		wantMode     string
		wantDegraded bool
		wantTitles   []string
	}{
		{
			name: "interest vector orders semantically",
			setup: func(f *rankingFixture) {
				f.interests.users[userID] = &models.UserInterest{UserID: userID, Vector: []float32{0, 1, 0}, Version: 1}
			},
			wantMode:   ranking.ModeInterest,
			wantTitles: []string{"Hackathon", "Blues Jam", "Jazz Night", "Untagged"},
		},
		{
			name: "user without vector",
			setup: func(f *rankingFixture) {
				f.interests.users[userID] = &models.UserInterest{UserID: userID}
			},
			wantMode:   ranking.ModeRecency,
			wantTitles: []string{"Untagged", "Hackathon", "Blues Jam", "Jazz Night"},
		},
		{
			name:       "unknown user",
			setup:      func(*rankingFixture) {},
			wantMode:   ranking.ModeRecency,
			wantTitles: []string{"Untagged", "Hackathon", "Blues Jam", "Jazz Night"},
		},
		{
			name: "interest store failure",
			setup: func(f *rankingFixture) {
				f.interests.getErr = errors.New("connection refused")
			},
			wantMode:     ranking.ModeRecency,
			wantDegraded: true,
			wantTitles:   []string{"Untagged", "Hackathon", "Blues Jam", "Jazz Night"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRankingFixture(t, false)
			tt.setup(f)

			result, err := f.svc.RankCandidates(context.Background(), sampleCandidates(), RankOptions{
				UserID: &userID,
				Now:    rankNow,
			})
			require.NoError(t, err)

			assert.Equal(t, tt.wantMode, result.Mode)
			assert.Equal(t, tt.wantDegraded, result.Degraded)
			assert.Equal(t, tt.wantTitles, titles(t, result.Items))
			assert.Zero(t, f.embedder.callCount())
		})
	}
}

func TestRankCandidates_InvalidRequest(t *testing.T) {
	f := newRankingFixture(t, false)
	radius := -1.0

	_, err := f.svc.RankCandidates(context.Background(), sampleCandidates(), RankOptions{RadiusKm: &radius})
	require.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.svc.RankCandidates(context.Background(), sampleCandidates(), RankOptions{Location: &geo.Point{Lat: 91}})
	require.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Empty(t, f.metrics.modes)
}

func TestRankUpcoming(t *testing.T) {
	f := newRankingFixture(t, false)
	f.events.events = []*models.Event{
		platformEvent("Jazz Night", []float32{1, 0, 0}, 5),
		platformEvent("Hackathon", []float32{0, 1, 0}, 1),
	}
	f.external.events = []*models.ExternalEvent{
		externalEvent("Blues Jam", []float32{0.6, 0.8, 0}, 2),
	}

	category := "music"

	first, err := f.svc.RankUpcoming(context.Background(), RankOptions{QueryText: "jazz", Category: &category, Now: rankNow}, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Jazz Night"}, titles(t, first.Items))
	assert.Equal(t, 2, first.Total)

	second, err := f.svc.RankUpcoming(context.Background(), RankOptions{QueryText: "jazz", Category: &category, Now: rankNow}, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Blues Jam"}, titles(t, second.Items))

	require.NotNil(t, f.events.filters)
	assert.Equal(t, rankNow, f.events.filters.From)
	assert.Equal(t, &category, f.events.filters.Category)

	all, err := f.svc.RankUpcoming(context.Background(), RankOptions{Now: rankNow}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hackathon", "Blues Jam", "Jazz Night"}, titles(t, all.Items))
	assert.Equal(t, ranking.ModeRecency, all.Mode)
}

func TestRankUpcoming_Errors(t *testing.T) {
	f := newRankingFixture(t, false)

	_, err := f.svc.RankUpcoming(context.Background(), RankOptions{}, MaxRankLimit+1, 0)
	require.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.svc.RankUpcoming(context.Background(), RankOptions{}, 10, -1)
	require.ErrorIs(t, err, apperrors.ErrValidation)

	storeErr := errors.New("relation does not exist")
	f.external.err = storeErr

	_, err = f.svc.RankUpcoming(context.Background(), RankOptions{}, 10, 0)
	require.ErrorIs(t, err, storeErr)
}
