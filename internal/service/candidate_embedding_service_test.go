package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventscape/relevance/internal/apperrors"
	"github.com/eventscape/relevance/internal/datatypes"
	"github.com/eventscape/relevance/internal/models"
)

type memoryEvents struct {
	events  map[uuid.UUID]*models.Event
	stored  map[uuid.UUID][]float32
	listErr error
}

func (m *memoryEvents) GetByID(_ context.Context, id uuid.UUID) (*models.Event, error) {
	e, ok := m.events[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("event", "event not found")
	}

	return e, nil
}

func (m *memoryEvents) UpdateEmbedding(_ context.Context, id uuid.UUID, embedding []float32) error {
	if m.stored == nil {
		m.stored = map[uuid.UUID][]float32{}
	}

	m.stored[id] = embedding

	return nil
}

func (m *memoryEvents) ListIDsForEmbeddingBackfill(context.Context) ([]uuid.UUID, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}

	var ids []uuid.UUID

	for id, e := range m.events {
		if len(e.Embedding) == 0 {
			ids = append(ids, id)
		}
	}

	return ids, nil
}

type memoryExternalEvents struct {
	events map[uuid.UUID]*models.ExternalEvent
	stored map[uuid.UUID][]float32
}

func (m *memoryExternalEvents) GetByID(_ context.Context, id uuid.UUID) (*models.ExternalEvent, error) {
	e, ok := m.events[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("external event", "external event not found")
	}

	return e, nil
}

func (m *memoryExternalEvents) UpdateEmbedding(_ context.Context, id uuid.UUID, embedding []float32) error {
	if m.stored == nil {
		m.stored = map[uuid.UUID][]float32{}
	}

	m.stored[id] = embedding

	return nil
}

func (m *memoryExternalEvents) ListIDsForEmbeddingBackfill(context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID

	for id, e := range m.events {
		if len(e.Embedding) == 0 {
			ids = append(ids, id)
		}
	}

	return ids, nil
}

type recordingEmbeddingMetrics struct {
	mu       sync.Mutex
	enqueued map[string]int64
}

func (r *recordingEmbeddingMetrics) RecordProviderCall(context.Context, string, string, time.Duration) {}

func (r *recordingEmbeddingMetrics) RecordJobsEnqueued(_ context.Context, reason string, count int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.enqueued == nil {
		r.enqueued = map[string]int64{}
	}

	r.enqueued[reason] += count
}

func (r *recordingEmbeddingMetrics) RecordEmbeddingOutcome(context.Context, datatypes.CandidateSource, string) {}

func (r *recordingEmbeddingMetrics) RecordWorkerError(context.Context, string) {}

func (r *recordingEmbeddingMetrics) RecordEmbeddingDuration(context.Context, time.Duration, string) {}

type candidateFixture struct {
	svc      *CandidateEmbeddingService
	inserter *recordingInserter
	events   *memoryEvents
	external *memoryExternalEvents
	embedder *fakeEmbedder
	metrics  *recordingEmbeddingMetrics
}

func newCandidateFixture() *candidateFixture {
	f := &candidateFixture{
		inserter: &recordingInserter{},
		events:   &memoryEvents{events: map[uuid.UUID]*models.Event{}},
		external: &memoryExternalEvents{events: map[uuid.UUID]*models.ExternalEvent{}},
		embedder: &fakeEmbedder{vectors: map[string][]float32{}},
		metrics:  &recordingEmbeddingMetrics{},
	}

	f.svc = NewCandidateEmbeddingService(CandidateEmbeddingServiceParams{
		Inserter:    f.inserter,
		Events:      f.events,
		External:    f.external,
		Embedder:    f.embedder,
		MaxAttempts: 4,
		Metrics:     f.metrics,
	})

	return f
}

func TestEnqueueEmbedding(t *testing.T) {
	f := newCandidateFixture()
	id := uuid.New()

	require.NoError(t, f.svc.EnqueueEmbedding(context.Background(), datatypes.SourcePlatform, id))

	jobs := f.inserter.inserted()
	require.Len(t, jobs, 1)
	assert.Equal(t, CandidateEmbeddingArgs{Source: datatypes.SourcePlatform, CandidateID: id}, jobs[0].args)
	assert.Equal(t, EmbeddingsQueueName, jobs[0].opts.Queue)
	assert.Equal(t, 4, jobs[0].opts.MaxAttempts)
	assert.True(t, jobs[0].opts.UniqueOpts.ByArgs)
	assert.NotContains(t, jobs[0].opts.UniqueOpts.ByState, rivertype.JobStateCompleted)
	assert.Equal(t, int64(1), f.metrics.enqueued[enqueueReasonUpdated])
	assert.Zero(t, f.metrics.enqueued[enqueueReasonCreated])
}

func TestEnqueueCreated(t *testing.T) {
	f := newCandidateFixture()
	platformID, externalID := uuid.New(), uuid.New()

	require.NoError(t, f.svc.EnqueueCreated(context.Background(), datatypes.SourcePlatform, platformID))
	require.NoError(t, f.svc.EnqueueCreated(context.Background(), datatypes.SourceExternal, externalID))

	jobs := f.inserter.inserted()
	require.Len(t, jobs, 2)
	assert.Equal(t, CandidateEmbeddingArgs{
		Source:         datatypes.SourcePlatform,
		CandidateID:    platformID,
		MatchInterests: true,
	}, jobs[0].args)
	assert.Equal(t, CandidateEmbeddingArgs{Source: datatypes.SourceExternal, CandidateID: externalID}, jobs[1].args)
	assert.Equal(t, int64(2), f.metrics.enqueued[enqueueReasonCreated])
}

func TestEnqueueEmbedding_Errors(t *testing.T) {
	f := newCandidateFixture()

	err := f.svc.EnqueueEmbedding(context.Background(), datatypes.CandidateSource("calendar"), uuid.New())
	require.ErrorIs(t, err, apperrors.ErrValidation)

	f.inserter.err = errors.New("pool closed")
	err = f.svc.EnqueueEmbedding(context.Background(), datatypes.SourceExternal, uuid.New())
	require.Error(t, err)
	assert.Zero(t, f.metrics.enqueued[enqueueReasonUpdated])

	noQueue := NewCandidateEmbeddingService(CandidateEmbeddingServiceParams{})
	require.ErrorIs(t, noQueue.EnqueueEmbedding(context.Background(), datatypes.SourcePlatform, uuid.New()), ErrNoInserter)
}

func TestBackfillEmbeddings(t *testing.T) {
	f := newCandidateFixture()

	missing := uuid.New()
	f.events.events[missing] = &models.Event{ID: missing, Title: "Missing"}
	done := uuid.New()
	f.events.events[done] = &models.Event{ID: done, Title: "Done", Embedding: []float32{1, 0}}

	for range 2 {
		id := uuid.New()
		f.external.events[id] = &models.ExternalEvent{ID: id, Title: "Scraped"}
	}

	stats, err := f.svc.BackfillEmbeddings(context.Background())
	require.NoError(t, err)

	assert.Equal(t, &BackfillStats{PlatformEnqueued: 1, ExternalEnqueued: 2}, stats)
	assert.Len(t, f.inserter.inserted(), 3)
	assert.Equal(t, int64(3), f.metrics.enqueued[enqueueReasonBackfill])

	for _, job := range f.inserter.inserted() {
		args, ok := job.args.(CandidateEmbeddingArgs)
		require.True(t, ok)
		assert.False(t, args.MatchInterests, "backfill never notifies interested users")
	}
}

func TestBackfillEmbeddings_ContinuesAfterListFailure(t *testing.T) {
	f := newCandidateFixture()
	f.events.listErr = errors.New("timeout")

	id := uuid.New()
	f.external.events[id] = &models.ExternalEvent{ID: id, Title: "Scraped"}

	stats, err := f.svc.BackfillEmbeddings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &BackfillStats{ExternalEnqueued: 1, Errors: 1}, stats)
}

func TestEmbedCandidate(t *testing.T) {
	f := newCandidateFixture()

	platformID := uuid.New()
	event := &models.Event{ID: platformID, Title: "Go Meetup", Categories: []string{"tech"}, Description: "Talks"}
	f.events.events[platformID] = event
	f.embedder.vectors[event.EmbeddingText()] = []float32{0, 1}

	description := "Vinyl swap"
	externalID := uuid.New()
	external := &models.ExternalEvent{ID: externalID, Title: "Record Fair", Description: &description}
	f.external.events[externalID] = external
	f.embedder.vectors[external.EmbeddingText()] = []float32{1, 0}

	vec, err := f.svc.EmbedCandidate(context.Background(), datatypes.SourcePlatform, platformID)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1}, vec)
	assert.Equal(t, []float32{0, 1}, f.events.stored[platformID])

	vec, err = f.svc.EmbedCandidate(context.Background(), datatypes.SourceExternal, externalID)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, vec)
	assert.Equal(t, []float32{1, 0}, f.external.stored[externalID])
}

func TestEmbedCandidate_Errors(t *testing.T) {
	f := newCandidateFixture()

	_, err := f.svc.EmbedCandidate(context.Background(), datatypes.SourcePlatform, uuid.New())
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.svc.EmbedCandidate(context.Background(), datatypes.CandidateSource("calendar"), uuid.New())
	require.ErrorIs(t, err, apperrors.ErrValidation)

	id := uuid.New()
	f.events.events[id] = &models.Event{ID: id, Title: "Unknown text"}
	f.embedder.err = apperrors.NewProviderError("fake", "timeout", context.DeadlineExceeded)

	_, err = f.svc.EmbedCandidate(context.Background(), datatypes.SourcePlatform, id)
	require.ErrorIs(t, err, apperrors.ErrProvider)
	assert.NotContains(t, f.events.stored, id)
}

func TestEmbedCandidate_BlankTextClearsEmbedding(t *testing.T) {
	f := newCandidateFixture()

	id := uuid.New()
	f.events.events[id] = &models.Event{ID: id, Title: "  "}

	vec, err := f.svc.EmbedCandidate(context.Background(), datatypes.SourcePlatform, id)
	require.NoError(t, err)
	assert.Nil(t, vec)
	assert.Contains(t, f.events.stored, id)
	assert.Nil(t, f.events.stored[id])
	assert.Zero(t, f.embedder.callCount())
}
