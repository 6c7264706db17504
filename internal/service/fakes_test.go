package service

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/eventscape/relevance/internal/apperrors"
	"github.com/eventscape/relevance/internal/datatypes"
	"github.com/eventscape/relevance/internal/models"
	"github.com/eventscape/relevance/internal/repository"
	"github.com/eventscape/relevance/pkg/embeddings"
)

// fakeEmbedder returns vectors from a table, or err when set.
type fakeEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	err     error
	calls   []string
}

func (f *fakeEmbedder) CreateEmbedding(_ context.Context, input string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, input)
	if f.err != nil {
		return nil, f.err
	}

	vec, ok := f.vectors[input]
	if !ok {
		return nil, apperrors.NewProviderError("fake", "embed", nil)
	}

	return slices.Clone(vec), nil
}

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.calls)
}

// memoryInterests is an in-memory interests store with version checks.
type memoryInterests struct {
	mu         sync.Mutex
	users      map[uuid.UUID]*models.UserInterest
	saves      int
	getErr     error
	saveErr    error
	beforeSave func(userID uuid.UUID)
}

func newMemoryInterests(users ...uuid.UUID) *memoryInterests {
	m := &memoryInterests{users: map[uuid.UUID]*models.UserInterest{}}
	for _, id := range users {
		m.users[id] = &models.UserInterest{UserID: id}
	}

	return m
}

func (m *memoryInterests) set(userID uuid.UUID, vec []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u := m.users[userID]
	u.Vector = vec
	u.Version++
}

func (m *memoryInterests) get(userID uuid.UUID) models.UserInterest {
	m.mu.Lock()
	defer m.mu.Unlock()

	return *m.users[userID]
}

func (m *memoryInterests) GetInterest(_ context.Context, userID uuid.UUID) (*models.UserInterest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.getErr != nil {
		return nil, m.getErr
	}

	u, ok := m.users[userID]
	if !ok {
		return nil, apperrors.NewNotFoundError("user", "user not found")
	}

	cp := *u
	cp.Vector = slices.Clone(u.Vector)

	return &cp, nil
}

func (m *memoryInterests) SaveInterest(
	_ context.Context, userID uuid.UUID, vector []float32, expectedVersion int64,
) (int64, error) {
	if m.beforeSave != nil {
		m.beforeSave(userID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.saves++

	if m.saveErr != nil {
		return 0, m.saveErr
	}

	u, ok := m.users[userID]
	if !ok {
		return 0, apperrors.NewNotFoundError("user", "user not found")
	}

	if u.Version != expectedVersion {
		return 0, repository.ErrVersionConflict
	}

	now := time.Now()
	u.Vector = slices.Clone(vector)
	u.Version++
	u.UpdatedAt = &now

	return u.Version, nil
}

func (m *memoryInterests) InterestedUsers(
	_ context.Context, embedding []float32, minSimilarity float64, limit int,
) ([]models.InterestMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.getErr != nil {
		return nil, m.getErr
	}

	var matches []models.InterestMatch

	for id, u := range m.users {
		if !u.HasVector() {
			continue
		}

		if sim := embeddings.CosineSimilarity(u.Vector, embedding); sim > minSimilarity {
			matches = append(matches, models.InterestMatch{UserID: id, Similarity: sim})
		}
	}

	slices.SortFunc(matches, func(a, b models.InterestMatch) int {
		return cmp.Compare(b.Similarity, a.Similarity)
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}

	return matches, nil
}

type interestOutcomeCall struct {
	kind   datatypes.InteractionKind
	status string
}

// recordingInterestMetrics implements observability.InterestMetrics.
type recordingInterestMetrics struct {
	mu          sync.Mutex
	outcomes    []interestOutcomeCall
	conflicts   int
	tracked     []datatypes.InteractionKind
	trackErrors []string
}

func (r *recordingInterestMetrics) RecordOutcome(
	_ context.Context, kind datatypes.InteractionKind, status string, _ time.Duration,
) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.outcomes = append(r.outcomes, interestOutcomeCall{kind: kind, status: status})
}

func (r *recordingInterestMetrics) RecordConflictRetry(context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conflicts++
}

func (r *recordingInterestMetrics) RecordTracked(_ context.Context, kind datatypes.InteractionKind) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tracked = append(r.tracked, kind)
}

func (r *recordingInterestMetrics) RecordTrackError(_ context.Context, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.trackErrors = append(r.trackErrors, reason)
}

// recordingInserter captures inserted jobs.
type recordingInserter struct {
	mu   sync.Mutex
	jobs []insertedJob
	err  error
}

type insertedJob struct {
	args river.JobArgs
	opts *river.InsertOpts
}

func (r *recordingInserter) Insert(
	_ context.Context, args river.JobArgs, opts *river.InsertOpts,
) (*rivertype.JobInsertResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return nil, r.err
	}

	r.jobs = append(r.jobs, insertedJob{args: args, opts: opts})

	return &rivertype.JobInsertResult{Job: &rivertype.JobRow{ID: int64(len(r.jobs))}}, nil
}

func (r *recordingInserter) inserted() []insertedJob {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.jobs)
}
