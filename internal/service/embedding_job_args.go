package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/eventscape/relevance/internal/datatypes"
)

const (
	interestUpdateKind     = "interest_update"
	candidateEmbeddingKind = "candidate_embedding"

	// InterestsQueueName is the River queue for interest vector updates.
	InterestsQueueName = "interests"
	// EmbeddingsQueueName is the River queue for candidate embedding jobs.
	EmbeddingsQueueName = "embeddings"
)

// JobInserter inserts River jobs (e.g. River client).
type JobInserter interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// InterestUpdateArgs is the job payload for folding one interaction into a user's interest vector.
// Enqueued by InterestTracker, run by workers.InterestUpdateWorker.
type InterestUpdateArgs struct {
	UserID      uuid.UUID                 `json:"user_id"`
	Text        string                    `json:"text"`
	Weight      float64                   `json:"weight"`
	Interaction datatypes.InteractionKind `json:"kind"`
}

// Kind returns the River job kind.
func (InterestUpdateArgs) Kind() string { return interestUpdateKind }

// CandidateEmbeddingArgs is the job payload for generating and storing one candidate's embedding.
// Uniqueness is by (source, id) so repeated edits of the same event do not pile up jobs.
type CandidateEmbeddingArgs struct {
	Source      datatypes.CandidateSource `json:"source" river:"unique"`
	CandidateID uuid.UUID                 `json:"candidate_id" river:"unique"`
	// MatchInterests asks the worker to look up interested users once the embedding is stored.
	// Only set for newly created platform events.
	MatchInterests bool `json:"match_interests,omitempty"`
}

// Kind returns the River job kind.
func (CandidateEmbeddingArgs) Kind() string { return candidateEmbeddingKind }

// uniqueWhileQueued dedupes by args among jobs that have not finished. Completed jobs are left
// out so an edited candidate can be embedded again.
func uniqueWhileQueued() river.UniqueOpts {
	return river.UniqueOpts{
		ByArgs: true,
		// JobStatePending is required by River when using ByState.
		ByState: []rivertype.JobState{
			rivertype.JobStatePending,
			rivertype.JobStateAvailable,
			rivertype.JobStateRunning,
			rivertype.JobStateRetryable,
			rivertype.JobStateScheduled,
		},
	}
}

var (
	_ river.JobArgs = InterestUpdateArgs{}
	_ river.JobArgs = CandidateEmbeddingArgs{}
)
