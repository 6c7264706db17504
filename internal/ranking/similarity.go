package ranking

import (
	"bytes"
	"cmp"
	"slices"

	"github.com/eventscape/relevance/pkg/embeddings"
)

// Scored is a candidate with its similarity to the reference.
type Scored struct {
	Item  Rankable
	Score float64
}

// Rank scores candidates against reference by cosine similarity and returns those scoring above
// threshold, best first. Candidates without a vector, or with a vector of another dimension,
// are dropped. Equal scores are ordered newest first, then by ID.
func Rank(reference []float32, candidates []Rankable, threshold float64) []Scored {
	out := make([]Scored, 0, len(candidates))
	if len(reference) == 0 {
		return out
	}

	for _, c := range candidates {
		score, ok := similarity(reference, c)
		if !ok || score <= threshold {
			continue
		}

		out = append(out, Scored{Item: c, Score: score})
	}

	slices.SortStableFunc(out, func(a, b Scored) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}

		return compareRecency(a.Item, b.Item)
	})

	return out
}

func similarity(reference []float32, c Rankable) (float64, bool) {
	vec := c.Embedding()
	if len(vec) == 0 || len(vec) != len(reference) {
		return 0, false
	}

	return embeddings.CosineSimilarity(reference, vec), true
}

// compareRecency orders newer candidates first and falls back to ascending ID.
func compareRecency(a, b Rankable) int {
	if c := b.CreatedAt().Compare(a.CreatedAt()); c != 0 {
		return c
	}

	idA, idB := a.RankID(), b.RankID()

	return bytes.Compare(idA[:], idB[:])
}
