package ranking

// Defaults for the blended score.
const (
	DefaultSimilarityWeight   = 0.7
	DefaultProximityWeight    = 0.3
	DefaultRelevanceThreshold = 0.25
)

// Weights tunes the blended score.
type Weights struct {
	// Similarity multiplies the cosine similarity.
	Similarity float64
	// Proximity multiplies the 1/(1+km) distance term.
	Proximity float64
	// Threshold is the similarity floor for query-driven ranking; scores at or below it are dropped.
	Threshold float64
}

// DefaultWeights returns the 0.7/0.3 blend with a 0.25 floor.
func DefaultWeights() Weights {
	return Weights{
		Similarity: DefaultSimilarityWeight,
		Proximity:  DefaultProximityWeight,
		Threshold:  DefaultRelevanceThreshold,
	}
}

// Blend combines a similarity with a distance in km. A nil distance returns the similarity unchanged.
func (w Weights) Blend(similarity float64, distanceKm *float64) float64 {
	if distanceKm == nil {
		return similarity
	}

	return similarity*w.Similarity + (1/(1+*distanceKm))*w.Proximity
}
