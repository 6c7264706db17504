package embeddings

import (
	"errors"
	"fmt"
	"math"
)

// ErrDimensionMismatch is returned when two vectors that must be combined have different lengths.
var ErrDimensionMismatch = errors.New("embeddings: dimension mismatch")

// ErrInvalidWeight is returned when a blend weight is outside (0, 1].
var ErrInvalidWeight = errors.New("embeddings: weight must be in (0, 1]")

// Blend returns the exponential moving average of current and next, re-normalized to unit length:
//
//	out[i] = current[i]*(1-weight) + next[i]*weight
//
// Neither input is modified. When the blended vector has zero magnitude the un-normalized
// result is returned together with ErrZeroMagnitude and must not be stored.
func Blend(current, next []float32, weight float64) ([]float32, error) {
	if weight <= 0 || weight > 1 || math.IsNaN(weight) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidWeight, weight)
	}

	if len(current) != len(next) {
		return nil, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(current), len(next))
	}

	keep := 1 - weight
	out := make([]float32, len(current))

	for i := range current {
		out[i] = float32(float64(current[i])*keep + float64(next[i])*weight)
	}

	if err := NormalizeL2(out); err != nil {
		return out, err
	}

	return out, nil
}

// CosineSimilarity returns 1 - cosine distance between a and b, in [-1, 1].
// Returns 0 when the lengths differ, either vector is empty, or either has zero norm.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64

	for i := range a {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		normA += ai * ai
		normB += bi * bi
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))

	// Rounding can push parallel vectors a hair past 1.
	return math.Max(-1, math.Min(1, sim))
}

// CosineDistance returns 1 - CosineSimilarity(a, b), matching pgvector's <=> operator.
func CosineDistance(a, b []float32) float64 {
	return 1 - CosineSimilarity(a, b)
}
