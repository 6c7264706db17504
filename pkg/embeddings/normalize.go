// Package embeddings provides vector math for embedding vectors: L2 normalization,
// cosine similarity and the weighted blend used to maintain interest vectors.
package embeddings

import (
	"errors"
	"math"
)

// ErrZeroMagnitude is returned when a vector has no direction (all components zero).
var ErrZeroMagnitude = errors.New("embeddings: vector has zero magnitude")

// ErrNonFinite is returned when a vector contains NaN or an infinity.
var ErrNonFinite = errors.New("embeddings: vector contains NaN or Inf")

// Magnitude returns the Euclidean norm of vector, accumulated in float64.
func Magnitude(vector []float32) float64 {
	var sumSquares float64
	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}

	return math.Sqrt(sumSquares)
}

// NormalizeL2 scales vector to unit length in place.
// A zero vector is left untouched and ErrZeroMagnitude is returned so callers can decide
// whether to store it.
func NormalizeL2(vector []float32) error {
	magnitude := Magnitude(vector)
	if magnitude == 0 {
		return ErrZeroMagnitude
	}

	if math.IsNaN(magnitude) || math.IsInf(magnitude, 0) {
		return ErrNonFinite
	}

	for i := range vector {
		vector[i] = float32(float64(vector[i]) / magnitude)
	}

	return nil
}

// Normalized returns a unit-length copy of vector. The input is not modified.
func Normalized(vector []float32) ([]float32, error) {
	out := make([]float32, len(vector))
	copy(out, vector)

	if err := NormalizeL2(out); err != nil {
		return nil, err
	}

	return out, nil
}

// Finite reports whether every component of vector is a finite number.
func Finite(vector []float32) bool {
	for _, v := range vector {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}

	return true
}
