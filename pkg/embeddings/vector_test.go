package embeddings

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unit(dim, axis int) []float32 {
	v := make([]float32, dim)
	v[axis] = 1

	return v
}

func TestBlend_HalfWeightBetweenOrthogonalAxes(t *testing.T) {
	got, err := Blend(unit(4, 0), unit(4, 1), 0.5)
	require.NoError(t, err)

	// [0.5, 0.5, 0, 0] normalized
	assert.InDelta(t, 0.70710678, got[0], 1e-6)
	assert.InDelta(t, 0.70710678, got[1], 1e-6)
	assert.InDelta(t, 0, got[2], 1e-9)
	assert.InDelta(t, 1, Magnitude(got), 1e-6)
}

func TestBlend_WeightOneReplaces(t *testing.T) {
	next := []float32{0.6, 0.8, 0}

	got, err := Blend([]float32{0, 0, 1}, next, 1)
	require.NoError(t, err)

	for i := range next {
		assert.InDelta(t, next[i], got[i], 1e-6)
	}
}

func TestBlend_SmallWeightStaysClose(t *testing.T) {
	current := []float32{1, 0, 0}
	const w = 1e-4

	got, err := Blend(current, []float32{0, 1, 0}, w)
	require.NoError(t, err)

	for i := range current {
		assert.InDelta(t, current[i], got[i], 2*w)
	}
}

func TestBlend_UnitNormForManyInputs(t *testing.T) {
	current := []float32{0.2, -0.4, 0.1, 0.9}
	require.NoError(t, NormalizeL2(current))

	for _, w := range []float64{0.1, 0.3, 0.5, 0.77, 1} {
		next := []float32{-0.3, 0.5, 0.8, 0.1}
		require.NoError(t, NormalizeL2(next))

		got, err := Blend(current, next, w)
		require.NoError(t, err)
		assert.InDelta(t, 1, Magnitude(got), 1e-6, "weight %v", w)

		current = got
	}
}

func TestBlend_Errors(t *testing.T) {
	t.Run("opposite vectors at half weight cancel out", func(t *testing.T) {
		got, err := Blend([]float32{1, 0}, []float32{-1, 0}, 0.5)
		require.ErrorIs(t, err, ErrZeroMagnitude)
		assert.Equal(t, []float32{0, 0}, got)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := Blend([]float32{1, 0}, []float32{1, 0, 0}, 0.5)
		require.ErrorIs(t, err, ErrDimensionMismatch)
	})

	for _, w := range []float64{0, -0.1, 1.01, math.NaN()} {
		_, err := Blend([]float32{1}, []float32{1}, w)
		if !errors.Is(err, ErrInvalidWeight) {
			t.Errorf("weight %v: expected ErrInvalidWeight, got %v", w, err)
		}
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"magnitude independent", []float32{1, 1}, []float32{5, 5}, 1},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0},
		{"empty", nil, nil, 0},
		{"zero norm", []float32{0, 0}, []float32{1, 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestCosineDistance(t *testing.T) {
	assert.InDelta(t, 1, CosineDistance([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, 0, CosineDistance([]float32{0, 3}, []float32{0, 1}), 1e-9)
}
