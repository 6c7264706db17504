package embeddings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vectors "github.com/eventscape/relevance/pkg/embeddings"
)

func TestHashClient_Deterministic(t *testing.T) {
	client := NewHashClient(64)
	ctx := context.Background()

	a, err := client.CreateEmbedding(ctx, "Jazz night downtown")
	require.NoError(t, err)
	b, err := client.CreateEmbedding(ctx, "jazz  NIGHT, downtown!")
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.Equal(t, a, b, "case and punctuation do not change tokens")
	assert.InDelta(t, 1, vectors.Magnitude(a), 1e-6)
}

func TestHashClient_SharedWordsAreCloser(t *testing.T) {
	client := NewHashClient(384)
	ctx := context.Background()

	jazz, err := client.CreateEmbedding(ctx, "live jazz concert with saxophone")
	require.NoError(t, err)
	jazzToo, err := client.CreateEmbedding(ctx, "jazz concert in the park")
	require.NoError(t, err)
	unrelated, err := client.CreateEmbedding(ctx, "python programming workshop")
	require.NoError(t, err)

	assert.Greater(t,
		vectors.CosineSimilarity(jazz, jazzToo),
		vectors.CosineSimilarity(jazz, unrelated),
	)
}

func TestHashClient_Errors(t *testing.T) {
	client := NewHashClient(8)

	_, err := client.CreateEmbedding(context.Background(), "  ,.; ")
	require.ErrorIs(t, err, ErrEmptyInput)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = client.CreateEmbedding(ctx, "text")
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewHashClient_DefaultDimensions(t *testing.T) {
	assert.Equal(t, 384, NewHashClient(0).Dimensions())
}
