package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"
	"unicode"

	vectors "github.com/eventscape/relevance/pkg/embeddings"
)

// hashesPerToken is how many vector slots each token touches.
const hashesPerToken = 4

// HashClient generates deterministic embeddings without a model. Every lowercased token is
// hashed into a few signed slots and the pooled vector is L2-normalized, so texts sharing
// words point in similar directions. Intended for local development and tests.
type HashClient struct {
	dimensions int
}

// NewHashClient creates a hash client producing vectors of the given length.
func NewHashClient(dimensions int) *HashClient {
	if dimensions <= 0 {
		dimensions = 384
	}

	return &HashClient{dimensions: dimensions}
}

// Dimensions returns the vector length.
func (c *HashClient) Dimensions() int {
	return c.dimensions
}

// CreateEmbedding returns the embedding for text.
func (c *HashClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tokens := tokenize(text)
	if len(tokens) == 0 {
		return nil, ErrEmptyInput
	}

	vec := make([]float32, c.dimensions)

	for _, tok := range tokens {
		sum := sha256.Sum256([]byte(tok))

		for j := range hashesPerToken {
			idx := binary.BigEndian.Uint32(sum[j*4:]) % uint32(c.dimensions)
			sign := float32(1)

			if sum[16+j]&1 == 1 {
				sign = -1
			}

			vec[idx] += sign
		}
	}

	if err := vectors.NormalizeL2(vec); err != nil {
		return nil, fmt.Errorf("hash embedding: %w", err)
	}

	return vec, nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

var _ Client = (*HashClient)(nil)
