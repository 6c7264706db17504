// Package embeddings selects and guards the text embedding provider used for interest vectors,
// candidate vectors and query vectors.
package embeddings

import (
	"context"
	"errors"
)

// Provider names accepted by EMBEDDING_PROVIDER.
const (
	ProviderOpenAI    = "openai"
	ProviderGoogle    = "google"
	ProviderFastembed = "fastembed"
	ProviderHash      = "hash"
)

var (
	// ErrEmptyInput is returned for blank text.
	ErrEmptyInput = errors.New("embeddings: input text is empty")
	// ErrUnknownProvider is returned by NewClient for an unsupported provider name.
	ErrUnknownProvider = errors.New("embeddings: unknown provider")
	// ErrNoProvider is returned when EMBEDDING_PROVIDER is unset.
	ErrNoProvider = errors.New("embeddings: EMBEDDING_PROVIDER is not set (use hash for local development)")
	// ErrMissingAPIKey is returned by NewClient when a hosted provider has no key.
	ErrMissingAPIKey = errors.New("embeddings: provider requires EMBEDDING_PROVIDER_API_KEY")
	// ErrInvalidOutput is returned when a provider yields an empty or non-finite vector.
	ErrInvalidOutput = errors.New("embeddings: provider returned an invalid vector")
)

// Client generates a unit-length embedding vector for text.
type Client interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
}
