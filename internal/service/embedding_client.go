package service

import "context"

// EmbeddingClient generates unit-length embedding vectors for text.
// Implemented by embeddings.GuardedClient, which wraps the configured provider.
type EmbeddingClient interface {
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)
}
