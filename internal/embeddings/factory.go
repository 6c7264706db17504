package embeddings

import (
	"context"
	"fmt"

	"github.com/eventscape/relevance/internal/config"
	"github.com/eventscape/relevance/internal/fastembed"
	"github.com/eventscape/relevance/internal/googleai"
	"github.com/eventscape/relevance/internal/openai"
)

// NewClient builds the raw provider client named by cfg.EmbeddingProvider and returns it with
// the canonical provider name. The hash client is only used when asked for by name; an empty
// provider is an error so a misconfigured deployment never stores pseudo-embeddings.
// Clients that hold native resources (fastembed) also implement io.Closer.
func NewClient(ctx context.Context, cfg *config.Config) (Client, string, error) {
	switch cfg.EmbeddingProvider {
	case ProviderOpenAI:
		if cfg.EmbeddingProviderAPIKey == "" {
			return nil, "", fmt.Errorf("%s: %w", ProviderOpenAI, ErrMissingAPIKey)
		}

		client := openai.NewClient(cfg.EmbeddingProviderAPIKey,
			openai.WithDimensions(cfg.EmbeddingDimensions),
			openai.WithModel(cfg.EmbeddingModel),
		)

		return client, ProviderOpenAI, nil
	case ProviderGoogle:
		if cfg.EmbeddingProviderAPIKey == "" {
			return nil, "", fmt.Errorf("%s: %w", ProviderGoogle, ErrMissingAPIKey)
		}

		client, err := googleai.NewClient(ctx, cfg.EmbeddingProviderAPIKey,
			googleai.WithDimensions(cfg.EmbeddingDimensions),
			googleai.WithModel(cfg.EmbeddingModel),
		)
		if err != nil {
			return nil, "", fmt.Errorf("create google embedding client: %w", err)
		}

		return client, ProviderGoogle, nil
	case ProviderFastembed:
		if cfg.EmbeddingDimensions != fastembed.Dimensions {
			return nil, "", fmt.Errorf("%s produces %d dimensions, EMBEDDING_DIMENSIONS is %d",
				ProviderFastembed, fastembed.Dimensions, cfg.EmbeddingDimensions)
		}

		client, err := fastembed.NewClient(cfg.FastembedCacheDir)
		if err != nil {
			return nil, "", fmt.Errorf("create fastembed client: %w", err)
		}

		return client, ProviderFastembed, nil
	case ProviderHash:
		return NewHashClient(cfg.EmbeddingDimensions), ProviderHash, nil
	case "":
		return nil, "", ErrNoProvider
	default:
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.EmbeddingProvider)
	}
}
