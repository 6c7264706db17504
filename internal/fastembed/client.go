//go:build cgo

// Package fastembed runs all-MiniLM-L6-v2 locally through ONNX Runtime, producing the same
// 384-dimensional mean-pooled, normalized embeddings without a network dependency.
package fastembed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	fastembedsdk "github.com/anush008/fastembed-go"

	"github.com/eventscape/relevance/pkg/embeddings"
)

// Model is the only model this client loads.
const Model = "sentence-transformers/all-MiniLM-L6-v2"

// Dimensions is the output size of Model.
const Dimensions = 384

// Client embeds text with a local ONNX model. Safe for concurrent use.
type Client struct {
	model *fastembedsdk.FlagEmbedding
	mu    sync.RWMutex
}

// NewClient loads the model, downloading it into cacheDir on first use.
func NewClient(cacheDir string) (*Client, error) {
	if cacheDir == "" {
		cacheDir = "./local_cache"
	}

	showProgress := false

	model, err := fastembedsdk.NewFlagEmbedding(&fastembedsdk.InitOptions{
		Model:                fastembedsdk.AllMiniLML6V2,
		CacheDir:             cacheDir,
		MaxLength:            256,
		ShowDownloadProgress: &showProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("fastembed: initializing %s: %w", Model, err)
	}

	return &Client{model: model}, nil
}

// CreateEmbedding returns the normalized embedding for text.
func (c *Client) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyInput
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.model == nil {
		return nil, ErrClosed
	}

	out, err := c.model.Embed([]string{text}, 1)
	if err != nil {
		return nil, fmt.Errorf("fastembed: %w", err)
	}

	if len(out) == 0 {
		return nil, errors.New("fastembed: no embedding returned")
	}

	vec := out[0]
	if len(vec) != Dimensions {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), Dimensions)
	}

	if err := embeddings.NormalizeL2(vec); err != nil {
		return nil, fmt.Errorf("fastembed: %w", err)
	}

	return vec, nil
}

// Close releases the ONNX session.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.model == nil {
		return nil
	}

	err := c.model.Destroy()
	c.model = nil

	return err
}
