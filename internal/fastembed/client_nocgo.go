//go:build !cgo

// Package fastembed runs all-MiniLM-L6-v2 locally through ONNX Runtime. Without cgo the
// runtime cannot be loaded and every constructor call fails with ErrNotAvailable.
package fastembed

import "context"

// Model is the only model this client loads.
const Model = "sentence-transformers/all-MiniLM-L6-v2"

// Dimensions is the output size of Model.
const Dimensions = 384

// Client is a stub for builds without cgo.
type Client struct{}

// NewClient always fails without cgo.
func NewClient(_ string) (*Client, error) {
	return nil, ErrNotAvailable
}

// CreateEmbedding always fails without cgo.
func (c *Client) CreateEmbedding(_ context.Context, _ string) ([]float32, error) {
	return nil, ErrNotAvailable
}

// Close is a no-op without cgo.
func (c *Client) Close() error {
	return nil
}
