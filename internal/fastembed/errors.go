package fastembed

import "errors"

var (
	// ErrEmptyInput is returned when CreateEmbedding is called with blank text.
	ErrEmptyInput = errors.New("fastembed: input text is empty")
	// ErrDimensionMismatch is returned when the model output has an unexpected length.
	ErrDimensionMismatch = errors.New("fastembed: embedding dimension mismatch")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("fastembed: client closed")
	// ErrNotAvailable is returned by binaries built without cgo.
	ErrNotAvailable = errors.New("fastembed: not available (binary built without cgo)")
)
