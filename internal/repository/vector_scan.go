// Package repository provides pgx-backed data access for interest vectors and ranking candidates.
package repository

import (
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"
)

var errEmbeddingScanInvalidType = errors.New("embedding scan: unexpected source type")

// nullableEmbedding scans a vector column that may be NULL without panicking (pgvector.Vector.Scan panics on empty/NULL).
// With pgvector types registered on the pool the driver hands over a decoded pgvector.Vector.
type nullableEmbedding []float32

func (n *nullableEmbedding) Scan(src any) error {
	if src == nil {
		*n = nil

		return nil
	}

	var vec pgvector.Vector

	switch v := src.(type) {
	case pgvector.Vector:
		*n = v.Slice()

		return nil
	case []byte:
		if len(v) == 0 {
			*n = nil

			return nil
		}

		if err := vec.DecodeBinary(v); err != nil {
			return fmt.Errorf("embedding decode: %w", err)
		}
	case string:
		if v == "" {
			*n = nil

			return nil
		}

		if err := vec.Parse(v); err != nil {
			return fmt.Errorf("embedding parse: %w", err)
		}
	default:
		return fmt.Errorf("%w: got %T", errEmbeddingScanInvalidType, src)
	}

	*n = vec.Slice()

	return nil
}

// vectorArg converts an embedding to a query argument; nil becomes SQL NULL.
func vectorArg(embedding []float32) any {
	if embedding == nil {
		return nil
	}

	return pgvector.NewVector(embedding)
}
