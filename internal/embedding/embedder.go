// Package embedding turns chunk text into fixed-length vectors via an
// external provider, with batching, bounded concurrency, and retry.
package embedding

import (
	"context"
	"fmt"
)

// Embedder produces a vector embedding for a single text. Batching and
// retry are the Generator's concern, not the provider's.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Close() error
}

// EmbeddingError reports a failed embedding operation, wrapping the
// provider error. Detail identifies the input (e.g. the exhausted chunk)
// when available.
type EmbeddingError struct {
	Op     string
	Detail string
	Err    error
}

func (e *EmbeddingError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("embedding %s failed (%s): %v", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("embedding %s failed: %v", e.Op, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }
