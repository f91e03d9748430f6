// Package embedding provides text embedding via an external encoder service.
package embedding

import (
	"context"
	"errors"
)

// ErrEncodingFailed indicates the external encoder could not produce a vector
// (service unreachable, model missing, bad input). It is fatal for the single
// operation that needed the vector; retry policy belongs to the caller.
var ErrEncodingFailed = errors.New("encoding failed")

// Embedder produces unit-normalized vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
