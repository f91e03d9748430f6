// Package keyword provides keyword search over note bodies and tags.
package keyword

import (
	"context"

	"github.com/hyperjump/kioku/internal/models"
)

// NoteIndex defines keyword search operations over notes.
type NoteIndex interface {
	Index(ctx context.Context, note *models.Note) error
	Search(ctx context.Context, query string, limit int) ([]*Result, error)
	Delete(ctx context.Context, key string) error
	// DocCount returns the total number of indexed notes.
	DocCount() (uint64, error)
	Close() error
}

// Result is a single keyword search hit.
type Result struct {
	Key   string
	Score float64
}
