// Package storage defines the persistence interface for notes, embeddings, and files.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/kioku/internal/models"
)

// ErrNotFound is wrapped by lookups and deletes for a missing note or file.
var ErrNotFound = errors.New("not found")

// StoredEmbedding is a note key paired with its serialized embedding blob.
type StoredEmbedding struct {
	Key  string
	Blob []byte
}

// Storage defines note, embedding, and file persistence operations.
// Embedding blobs are opaque here; encoding and decoding belong to the
// vector package.
type Storage interface {
	// Note operations. UpsertNote replaces the note and its embedding in one
	// transaction so a record never outlives or precedes its vector; a nil
	// blob leaves the embedding row untouched (backfill fills it later).
	UpsertNote(ctx context.Context, note *models.Note, blob []byte) error
	GetNote(ctx context.Context, key string) (*models.Note, error)
	GetNotes(ctx context.Context, keys []string) (map[string]*models.Note, error)
	DeleteNote(ctx context.Context, key string) error
	ListNotes(ctx context.Context, tag string) ([]*models.NoteSummary, error)

	// Embedding operations. AllEmbeddings returns rows ordered by key: that
	// ordering is the deterministic iteration order for ranking and for the
	// neighbor graph.
	AllEmbeddings(ctx context.Context) ([]StoredEmbedding, error)
	SetEmbedding(ctx context.Context, key string, blob []byte) error
	NotesMissingEmbedding(ctx context.Context) ([]*models.Note, error)

	// TagMembership returns, for every tag, the keys of embedded notes
	// carrying it. Only notes that have an embedding participate: centroid
	// computation needs vectors.
	TagMembership(ctx context.Context) (map[string][]string, error)

	// File metadata operations.
	UpsertFile(ctx context.Context, meta *models.FileMeta) error
	GetFile(ctx context.Context, name string) (*models.FileMeta, error)
	ListFiles(ctx context.Context, tag string) ([]*models.FileMeta, error)
	DeleteFile(ctx context.Context, name string) error

	// Stats.
	CountNotes(ctx context.Context) (int64, error)
	CountEmbeddings(ctx context.Context) (int64, error)
	CountFiles(ctx context.Context) (int64, error)

	Close() error
}
