// Package storage provides the SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kioku/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS notes (
		key        TEXT PRIMARY KEY,
		body       TEXT NOT NULL,
		tags       TEXT NOT NULL DEFAULT '[]',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS note_embeddings (
		key       TEXT PRIMARY KEY,
		embedding BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS files (
		name       TEXT PRIMARY KEY,
		mime_type  TEXT NOT NULL,
		tags       TEXT NOT NULL DEFAULT '[]',
		size_bytes INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}

func marshalTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("failed to marshal tags: %w", err)
	}
	return string(data), nil
}

func unmarshalTags(data string) []string {
	var tags []string
	if data == "" {
		return []string{}
	}
	if err := json.Unmarshal([]byte(data), &tags); err != nil {
		return []string{}
	}
	if tags == nil {
		tags = []string{}
	}
	return tags
}

// UpsertNote inserts or overwrites a note and, when blob is non-nil, its
// embedding, in a single transaction. On overwrite created_at is preserved
// and updated_at refreshed.
func (s *SQLiteStorage) UpsertNote(ctx context.Context, note *models.Note, blob []byte) error {
	tagsJSON, err := marshalTags(note.Tags)
	if err != nil {
		return err
	}

	now := time.Now()
	if note.CreatedAt.IsZero() {
		note.CreatedAt = now
	}
	note.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO notes (key, body, tags, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		     body       = excluded.body,
		     tags       = excluded.tags,
		     updated_at = excluded.updated_at`,
		note.Key, note.Body, tagsJSON, note.CreatedAt, note.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if blob != nil {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO note_embeddings (key, embedding) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET embedding = excluded.embedding`,
			note.Key, blob,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetNote returns a note by key.
func (s *SQLiteStorage) GetNote(ctx context.Context, key string) (*models.Note, error) {
	var note models.Note
	var tagsJSON string

	err := s.db.QueryRowContext(ctx,
		`SELECT key, body, tags, created_at, updated_at FROM notes WHERE key = ?`, key,
	).Scan(&note.Key, &note.Body, &tagsJSON, &note.CreatedAt, &note.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("note %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	note.Tags = unmarshalTags(tagsJSON)
	return &note, nil
}

// GetNotes returns the notes for the given keys, mapped by key. Missing keys
// are simply absent from the result.
func (s *SQLiteStorage) GetNotes(ctx context.Context, keys []string) (map[string]*models.Note, error) {
	notes := make(map[string]*models.Note, len(keys))
	if len(keys) == 0 {
		return notes, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]interface{}, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, body, tags, created_at, updated_at FROM notes WHERE key IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var note models.Note
		var tagsJSON string
		if err := rows.Scan(&note.Key, &note.Body, &tagsJSON, &note.CreatedAt, &note.UpdatedAt); err != nil {
			return nil, err
		}
		note.Tags = unmarshalTags(tagsJSON)
		notes[note.Key] = &note
	}
	return notes, rows.Err()
}

// DeleteNote removes a note and its embedding. The embedding row must not
// survive the note.
func (s *SQLiteStorage) DeleteNote(ctx context.Context, key string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE key = ?`, key)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("note %s: %w", key, ErrNotFound)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM note_embeddings WHERE key = ?`, key); err != nil {
		return err
	}
	return tx.Commit()
}

// ListNotes returns note summaries ordered by key. When tag is non-empty,
// only notes carrying exactly that tag are returned.
func (s *SQLiteStorage) ListNotes(ctx context.Context, tag string) ([]*models.NoteSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, tags, created_at, updated_at FROM notes ORDER BY key`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []*models.NoteSummary
	for rows.Next() {
		var sum models.NoteSummary
		var tagsJSON string
		if err := rows.Scan(&sum.Key, &tagsJSON, &sum.CreatedAt, &sum.UpdatedAt); err != nil {
			return nil, err
		}
		sum.Tags = unmarshalTags(tagsJSON)
		if tag != "" && !containsTag(sum.Tags, tag) {
			continue
		}
		summaries = append(summaries, &sum)
	}
	return summaries, rows.Err()
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

// AllEmbeddings returns every stored embedding blob, ordered by key.
func (s *SQLiteStorage) AllEmbeddings(ctx context.Context) ([]StoredEmbedding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, embedding FROM note_embeddings ORDER BY key`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredEmbedding
	for rows.Next() {
		var e StoredEmbedding
		if err := rows.Scan(&e.Key, &e.Blob); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SetEmbedding stores or replaces the embedding blob for key.
func (s *SQLiteStorage) SetEmbedding(ctx context.Context, key string, blob []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO note_embeddings (key, embedding) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET embedding = excluded.embedding`,
		key, blob,
	)
	return err
}

// NotesMissingEmbedding returns notes with no embedding row, ordered by key.
// Used by backfill.
func (s *SQLiteStorage) NotesMissingEmbedding(ctx context.Context) ([]*models.Note, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT n.key, n.body, n.tags, n.created_at, n.updated_at
		 FROM notes n LEFT JOIN note_embeddings e ON n.key = e.key
		 WHERE e.key IS NULL ORDER BY n.key`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []*models.Note
	for rows.Next() {
		var note models.Note
		var tagsJSON string
		if err := rows.Scan(&note.Key, &note.Body, &tagsJSON, &note.CreatedAt, &note.UpdatedAt); err != nil {
			return nil, err
		}
		note.Tags = unmarshalTags(tagsJSON)
		notes = append(notes, &note)
	}
	return notes, rows.Err()
}

// TagMembership maps each tag to the keys of embedded notes carrying it.
func (s *SQLiteStorage) TagMembership(ctx context.Context) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT n.key, n.tags FROM notes n
		 JOIN note_embeddings e ON n.key = e.key ORDER BY n.key`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	membership := make(map[string][]string)
	for rows.Next() {
		var key, tagsJSON string
		if err := rows.Scan(&key, &tagsJSON); err != nil {
			return nil, err
		}
		for _, tag := range unmarshalTags(tagsJSON) {
			membership[tag] = append(membership[tag], key)
		}
	}
	return membership, rows.Err()
}

// UpsertFile inserts or overwrites file metadata.
func (s *SQLiteStorage) UpsertFile(ctx context.Context, meta *models.FileMeta) error {
	tagsJSON, err := marshalTags(meta.Tags)
	if err != nil {
		return err
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO files (name, mime_type, tags, size_bytes, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		     mime_type  = excluded.mime_type,
		     tags       = excluded.tags,
		     size_bytes = excluded.size_bytes`,
		meta.Name, meta.MimeType, tagsJSON, meta.SizeBytes, meta.CreatedAt,
	)
	return err
}

// GetFile returns file metadata by name.
func (s *SQLiteStorage) GetFile(ctx context.Context, name string) (*models.FileMeta, error) {
	var meta models.FileMeta
	var tagsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT name, mime_type, tags, size_bytes, created_at FROM files WHERE name = ?`, name,
	).Scan(&meta.Name, &meta.MimeType, &tagsJSON, &meta.SizeBytes, &meta.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("file %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	meta.Tags = unmarshalTags(tagsJSON)
	return &meta, nil
}

// ListFiles returns file metadata ordered by name, optionally filtered by tag.
func (s *SQLiteStorage) ListFiles(ctx context.Context, tag string) ([]*models.FileMeta, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, mime_type, tags, size_bytes, created_at FROM files ORDER BY name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var metas []*models.FileMeta
	for rows.Next() {
		var meta models.FileMeta
		var tagsJSON string
		if err := rows.Scan(&meta.Name, &meta.MimeType, &tagsJSON, &meta.SizeBytes, &meta.CreatedAt); err != nil {
			return nil, err
		}
		meta.Tags = unmarshalTags(tagsJSON)
		if tag != "" && !containsTag(meta.Tags, tag) {
			continue
		}
		metas = append(metas, &meta)
	}
	return metas, rows.Err()
}

// DeleteFile removes file metadata by name.
func (s *SQLiteStorage) DeleteFile(ctx context.Context, name string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE name = ?`, name)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("file %s: %w", name, ErrNotFound)
	}
	return nil
}

// CountNotes returns the total number of notes.
func (s *SQLiteStorage) CountNotes(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes`).Scan(&count)
	return count, err
}

// CountEmbeddings returns the total number of stored embeddings.
func (s *SQLiteStorage) CountEmbeddings(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM note_embeddings`).Scan(&count)
	return count, err
}

// CountFiles returns the total number of stored files.
func (s *SQLiteStorage) CountFiles(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
