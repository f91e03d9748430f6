// Package models defines core data structures for notes, files, queries, and
// the similarity graph.
package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Note is a text record stored under a unique key with optional tags.
type Note struct {
	Key       string    `json:"key"`
	Body      string    `json:"body"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NoteSummary is a note without its body, for listings.
type NoteSummary struct {
	Key       string    `json:"key"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NoteInput is the input for creating or overwriting a note.
type NoteInput struct {
	Key  string  `json:"key"`
	Body string  `json:"body"`
	Tags TagList `json:"tags,omitempty"`
	// AutoTag assigns suggested tags when no explicit tags are given.
	AutoTag bool `json:"auto_tag,omitempty"`
}

// TagList accepts tags either as a JSON array or as a comma-separated string
// (some MCP-style clients serialize array parameters poorly). Entries are
// trimmed; empty entries are dropped.
type TagList []string

// UnmarshalJSON implements json.Unmarshaler for both accepted forms.
func (t *TagList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*t = NormalizeTags(list)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*t = NormalizeTags(strings.Split(s, ","))
	return nil
}

// NormalizeTags trims every tag and drops empties.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if trimmed := strings.TrimSpace(tag); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// FileMeta is the stored metadata for a file; the body lives on disk.
type FileMeta struct {
	Name      string    `json:"name"`
	MimeType  string    `json:"mime_type"`
	Tags      []string  `json:"tags"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// FileInput is the input for storing a file.
type FileInput struct {
	Name          string  `json:"name"`
	ContentBase64 string  `json:"content_base64"`
	MimeType      string  `json:"mime_type"`
	Tags          TagList `json:"tags,omitempty"`
}

// FileContent is a stored file with its content, for retrieval.
type FileContent struct {
	FileMeta
	ContentBase64 string `json:"content_base64"`
}
