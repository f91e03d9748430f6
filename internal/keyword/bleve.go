// Package keyword provides the Bleve implementation of NoteIndex.
package keyword

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"

	"github.com/hyperjump/kioku/internal/models"
)

// noteDoc is the shape indexed into Bleve. Tags are flattened to a single
// space-joined field so a query for a tag word matches.
type noteDoc struct {
	Key  string `json:"key"`
	Body string `json:"body"`
	Tags string `json:"tags"`
}

// BleveIndex implements NoteIndex using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path.
// An existing index is opened and reused so restarts do not force a full
// re-index. If the mapping in code changes, remove the index directory.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so queries match
	// the exact word; English stemming mangles technical vocabulary.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("body", textFieldMapping)
	docMapping.AddFieldMappingsAt("tags", textFieldMapping)
	keyFieldMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("key", keyFieldMapping)
	im.AddDocumentMapping("note", docMapping)
	im.DefaultType = "note"
	im.DefaultMapping = docMapping

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// Index indexes a note under its key, replacing any previous version.
func (b *BleveIndex) Index(ctx context.Context, note *models.Note) error {
	doc := &noteDoc{
		Key:  note.Key,
		Body: note.Body,
		Tags: strings.Join(note.Tags, " "),
	}
	return b.index.Index(note.Key, doc)
}

// Search runs a match query over body and tags and returns up to limit hits.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int) ([]*Result, error) {
	q := bleve.NewMatchQuery(query)
	search := bleve.NewSearchRequest(q)
	search.Size = limit
	results, err := b.index.Search(search)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*Result, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &Result{Key: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// Delete removes a note from the index. Deleting an unindexed key is a no-op.
func (b *BleveIndex) Delete(ctx context.Context, key string) error {
	return b.index.Delete(key)
}

// DocCount returns the total number of indexed notes.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
