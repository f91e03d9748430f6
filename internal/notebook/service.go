// Package notebook binds storage, the embedder, and the vector math into the
// note operations the server and CLI expose: store, search, tag suggestion,
// the similarity graph, and embedding backfill.
package notebook

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/config"
	"github.com/hyperjump/kioku/internal/embedding"
	"github.com/hyperjump/kioku/internal/keyword"
	"github.com/hyperjump/kioku/internal/models"
	"github.com/hyperjump/kioku/internal/storage"
	"github.com/hyperjump/kioku/internal/vector"
)

// snippetLength is the maximum snippet length for graph nodes.
const snippetLength = 140

// Service implements the note operations over a storage backend, an
// embedder, and a keyword index.
type Service struct {
	storage  storage.Storage
	embedder embedding.Embedder
	index    keyword.NoteIndex
	cfg      *config.Config
	logger   *zap.Logger
}

// NewService creates a notebook service with the given dependencies.
func NewService(
	store storage.Storage,
	embedder embedding.Embedder,
	index keyword.NoteIndex,
	cfg *config.Config,
	logger *zap.Logger,
) *Service {
	return &Service{
		storage:  store,
		embedder: embedder,
		index:    index,
		cfg:      cfg,
		logger:   logger,
	}
}

// Store creates or overwrites the note at input.Key. The body is embedded and
// the vector is written in the same transaction as the note, so a stored note
// is immediately searchable. When input.AutoTag is set and no tags are given,
// suggested tags are assigned from the existing corpus.
func (s *Service) Store(ctx context.Context, input *models.NoteInput) (*models.Note, error) {
	if input.Key == "" {
		return nil, fmt.Errorf("note key is required")
	}
	if input.Body == "" {
		return nil, fmt.Errorf("note body is required")
	}

	emb, err := s.embedder.Embed(ctx, input.Body)
	if err != nil {
		return nil, fmt.Errorf("embed note %s: %w", input.Key, err)
	}

	tags := models.NormalizeTags(input.Tags)
	if len(tags) == 0 && input.AutoTag {
		suggested, err := s.suggestForVector(ctx, emb)
		if err != nil {
			s.logger.Warn("auto-tagging failed, storing untagged",
				zap.String("key", input.Key), zap.Error(err))
		} else {
			tags = suggested
		}
	}

	note := &models.Note{
		Key:  input.Key,
		Body: input.Body,
		Tags: tags,
	}
	if err := s.storage.UpsertNote(ctx, note, vector.EncodeBlob(emb)); err != nil {
		return nil, fmt.Errorf("store note %s: %w", input.Key, err)
	}
	if err := s.index.Index(ctx, note); err != nil {
		s.logger.Warn("keyword indexing failed", zap.String("key", note.Key), zap.Error(err))
	}
	s.logger.Debug("stored note", zap.String("key", note.Key), zap.Int("tags", len(note.Tags)))
	return note, nil
}

// Get returns the note at key.
func (s *Service) Get(ctx context.Context, key string) (*models.Note, error) {
	return s.storage.GetNote(ctx, key)
}

// Delete removes the note at key from storage and the keyword index.
func (s *Service) Delete(ctx context.Context, key string) error {
	if err := s.storage.DeleteNote(ctx, key); err != nil {
		return err
	}
	if err := s.index.Delete(ctx, key); err != nil {
		s.logger.Warn("keyword index delete failed", zap.String("key", key), zap.Error(err))
	}
	return nil
}

// List returns summaries of all notes, optionally filtered by tag.
func (s *Service) List(ctx context.Context, tag string) ([]*models.NoteSummary, error) {
	return s.storage.ListNotes(ctx, tag)
}

// Search runs semantic search by default, or a keyword match query when
// query.Keyword is set.
func (s *Service) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	startTime := time.Now()
	if err := query.Validate(s.cfg.Search.DefaultLimit, s.cfg.Search.MaxLimit); err != nil {
		return nil, err
	}

	var (
		scored []vector.Scored
		err    error
	)
	if query.Keyword {
		scored, err = s.searchKeyword(ctx, query)
	} else {
		scored, err = s.searchSemantic(ctx, query)
	}
	if err != nil {
		return nil, err
	}

	total := len(scored)
	if len(scored) > query.Limit {
		scored = scored[:query.Limit]
	}

	keys := make([]string, len(scored))
	for i, r := range scored {
		keys[i] = r.Key
	}
	notes, err := s.storage.GetNotes(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hydrate results: %w", err)
	}

	response := &models.SearchResponse{
		Results:   make([]*models.SearchResult, 0, len(scored)),
		Total:     total,
		QueryTime: time.Since(startTime).Milliseconds(),
		Query:     query.Query,
		Keyword:   query.Keyword,
	}
	for i, r := range scored {
		note, ok := notes[r.Key]
		if !ok {
			continue
		}
		response.Results = append(response.Results, &models.SearchResult{
			Note:  note,
			Score: r.Score,
			Rank:  i + 1,
		})
	}
	return response, nil
}

func (s *Service) searchSemantic(ctx context.Context, query *models.SearchQuery) ([]vector.Scored, error) {
	queryEmbedding, err := s.embedder.Embed(ctx, query.Query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	candidates, err := s.loadCandidates(ctx)
	if err != nil {
		return nil, err
	}
	return vector.Rank(queryEmbedding, candidates), nil
}

func (s *Service) searchKeyword(ctx context.Context, query *models.SearchQuery) ([]vector.Scored, error) {
	hits, err := s.index.Search(ctx, query.Query, query.Limit)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	scored := make([]vector.Scored, len(hits))
	for i, h := range hits {
		scored[i] = vector.Scored{Key: h.Key, Score: h.Score}
	}
	return scored, nil
}

// Suggest returns tags whose centroid is close enough to the embedded body.
// Centroids are recomputed from the current corpus on every call.
func (s *Service) Suggest(ctx context.Context, body string) ([]string, error) {
	if body == "" {
		return nil, fmt.Errorf("body is required")
	}
	emb, err := s.embedder.Embed(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("embed body: %w", err)
	}
	return s.suggestForVector(ctx, emb)
}

func (s *Service) suggestForVector(ctx context.Context, emb []float32) ([]string, error) {
	membership, err := s.storage.TagMembership(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tag membership: %w", err)
	}
	if len(membership) == 0 {
		return []string{}, nil
	}

	vectors, err := s.embeddingsByKey(ctx)
	if err != nil {
		return nil, err
	}
	tagged := make(map[string][][]float32, len(membership))
	for tag, keys := range membership {
		for _, key := range keys {
			if v, ok := vectors[key]; ok {
				tagged[tag] = append(tagged[tag], v)
			}
		}
	}

	centroids := vector.ComputeCentroids(tagged, s.cfg.AutoTag.SkipSet())
	return vector.SuggestTags(emb, centroids, s.cfg.AutoTag.Threshold, s.cfg.AutoTag.MaxTags), nil
}

// Graph builds the top-k similarity graph over all notes with embeddings.
func (s *Service) Graph(ctx context.Context, k int) (*models.Graph, error) {
	candidates, err := s.loadCandidates(ctx)
	if err != nil {
		return nil, err
	}
	keys, edges := vector.BuildGraph(candidates, k)

	notes, err := s.storage.GetNotes(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("load graph nodes: %w", err)
	}

	graph := &models.Graph{
		Nodes: make([]*models.GraphNode, 0, len(keys)),
		Links: make([]*models.GraphLink, 0, len(edges)),
	}
	for _, key := range keys {
		note, ok := notes[key]
		if !ok {
			continue
		}
		graph.Nodes = append(graph.Nodes, &models.GraphNode{
			Key:        note.Key,
			Title:      noteTitle(note),
			Tags:       note.Tags,
			Snippet:    noteSnippet(note.Body),
			BodyLength: len(note.Body),
		})
	}
	for _, e := range edges {
		graph.Links = append(graph.Links, &models.GraphLink{
			Source:     e.Source,
			Target:     e.Target,
			Similarity: e.Similarity,
		})
	}
	return graph, nil
}

// Backfill embeds notes that are missing a vector. Returns how many notes
// were embedded. Notes that already have a vector are untouched, so repeated
// runs are cheap.
func (s *Service) Backfill(ctx context.Context) (int, error) {
	missing, err := s.storage.NotesMissingEmbedding(ctx)
	if err != nil {
		return 0, fmt.Errorf("find notes missing embeddings: %w", err)
	}
	count := 0
	for _, note := range missing {
		emb, err := s.embedder.Embed(ctx, note.Body)
		if err != nil {
			return count, fmt.Errorf("embed note %s: %w", note.Key, err)
		}
		if err := s.storage.SetEmbedding(ctx, note.Key, vector.EncodeBlob(emb)); err != nil {
			return count, fmt.Errorf("store embedding for %s: %w", note.Key, err)
		}
		count++
	}
	if count > 0 {
		s.logger.Info("backfilled embeddings", zap.Int("count", count))
	}
	return count, nil
}

// loadCandidates decodes all stored embeddings in key order.
func (s *Service) loadCandidates(ctx context.Context) ([]vector.Candidate, error) {
	rows, err := s.storage.AllEmbeddings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load embeddings: %w", err)
	}
	candidates := make([]vector.Candidate, 0, len(rows))
	for _, row := range rows {
		vec, err := vector.DecodeBlob(row.Blob)
		if err != nil {
			return nil, fmt.Errorf("decode embedding for %s: %w", row.Key, err)
		}
		candidates = append(candidates, vector.Candidate{Key: row.Key, Vector: vec})
	}
	return candidates, nil
}

func (s *Service) embeddingsByKey(ctx context.Context) (map[string][]float32, error) {
	candidates, err := s.loadCandidates(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]float32, len(candidates))
	for _, c := range candidates {
		out[c.Key] = c.Vector
	}
	return out, nil
}

// noteTitle derives a display title from the first body line, stripping
// Markdown heading markers and the "Session:" prefix imported conversations
// carry.
func noteTitle(note *models.Note) string {
	line := note.Body
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(strings.TrimLeft(line, "# "))
	line = strings.TrimSpace(strings.TrimPrefix(line, "Session:"))
	if line == "" {
		return note.Key
	}
	return line
}

// noteSnippet flattens the body to one line and truncates it.
func noteSnippet(body string) string {
	flat := strings.Join(strings.Fields(body), " ")
	if len(flat) > snippetLength {
		flat = flat[:snippetLength]
	}
	return flat
}
