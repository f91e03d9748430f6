package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/embedding"
	"github.com/hyperjump/kioku/internal/models"
	"github.com/hyperjump/kioku/internal/storage"
)

// defaultGraphK is the per-node neighbor count when ?k= is absent.
const defaultGraphK = 3

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	noteCount, err := s.storage.CountNotes(ctx)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	embeddingCount, err := s.storage.CountEmbeddings(ctx)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	fileCount, err := s.storage.CountFiles(ctx)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	resp := map[string]interface{}{
		"notes":      noteCount,
		"embeddings": embeddingCount,
		"files":      fileCount,
		"config": map[string]interface{}{
			"embedding_model":      s.config.Embedding.Model,
			"embedding_dimensions": s.config.Embedding.Dimensions,
			"auto_tag_threshold":   s.config.AutoTag.Threshold,
			"database_path":        s.config.Storage.DatabasePath,
			"bleve_index_path":     s.config.Storage.BleveIndexPath,
		},
	}
	diskBytes, err := storage.DiskUsageBytes(
		s.config.Storage.DatabasePath,
		s.config.Storage.FilesDir,
		s.config.Storage.BleveIndexPath,
	)
	if err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if query.Query == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	s.logger.Debug("search request",
		zap.String("query", query.Query),
		zap.Int("limit", query.Limit),
		zap.Bool("keyword", query.Keyword))
	response, err := s.notes.Search(r.Context(), &query)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	var req models.SuggestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Body == "" {
		s.respondError(w, http.StatusBadRequest, "body is required")
		return
	}
	tags, err := s.notes.Suggest(r.Context(), req.Body)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, models.SuggestResponse{Tags: tags})
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	k := defaultGraphK
	if raw := r.URL.Query().Get("k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			s.respondError(w, http.StatusBadRequest, "k must be a positive integer")
			return
		}
		k = parsed
	}
	graph, err := s.notes.Graph(r.Context(), k)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, graph)
}

func (s *Server) handleStoreNote(w http.ResponseWriter, r *http.Request) {
	var input models.NoteInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if input.Key == "" || input.Body == "" {
		s.respondError(w, http.StatusBadRequest, "key and body are required")
		return
	}
	s.logger.Debug("store note request", zap.String("key", input.Key))
	note, err := s.notes.Store(r.Context(), &input)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, note)
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.notes.List(r.Context(), r.URL.Query().Get("tag"))
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	if summaries == nil {
		summaries = []*models.NoteSummary{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"notes": summaries})
}

func (s *Server) handleGetNote(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	note, err := s.notes.Get(r.Context(), key)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, note)
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	s.logger.Debug("delete note request", zap.String("key", key))
	if err := s.notes.Delete(r.Context(), key); err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"key": key, "status": "deleted"})
}

func (s *Server) handleStoreFile(w http.ResponseWriter, r *http.Request) {
	var input models.FileInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if input.Name == "" {
		s.respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	meta, err := s.files.Store(r.Context(), &input)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, meta)
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	metas, err := s.files.List(r.Context(), r.URL.Query().Get("tag"))
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	if metas == nil {
		metas = []*models.FileMeta{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"files": metas})
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	file, err := s.files.Get(r.Context(), name)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, file)
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	if err := s.files.Delete(r.Context(), name); err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"name": name, "status": "deleted"})
}

// respondServiceError maps service errors to status codes: missing records
// are 404, an unreachable encoder is 502, anything else 500.
func (s *Server) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, embedding.ErrEncodingFailed):
		s.logger.Error("encoder unavailable", zap.Error(err))
		s.respondError(w, http.StatusBadGateway, err.Error())
	default:
		s.logger.Error("request failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
