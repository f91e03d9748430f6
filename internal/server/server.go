// Package server provides the HTTP API for Kioku.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/config"
	"github.com/hyperjump/kioku/internal/files"
	"github.com/hyperjump/kioku/internal/notebook"
	"github.com/hyperjump/kioku/internal/storage"
)

// Server is the HTTP server for the Kioku API.
type Server struct {
	notes   *notebook.Service
	files   *files.Service
	storage storage.Storage
	config  *config.Config
	logger  *zap.Logger
	server  *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	notes *notebook.Service,
	files *files.Service,
	store storage.Storage,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		notes:   notes,
		files:   files,
		storage: store,
		config:  cfg,
		logger:  logger,
	}
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Get("/api/v1/status", s.handleStatus)

	r.Post("/api/v1/search", s.handleSearch)
	r.Post("/api/v1/suggest", s.handleSuggest)
	r.Get("/api/v1/graph", s.handleGraph)

	// Note keys contain slashes, so the key routes use a wildcard.
	r.Post("/api/v1/notes", s.handleStoreNote)
	r.Get("/api/v1/notes", s.handleListNotes)
	r.Get("/api/v1/notes/*", s.handleGetNote)
	r.Delete("/api/v1/notes/*", s.handleDeleteNote)

	r.Post("/api/v1/files", s.handleStoreFile)
	r.Get("/api/v1/files", s.handleListFiles)
	r.Get("/api/v1/files/*", s.handleGetFile)
	r.Delete("/api/v1/files/*", s.handleDeleteFile)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
