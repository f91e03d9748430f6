// Package importer ingests external documents as notes: a directory watcher
// for dropped files and a one-shot ChatGPT conversation export import.
package importer

import (
	"context"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/config"
	"github.com/hyperjump/kioku/internal/extract"
	"github.com/hyperjump/kioku/internal/models"
	"github.com/hyperjump/kioku/internal/notebook"
)

// importKeyPrefix namespaces notes created from watched directories.
const importKeyPrefix = "import/"

// Importer watches configured directories and stores dropped documents as
// auto-tagged notes. Removing a file removes its note.
type Importer struct {
	notes     *notebook.Service
	extractor *extract.Extractor
	watcher   *watcher
	logger    *zap.Logger
}

// New creates an importer from the import configuration.
func New(notes *notebook.Service, cfg *config.ImportConfig, logger *zap.Logger) *Importer {
	imp := &Importer{
		notes:     notes,
		extractor: extract.NewExtractor(),
		logger:    logger,
	}
	imp.watcher = newWatcher(
		cfg.Directories,
		cfg.Extensions,
		cfg.RecursiveOrDefault(),
		imp.ingest,
		imp.remove,
		logger,
	)
	return imp
}

// Start begins watching. It returns immediately; ingestion happens in the
// background until ctx is cancelled or Stop is called.
func (imp *Importer) Start(ctx context.Context) error {
	return imp.watcher.start(ctx)
}

// SyncExisting ingests files already present under the watched directories.
// Call after Start so files dropped while the server was down are picked up.
func (imp *Importer) SyncExisting() {
	imp.watcher.syncExisting()
}

// Stop stops the watcher.
func (imp *Importer) Stop() {
	imp.watcher.stop()
}

func (imp *Importer) ingest(root, path string) {
	text, err := imp.extractor.Extract(path)
	if err != nil {
		imp.logger.Warn("import extraction failed", zap.String("path", path), zap.Error(err))
		return
	}
	if strings.TrimSpace(text) == "" {
		imp.logger.Debug("skipping empty import", zap.String("path", path))
		return
	}
	key := NoteKey(root, path)
	if _, err := imp.notes.Store(context.Background(), &models.NoteInput{
		Key:     key,
		Body:    text,
		AutoTag: true,
	}); err != nil {
		imp.logger.Warn("import store failed", zap.String("key", key), zap.Error(err))
		return
	}
	imp.logger.Info("imported file", zap.String("path", path), zap.String("key", key))
}

func (imp *Importer) remove(root, path string) {
	key := NoteKey(root, path)
	if err := imp.notes.Delete(context.Background(), key); err != nil {
		imp.logger.Debug("import removal skipped", zap.String("key", key), zap.Error(err))
		return
	}
	imp.logger.Info("removed imported note", zap.String("key", key))
}

// NoteKey maps a file under an import root to its note key:
// "import/<relative path without extension>", slash-separated on every
// platform so keys are stable across machines.
func NoteKey(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	return importKeyPrefix + filepath.ToSlash(rel)
}
