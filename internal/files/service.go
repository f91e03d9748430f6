// Package files stores binary attachments: bytes on disk, metadata in SQLite.
package files

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/kioku/internal/models"
	"github.com/hyperjump/kioku/internal/storage"
)

// Service implements file storage over a disk store and the metadata backend.
type Service struct {
	storage storage.Storage
	disk    *storage.DiskFileStore
	logger  *zap.Logger
}

// NewService creates a files service with the given dependencies.
func NewService(store storage.Storage, disk *storage.DiskFileStore, logger *zap.Logger) *Service {
	return &Service{storage: store, disk: disk, logger: logger}
}

// Store decodes the base64 content, writes the bytes to disk, and records
// metadata. Overwrites any existing file with the same name.
func (s *Service) Store(ctx context.Context, input *models.FileInput) (*models.FileMeta, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("file name is required")
	}
	content, err := base64.StdEncoding.DecodeString(input.ContentBase64)
	if err != nil {
		return nil, fmt.Errorf("decode file content: %w", err)
	}

	if err := s.disk.Write(input.Name, content); err != nil {
		return nil, err
	}
	meta := &models.FileMeta{
		Name:      input.Name,
		MimeType:  input.MimeType,
		Tags:      models.NormalizeTags(input.Tags),
		SizeBytes: int64(len(content)),
	}
	if err := s.storage.UpsertFile(ctx, meta); err != nil {
		return nil, fmt.Errorf("store file metadata: %w", err)
	}
	s.logger.Debug("stored file", zap.String("name", meta.Name), zap.Int64("bytes", meta.SizeBytes))
	return meta, nil
}

// Get returns the file metadata together with its base64-encoded content.
func (s *Service) Get(ctx context.Context, name string) (*models.FileContent, error) {
	meta, err := s.storage.GetFile(ctx, name)
	if err != nil {
		return nil, err
	}
	content, err := s.disk.Read(name)
	if err != nil {
		return nil, err
	}
	return &models.FileContent{
		FileMeta:      *meta,
		ContentBase64: base64.StdEncoding.EncodeToString(content),
	}, nil
}

// List returns file metadata, optionally filtered by tag.
func (s *Service) List(ctx context.Context, tag string) ([]*models.FileMeta, error) {
	return s.storage.ListFiles(ctx, tag)
}

// Delete removes the file's bytes and metadata. It succeeds if either
// existed, so a partial earlier delete can be finished.
func (s *Service) Delete(ctx context.Context, name string) error {
	removed, err := s.disk.Remove(name)
	if err != nil {
		return err
	}
	metaErr := s.storage.DeleteFile(ctx, name)
	if metaErr == nil {
		return nil
	}
	if !errors.Is(metaErr, storage.ErrNotFound) {
		return metaErr
	}
	if !removed {
		return fmt.Errorf("file %s: %w", name, storage.ErrNotFound)
	}
	return nil
}
