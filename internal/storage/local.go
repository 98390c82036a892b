package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"go.uber.org/zap"
)

// LocalStore writes images to a directory on disk. The HTTP server
// exposes the same directory under the public base URL.
type LocalStore struct {
	basePath      string
	publicBaseURL string
	logger        *zap.Logger
}

// NewLocalStore creates the filesystem store and its base directory.
func NewLocalStore(basePath, publicBaseURL string, logger *zap.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}
	return &LocalStore{
		basePath:      basePath,
		publicBaseURL: publicBaseURL,
		logger:        logger.Named("LocalStore"),
	}, nil
}

func (s *LocalStore) SaveImage(_ context.Context, ownerID, filename string, data []byte, _ string) (string, error) {
	dir := filepath.Join(s.basePath, ownerID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create owner directory: %w", err)
	}
	fullPath := filepath.Join(dir, filename)
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		s.logger.Error("Failed to write image file",
			zap.String("path", fullPath), zap.Error(err))
		return "", fmt.Errorf("failed to write image file: %w", err)
	}
	s.logger.Debug("Saved image",
		zap.String("path", fullPath), zap.Int("bytes", len(data)))
	return path.Join(s.publicBaseURL, ownerID, filename), nil
}
