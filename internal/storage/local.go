package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sjperalta/clients-api/internal/metrics"
	"github.com/sjperalta/clients-api/pkg/logger"
)

// UploadsRoute is the path the router serves local files under
const UploadsRoute = "/uploads"

var _ ObjectStorage = (*LocalStorage)(nil)

// LocalStorage handles file storage on the local filesystem
type LocalStorage struct {
	basePath string
	baseURL  string
	metrics  *metrics.Metrics
}

// NewLocalStorage creates a new local storage instance. Files are reachable at
// {publicBaseURL}/uploads/{relative path}.
func NewLocalStorage(basePath, publicBaseURL string, m *metrics.Metrics) (*LocalStorage, error) {
	// Ensure the base directory exists
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{
		basePath: basePath,
		baseURL:  strings.TrimRight(publicBaseURL, "/") + UploadsRoute + "/",
		metrics:  m,
	}, nil
}

// Upload saves a file under folder/YYYY/MM and returns its public URL
func (s *LocalStorage) Upload(ctx context.Context, file *File, folder string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir := filepath.Join(s.basePath, folder, time.Now().Format("2006/01"))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	filePath := filepath.Join(dir, uuid.NewString()+file.Ext())
	if err := os.WriteFile(filePath, file.Data, 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	relPath, _ := filepath.Rel(s.basePath, filePath)
	return s.baseURL + filepath.ToSlash(relPath), nil
}

// Delete removes a file previously returned by Upload. Never fails.
func (s *LocalStorage) Delete(_ context.Context, fileURL string) {
	relPath, ok := strings.CutPrefix(fileURL, s.baseURL)
	if !ok || relPath == "" {
		return
	}
	if i := strings.IndexAny(relPath, "?#"); i >= 0 {
		relPath = relPath[:i]
	}

	clean := filepath.Clean(filepath.FromSlash(relPath))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return
	}

	if err := os.Remove(filepath.Join(s.basePath, clean)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Error("Error deleting local file", "path", clean, "error", err)
		s.metrics.IncStorageDeleteFailure()
	}
}

// BasePath is the directory served under UploadsRoute
func (s *LocalStorage) BasePath() string {
	return s.basePath
}
