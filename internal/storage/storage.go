// Package storage keeps document images in an object store.
package storage

import (
	"context"
	"path/filepath"
	"strings"
)

// DocumentsFolder is where identity document images are stored
const DocumentsFolder = "documents"

// File is an in-memory upload
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Ext returns the extension for the file's content type, with the dot. Unknown
// types fall back to the lower-cased extension of the original name.
func (f *File) Ext() string {
	switch strings.ToLower(f.ContentType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	}
	return strings.ToLower(filepath.Ext(f.Name))
}

// ObjectStorage stores files and hands back URLs to them.
//
// Upload may return a permanent URL or a time-limited signed one; callers must
// treat the URL as opaque. Delete is best effort: unknown or malformed URLs are
// ignored and storage errors are logged, never returned.
type ObjectStorage interface {
	Upload(ctx context.Context, file *File, folder string) (string, error)
	Delete(ctx context.Context, fileURL string)
}

// ValidContentTypes returns allowed MIME types for document images
func ValidContentTypes() map[string]bool {
	return map[string]bool{
		"image/jpeg": true,
		"image/jpg":  true,
		"image/png":  true,
	}
}

// IsValidContentType checks if the content type is allowed
func IsValidContentType(contentType string) bool {
	return ValidContentTypes()[strings.ToLower(contentType)]
}
