// Package media reads media files referenced by an export and stores them as
// blobs on local disk or in an S3-compatible bucket.
package media

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const DefaultMimeType = "image/jpeg"

var (
	ErrValidation = errors.New("media validation failed")
	// ErrOutsideRoot is returned for references that escape the import root.
	ErrOutsideRoot = errors.New("path escapes root directory")
)

// Source reads media files relative to an import root, usually the
// directory holding the export document.
type Source struct {
	root string
}

func NewSource(root string) *Source {
	return &Source{root: strings.TrimSpace(root)}
}

func (s *Source) Root() string {
	return s.root
}

// Read returns the file contents and the inferred mime type.
func (s *Source) Read(uri string) ([]byte, string, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return nil, "", fmt.Errorf("%w: media uri is empty", ErrValidation)
	}
	path, err := resolveUnder(s.root, uri)
	if err != nil {
		return nil, "", err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, "", err
	}
	if info.IsDir() {
		return nil, "", fmt.Errorf("path is a directory, not a file: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	return data, MimeTypeFor(uri), nil
}

// MimeTypeFor infers a mime type from the file extension.
func MimeTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".heic":
		return "image/heic"
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".webm":
		return "video/webm"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return DefaultMimeType
	}
}

func resolveUnder(root, rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", ErrOutsideRoot
	}
	joined := filepath.Join(root, filepath.FromSlash(rel))
	back, err := filepath.Rel(root, joined)
	if err != nil {
		return "", err
	}
	if back == ".." || strings.HasPrefix(back, ".."+string(filepath.Separator)) {
		return "", ErrOutsideRoot
	}
	return joined, nil
}
