package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage keeps media objects under a directory on disk.
type LocalStorage struct {
	root string
}

func NewLocalStorage(root string) *LocalStorage {
	return &LocalStorage{root: strings.TrimSpace(root)}
}

func (s *LocalStorage) Put(_ context.Context, key string, data []byte, _ string) error {
	if key == "" || len(data) == 0 {
		return ErrValidation
	}
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create media directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write media object: %w", err)
	}
	return nil
}

func (s *LocalStorage) Delete(_ context.Context, key string) error {
	if key == "" {
		return nil
	}
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete media object: %w", err)
	}
	return nil
}

func (s *LocalStorage) path(key string) (string, error) {
	if s.root == "" {
		return "", fmt.Errorf("media directory is empty")
	}
	resolved, err := resolveUnder(s.root, key)
	if err != nil {
		return "", fmt.Errorf("invalid media key %q: %w", key, err)
	}
	return resolved, nil
}
