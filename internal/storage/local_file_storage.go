package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"stash/pkg/storage"
)

// LocalFileStorage is a storage.Storage that keeps blobs as plain files.
// Relative keys are resolved against the root directory, absolute keys are
// used as-is, and keys are never sanitized. Parent directories must already
// exist.
type LocalFileStorage struct {
	dataDir string
}

// NewLocalFileStorage returns a LocalFileStorage rooted at dataDir. The
// directory must exist; it is checked once here and never again.
func NewLocalFileStorage(dataDir string) (*LocalFileStorage, error) {
	if _, err := os.Stat(dataDir); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", storage.ErrInvalidPath, dataDir, err)
	}
	return &LocalFileStorage{dataDir: dataDir}, nil
}

// ObjectPath returns the filesystem path the blob for key lives at.
func (s *LocalFileStorage) ObjectPath(key string) string {
	if filepath.IsAbs(key) {
		return key
	}
	return filepath.Join(s.dataDir, key)
}

// Save writes data to the key's path, truncating any existing blob. New files
// get mode 0644; existing files keep their mode, and symlinks are written
// through. It returns once the write has completed or failed.
func (s *LocalFileStorage) Save(_ context.Context, key string, data []byte) error {
	return os.WriteFile(s.ObjectPath(key), data, 0o644)
}

func (s *LocalFileStorage) Load(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.ObjectPath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", storage.ErrNotFound, err)
		}
		return nil, err
	}
	return data, nil
}

var _ storage.Storage = (*LocalFileStorage)(nil)
