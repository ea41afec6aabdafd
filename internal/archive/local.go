package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalStore archives chunk audio on the local filesystem, for deployments
// without an object store.
type LocalStore struct {
	dir string
}

// NewLocalStore creates a filesystem archive rooted at dir.
func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{dir: dir}
}

// Save writes one chunk atomically (temp file + rename) so a crash never
// leaves a partial archive entry.
func (s *LocalStore) Save(ctx context.Context, key string, data []byte, contentType string) error {
	path := filepath.Join(s.dir, key)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".chunk-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// Exists reports whether the key is already archived.
func (s *LocalStore) Exists(key string) bool {
	_, err := os.Stat(filepath.Join(s.dir, key))
	return err == nil
}
