package cache

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const (
	// DefaultDir is where cache entries live relative to the working directory
	DefaultDir = "src/tests/.pspcache"
)

// FileStore keeps one file per key under a directory.
// File content is exactly the bytes emitted for that key.
type FileStore struct {
	dir string
}

// NewFileStore creates a file store rooted at dir
func NewFileStore(dir string) *FileStore {
	if dir == "" {
		dir = DefaultDir
	}
	return &FileStore{dir: dir}
}

// Get reads the entry file for key
func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	if !ValidKey(key) {
		return nil, errors.Wrap(ErrInvalidKey, key)
	}

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to read cache entry")
	}

	return data, nil
}

// Put writes the entry file for key
func (s *FileStore) Put(_ context.Context, key string, value []byte) error {
	if !ValidKey(key) {
		return errors.Wrap(ErrInvalidKey, key)
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return errors.Wrap(err, "failed to create cache directory")
	}

	// Write to a unique temporary file first, then rename for an atomic replace
	tmp, err := os.CreateTemp(s.dir, "."+key+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "failed to create temp file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "failed to write cache entry")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "failed to close temp file")
	}

	if err := os.Rename(tmpName, s.path(key)); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "failed to rename temp file")
	}

	return nil
}

// Dir returns the cache directory
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key)
}

var _ Store = (*FileStore)(nil)
