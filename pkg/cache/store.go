package cache

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned by a Store when no entry exists for a key.
	ErrNotFound = errors.New("cache entry not found")

	// ErrCacheWriteFailed marks a failed Put. It never invalidates an already computed result.
	ErrCacheWriteFailed = errors.New("cache write failed")

	// ErrInvalidKey is returned for keys that are not produced by Key.
	ErrInvalidKey = errors.New("invalid cache key")
)

// Store is the storage medium behind the cache. Entries are raw bytes stored verbatim,
// without expiry or versioning. Put on an existing key replaces it; since content for a
// key is deterministic, concurrent writers may race freely.
type Store interface {
	// Get returns the entry for key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value under key, replacing any previous entry.
	Put(ctx context.Context, key string, value []byte) error
}
