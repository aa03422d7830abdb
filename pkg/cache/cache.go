package cache

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Compute produces the value for a missing key.
type Compute func(ctx context.Context) ([]byte, error)

// Cache is a content-addressed fixture store in front of a Store.
// It has no eviction: an entry lives until something outside deletes it.
type Cache struct {
	store Store
	group singleflight.Group
}

// New wraps store
func New(store Store) *Cache {
	return &Cache{store: store}
}

// Lookup returns the entry for key. A read failure is logged and treated as a miss.
func (c *Cache) Lookup(ctx context.Context, key string) ([]byte, bool) {
	value, err := c.store.Get(ctx, key)
	if err == nil {
		return value, true
	}
	if !errors.Is(err, ErrNotFound) {
		zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("Failed to read cache entry, treating as miss")
	}
	return nil, false
}

// Do returns the cached value for key, or runs compute and, if write is set, stores the result.
// Concurrent calls for the same key in this process share one compute.
// A failed write is logged at warn level and does not fail the call.
func (c *Cache) Do(ctx context.Context, key string, write bool, compute Compute) (value []byte, hit bool, err error) {
	if value, ok := c.Lookup(ctx, key); ok {
		return value, true, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// Another flight may have stored it in the meantime
		if value, ok := c.Lookup(ctx, key); ok {
			return value, nil
		}

		value, err := compute(ctx)
		if err != nil {
			return nil, err
		}

		if write {
			if err := c.store.Put(ctx, key, value); err != nil {
				zerolog.Ctx(ctx).Warn().
					Err(&WriteError{Key: key, Err: err}).
					Msg("Failed to store result in cache")
			}
		}

		return value, nil
	})
	if err != nil {
		return nil, false, err
	}

	return v.([]byte), false, nil
}

// WriteError reports a failed cache write. It matches ErrCacheWriteFailed.
type WriteError struct {
	Key string
	Err error
}

func (e *WriteError) Error() string {
	return "cache write failed for key " + e.Key + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() []error {
	return []error{ErrCacheWriteFailed, e.Err}
}
