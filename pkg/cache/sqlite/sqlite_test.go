package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"psp-ffi/pkg/cache"
	"psp-ffi/pkg/cache/sqlite"
)

func openStore(t *testing.T, path string) *sqlite.Store {
	t.Helper()

	store, err := sqlite.Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, filepath.Join(t.TempDir(), "cache.db"))
	key := cache.Key([]string{"1", "SELL"})

	_, err := store.Get(ctx, key)
	assert.ErrorIs(t, err, cache.ErrNotFound)

	require.NoError(t, store.Put(ctx, key, []byte("0x1234")))
	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("0x1234"), got)

	require.NoError(t, store.Put(ctx, key, []byte("0x5678")))
	got, err = store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("0x5678"), got)
}

func TestStorePersistsAcrossOpens(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sub", "cache.db")
	key := cache.Key([]string{"persist"})

	first, err := sqlite.Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, first.Put(ctx, key, []byte("0xaa")))
	require.NoError(t, first.Close())

	second := openStore(t, path)
	got, err := second.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("0xaa"), got)
}

func TestStoreBehindCache(t *testing.T) {
	ctx := context.Background()
	c := cache.New(openStore(t, filepath.Join(t.TempDir(), "cache.db")))
	key := cache.Key([]string{"wrapped"})

	calls := 0
	compute := func(context.Context) ([]byte, error) {
		calls++
		return []byte("0xbb"), nil
	}

	_, hit, err := c.Do(ctx, key, true, compute)
	require.NoError(t, err)
	assert.False(t, hit)

	value, hit, err := c.Do(ctx, key, true, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []byte("0xbb"), value)
	assert.Equal(t, 1, calls)
}
