package cache_test

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"psp-ffi/pkg/cache"
)

var sampleArgs = []string{
	"1",
	"0x6B175474E89094C44Da98b954EedeAC495271d0F",
	"0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
	"1000",
	"0x0000000000000000000000000000000000000001",
	"SELL",
	"3",
	"true",
	"18",
	"6",
	"17000000",
}

func TestKeyDeterministic(t *testing.T) {
	a := cache.Key(sampleArgs)
	b := cache.Key(append([]string(nil), sampleArgs...))

	assert.Equal(t, a, b)
	assert.True(t, cache.ValidKey(a))
}

func TestKeyChangesWithAnyArgument(t *testing.T) {
	base := cache.Key(sampleArgs)
	seen := map[string]int{base: -1}

	for i := range sampleArgs {
		changed := append([]string(nil), sampleArgs...)
		changed[i] += "0"
		k := cache.Key(changed)

		prev, dup := seen[k]
		assert.False(t, dup, "argument %d collides with %d", i, prev)
		seen[k] = i
	}
}

func TestKeyIncludesNonPricingFlags(t *testing.T) {
	withFlag := append(append([]string(nil), sampleArgs...), "false")
	withTrue := append(append([]string(nil), sampleArgs...), "true")

	assert.NotEqual(t, cache.Key(sampleArgs), cache.Key(withFlag))
	assert.NotEqual(t, cache.Key(withFlag), cache.Key(withTrue))
}

func TestKeyIsOrderAndBoundarySensitive(t *testing.T) {
	assert.NotEqual(t, cache.Key([]string{"a", "b"}), cache.Key([]string{"b", "a"}))
	assert.NotEqual(t, cache.Key([]string{"ab", "c"}), cache.Key([]string{"a", "bc"}))
	assert.NotEqual(t, cache.Key([]string{""}), cache.Key(nil))
}

func TestValidKey(t *testing.T) {
	assert.False(t, cache.ValidKey(""))
	assert.False(t, cache.ValidKey("../etc/passwd"))
	assert.False(t, cache.ValidKey(string(bytes.Repeat([]byte("A"), cache.KeyLength))))
	assert.True(t, cache.ValidKey(string(bytes.Repeat([]byte("a"), cache.KeyLength))))
}

func TestDoHitSkipsCompute(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	key := cache.Key(sampleArgs)
	require.NoError(t, store.Put(ctx, key, []byte("0xcafe")))

	c := cache.New(store)
	value, hit, err := c.Do(ctx, key, true, func(context.Context) ([]byte, error) {
		t.Fatal("compute must not run on a hit")
		return nil, nil
	})

	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []byte("0xcafe"), value)
}

func TestDoMissStores(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	key := cache.Key(sampleArgs)
	c := cache.New(store)

	value, hit, err := c.Do(ctx, key, true, func(context.Context) ([]byte, error) {
		return []byte("0xbeef"), nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []byte("0xbeef"), value)

	stored, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("0xbeef"), stored)
}

func TestDoWithoutWrite(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	c := cache.New(store)

	_, _, err := c.Do(ctx, cache.Key(sampleArgs), false, func(context.Context) ([]byte, error) {
		return []byte("0xbeef"), nil
	})
	require.NoError(t, err)
	assert.Zero(t, store.Len())
}

func TestDoComputeErrorNotStored(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	c := cache.New(store)
	boom := errors.New("boom")

	_, _, err := c.Do(ctx, cache.Key(sampleArgs), true, func(context.Context) ([]byte, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, store.Len())
}

type failingStore struct {
	cache.Store
}

func (failingStore) Put(context.Context, string, []byte) error {
	return errors.New("disk full")
}

func TestDoWriteFailureIsWarning(t *testing.T) {
	var logs bytes.Buffer
	ctx := zerolog.New(&logs).WithContext(context.Background())
	c := cache.New(failingStore{cache.NewMemoryStore()})

	value, hit, err := c.Do(ctx, cache.Key(sampleArgs), true, func(context.Context) ([]byte, error) {
		return []byte("0xbeef"), nil
	})

	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []byte("0xbeef"), value)
	assert.Contains(t, logs.String(), `"level":"warn"`)
	assert.Contains(t, logs.String(), "disk full")
}

func TestWriteErrorMatchesSentinel(t *testing.T) {
	cause := errors.New("disk full")
	err := error(&cache.WriteError{Key: "k", Err: cause})

	assert.ErrorIs(t, err, cache.ErrCacheWriteFailed)
	assert.ErrorIs(t, err, cause)
}

func TestDoCollapsesConcurrentComputes(t *testing.T) {
	ctx := context.Background()
	c := cache.New(cache.NewMemoryStore())
	key := cache.Key(sampleArgs)

	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(context.Context) ([]byte, error) {
		calls.Add(1)
		<-release
		return []byte("0x01"), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			value, _, err := c.Do(ctx, key, true, compute)
			assert.NoError(t, err)
			assert.Equal(t, []byte("0x01"), value)
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, calls.Load(), int32(8))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))

	_, hit, err := c.Do(ctx, key, true, compute)
	require.NoError(t, err)
	assert.True(t, hit)
}
