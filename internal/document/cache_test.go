package document

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute, nil), mr
}

func TestCacheFetchMissThenHit(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestCache(t)
	var builds atomic.Int32
	build := func(context.Context) ([]byte, error) {
		builds.Add(1)
		return []byte("pdf"), nil
	}

	key, err := cache.Key(ctx, "fpdf", "INV-1", "0")
	require.NoError(t, err)
	assert.Equal(t, "invoicer:document:fpdf:INV-1:0:1", key)

	out, hit, err := cache.Fetch(ctx, key, build)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []byte("pdf"), out)

	out, hit, err = cache.Fetch(ctx, key, build)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []byte("pdf"), out)
	assert.Equal(t, int32(1), builds.Load())
}

func TestCacheBumpChangesKeys(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestCache(t)
	before, err := cache.Key(ctx, "fpdf", "INV-1")
	require.NoError(t, err)
	require.NoError(t, cache.Bump(ctx))
	after, err := cache.Key(ctx, "fpdf", "INV-1")
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
}

func TestCacheCollapsesConcurrentBuilds(t *testing.T) {
	cache := NewCache(nil, 0, nil)
	release := make(chan struct{})
	var builds atomic.Int32
	build := func(context.Context) ([]byte, error) {
		builds.Add(1)
		<-release
		return []byte("pdf"), nil
	}

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, _, err := cache.Fetch(context.Background(), "k", build)
			assert.NoError(t, err)
			assert.Equal(t, []byte("pdf"), out)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), builds.Load())
}

func TestCacheBuildErrorIsNotStored(t *testing.T) {
	ctx := context.Background()
	cache, mr := newTestCache(t)
	_, _, err := cache.Fetch(ctx, "invoicer:document:k", func(context.Context) ([]byte, error) {
		return nil, errors.New("boom")
	})
	require.Error(t, err)
	assert.False(t, mr.Exists("invoicer:document:k"))
}

func TestCacheDegradesWhenRedisDown(t *testing.T) {
	cache, mr := newTestCache(t)
	mr.Close()
	out, hit, err := cache.Fetch(context.Background(), "k", func(context.Context) ([]byte, error) {
		return []byte("pdf"), nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []byte("pdf"), out)
}

func TestCacheFetchSharedBuildIgnoresLeavingCaller(t *testing.T) {
	cache, _ := newTestCache(t)
	key := "invoicer:document:fpdf:INV-7:1"

	var builds atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	build := func(ctx context.Context) ([]byte, error) {
		if builds.Add(1) == 1 {
			close(started)
		}
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return []byte("pdf"), nil
	}

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, _, err := cache.Fetch(firstCtx, key, build)
		firstErr <- err
	}()
	<-started
	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	type result struct {
		out []byte
		err error
	}
	second := make(chan result, 1)
	go func() {
		out, _, err := cache.Fetch(context.Background(), key, build)
		second <- result{out, err}
	}()
	time.Sleep(50 * time.Millisecond)
	close(release)

	res := <-second
	require.NoError(t, res.err)
	assert.Equal(t, []byte("pdf"), res.out)
	assert.Equal(t, int32(1), builds.Load())
}
