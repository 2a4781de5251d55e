package mailbox

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

func countingFetcher(calls *int32, ttl time.Duration) Fetcher {
	return FetcherFunc(func(context.Context) (string, time.Time, error) {
		n := atomic.AddInt32(calls, 1)
		return "token-" + string(rune('0'+n)), time.Now().Add(ttl), nil
	})
}

func TestTokenCacheReusesUntilMargin(t *testing.T) {
	var calls int32
	cache := NewTokenCache(countingFetcher(&calls, time.Hour), TokenCacheOptions{})

	first, err := cache.Get(context.Background())
	require.NoError(t, err)
	second, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))

	cache.now = func() time.Time { return time.Now().Add(59 * time.Minute) }
	third, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestTokenCacheSingleFlight(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	fetcher := FetcherFunc(func(context.Context) (string, time.Time, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "shared", time.Now().Add(time.Hour), nil
	})
	cache := NewTokenCache(fetcher, TokenCacheOptions{})

	var wg sync.WaitGroup
	results := make([]string, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := cache.Get(context.Background())
			assert.NoError(t, err)
			results[i] = tok
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	for _, tok := range results {
		assert.Equal(t, "shared", tok)
	}
}

func TestTokenCacheInvalidate(t *testing.T) {
	var calls int32
	cache := NewTokenCache(countingFetcher(&calls, time.Hour), TokenCacheOptions{})

	first, err := cache.Get(context.Background())
	require.NoError(t, err)
	cache.Invalidate(context.Background())
	second, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestTokenCacheFetchError(t *testing.T) {
	cache := NewTokenCache(FetcherFunc(func(context.Context) (string, time.Time, error) {
		return "", time.Time{}, errors.New("tenant unreachable")
	}), TokenCacheOptions{})

	_, err := cache.Get(context.Background())
	assert.ErrorContains(t, err, "tenant unreachable")
}

func TestTokenCacheSharesThroughRedis(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	var calls int32
	opts := TokenCacheOptions{Redis: client, Key: "graph-token"}
	a := NewTokenCache(countingFetcher(&calls, time.Hour), opts)
	b := NewTokenCache(countingFetcher(&calls, time.Hour), opts)

	tokA, err := a.Get(context.Background())
	require.NoError(t, err)
	tokB, err := b.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, tokA, tokB)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	assert.True(t, srv.Exists("graph-token"))

	b.Invalidate(context.Background())
	assert.False(t, srv.Exists("graph-token"))
}
