package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestCache_GetSetExpiry(t *testing.T) {
	c := NewCache(time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("k", "v")
	val, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", val)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCache_SetDropsExpiredEntries(t *testing.T) {
	c := NewCache(time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("a", 1)
	now = now.Add(30 * time.Second)
	c.Set("b", 2)
	assert.Len(t, c.data, 2, "nothing has expired yet")

	now = now.Add(45 * time.Second)
	c.Set("c", 3)
	assert.Len(t, c.data, 2)
	assert.NotContains(t, c.data, "a")
	assert.NotContains(t, c.times, "a")

	val, ok := c.Get("b")
	require.True(t, ok)
	assert.Equal(t, 2, val)
}

func TestGenerateKey_StableAcrossMapOrder(t *testing.T) {
	a := map[string]any{"query": "react", "owner": "facebook", "limit": 10}
	b := map[string]any{"limit": 10, "owner": "facebook", "query": "react"}

	assert.Equal(t, GenerateKey("search", a), GenerateKey("search", b))
	assert.NotEqual(t, GenerateKey("search", a), GenerateKey("other", a))
	assert.NotEqual(t, GenerateKey("search", a), GenerateKey("search", map[string]any{"query": "vue"}))
}

func TestWithCache_StoresOnlySuccess(t *testing.T) {
	c := NewCache(time.Minute)
	calls := 0

	_, err := WithCache(c, "key", func() (string, error) {
		calls++
		return "", errors.New("boom")
	})
	require.Error(t, err)

	val, err := WithCache(c, "key", func() (string, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", val)

	val, err = WithCache(c, "key", func() (string, error) {
		calls++
		return "fresh", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", val)
	assert.Equal(t, 2, calls)
}

func TestWithCache_NilCacheAlwaysProduces(t *testing.T) {
	calls := 0
	for range 3 {
		_, err := WithCache[int](nil, "key", func() (int, error) {
			calls++
			return calls, nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, calls)
}

func TestWithCache_ConcurrentCallersShareProducer(t *testing.T) {
	c := NewCache(time.Minute)
	var calls atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			val, err := WithCache(c, "shared", func() (int, error) {
				calls.Add(1)
				<-release
				return 42, nil
			})
			assert.NoError(t, err)
			results[i] = val
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, 42, r)
	}
	assert.LessOrEqual(t, calls.Load(), int32(len(results)))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}
