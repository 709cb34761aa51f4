package cache

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"
)

// Cache provides a simple in-memory cache with expiration
type Cache struct {
	data  map[string]any
	times map[string]time.Time
	ttl   time.Duration
	mu    sync.RWMutex
	group singleflight.Group
	now   func() time.Time

	lastSweep time.Time
}

// NewCache creates a new cache with the specified TTL
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		data:  make(map[string]any),
		times: make(map[string]time.Time),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get retrieves a value from the cache
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	val, exists := c.data[key]
	if !exists {
		return nil, false
	}

	// Check if expired
	if c.now().Sub(c.times[key]) > c.ttl {
		return nil, false
	}

	return val, true
}

// Set stores a value in the cache. At most once per TTL it also drops
// expired entries.
func (c *Cache) Set(key string, val any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if now.Sub(c.lastSweep) > c.ttl {
		c.sweepLocked(now)
	}
	c.data[key] = val
	c.times[key] = now
}

// Len returns the number of live entries, evicting expired ones as it goes
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweepLocked(c.now())
	return len(c.data)
}

func (c *Cache) sweepLocked(now time.Time) {
	for key, stored := range c.times {
		if now.Sub(stored) > c.ttl {
			delete(c.data, key)
			delete(c.times, key)
		}
	}
	c.lastSweep = now
}

// GenerateKey derives a stable cache key from a namespace and a request value.
// Map keys are serialised in sorted order so logically equal requests share a key.
func GenerateKey(namespace string, request any) string {
	payload, err := json.Marshal(request)
	if err != nil {
		payload = fmt.Appendf(nil, "%#v", request)
	}
	return fmt.Sprintf("%s:%016x", namespace, xxhash.Sum64(payload))
}

// WithCache returns the cached value for key or runs producer once, even when
// called concurrently, storing only successful results.
func WithCache[T any](c *Cache, key string, producer func() (T, error)) (T, error) {
	if c == nil {
		return producer()
	}

	if cached, ok := c.Get(key); ok {
		if val, ok := cached.(T); ok {
			return val, nil
		}
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		val, err := producer()
		if err != nil {
			return val, err
		}
		c.Set(key, val)
		return val, nil
	})

	val, _ := v.(T)
	return val, err
}
