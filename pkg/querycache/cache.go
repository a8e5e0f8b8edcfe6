// Package querycache memoizes data source queries by their exact arguments.
//
// Entries live until Clear is called. There is no size limit and no expiry, so results
// that can change underneath (such as the bounds of a stream still being written) are
// only refreshed by an explicit Clear.
package querycache

import (
	"sync"

	"github.com/NotCoffee418/waveform_explorer/pkg/metrics"
)

// Cache is safe for concurrent use. Two concurrent misses on the same key may
// both run their compute function; the last result stored wins.
type Cache[K comparable, V any] struct {
	name string
	mu   sync.RWMutex
	data map[K]V
}

// New creates an empty cache. name labels its metrics.
func New[K comparable, V any](name string) *Cache[K, V] {
	return &Cache[K, V]{
		name: name,
		data: make(map[K]V),
	}
}

func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.data[key]
	return v, ok
}

// GetOrCompute returns the cached value for key, or calls compute and stores its
// result. Errors are returned and not cached.
func (c *Cache[K, V]) GetOrCompute(key K, compute func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		metrics.CacheHits.WithLabelValues(c.name).Inc()
		return v, nil
	}
	metrics.CacheMisses.WithLabelValues(c.name).Inc()

	v, err := compute()
	if err != nil {
		var zero V
		return zero, err
	}

	c.mu.Lock()
	c.data[key] = v
	c.mu.Unlock()
	metrics.CacheEntries.WithLabelValues(c.name).Set(float64(c.Len()))
	return v, nil
}

// Clear drops every entry.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	c.data = make(map[K]V)
	c.mu.Unlock()
	metrics.CacheEntries.WithLabelValues(c.name).Set(0)
}

func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
