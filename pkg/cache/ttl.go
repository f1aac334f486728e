package cache

import (
	"context"
	"sync"
	"time"

	"github.com/mikiec84/perception-toolkit/errors"
)

// ttlCache is a thread-safe cache whose entries expire after a fixed
// time-to-live. Expired entries are dropped lazily on access and swept by a
// background cleanup goroutine.
type ttlCache[V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	items   map[string]*entry[V]
	stats   *Statistics
	metrics *cacheMetrics
	evictFn EvictCallback[V]

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

func newTTLCache[V any](ctx context.Context, ttl, cleanupInterval time.Duration, opts *cacheOptions[V]) (*ttlCache[V], error) {
	var metrics *cacheMetrics
	if opts.metricsReg != nil && opts.metricsPrefix != "" {
		var err error
		metrics, err = newCacheMetrics(opts.metricsReg, opts.metricsPrefix)
		if err != nil {
			return nil, errors.WrapTransient(err, "cache", "newTTLCache", "metrics registration")
		}
	}

	if cleanupInterval <= 0 {
		cleanupInterval = opts.cleanupInterval
	}

	cleanupCtx, cancel := context.WithCancel(ctx)
	c := &ttlCache[V]{
		ttl:     ttl,
		items:   make(map[string]*entry[V]),
		stats:   NewStatistics(),
		metrics: metrics,
		evictFn: opts.evictCallback,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go c.cleanupLoop(cleanupCtx, cleanupInterval)

	return c, nil
}

// cleanupLoop sweeps expired entries until the context is cancelled.
func (c *ttlCache[V]) cleanupLoop(ctx context.Context, interval time.Duration) {
	defer close(c.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

// removeExpired drops all entries past their expiry.
func (c *ttlCache[V]) removeExpired() {
	now := time.Now()
	type evictedEntry struct {
		key   string
		value V
	}
	var evicted []evictedEntry

	c.mu.Lock()
	for key, e := range c.items {
		if e.expired(now) {
			if c.evictFn != nil {
				evicted = append(evicted, evictedEntry{key, e.value})
			}
			delete(c.items, key)
			c.stats.Eviction()
			c.metrics.recordEviction()
		}
	}
	size := len(c.items)
	c.mu.Unlock()

	c.stats.UpdateSize(int64(size))
	c.metrics.updateSize(size)

	for _, e := range evicted {
		c.evictFn(e.key, e.value)
	}
}

// Get retrieves a value by key. Expired entries count as misses and are
// removed on access.
func (c *ttlCache[V]) Get(key string) (V, bool) {
	var zero V
	now := time.Now()

	c.mu.Lock()
	e, exists := c.items[key]
	if exists && e.expired(now) {
		delete(c.items, key)
		c.stats.Eviction()
		c.metrics.recordEviction()
		exists = false
	}
	var value V
	if exists {
		value = e.value
	}
	c.mu.Unlock()

	if !exists {
		c.stats.Miss()
		c.metrics.recordMiss()
		return zero, false
	}

	c.stats.Hit()
	c.metrics.recordHit()
	return value, true
}

// Set stores a value with the configured TTL, resetting the expiry for
// existing keys.
func (c *ttlCache[V]) Set(key string, value V) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	_, exists := c.items[key]
	c.items[key] = &entry[V]{value: value, expiresAt: time.Now().Add(c.ttl)}
	size := len(c.items)
	c.mu.Unlock()

	c.stats.Set()
	c.stats.UpdateSize(int64(size))
	c.metrics.recordSet()
	c.metrics.updateSize(size)

	return !exists, nil
}

// Delete removes an entry by key.
func (c *ttlCache[V]) Delete(key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	e, exists := c.items[key]
	if exists {
		delete(c.items, key)
	}
	size := len(c.items)
	c.mu.Unlock()

	if exists {
		c.stats.Delete()
		c.stats.UpdateSize(int64(size))
		c.metrics.recordDelete()
		c.metrics.updateSize(size)
		if c.evictFn != nil {
			c.evictFn(key, e.value)
		}
	}

	return exists, nil
}

// Clear removes all entries from the cache.
func (c *ttlCache[V]) Clear() error {
	c.mu.Lock()
	evicted := c.items
	c.items = make(map[string]*entry[V])
	c.mu.Unlock()

	c.stats.UpdateSize(0)
	c.metrics.updateSize(0)

	if c.evictFn != nil {
		for key, e := range evicted {
			c.evictFn(key, e.value)
		}
	}

	return nil
}

// Size returns the number of entries, including not-yet-swept expired ones.
func (c *ttlCache[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Keys returns all unexpired keys.
func (c *ttlCache[V]) Keys() []string {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.items))
	for key, e := range c.items {
		if !e.expired(now) {
			keys = append(keys, key)
		}
	}
	return keys
}

// Stats returns cache statistics.
func (c *ttlCache[V]) Stats() *Statistics {
	return c.stats
}

// Close stops the background cleanup goroutine.
func (c *ttlCache[V]) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		<-c.done
	})
	return nil
}
