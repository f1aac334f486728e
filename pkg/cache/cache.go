// Package cache provides generic, thread-safe cache implementations with
// pluggable eviction policies.
//
// Three strategies are offered:
//   - Simple: no eviction, entries live until deleted or cleared
//   - LRU: least-recently-used eviction bounded by entry count
//   - TTL: time-to-live eviction with background cleanup
//
// All implementations collect statistics unconditionally and can additionally
// export Prometheus metrics via functional options.
package cache

import (
	"time"

	"github.com/mikiec84/perception-toolkit/errors"
)

// Cache is the generic cache contract shared by all strategies.
// The cache is parameterized by value type V for type safety.
type Cache[V any] interface {
	// Get retrieves a value by key. Returns the value and true if found,
	// zero value and false otherwise.
	Get(key string) (V, bool)

	// Set stores a value with the given key. Returns true if a new entry was
	// created, false if an existing entry was updated.
	Set(key string, value V) (bool, error)

	// Delete removes an entry by key. Returns true if the key existed.
	Delete(key string) (bool, error)

	// Clear removes all entries from the cache.
	Clear() error

	// Size returns the current number of entries.
	Size() int

	// Keys returns all keys currently in the cache.
	Keys() []string

	// Stats returns cache statistics.
	Stats() *Statistics

	// Close shuts down the cache and releases background resources.
	Close() error
}

// EvictCallback is called with the key and value of an evicted entry.
type EvictCallback[V any] func(key string, value V)

// entry wraps a stored value with its expiry for TTL caches.
type entry[V any] struct {
	value     V
	expiresAt time.Time
}

func (e *entry[V]) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// validateKey rejects keys the cache cannot store.
func validateKey(key string) error {
	if key == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "cache", "validateKey", "key cannot be empty")
	}
	return nil
}
