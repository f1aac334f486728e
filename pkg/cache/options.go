package cache

import (
	"time"

	"github.com/mikiec84/perception-toolkit/metric"
)

// Option configures cache behavior using the functional options pattern.
type Option[V any] func(*cacheOptions[V])

// cacheOptions holds internal configuration for cache instances.
// Statistics are always collected; Prometheus export is opt-in.
type cacheOptions[V any] struct {
	// metricsReg, when set, exposes cache statistics as Prometheus metrics
	metricsReg *metric.MetricsRegistry

	// metricsPrefix is the component label for exported metrics
	metricsPrefix string

	// evictCallback is invoked for entries leaving the cache
	evictCallback EvictCallback[V]

	// cleanupInterval is how often TTL caches sweep expired entries
	cleanupInterval time.Duration
}

// WithMetrics enables Prometheus export for cache statistics.
// A nil registry or empty prefix leaves the option ignored.
func WithMetrics[V any](registry *metric.MetricsRegistry, prefix string) Option[V] {
	return func(opts *cacheOptions[V]) {
		if registry != nil && prefix != "" {
			opts.metricsReg = registry
			opts.metricsPrefix = prefix
		}
	}
}

// WithEvictionCallback sets a callback invoked when items are evicted.
func WithEvictionCallback[V any](callback EvictCallback[V]) Option[V] {
	return func(opts *cacheOptions[V]) {
		opts.evictCallback = callback
	}
}

// applyOptions resolves functional options into final configuration.
func applyOptions[V any](options ...Option[V]) *cacheOptions[V] {
	opts := &cacheOptions[V]{
		cleanupInterval: time.Minute,
	}

	for _, opt := range options {
		if opt != nil {
			opt(opts)
		}
	}

	return opts
}
