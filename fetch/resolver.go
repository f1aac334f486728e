package fetch

import (
	"context"
	"log/slog"
	"net/url"

	"golang.org/x/net/html"

	"github.com/mikiec84/perception-toolkit/pkg/cache"
	"github.com/mikiec84/perception-toolkit/thing"
)

// Extractor derives a structured record from a parsed page. A nil record
// means the page yielded nothing usable.
type Extractor interface {
	Extract(doc *html.Node, pageURL *url.URL) thing.Thing
}

// Resolver turns candidate URL strings into structured records: gate, then
// cache lookup by canonical URL, then fetch and extract on a miss. Records
// are cached under the canonical URL string, so two distinct candidates
// naming the same page share one entry and one fetch.
//
// There is no in-flight deduplication: concurrent misses on the same URL each
// fetch, and the last extraction wins in the cache.
type Resolver struct {
	gate      *Gate
	cache     cache.Cache[thing.Thing]
	fetcher   Fetcher
	extractor Extractor
	metrics   *Metrics
	logger    *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithResolverMetrics enables gate instrumentation on the resolver.
func WithResolverMetrics(m *Metrics) ResolverOption {
	return func(r *Resolver) { r.metrics = m }
}

// WithResolverLogger sets the resolver's logger.
func WithResolverLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = logger }
}

// NewResolver creates a resolver over the given collaborators.
func NewResolver(gate *Gate, c cache.Cache[thing.Thing], fetcher Fetcher, extractor Extractor, options ...ResolverOption) *Resolver {
	r := &Resolver{
		gate:      gate,
		cache:     c,
		fetcher:   fetcher,
		extractor: extractor,
		logger:    slog.Default(),
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// Resolve returns the record for a candidate URL, fetching and extracting on
// a cache miss. Every failure mode (gated URL, fetch error, empty extraction)
// returns (nil, false) without an error: a missing record is an expected
// outcome of detection handling, not a fault.
func (r *Resolver) Resolve(ctx context.Context, candidate string, policy Policy) (thing.Thing, bool) {
	u, ok := r.gate.FetchableURL(candidate, policy)
	if !ok {
		r.metrics.recordGated()
		r.logger.Debug("candidate rejected by fetch gate", "candidate", candidate)
		return nil, false
	}

	key := u.String()
	if record, hit := r.cache.Get(key); hit {
		return record, true
	}

	doc, err := r.fetcher.Fetch(ctx, u)
	if err != nil {
		r.logger.Debug("page fetch failed", "url", key, "error", err)
		return nil, false
	}

	record := r.extractor.Extract(doc, u)
	if record == nil {
		r.logger.Debug("page yielded no record", "url", key)
		return nil, false
	}

	if _, err := r.cache.Set(key, record); err != nil {
		r.logger.Warn("caching record failed", "url", key, "error", err)
	}
	return record, true
}

// RecordDocument extracts a record from an already-fetched page and caches it
// under the page URL, overwriting any previous entry. Used when a page was
// loaded for its artifacts anyway, so later resolves hit the cache without a
// second fetch.
func (r *Resolver) RecordDocument(doc *html.Node, pageURL *url.URL) {
	if doc == nil || pageURL == nil {
		return
	}
	record := r.extractor.Extract(doc, pageURL)
	if record == nil {
		return
	}
	key := pageURL.String()
	if _, err := r.cache.Set(key, record); err != nil {
		r.logger.Warn("caching record failed", "url", key, "error", err)
	}
}
