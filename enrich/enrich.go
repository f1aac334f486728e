// Package enrich upgrades the content of freshly-found artifacts using
// records resolved from the pages they reference.
package enrich

import (
	"context"

	"github.com/mikiec84/perception-toolkit/artifact"
	"github.com/mikiec84/perception-toolkit/fetch"
	"github.com/mikiec84/perception-toolkit/thing"
)

// Resolver is the part of the fetch pipeline enrichment needs.
type Resolver interface {
	Resolve(ctx context.Context, candidate string, policy fetch.Policy) (thing.Thing, bool)
}

// Enricher rewrites found-artifact content in place. Lost artifacts are never
// touched: their content reflects what the caller last saw.
type Enricher struct {
	resolver Resolver
}

// New creates an enricher over the given resolver.
func New(resolver Resolver) *Enricher {
	return &Enricher{resolver: resolver}
}

// EnrichDelta upgrades the found list of a delta in place, sequentially and
// in order. Each entry is handled independently; a failed resolve leaves that
// entry's content exactly as it was.
//
// Two content shapes are eligible:
//   - a raw string reference: resolved and replaced wholesale with the
//     fetched record
//   - a structured record carrying a url but no name: the fetched record is
//     merged underneath the original, but only when both records carry the
//     exact same type tag
//
// Everything else (absent content, named records, records without a url) is
// already as complete as it will get and passes through untouched.
func (e *Enricher) EnrichDelta(ctx context.Context, delta *artifact.NearbyResultDelta, policy fetch.Policy) {
	if delta == nil {
		return
	}
	for _, result := range delta.Found {
		e.enrichResult(ctx, result, policy)
	}
}

func (e *Enricher) enrichResult(ctx context.Context, result *artifact.NearbyResult, policy fetch.Policy) {
	if result == nil {
		return
	}

	if raw, ok := result.Content.Raw(); ok {
		if record, resolved := e.resolver.Resolve(ctx, raw, policy); resolved {
			result.Content = thing.StructuredContent(record)
		}
		return
	}

	original, ok := result.Content.Structured()
	if !ok || original.HasName() || !original.HasURL() {
		return
	}

	fetched, resolved := e.resolver.Resolve(ctx, original.URL(), policy)
	if !resolved {
		return
	}
	if fetched.Type() != original.Type() {
		return
	}
	result.Content = thing.StructuredContent(thing.Merge(fetched, original))
}
