// Package engine coordinates the perception toolkit: it owns the artifact
// store, forwards detection events to the dealer, enriches found artifacts
// through the fetch pipeline, and fans the resulting deltas out to registered
// sinks.
package engine

import (
	"context"
	"log/slog"
	"net/url"
	"sync"

	"golang.org/x/net/html"

	"github.com/mikiec84/perception-toolkit/artifact"
	"github.com/mikiec84/perception-toolkit/enrich"
	"github.com/mikiec84/perception-toolkit/errors"
	"github.com/mikiec84/perception-toolkit/fetch"
	"github.com/mikiec84/perception-toolkit/thing"
)

// Delta sources, used as the source tag on published deltas.
const (
	SourceMarker = "marker"
	SourceImage  = "image"
	SourceGeo    = "geo"
)

// Resolver is the fetch pipeline surface the engine depends on.
type Resolver interface {
	Resolve(ctx context.Context, candidate string, policy fetch.Policy) (thing.Thing, bool)
	RecordDocument(doc *html.Node, pageURL *url.URL)
}

// DeltaSink receives every non-empty, enriched delta the engine produces.
// Sinks must not block for long; a failing sink is logged and skipped, never
// propagated to the event caller.
type DeltaSink interface {
	PublishDelta(ctx context.Context, source string, delta *artifact.NearbyResultDelta) error
}

// Deps holds the engine's collaborators. Store, Dealer, Loader, and Resolver
// are required; the rest default sensibly.
type Deps struct {
	Store    artifact.Store
	Dealer   artifact.Dealer
	Loader   artifact.Loader
	Fetcher  fetch.Fetcher
	Resolver Resolver

	// Policy gates enrichment fetches when an event supplies none. Nil
	// means deny-all, the safe default for untrusted catalogs.
	Policy fetch.Policy

	Logger *slog.Logger
}

// Engine is the toolkit coordinator. All methods are safe for concurrent use
// once Initialize has returned.
type Engine struct {
	store    artifact.Store
	dealer   artifact.Dealer
	loader   artifact.Loader
	fetcher  fetch.Fetcher
	resolver Resolver
	enricher *enrich.Enricher
	policy   fetch.Policy
	gate     *fetch.Gate
	logger   *slog.Logger

	mu      sync.Mutex
	sinks   []DeltaSink
	started bool
}

// New creates an engine from its collaborators.
func New(deps Deps) (*Engine, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Engine", "New", "store is required")
	case deps.Dealer == nil:
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Engine", "New", "dealer is required")
	case deps.Loader == nil:
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Engine", "New", "loader is required")
	case deps.Resolver == nil:
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Engine", "New", "resolver is required")
	}

	policy := deps.Policy
	if policy == nil {
		policy = fetch.DenyAll()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		store:    deps.Store,
		dealer:   deps.Dealer,
		loader:   deps.Loader,
		fetcher:  deps.Fetcher,
		resolver: deps.Resolver,
		enricher: enrich.New(deps.Resolver),
		policy:   policy,
		gate:     fetch.NewGate(policy),
		logger:   logger,
	}, nil
}

// Initialize attaches the store to the dealer. Calling it twice fails.
func (e *Engine) Initialize(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Engine", "Initialize", "engine already initialized")
	}
	e.dealer.AddStore(e.store)
	e.started = true
	return nil
}

// AddSink registers a delta sink. Sinks added after Initialize still receive
// subsequent deltas.
func (e *Engine) AddSink(sink DeltaSink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sinks = append(e.sinks, sink)
}

// LoadArtifactsFromJSONURL fetches a JSON catalog and indexes its artifacts.
// Returns the artifacts that were actually added.
func (e *Engine) LoadArtifactsFromJSONURL(ctx context.Context, u *url.URL) ([]artifact.ARArtifact, error) {
	loaded, err := e.loader.FromJSONURL(ctx, u)
	if err != nil {
		return nil, errors.Wrap(err, "Engine", "LoadArtifactsFromJSONURL", "loading catalog failed")
	}
	return e.indexArtifacts(loaded), nil
}

// LoadArtifactsFromHTMLURL fetches a page, primes the metadata cache with it,
// and indexes any artifacts it embeds. An unreachable page is not an error:
// it simply contributes no artifacts.
func (e *Engine) LoadArtifactsFromHTMLURL(ctx context.Context, u *url.URL) ([]artifact.ARArtifact, error) {
	if e.fetcher == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Engine", "LoadArtifactsFromHTMLURL",
			"no fetcher configured")
	}

	doc, err := e.fetcher.Fetch(ctx, u)
	if err != nil {
		e.logger.Debug("artifact page unreachable", "url", u.String(), "error", err)
		return nil, nil
	}

	// The page is in hand; cache its record so later enrichment of
	// artifacts pointing back at it needs no second fetch.
	e.resolver.RecordDocument(doc, u)

	loaded, err := e.loader.FromDocument(doc, u)
	if err != nil {
		return nil, errors.Wrap(err, "Engine", "LoadArtifactsFromHTMLURL", "extracting artifacts failed")
	}
	return e.indexArtifacts(loaded), nil
}

// MarkerFound handles a recognized marker. When the marker value is itself a
// fetchable URL under the effective policy, the page is loaded for artifacts
// first so they can match this very sighting. A nil policy falls back to the
// engine's configured policy.
func (e *Engine) MarkerFound(ctx context.Context, m artifact.Marker, policy fetch.Policy) (*artifact.NearbyResultDelta, error) {
	policy = e.effectivePolicy(policy)
	if pageURL, ok := e.gate.FetchableURL(m.Value, policy); ok {
		if _, err := e.LoadArtifactsFromHTMLURL(ctx, pageURL); err != nil {
			e.logger.Debug("loading artifacts from marker URL failed", "url", pageURL.String(), "error", err)
		}
	}

	delta, err := e.dealer.MarkerFound(ctx, m)
	if err != nil {
		return nil, errors.Wrap(err, "Engine", "MarkerFound", "dealer failed")
	}
	return e.finishDelta(ctx, SourceMarker, delta, policy), nil
}

// MarkerLost handles a marker leaving view. Lost entries carry no new
// content, so there is nothing to enrich.
func (e *Engine) MarkerLost(ctx context.Context, m artifact.Marker) (*artifact.NearbyResultDelta, error) {
	delta, err := e.dealer.MarkerLost(ctx, m)
	if err != nil {
		return nil, errors.Wrap(err, "Engine", "MarkerLost", "dealer failed")
	}
	return e.finishDelta(ctx, SourceMarker, delta, nil), nil
}

// ImageFound handles a recognized image target.
func (e *Engine) ImageFound(ctx context.Context, img artifact.DetectedImage, policy fetch.Policy) (*artifact.NearbyResultDelta, error) {
	delta, err := e.dealer.ImageFound(ctx, img)
	if err != nil {
		return nil, errors.Wrap(err, "Engine", "ImageFound", "dealer failed")
	}
	return e.finishDelta(ctx, SourceImage, delta, e.effectivePolicy(policy)), nil
}

// ImageLost handles an image target leaving view.
func (e *Engine) ImageLost(ctx context.Context, img artifact.DetectedImage) (*artifact.NearbyResultDelta, error) {
	delta, err := e.dealer.ImageLost(ctx, img)
	if err != nil {
		return nil, errors.Wrap(err, "Engine", "ImageLost", "dealer failed")
	}
	return e.finishDelta(ctx, SourceImage, delta, nil), nil
}

// GeolocationUpdated handles a position change.
func (e *Engine) GeolocationUpdated(ctx context.Context, coords artifact.GeoCoordinates, policy fetch.Policy) (*artifact.NearbyResultDelta, error) {
	delta, err := e.dealer.GeolocationUpdated(ctx, coords)
	if err != nil {
		return nil, errors.Wrap(err, "Engine", "GeolocationUpdated", "dealer failed")
	}
	return e.finishDelta(ctx, SourceGeo, delta, e.effectivePolicy(policy)), nil
}

// DetectableImages returns the image targets detection should look for.
func (e *Engine) DetectableImages() []artifact.ImageTarget {
	return e.store.DetectableImages()
}

// indexArtifacts adds loaded artifacts to the store, skipping duplicates.
func (e *Engine) indexArtifacts(loaded []artifact.ARArtifact) []artifact.ARArtifact {
	var added []artifact.ARArtifact
	for _, a := range loaded {
		stored, err := e.store.Add(a)
		if err != nil {
			e.logger.Debug("skipping artifact", "id", a.ID, "error", err)
			continue
		}
		added = append(added, stored)
	}
	return added
}

// effectivePolicy resolves a per-call policy against the engine default.
func (e *Engine) effectivePolicy(policy fetch.Policy) fetch.Policy {
	if policy == nil {
		return e.policy
	}
	return policy
}

// finishDelta enriches the found list and fans non-empty deltas out to sinks.
func (e *Engine) finishDelta(ctx context.Context, source string, delta *artifact.NearbyResultDelta, policy fetch.Policy) *artifact.NearbyResultDelta {
	if delta == nil {
		delta = &artifact.NearbyResultDelta{}
	}
	e.enricher.EnrichDelta(ctx, delta, policy)

	if !delta.Empty() {
		e.mu.Lock()
		sinks := make([]DeltaSink, len(e.sinks))
		copy(sinks, e.sinks)
		e.mu.Unlock()

		for _, sink := range sinks {
			if err := sink.PublishDelta(ctx, source, delta); err != nil {
				e.logger.Warn("delta sink failed", "source", source, "error", err)
			}
		}
	}
	return delta
}
