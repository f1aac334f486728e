package fetch

import (
	"context"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/mikiec84/perception-toolkit/errors"
	"github.com/mikiec84/perception-toolkit/pkg/cache"
	"github.com/mikiec84/perception-toolkit/thing"
)

type stubFetcher struct {
	calls atomic.Int32
	err   error
}

func (f *stubFetcher) Fetch(_ context.Context, _ *url.URL) (*html.Node, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	doc, _ := html.Parse(strings.NewReader("<html></html>"))
	return doc, nil
}

type stubExtractor struct {
	record func(pageURL *url.URL) thing.Thing
}

func (e *stubExtractor) Extract(_ *html.Node, pageURL *url.URL) thing.Thing {
	return e.record(pageURL)
}

func urlNamedRecord(pageURL *url.URL) thing.Thing {
	return thing.Thing{thing.TypeKey: "WebPage", thing.URLKey: pageURL.String()}
}

func newTestResolver(t *testing.T, fetcher Fetcher, extractor Extractor) *Resolver {
	t.Helper()
	c, err := cache.NewSimple[thing.Thing]()
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return NewResolver(NewGate(AllowAll()), c, fetcher, extractor)
}

func TestResolveFetchesOncePerCanonicalURL(t *testing.T) {
	fetcher := &stubFetcher{}
	resolver := newTestResolver(t, fetcher, &stubExtractor{record: urlNamedRecord})

	record, ok := resolver.Resolve(context.Background(), "https://example.com/page", nil)
	require.True(t, ok)
	assert.Equal(t, "https://example.com/page", record.URL())

	// Second resolve of the same URL hits the cache.
	_, ok = resolver.Resolve(context.Background(), "https://example.com/page", nil)
	require.True(t, ok)
	assert.Equal(t, int32(1), fetcher.calls.Load())

	// A different URL fetches again.
	_, ok = resolver.Resolve(context.Background(), "https://example.com/other", nil)
	require.True(t, ok)
	assert.Equal(t, int32(2), fetcher.calls.Load())
}

func TestResolveSilentFailures(t *testing.T) {
	t.Run("gated candidate", func(t *testing.T) {
		fetcher := &stubFetcher{}
		resolver := newTestResolver(t, fetcher, &stubExtractor{record: urlNamedRecord})

		record, ok := resolver.Resolve(context.Background(), "/relative/path", nil)
		assert.False(t, ok)
		assert.Nil(t, record)
		assert.Zero(t, fetcher.calls.Load(), "gated candidates never reach the network")
	})

	t.Run("fetch failure", func(t *testing.T) {
		fetcher := &stubFetcher{err: errors.ErrFetchFailed}
		resolver := newTestResolver(t, fetcher, &stubExtractor{record: urlNamedRecord})

		_, ok := resolver.Resolve(context.Background(), "https://example.com/down", nil)
		assert.False(t, ok)
	})

	t.Run("empty extraction", func(t *testing.T) {
		resolver := newTestResolver(t, &stubFetcher{}, &stubExtractor{
			record: func(*url.URL) thing.Thing { return nil },
		})

		_, ok := resolver.Resolve(context.Background(), "https://example.com/empty", nil)
		assert.False(t, ok)
	})
}

func TestResolveFailedFetchIsNotCached(t *testing.T) {
	fetcher := &stubFetcher{err: errors.ErrFetchFailed}
	resolver := newTestResolver(t, fetcher, &stubExtractor{record: urlNamedRecord})

	_, ok := resolver.Resolve(context.Background(), "https://example.com/flaky", nil)
	require.False(t, ok)

	// Once the page recovers the next resolve retries the fetch.
	fetcher.err = nil
	_, ok = resolver.Resolve(context.Background(), "https://example.com/flaky", nil)
	assert.True(t, ok)
	assert.Equal(t, int32(2), fetcher.calls.Load())
}

func TestRecordDocumentPrimesAndOverwrites(t *testing.T) {
	fetcher := &stubFetcher{}
	name := "first"
	resolver := newTestResolver(t, fetcher, &stubExtractor{
		record: func(pageURL *url.URL) thing.Thing {
			return thing.Thing{thing.TypeKey: "WebPage", thing.NameKey: name, thing.URLKey: pageURL.String()}
		},
	})

	pageURL := mustParse(t, "https://example.com/exhibit")
	doc, _ := html.Parse(strings.NewReader("<html></html>"))

	resolver.RecordDocument(doc, pageURL)
	record, ok := resolver.Resolve(context.Background(), pageURL.String(), nil)
	require.True(t, ok)
	assert.Equal(t, "first", record.Name())
	assert.Zero(t, fetcher.calls.Load(), "primed entries resolve without fetching")

	// Re-recording the same page replaces the cached record.
	name = "second"
	resolver.RecordDocument(doc, pageURL)
	record, ok = resolver.Resolve(context.Background(), pageURL.String(), nil)
	require.True(t, ok)
	assert.Equal(t, "second", record.Name())
}

func TestRecordDocumentIgnoresNilInputs(t *testing.T) {
	resolver := newTestResolver(t, &stubFetcher{}, &stubExtractor{record: urlNamedRecord})
	resolver.RecordDocument(nil, mustParse(t, "https://example.com"))
	doc, _ := html.Parse(strings.NewReader("<html></html>"))
	resolver.RecordDocument(doc, nil)
}
