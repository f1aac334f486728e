package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/html"

	"github.com/mikiec84/perception-toolkit/errors"
	"github.com/mikiec84/perception-toolkit/pkg/retry"
)

const (
	// maxPageBytes caps how much of a page is read before parsing.
	maxPageBytes = 1 << 20 // 1 MB

	// maxRedirects bounds redirect chains.
	maxRedirects = 10

	defaultUserAgent = "perception-toolkit/1.0"
)

// Fetcher retrieves a page and returns it parsed.
type Fetcher interface {
	Fetch(ctx context.Context, u *url.URL) (*html.Node, error)
}

// HTTPFetcher is the reference Fetcher: plain HTTP GET with a redirect cap, a
// read limit, and exponential backoff on transient failures.
type HTTPFetcher struct {
	client    *http.Client
	retryCfg  retry.Config
	userAgent string
	metrics   *Metrics
}

// HTTPFetcherConfig configures the reference fetcher. Zero values fall back
// to defaults.
type HTTPFetcherConfig struct {
	Timeout   time.Duration
	UserAgent string
	Retry     retry.Config
}

// NewHTTPFetcher creates a fetcher with its own HTTP client.
func NewHTTPFetcher(cfg HTTPFetcherConfig) *HTTPFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig()
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		retryCfg:  cfg.Retry,
		userAgent: cfg.UserAgent,
	}
}

// WithMetrics enables Prometheus instrumentation on the fetcher.
func (f *HTTPFetcher) WithMetrics(m *Metrics) *HTTPFetcher {
	f.metrics = m
	return f
}

// Fetch retrieves and parses the page at u. Transient failures (network
// errors, 5xx) are retried; client errors fail immediately.
func (f *HTTPFetcher) Fetch(ctx context.Context, u *url.URL) (*html.Node, error) {
	start := time.Now()
	doc, err := retry.DoWithResult(ctx, f.retryCfg, func() (*html.Node, error) {
		return f.fetchOnce(ctx, u)
	})
	if err != nil {
		f.metrics.recordFetch("error", time.Since(start))
		return nil, errors.WrapTransient(err, "HTTPFetcher", "Fetch",
			fmt.Sprintf("fetching %s failed", u))
	}
	f.metrics.recordFetch("success", time.Since(start))
	return doc, nil
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, u *url.URL) (*html.Node, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, retry.NonRetryable(err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("server returned status %d", resp.StatusCode)
	default:
		return nil, retry.NonRetryable(fmt.Errorf("server returned status %d", resp.StatusCode))
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, retry.NonRetryable(err)
	}
	return doc, nil
}
