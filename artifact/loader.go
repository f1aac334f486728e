package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/mikiec84/perception-toolkit/errors"
	"github.com/mikiec84/perception-toolkit/thing"
)

// artifactTypeTag marks a JSON record as an artifact inside embedded script
// blocks, which routinely carry unrelated structured data alongside.
const artifactTypeTag = "ARArtifact"

// maxCatalogBytes caps how much of a catalog response is read.
const maxCatalogBytes = 1 << 20 // 1 MB

// Loader extracts artifacts from catalog sources.
type Loader interface {
	// FromJSONURL fetches a JSON catalog (an array of artifacts) and
	// returns its entries.
	FromJSONURL(ctx context.Context, u *url.URL) ([]ARArtifact, error)

	// FromDocument extracts artifacts embedded in a parsed page as
	// <script type="application/ld+json"> blocks. Raw content references
	// and image sources are resolved against base when it is non-nil.
	// Malformed blocks are skipped, not fatal.
	FromDocument(doc *html.Node, base *url.URL) ([]ARArtifact, error)
}

// HTTPLoader is the reference Loader. It fetches JSON catalogs over HTTP and
// scans parsed pages for embedded artifact blocks.
type HTTPLoader struct {
	client    *http.Client
	userAgent string
}

// NewHTTPLoader creates a loader with a dedicated HTTP client.
func NewHTTPLoader(timeout time.Duration, userAgent string) *HTTPLoader {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPLoader{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

func (l *HTTPLoader) FromJSONURL(ctx context.Context, u *url.URL) ([]ARArtifact, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.WrapInvalid(err, "HTTPLoader", "FromJSONURL", "building catalog request failed")
	}
	req.Header.Set("Accept", "application/json")
	if l.userAgent != "" {
		req.Header.Set("User-Agent", l.userAgent)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, errors.WrapTransient(err, "HTTPLoader", "FromJSONURL", "fetching catalog failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.WrapTransient(errors.ErrFetchFailed, "HTTPLoader", "FromJSONURL",
			fmt.Sprintf("catalog %s returned status %d", u, resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogBytes))
	if err != nil {
		return nil, errors.WrapTransient(err, "HTTPLoader", "FromJSONURL", "reading catalog body failed")
	}

	var artifacts []ARArtifact
	if err := json.Unmarshal(body, &artifacts); err != nil {
		return nil, errors.WrapInvalid(err, "HTTPLoader", "FromJSONURL", "decoding catalog failed")
	}
	resolveReferences(artifacts, u)
	return artifacts, nil
}

func (l *HTTPLoader) FromDocument(doc *html.Node, base *url.URL) ([]ARArtifact, error) {
	if doc == nil {
		return nil, nil
	}

	var artifacts []ARArtifact
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "script" && scriptType(n) == "application/ld+json" {
			artifacts = append(artifacts, decodeScriptBlock(scriptText(n))...)
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	resolveReferences(artifacts, base)
	return artifacts, nil
}

func scriptType(n *html.Node) string {
	for _, attr := range n.Attr {
		if attr.Key == "type" {
			return strings.ToLower(strings.TrimSpace(attr.Val))
		}
	}
	return ""
}

func scriptText(n *html.Node) string {
	var sb strings.Builder
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.TextNode {
			sb.WriteString(child.Data)
		}
	}
	return sb.String()
}

// decodeScriptBlock accepts a single JSON object or an array of objects and
// keeps only records tagged as artifacts. Anything unparseable yields nothing.
func decodeScriptBlock(text string) []ARArtifact {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var records []json.RawMessage
	if strings.HasPrefix(text, "[") {
		if err := json.Unmarshal([]byte(text), &records); err != nil {
			return nil
		}
	} else {
		records = []json.RawMessage{json.RawMessage(text)}
	}

	var artifacts []ARArtifact
	for _, record := range records {
		var tagged struct {
			Type string `json:"@type"`
		}
		if err := json.Unmarshal(record, &tagged); err != nil || tagged.Type != artifactTypeTag {
			continue
		}
		var a ARArtifact
		if err := json.Unmarshal(record, &a); err != nil {
			continue
		}
		artifacts = append(artifacts, a)
	}
	return artifacts
}

// resolveReferences absolutizes raw content references and image sources
// against the document or catalog URL. Unparseable references are left as-is;
// the fetch gate rejects them later.
func resolveReferences(artifacts []ARArtifact, base *url.URL) {
	if base == nil {
		return
	}
	for i := range artifacts {
		if raw, ok := artifacts[i].Content.Raw(); ok {
			if resolved := resolveAgainst(base, raw); resolved != "" {
				artifacts[i].Content = thing.RawContent(resolved)
			}
		}
		if artifacts[i].Image != nil && artifacts[i].Image.Src != "" {
			if resolved := resolveAgainst(base, artifacts[i].Image.Src); resolved != "" {
				artifacts[i].Image.Src = resolved
			}
		}
	}
}

func resolveAgainst(base *url.URL, ref string) string {
	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return base.ResolveReference(parsed).String()
}
