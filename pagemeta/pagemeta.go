// Package pagemeta builds structured content records from ordinary web pages
// by reading the document title and standard metadata tags. It is the default
// extractor for pages that embed no structured data of their own.
package pagemeta

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/mikiec84/perception-toolkit/thing"
)

// defaultTypeTag is assigned to extracted records. Plain pages carry no type
// information, so every record gets the generic web-page tag.
const defaultTypeTag = "WebPage"

// Extractor derives a Thing from a parsed page.
type Extractor struct{}

// New creates a page-metadata extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract builds a record from the page's title, meta description, and Open
// Graph tags. Open Graph values win over their plain-HTML counterparts. The
// record's url field is the page URL. Returns nil when the document is nil.
func (e *Extractor) Extract(doc *html.Node, pageURL *url.URL) thing.Thing {
	if doc == nil {
		return nil
	}

	var meta pageMeta
	collect(doc, &meta)

	record := thing.New(defaultTypeTag)
	if pageURL != nil {
		record[thing.URLKey] = pageURL.String()
	}
	if name := firstNonEmpty(meta.ogTitle, meta.title); name != "" {
		record[thing.NameKey] = name
	}
	if description := firstNonEmpty(meta.ogDescription, meta.description); description != "" {
		record["description"] = description
	}
	if meta.ogImage != "" {
		record["image"] = resolve(pageURL, meta.ogImage)
	}
	if meta.ogURL != "" {
		record[thing.URLKey] = resolve(pageURL, meta.ogURL)
	}
	return record
}

type pageMeta struct {
	title         string
	description   string
	ogTitle       string
	ogDescription string
	ogImage       string
	ogURL         string
}

func collect(n *html.Node, meta *pageMeta) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "title":
			if meta.title == "" {
				meta.title = strings.TrimSpace(textContent(n))
			}
		case "meta":
			readMetaTag(n, meta)
		case "body":
			// Metadata lives in the head; no need to walk the body.
			return
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		collect(child, meta)
	}
}

func readMetaTag(n *html.Node, meta *pageMeta) {
	var name, property, content string
	for _, attr := range n.Attr {
		switch attr.Key {
		case "name":
			name = strings.ToLower(attr.Val)
		case "property":
			property = strings.ToLower(attr.Val)
		case "content":
			content = strings.TrimSpace(attr.Val)
		}
	}
	if content == "" {
		return
	}

	switch {
	case name == "description" && meta.description == "":
		meta.description = content
	case property == "og:title" && meta.ogTitle == "":
		meta.ogTitle = content
	case property == "og:description" && meta.ogDescription == "":
		meta.ogDescription = content
	case property == "og:image" && meta.ogImage == "":
		meta.ogImage = content
	case property == "og:url" && meta.ogURL == "":
		meta.ogURL = content
	}
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.TextNode {
			sb.WriteString(child.Data)
		}
	}
	return sb.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func resolve(base *url.URL, ref string) string {
	if base == nil {
		return ref
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(parsed).String()
}
