// Package fetch implements the policy-gated metadata fetch pipeline: a gate
// that decides which candidate URLs may be fetched, an HTTP fetcher that
// retrieves and parses pages, and a resolver that caches extracted records by
// canonical URL.
//
// The pipeline fails silently by design: a candidate that cannot be fetched
// or parsed yields no record, never an error surfaced to detection handling.
package fetch

import (
	"net/url"
	"strings"
)

// Policy decides whether a candidate URL may be fetched. Policies see only
// absolute http/https URLs; the gate rejects everything else first.
type Policy interface {
	Allows(u *url.URL) bool
}

// PolicyFunc adapts a function to the Policy interface.
type PolicyFunc func(u *url.URL) bool

func (f PolicyFunc) Allows(u *url.URL) bool { return f(u) }

// AllowAll permits every gated URL. Intended for trusted catalogs and tests.
func AllowAll() Policy {
	return PolicyFunc(func(*url.URL) bool { return true })
}

// DenyAll rejects every URL, disabling fetching entirely.
func DenyAll() Policy {
	return PolicyFunc(func(*url.URL) bool { return false })
}

// FromOrigins permits URLs whose scheme://host matches one of the given
// origins (e.g. "https://example.com"). Unparseable origins match nothing.
func FromOrigins(origins ...string) Policy {
	allowed := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			continue
		}
		allowed[originOf(u)] = struct{}{}
	}
	return PolicyFunc(func(u *url.URL) bool {
		_, ok := allowed[originOf(u)]
		return ok
	})
}

// SameOrigin permits URLs sharing the base URL's scheme and host. A nil base
// matches nothing.
func SameOrigin(base *url.URL) Policy {
	if base == nil {
		return DenyAll()
	}
	origin := originOf(base)
	return PolicyFunc(func(u *url.URL) bool {
		return originOf(u) == origin
	})
}

func originOf(u *url.URL) string {
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
}
