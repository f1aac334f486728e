package fetch

import (
	"net/url"
)

// Gate validates candidate URL strings before any network activity. Only
// absolute http/https URLs that the active policy permits pass through.
type Gate struct {
	defaultPolicy Policy
}

// NewGate creates a gate with the given fallback policy, applied when a call
// supplies no policy of its own. A nil fallback denies everything.
func NewGate(defaultPolicy Policy) *Gate {
	if defaultPolicy == nil {
		defaultPolicy = DenyAll()
	}
	return &Gate{defaultPolicy: defaultPolicy}
}

// FetchableURL parses a candidate string and reports whether it may be
// fetched under the given policy (or the gate's default when policy is nil).
// Relative references, non-http(s) schemes, and unparseable strings are
// rejected without error.
func (g *Gate) FetchableURL(candidate string, policy Policy) (*url.URL, bool) {
	u, err := url.Parse(candidate)
	if err != nil {
		return nil, false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, false
	}
	if u.Host == "" {
		return nil, false
	}

	if policy == nil {
		policy = g.defaultPolicy
	}
	if !policy.Allows(u) {
		return nil, false
	}
	return u, true
}
