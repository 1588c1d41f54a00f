// Package access decides which cross-origin callers may read responses.
package access

import (
	"net/url"
	"strings"
)

// DefaultHosts are the sites allowed to embed comments: the production blog
// and its preview deployments (served from <hash>.threedots.pages.dev).
var DefaultHosts = []string{
	"threedots.ca",
	"threedots.pages.dev",
}

// DecisionKind enumerates the possible outcomes of an origin check.
type DecisionKind int

const (
	AllowNone DecisionKind = iota
	AllowOrigin
	AllowAny
)

// Decision is the outcome for a single request origin.
type Decision struct {
	Kind   DecisionKind
	Origin string
}

// Header returns the Access-Control-Allow-Origin value, or "" when the header
// must be omitted.
func (d Decision) Header() string {
	switch d.Kind {
	case AllowAny:
		return "*"
	case AllowOrigin:
		return d.Origin
	default:
		return ""
	}
}

// Policy is an allow-list of site hostnames.
type Policy struct {
	hosts    []string
	allowAny bool
}

// NewPolicy builds a policy for the given hostnames. When allowAny is set
// every origin is accepted; it is meant for local development only.
func NewPolicy(hosts []string, allowAny bool) *Policy {
	normalized := make([]string, 0, len(hosts))
	for _, host := range hosts {
		host = strings.Trim(strings.ToLower(strings.TrimSpace(host)), ".")
		if host != "" {
			normalized = append(normalized, host)
		}
	}

	return &Policy{hosts: normalized, allowAny: allowAny}
}

// Decide returns the decision for the request's Origin header value.
func (p *Policy) Decide(origin string) Decision {
	if p == nil {
		return Decision{Kind: AllowNone}
	}

	if p.allowAny {
		return Decision{Kind: AllowAny}
	}

	host, ok := originHost(origin)
	if !ok {
		return Decision{Kind: AllowNone}
	}

	for _, allowed := range p.hosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return Decision{Kind: AllowOrigin, Origin: strings.TrimSpace(origin)}
		}
	}

	return Decision{Kind: AllowNone}
}

// originHost extracts the hostname from a serialized origin
// (scheme "://" host [ ":" port ]).
func originHost(origin string) (string, bool) {
	trimmed := strings.TrimSpace(origin)
	if trimmed == "" || trimmed == "null" {
		return "", false
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", false
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", false
	}

	if parsed.User != nil || (parsed.Path != "" && parsed.Path != "/") || parsed.RawQuery != "" || parsed.Fragment != "" {
		return "", false
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return "", false
	}

	return host, true
}
