// Package security holds the URL and header allow-listing primitives every
// provider adapter runs before handing a request to a transport.
package security

import (
	"net/http"
	"net/url"

	"github.com/upb/llm-chat-gateway/services"
)

// loopbackHosts are the only hosts reachable over plain http.
var loopbackHosts = map[string]bool{
	"localhost": true,
	"127.0.0.1": true,
}

// AssertURLAllowed accepts https URLs with a host, and http URLs pointing at
// localhost or 127.0.0.1 (any port). Everything else is rejected.
func AssertURLAllowed(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return services.ErrURLNotAllowed.Wrap(err).WithDetail("url", rawURL)
	}
	if u.Opaque != "" || u.Host == "" {
		return services.ErrURLNotAllowed.WithDetail("url", rawURL)
	}

	switch u.Scheme {
	case "https":
		return nil
	case "http":
		if loopbackHosts[u.Hostname()] {
			return nil
		}
	}
	return services.ErrURLNotAllowed.WithDetail("url", rawURL)
}

// SanitizeHeaders returns only the candidate headers whose names appear in
// allowlist. Names are compared case-insensitively; the candidate's spelling
// is kept.
func SanitizeHeaders(candidate map[string]string, allowlist []string) map[string]string {
	out := make(map[string]string, len(allowlist))
	if len(candidate) == 0 || len(allowlist) == 0 {
		return out
	}

	allowed := make(map[string]bool, len(allowlist))
	for _, name := range allowlist {
		allowed[http.CanonicalHeaderKey(name)] = true
	}
	for name, value := range candidate {
		if allowed[http.CanonicalHeaderKey(name)] {
			out[name] = value
		}
	}
	return out
}
