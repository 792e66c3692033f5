package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/upb/llm-chat-gateway/services"
	"github.com/upb/llm-chat-gateway/services/secrets"
	"github.com/upb/llm-chat-gateway/services/security"
	"github.com/upb/llm-chat-gateway/services/transport"
)

// ResolveCredential resolves cfg.SecretRef just in time. A missing reference
// or an empty vault answer yields ErrMissingCredential unless optional is
// set, in which case "" is returned. A reference that is configured but
// unresolvable is always an error.
func ResolveCredential(ctx context.Context, resolver secrets.Resolver, cfg ProviderConfig, optional bool) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", transport.Cancelled(err)
	}
	if cfg.SecretRef == nil {
		if optional {
			return "", nil
		}
		return "", services.ErrMissingCredential
	}
	if resolver == nil {
		return "", services.ErrMissingCredential.WithDetail("provider_id", cfg.SecretRef.ProviderID)
	}

	value, ok, err := resolver.ResolveSecret(ctx, *cfg.SecretRef)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", transport.Cancelled(ctxErr)
		}
		return "", services.ErrMissingCredential.Wrap(err).WithDetail("provider_id", cfg.SecretRef.ProviderID)
	}
	if !ok || value == "" {
		return "", services.ErrMissingCredential.WithDetail("provider_id", cfg.SecretRef.ProviderID)
	}
	return value, nil
}

// Endpoint joins base and path and runs the result through the URL gate. An
// empty path leaves base untouched, trailing slash included. An empty base is
// ErrBaseURLRequired.
func Endpoint(base, path string) (string, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		return "", services.ErrBaseURLRequired
	}
	u := base
	if path != "" {
		u = strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
	}
	if err := security.AssertURLAllowed(u); err != nil {
		return "", err
	}
	return u, nil
}

// BuildHeaders sanitizes the caller's headers against allowlist and then
// applies the adapter-owned headers, which always win.
func BuildHeaders(requested map[string]string, allowlist []string, owned map[string]string) map[string]string {
	out := security.SanitizeHeaders(requested, allowlist)
	for k := range out {
		for name := range owned {
			if strings.EqualFold(k, name) {
				delete(out, k)
			}
		}
	}
	for k, v := range owned {
		out[k] = v
	}
	return out
}

// Transcript flattens messages into "role: content" lines.
func Transcript(messages []Message) string {
	var b strings.Builder
	for i, m := range messages {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %s", m.Role, m.Content)
	}
	return b.String()
}
