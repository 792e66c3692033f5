package secrets

import (
	"regexp"
	"strings"
)

var (
	skPattern     = regexp.MustCompile(`sk-[a-zA-Z0-9_-]{10,}`)
	bearerPattern = regexp.MustCompile(`Bearer\s+([a-zA-Z0-9._-]+)`)
)

// MaskAPIKey masks an API key for safe display.
// Shows only the first 4 and last 4 characters.
// For very short keys, returns "***".
func MaskAPIKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "***"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// MaskBearer masks a Bearer token in a string.
func MaskBearer(s string) string {
	return bearerPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := strings.Fields(match)
		if len(parts) == 2 {
			return "Bearer " + MaskAPIKey(parts[1])
		}
		return match
	})
}

// MaskAllSecrets masks sk-* style keys and Bearer tokens in s. Use it on any
// vendor-supplied text before it reaches a log line or an error message.
func MaskAllSecrets(s string) string {
	return MaskBearer(skPattern.ReplaceAllStringFunc(s, MaskAPIKey))
}

// MaskHeaders returns a copy of headers with credential-looking values masked.
func MaskHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		lower := strings.ToLower(k)
		if lower == "authorization" ||
			strings.Contains(lower, "key") ||
			strings.Contains(lower, "token") ||
			strings.Contains(lower, "secret") {
			out[k] = MaskAPIKey(v)
			continue
		}
		out[k] = v
	}
	return out
}
