package transport

import (
	"strings"
)

// Field is one ordered header field. Pseudo-header names start with ':'.
type Field struct {
	Name  string
	Value string
}

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// buildFields constructs the full ordered header list for one request:
// pseudo-headers first, then the static Chrome fingerprint, then referer,
// then caller overrides. An override whose (lower-cased) name already exists
// replaces the field in place, so the observable ordering never depends on
// which headers a caller happens to override.
func buildFields(method, authority, scheme, path, referer string, overrides map[string]string, primaryCookie string) []Field {
	fields := []Field{
		{":method", method},
		{":authority", authority},
		{":scheme", scheme},
		{":path", path},
		{"sec-ch-ua", `"Google Chrome";v="131", "Chromium";v="131", "Not_A Brand";v="24"`},
		{"sec-ch-ua-mobile", "?0"},
		{"sec-ch-ua-platform", `"Windows"`},
		{"user-agent", chromeUA},
		{"accept", "application/json, text/plain, */*"},
		{"accept-language", "en-US,en;q=0.9"},
		{"accept-encoding", "gzip, deflate, br"},
		{"sec-fetch-site", "same-origin"},
		{"sec-fetch-mode", "cors"},
		{"sec-fetch-dest", "empty"},
	}
	if referer != "" {
		fields = append(fields, Field{"referer", referer})
	}

	for _, name := range sortedKeys(overrides) {
		value := overrides[name]
		lower := strings.ToLower(name)
		replaced := false
		for i := range fields {
			if fields[i].Name == lower {
				fields[i].Value = value
				replaced = true
				break
			}
		}
		if !replaced {
			fields = append(fields, Field{lower, value})
		}
	}

	// The cookie header must survive strict header validation on the far
	// side, whichever way it arrived.
	for i := range fields {
		if fields[i].Name == "cookie" {
			fields[i].Value = SanitizeCookie(fields[i].Value, primaryCookie)
		}
	}

	return fields
}

// sortedKeys gives overrides a deterministic application order.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}

// SanitizeCookie reduces a raw cookie value to a single transmittable token.
// Non-printable and non-ASCII bytes are stripped. If the primary session
// cookie name appears among the semicolon-delimited attributes, only its
// name=value pair is retained; cookie attributes like Path or HttpOnly would
// otherwise fail header validation on strict servers.
func SanitizeCookie(raw, primary string) string {
	var b strings.Builder
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c >= 0x20 && c <= 0x7e {
			b.WriteByte(c)
		}
	}
	cleaned := b.String()

	parts := strings.Split(cleaned, ";")
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		token := strings.TrimSpace(part)
		if token == "" {
			continue
		}
		if primary != "" {
			name, _, ok := strings.Cut(token, "=")
			if ok && strings.EqualFold(strings.TrimSpace(name), primary) {
				return token
			}
		}
		kept = append(kept, token)
	}
	return strings.Join(kept, "; ")
}
