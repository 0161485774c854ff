// Package origin decides whether an embedding page's domain may interact
// with a registered application. Matching is pure string work: callers are
// expected to pass a bare hostname, not a URL.
package origin

import "strings"

// Allowed reports whether origin matches any pattern in the allowlist.
// Three pattern forms are recognized:
//
//   - "*" matches any origin.
//   - "*.suffix" matches origin == "suffix" and any origin ending in
//     ".suffix". The dot boundary is required, so "*.example.com" does not
//     match "notexample.com".
//   - anything else requires byte-for-byte equality.
//
// Patterns are independent predicates; order never changes the result.
func Allowed(allowlist []string, origin string) bool {
	if origin == "" {
		return false
	}
	for _, pattern := range allowlist {
		if matches(pattern, origin) {
			return true
		}
	}
	return false
}

func matches(pattern, origin string) bool {
	if pattern == "*" {
		return true
	}
	if suffix, ok := strings.CutPrefix(pattern, "*."); ok {
		return origin == suffix || strings.HasSuffix(origin, "."+suffix)
	}
	return origin == pattern
}

// Hostname extracts the host part from an Origin header value such as
// "https://blog.example.com:8443". Bare hostnames pass through unchanged.
func Hostname(raw string) string {
	s := raw
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	// Strip a port, but leave IPv6 literals alone.
	if !strings.HasPrefix(s, "[") {
		if i := strings.LastIndexByte(s, ':'); i >= 0 && !strings.Contains(s[i+1:], ":") {
			s = s[:i]
		}
	}
	return strings.ToLower(strings.TrimSuffix(s, "."))
}
