package directory

import (
	"net/url"
	"strings"
)

// IsValidOrigin reports whether the Origin header value is authorized for
// a client's registered domain. The origin host must equal the domain or
// be a subdomain of it. Scheme and port are ignored on both sides.
func IsValidOrigin(origin, domain string) bool {
	if origin == "" || domain == "" {
		return false
	}

	host := hostOf(origin)
	registered := hostOf(domain)
	if host == "" || registered == "" {
		return false
	}

	return host == registered || strings.HasSuffix(host, "."+registered)
}

// hostOf extracts the lowercase hostname from an origin or bare domain,
// dropping scheme, port and any path.
func hostOf(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return ""
	}

	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		return u.Hostname()
	}

	// Bare domain, possibly with port or path.
	if i := strings.IndexAny(s, "/"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, ":"); i >= 0 {
		s = s[:i]
	}
	return s
}
