package validator

import (
	"net"
	"net/http"
	"strings"
)

// ExtractIP returns the client address, preferring proxy-forwarding
// headers. Precedence: first hop of X-Forwarded-For, then X-Real-IP,
// then the socket address.
func ExtractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
