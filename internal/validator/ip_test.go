package validator

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractIP(t *testing.T) {
	tests := []struct {
		name       string
		xff        string
		xRealIP    string
		remoteAddr string
		want       string
	}{
		{
			name:       "forwarded-for wins",
			xff:        "203.0.113.7, 10.0.0.1",
			xRealIP:    "198.51.100.2",
			remoteAddr: "192.0.2.1:54321",
			want:       "203.0.113.7",
		},
		{
			name:       "forwarded-for single hop with spaces",
			xff:        " 203.0.113.7 ",
			remoteAddr: "192.0.2.1:54321",
			want:       "203.0.113.7",
		},
		{
			name:       "real-ip fallback",
			xRealIP:    "198.51.100.2",
			remoteAddr: "192.0.2.1:54321",
			want:       "198.51.100.2",
		},
		{
			name:       "socket address fallback",
			remoteAddr: "192.0.2.1:54321",
			want:       "192.0.2.1",
		},
		{
			name:       "socket address without port",
			remoteAddr: "192.0.2.1",
			want:       "192.0.2.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/collect", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xRealIP != "" {
				r.Header.Set("X-Real-IP", tt.xRealIP)
			}

			assert.Equal(t, tt.want, ExtractIP(r))
		})
	}
}
