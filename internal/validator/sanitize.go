package validator

import "strings"

// Ceilings for free-text inputs. Over-length values are truncated
// deterministically, never rejected with an error.
const (
	ShortStringMaxLength = 100
	StringMaxLength      = 500
	PayloadMaxSize       = 1 << 20 // 1 MiB
)

// SanitizeString trims whitespace, strips control characters and
// truncates the result to max runes. Returns "" for values that are empty
// after cleaning.
func SanitizeString(s string, max int) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))
	n := 0
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			continue
		}
		if n >= max {
			break
		}
		b.WriteRune(r)
		n++
	}
	return strings.TrimSpace(b.String())
}

// ValidatePayloadSize reports whether body fits under the size ceiling.
func ValidatePayloadSize(body []byte, max int) bool {
	return len(body) <= max
}
