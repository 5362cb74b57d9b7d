// Package bot flags automated traffic from user-agent and request
// heuristics. Classification is a pure function of its inputs; acting on
// a block decision (telemetry, silent drop) is the caller's job.
package bot

import (
	"net/http"
	"strings"

	"github.com/pathlight-analytics/gatekeeper/internal/models"
)

// Decision is the outcome of classifying a request.
type Decision struct {
	Blocked  bool
	Reason   string
	Category string
	BotName  string
}

// signature maps a user-agent substring to a known bot name.
type signature struct {
	pattern string
	name    string
}

// Crawlers, headless browsers and HTTP libraries. Matched case-insensitively
// against the full user-agent string.
var signatures = []signature{
	{"googlebot", "Googlebot"},
	{"bingbot", "Bingbot"},
	{"slurp", "Yahoo Slurp"},
	{"duckduckbot", "DuckDuckBot"},
	{"baiduspider", "Baiduspider"},
	{"yandexbot", "YandexBot"},
	{"facebookexternalhit", "Facebook Crawler"},
	{"twitterbot", "Twitterbot"},
	{"linkedinbot", "LinkedInBot"},
	{"applebot", "Applebot"},
	{"semrushbot", "SemrushBot"},
	{"ahrefsbot", "AhrefsBot"},
	{"headlesschrome", "Headless Chrome"},
	{"phantomjs", "PhantomJS"},
	{"selenium", "Selenium"},
	{"puppeteer", "Puppeteer"},
	{"playwright", "Playwright"},
	{"electron", "Electron"},
	{"curl/", "curl"},
	{"wget/", "Wget"},
	{"python-requests", "python-requests"},
	{"python-urllib", "python-urllib"},
	{"go-http-client", "Go HTTP client"},
	{"okhttp", "OkHttp"},
	{"java/", "Java HTTP client"},
	{"scrapy", "Scrapy"},
	{"httpclient", "HttpClient"},
}

// Generic automation markers caught when no named signature matches.
var genericMarkers = []string{"bot", "spider", "crawl", "scraper"}

// Classify inspects the user agent and request headers and decides
// whether the traffic is automated.
func Classify(userAgent string, r *http.Request) Decision {
	ua := strings.ToLower(strings.TrimSpace(userAgent))

	if ua == "" {
		return Decision{
			Blocked:  true,
			Reason:   "missing_user_agent",
			Category: models.CategorySuspiciousUA,
		}
	}

	if len(ua) < 10 {
		return Decision{
			Blocked:  true,
			Reason:   "suspicious_user_agent",
			Category: models.CategorySuspiciousUA,
		}
	}

	for _, sig := range signatures {
		if strings.Contains(ua, sig.pattern) {
			return Decision{
				Blocked:  true,
				Reason:   "known_bot",
				Category: models.CategoryKnownBot,
				BotName:  sig.name,
			}
		}
	}

	for _, marker := range genericMarkers {
		if strings.Contains(ua, marker) {
			return Decision{
				Blocked:  true,
				Reason:   "generic_bot_pattern",
				Category: models.CategoryKnownBot,
			}
		}
	}

	// Real browsers always send Accept; most send Accept-Language.
	// Absence of both is a strong automation signal.
	if r != nil && r.Header.Get("Accept") == "" && r.Header.Get("Accept-Language") == "" {
		return Decision{
			Blocked:  true,
			Reason:   "missing_browser_headers",
			Category: models.CategorySuspiciousUA,
		}
	}

	return Decision{}
}
