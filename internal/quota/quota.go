// Package quota gates events on the owning account's usage allowance.
// Checks against the external metering service are memoized in the shared
// cache and fail open: temporary metering unavailability must never block
// ingestion.
package quota

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pathlight-analytics/gatekeeper/internal/cache"
	"github.com/pathlight-analytics/gatekeeper/internal/logging"
	"github.com/pathlight-analytics/gatekeeper/internal/metrics"
)

// Result is the metering service's verdict for an owner.
type Result struct {
	Allowed        bool `json:"allowed"`
	OverageAllowed bool `json:"overage_allowed"`
}

// Meter checks an owner's event allowance against the metering service.
type Meter interface {
	Check(ctx context.Context, ownerID string) (Result, error)
}

// Client is the HTTP metering client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type checkRequest struct {
	CustomerID string `json:"customer_id"`
	FeatureID  string `json:"feature_id"`
	SendEvent  bool   `json:"send_event"`
}

// NewClient creates a metering client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Check asks the metering service whether the owner may ingest more
// events. Each successful check also meters one usage event upstream.
func (c *Client) Check(ctx context.Context, ownerID string) (Result, error) {
	reqBody := checkRequest{
		CustomerID: ownerID,
		FeatureID:  "events",
		SendEvent:  true,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return Result{}, fmt.Errorf("marshal request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/check", bytes.NewReader(bodyBytes))
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(request)
	if err != nil {
		return Result{}, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("metering service returned status %d", resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{}, fmt.Errorf("decode response: %w", err)
	}

	return result, nil
}

// Gate memoizes metering checks per owner with stale-while-revalidate
// refresh, so the hot path sees at most one upstream call per owner per
// cache window.
type Gate struct {
	cached *cache.Cacheable[Result]
	log    *logging.Logger
}

// NewGate wraps a Meter with cache-aside memoization. Zero TTLs default
// to 60s hard / 30s soft.
func NewGate(store *cache.Store, meter Meter, ttl, staleAfter time.Duration) *Gate {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	if staleAfter <= 0 {
		staleAfter = 30 * time.Second
	}
	return &Gate{
		cached: cache.NewCacheable(store, "quota_check_events", ttl, staleAfter, func(ctx context.Context, ownerID string) (Result, error) {
			return meter.Check(ctx, ownerID)
		}),
		log: logging.Default(),
	}
}

// Allow reports whether the owner may ingest another event. A request is
// rejected only when the service affirmatively reports the quota exceeded
// with no overage allowance; any error fails open.
func (g *Gate) Allow(ctx context.Context, ownerID string) bool {
	result, err := g.cached.Get(ctx, ownerID)
	if err != nil {
		metrics.DependencyErrors.WithLabelValues("metering").Inc()
		g.log.ErrorContext(ctx, "Metering check failed, allowing event through",
			logging.OwnerID(ownerID),
			logging.Error(err),
		)
		return true
	}
	return result.Allowed || result.OverageAllowed
}
