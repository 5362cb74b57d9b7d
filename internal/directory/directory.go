// Package directory looks up client registrations from the external
// directory service. Records are cached in-process with a TTL; the
// gatekeeper never mutates them.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/pathlight-analytics/gatekeeper/internal/models"
)

// Client fetches client records over HTTP with an in-process TTL cache.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *recordCache
}

type recordCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	ttl     time.Duration
}

type cacheEntry struct {
	record    *models.ClientRecord // nil for cached negative lookups
	expiresAt time.Time
}

// New creates a directory client.
func New(baseURL string, timeout, cacheTTL time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		cache: &recordCache{
			entries: make(map[string]*cacheEntry),
			ttl:     cacheTTL,
		},
	}
}

// GetClientByID returns the registration for clientID, or nil when the
// directory has no such client. Absent records are cached too, so a storm
// of events with a bogus client id does not hammer the directory.
func (c *Client) GetClientByID(ctx context.Context, clientID string) (*models.ClientRecord, error) {
	if c == nil {
		return nil, fmt.Errorf("directory client not configured")
	}

	if record, cached := c.cache.get(clientID); cached {
		return record, nil
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/clients/"+clientID, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		c.cache.set(clientID, nil)
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("directory service returned status %d", resp.StatusCode)
	}

	var record models.ClientRecord
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	c.cache.set(clientID, &record)
	return &record, nil
}

func (rc *recordCache) get(clientID string) (*models.ClientRecord, bool) {
	rc.mu.RLock()
	defer rc.mu.RUnlock()

	entry, exists := rc.entries[clientID]
	if !exists || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.record, true
}

func (rc *recordCache) set(clientID string, record *models.ClientRecord) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.entries[clientID] = &cacheEntry{
		record:    record,
		expiresAt: time.Now().Add(rc.ttl),
	}

	// Clean up expired entries periodically
	go rc.cleanup()
}

func (rc *recordCache) cleanup() {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	now := time.Now()
	for id, entry := range rc.entries {
		if now.After(entry.expiresAt) {
			delete(rc.entries, id)
		}
	}
}
