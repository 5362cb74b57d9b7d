// Package salt manages the daily-rotated secret mixed into visitor
// identifier hashes. One salt is current per UTC calendar day; all events
// observed on the same day must hash with the same value.
package salt

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/pathlight-analytics/gatekeeper/internal/cache"
	"github.com/pathlight-analytics/gatekeeper/internal/logging"
	"github.com/pathlight-analytics/gatekeeper/internal/metrics"
)

const msPerDay = 86_400_000

// Manager produces the current daily salt. DailySalt never fails: any
// storage error degrades to a locally generated one-shot secret.
type Manager struct {
	store  *cache.Store
	cached *cache.Cacheable[string]
	ttl    time.Duration
	log    *logging.Logger

	now func() time.Time
}

// Options tunes salt retention and the memoization tier.
type Options struct {
	// TTL is how long a day's salt stays retrievable (default 24h).
	TTL time.Duration
	// CacheTTL and StaleAfter tune the cache-aside layer in front of the
	// authoritative salt key (defaults 1h / 5m).
	CacheTTL   time.Duration
	StaleAfter time.Duration
}

// NewManager creates a salt manager backed by the shared cache.
func NewManager(store *cache.Store, opts Options) *Manager {
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 5 * time.Minute
	}

	m := &Manager{
		store: store,
		ttl:   opts.TTL,
		log:   logging.Default(),
		now:   time.Now,
	}
	m.cached = cache.NewCacheable(store, "daily_salt", opts.CacheTTL, opts.StaleAfter, m.fetchSalt)
	return m
}

// DailySalt returns the salt for the current UTC day. Concurrent first
// accesses converge on a single winning value via an atomic set-if-not-
// exists claim; a caller that cannot reach the cache gets a fresh
// uncached salt instead of blocking or failing.
func (m *Manager) DailySalt(ctx context.Context) string {
	day := m.currentDay()
	value, err := m.cached.Get(ctx, strconv.FormatInt(day, 10))
	if err != nil || value == "" {
		// fetchSalt never errors; an empty value means a corrupt cache
		// entry. Generate a one-shot salt and keep serving.
		if err != nil {
			m.log.ErrorContext(ctx, "Failed to get daily salt", logging.Error(err))
		}
		return generateSalt()
	}
	return value
}

// fetchSalt resolves the authoritative salt for a day: read the salt key,
// otherwise generate a candidate and claim the key atomically. When the
// claim loses, the winning value is read back so every caller observes
// the same salt.
func (m *Manager) fetchSalt(ctx context.Context, day string) (string, error) {
	key := "salt:" + day

	value, found, err := m.store.Get(ctx, key)
	if err != nil {
		metrics.DependencyErrors.WithLabelValues("salt").Inc()
		m.log.ErrorContext(ctx, "Failed to get daily salt from cache", logging.Error(err))
		return generateSalt(), nil
	}
	if found {
		return value, nil
	}

	candidate := generateSalt()
	claimed, err := m.store.SetNX(ctx, key, candidate, m.ttl)
	if err != nil {
		metrics.DependencyErrors.WithLabelValues("salt").Inc()
		m.log.ErrorContext(ctx, "Failed to set daily salt in cache", logging.Error(err))
		return candidate, nil
	}
	if claimed {
		return candidate, nil
	}

	// Another instance won the race; adopt its value.
	value, found, err = m.store.Get(ctx, key)
	if err != nil || !found {
		if err != nil {
			metrics.DependencyErrors.WithLabelValues("salt").Inc()
			m.log.ErrorContext(ctx, "Failed to read winning daily salt", logging.Error(err))
		}
		return candidate, nil
	}
	return value, nil
}

// currentDay returns the UTC day number (unix millis / ms-per-day).
func (m *Manager) currentDay() int64 {
	return m.now().UnixMilli() / msPerDay
}

// generateSalt returns 32 bytes of hex-encoded entropy.
func generateSalt() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failure is unrecoverable for a secret source.
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return hex.EncodeToString(buf)
}
