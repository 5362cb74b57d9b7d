package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/pathlight-analytics/gatekeeper/internal/logging"
	"github.com/pathlight-analytics/gatekeeper/internal/metrics"
)

// envelope wraps a cached value with the time it was stored so readers can
// tell fresh values from stale ones. Redis TTL governs hard expiry; the
// stored-at timestamp governs the soft freshness window.
type envelope[T any] struct {
	Value    T     `json:"value"`
	StoredAt int64 `json:"stored_at"`
}

// Cacheable decorates a computation with cache-aside reads and
// stale-while-revalidate refresh. A value older than StaleAfter but still
// within TTL is returned immediately while a background refresh runs; a
// miss computes inline and stores the result best-effort.
type Cacheable[T any] struct {
	store      *Store
	prefix     string
	ttl        time.Duration
	staleAfter time.Duration
	fn         func(ctx context.Context, key string) (T, error)
	log        *logging.Logger

	mu         sync.Mutex
	refreshing map[string]struct{}

	now func() time.Time
}

// NewCacheable constructs a cache-aside decorator around fn. Keys are
// namespaced under prefix. staleAfter <= 0 disables the soft window and
// values are served until hard expiry.
func NewCacheable[T any](store *Store, prefix string, ttl, staleAfter time.Duration, fn func(ctx context.Context, key string) (T, error)) *Cacheable[T] {
	return &Cacheable[T]{
		store:      store,
		prefix:     prefix,
		ttl:        ttl,
		staleAfter: staleAfter,
		fn:         fn,
		log:        logging.Default(),
		refreshing: make(map[string]struct{}),
		now:        time.Now,
	}
}

// Get returns the cached value for key, computing and storing it on a
// miss. Cache read errors fall through to the inline computation; only an
// error from fn itself is returned.
func (c *Cacheable[T]) Get(ctx context.Context, key string) (T, error) {
	redisKey := c.prefix + ":" + key

	raw, found, err := c.store.Get(ctx, redisKey)
	if err == nil && found {
		var env envelope[T]
		if err := json.Unmarshal([]byte(raw), &env); err == nil {
			metrics.CacheHits.WithLabelValues(c.prefix).Inc()
			age := c.now().Unix() - env.StoredAt
			if c.staleAfter > 0 && age > int64(c.staleAfter.Seconds()) {
				metrics.CacheStaleServed.WithLabelValues(c.prefix).Inc()
				c.refreshAsync(ctx, key, redisKey)
			}
			return env.Value, nil
		}
		c.log.WarnContext(ctx, "Discarding undecodable cache entry", slog.String("key", redisKey))
	}
	if err != nil {
		metrics.DependencyErrors.WithLabelValues("cache").Inc()
		c.log.ErrorContext(ctx, "Cache read failed, computing inline",
			slog.String("key", redisKey),
			logging.Error(err),
		)
	}

	metrics.CacheMisses.WithLabelValues(c.prefix).Inc()
	value, err := c.fn(ctx, key)
	if err != nil {
		var zero T
		return zero, err
	}

	c.storeAsync(ctx, redisKey, value)
	return value, nil
}

// refreshAsync recomputes the value in a detached goroutine and replaces
// the cached copy. At most one refresh per key runs at a time; the caller
// is never blocked.
func (c *Cacheable[T]) refreshAsync(ctx context.Context, key, redisKey string) {
	c.mu.Lock()
	if _, inFlight := c.refreshing[key]; inFlight {
		c.mu.Unlock()
		return
	}
	c.refreshing[key] = struct{}{}
	c.mu.Unlock()

	// Detach from the request so an aborted connection does not cancel
	// the refresh.
	ctx = context.WithoutCancel(ctx)

	go func() {
		defer func() {
			c.mu.Lock()
			delete(c.refreshing, key)
			c.mu.Unlock()
			if r := recover(); r != nil {
				c.log.ErrorContext(ctx, "Panic during cache refresh", slog.String("key", redisKey), slog.Any("panic", r))
			}
		}()

		value, err := c.fn(ctx, key)
		if err != nil {
			// Stale value stays in place until hard expiry.
			c.log.WarnContext(ctx, "Background cache refresh failed",
				slog.String("key", redisKey),
				logging.Error(err),
			)
			return
		}
		if err := c.set(ctx, redisKey, value); err != nil {
			c.log.WarnContext(ctx, "Failed to store refreshed cache value",
				slog.String("key", redisKey),
				logging.Error(err),
			)
		}
	}()
}

// storeAsync populates the cache best-effort without blocking the caller.
func (c *Cacheable[T]) storeAsync(ctx context.Context, redisKey string, value T) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				c.log.ErrorContext(ctx, "Panic during cache store", slog.String("key", redisKey), slog.Any("panic", r))
			}
		}()
		if err := c.set(ctx, redisKey, value); err != nil {
			c.log.WarnContext(ctx, "Failed to populate cache",
				slog.String("key", redisKey),
				logging.Error(err),
			)
		}
	}()
}

func (c *Cacheable[T]) set(ctx context.Context, redisKey string, value T) error {
	data, err := json.Marshal(envelope[T]{
		Value:    value,
		StoredAt: c.now().Unix(),
	})
	if err != nil {
		return err
	}
	return c.store.SetEX(ctx, redisKey, string(data), c.ttl)
}
