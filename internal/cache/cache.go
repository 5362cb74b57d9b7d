// Package cache provides the shared Redis store the gatekeeper uses for
// salt storage, quota memoization, and dedup markers, plus a generic
// cache-aside decorator with stale-while-revalidate semantics.
//
// Every operation is bounded by a sub-second timeout so a Redis outage
// degrades enforcement accuracy rather than ingestion availability.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultOpTimeout bounds individual Redis operations on the hot path.
const DefaultOpTimeout = 500 * time.Millisecond

// Store wraps a Redis client with the narrow set of idempotent operations
// the gatekeeper needs: get, set-with-expiry, set-if-not-exists-with-expiry
// and existence-check.
type Store struct {
	client    *redis.Client
	opTimeout time.Duration
}

// New creates a Store from a Redis URL. The connection is not verified
// here; call Ping to check reachability. The gatekeeper must tolerate a
// cache that is down at startup.
func New(redisURL string, opTimeout time.Duration) (*Store, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	return NewFromClient(redis.NewClient(opt), opTimeout), nil
}

// NewFromClient creates a Store from an existing Redis connection.
func NewFromClient(client *redis.Client, opTimeout time.Duration) *Store {
	if opTimeout <= 0 {
		opTimeout = DefaultOpTimeout
	}
	return &Store{
		client:    client,
		opTimeout: opTimeout,
	}
}

// Ping verifies the Redis connection.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	return nil
}

// Client exposes the underlying Redis connection for collaborators that
// need pipelining (e.g. usage stats).
func (s *Store) Client() *redis.Client {
	return s.client
}

// Get returns the value for key and whether it existed.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, true, nil
}

// SetEX stores value under key with the given expiry.
func (s *Store) SetEX(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis setex %s: %w", key, err)
	}
	return nil
}

// SetNX atomically stores value under key with expiry if the key does not
// already exist. Returns true when this call claimed the key.
func (s *Store) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	claimed, err := s.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	return claimed, nil
}

// Exists reports whether key is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists %s: %w", key, err)
	}
	return n > 0, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
