package quota

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathlight-analytics/gatekeeper/internal/cache"
)

func setupTestRedis(t *testing.T) *cache.Store {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return cache.NewFromClient(client, time.Second)
}

func TestClient_Check(t *testing.T) {
	var gotBody checkRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/check", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(Result{Allowed: true})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)

	result, err := client.Check(context.Background(), "owner-1")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.False(t, result.OverageAllowed)

	assert.Equal(t, "owner-1", gotBody.CustomerID)
	assert.Equal(t, "events", gotBody.FeatureID)
	assert.True(t, gotBody.SendEvent, "each check meters one usage event")
}

func TestClient_Check_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)

	_, err := client.Check(context.Background(), "owner-1")
	assert.Error(t, err)
}

func TestGate_Allow(t *testing.T) {
	tests := []struct {
		name   string
		result Result
		want   bool
	}{
		{"within quota", Result{Allowed: true}, true},
		{"over quota with overage", Result{Allowed: false, OverageAllowed: true}, true},
		{"over quota hard", Result{Allowed: false, OverageAllowed: false}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := setupTestRedis(t)
			gate := NewGate(store, meterFunc(func(ctx context.Context, ownerID string) (Result, error) {
				return tt.result, nil
			}), 0, 0)

			assert.Equal(t, tt.want, gate.Allow(context.Background(), "owner-1"))
		})
	}
}

func TestGate_Allow_FailsOpenOnMeterError(t *testing.T) {
	store := setupTestRedis(t)
	gate := NewGate(store, meterFunc(func(ctx context.Context, ownerID string) (Result, error) {
		return Result{}, assert.AnError
	}), 0, 0)

	assert.True(t, gate.Allow(context.Background(), "owner-1"), "metering failures must never block ingestion")
}

func TestGate_Allow_MemoizesPerOwner(t *testing.T) {
	store := setupTestRedis(t)
	ctx := context.Background()

	var calls atomic.Int64
	gate := NewGate(store, meterFunc(func(ctx context.Context, ownerID string) (Result, error) {
		calls.Add(1)
		return Result{Allowed: true}, nil
	}), 0, 0)

	require.True(t, gate.Allow(ctx, "owner-1"))

	// The verdict write is fire-and-forget; wait for it to land before
	// asserting the hit path.
	require.Eventually(t, func() bool {
		_, found, err := store.Get(ctx, "quota_check_events:owner-1")
		return err == nil && found
	}, time.Second, 10*time.Millisecond)

	require.True(t, gate.Allow(ctx, "owner-1"))
	assert.Equal(t, int64(1), calls.Load(), "second check within the window must not reach the meter")

	require.True(t, gate.Allow(ctx, "owner-2"))
	assert.Equal(t, int64(2), calls.Load(), "owners are memoized independently")
}

// meterFunc adapts a function to the Meter interface.
type meterFunc func(ctx context.Context, ownerID string) (Result, error)

func (f meterFunc) Check(ctx context.Context, ownerID string) (Result, error) {
	return f(ctx, ownerID)
}
