package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathlight-analytics/gatekeeper/internal/cache"
	"github.com/pathlight-analytics/gatekeeper/internal/dedup"
	"github.com/pathlight-analytics/gatekeeper/internal/models"
	"github.com/pathlight-analytics/gatekeeper/internal/salt"
	"github.com/pathlight-analytics/gatekeeper/internal/service"
	"github.com/pathlight-analytics/gatekeeper/internal/telemetry"
	"github.com/pathlight-analytics/gatekeeper/internal/validator"
)

type fakeDirectory struct {
	records map[string]*models.ClientRecord
}

func (f *fakeDirectory) GetClientByID(ctx context.Context, clientID string) (*models.ClientRecord, error) {
	return f.records[clientID], nil
}

type fixedQuota struct {
	allow bool
}

func (q fixedQuota) Allow(ctx context.Context, ownerID string) bool { return q.allow }

func newTestHandler(t *testing.T, allowQuota bool) (*CollectHandler, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	store := cache.NewFromClient(client, time.Second)

	dir := &fakeDirectory{records: map[string]*models.ClientRecord{
		"abc123": {ID: "abc123", Status: "ACTIVE", Domain: "example.com", OwnerID: "owner-1"},
	}}

	v := validator.New(dir, fixedQuota{allow: allowQuota}, telemetry.NoOpSink{}, 1024)
	svc := service.NewGateService(
		v,
		salt.NewManager(store, salt.Options{}),
		dedup.NewSuppressor(store, 0, 0),
		nil,
		nil,
	)

	return NewCollectHandler(svc, store, 1024), mr
}

func postEvent(t *testing.T, h *CollectHandler, clientID string, payload map[string]any, mutate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/collect?client_id="+clientID, bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("User-Agent", "Mozilla/5.0 test browser")
	r.Header.Set("Accept", "*/*")
	if mutate != nil {
		mutate(r)
	}

	w := httptest.NewRecorder()
	h.HandleCollect(w, r)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) models.Response {
	t.Helper()
	var resp models.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHandleCollect_Accepted(t *testing.T) {
	h, _ := newTestHandler(t, true)

	w := postEvent(t, h, "abc123", map[string]any{"type": "pageview", "event_id": "evt-1"}, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "success", decodeResponse(t, w).Status)
}

func TestHandleCollect_MethodNotAllowed(t *testing.T) {
	h, _ := newTestHandler(t, true)

	r := httptest.NewRequest(http.MethodGet, "/collect", nil)
	w := httptest.NewRecorder()
	h.HandleCollect(w, r)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHandleCollect_InvalidJSON(t *testing.T) {
	h, _ := newTestHandler(t, true)

	r := httptest.NewRequest(http.MethodPost, "/collect?client_id=abc123", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	h.HandleCollect(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleCollect_RejectionStatusCodes(t *testing.T) {
	t.Run("payload too large", func(t *testing.T) {
		h, _ := newTestHandler(t, true)

		body := bytes.Repeat([]byte("x"), 2048)
		r := httptest.NewRequest(http.MethodPost, "/collect?client_id=abc123", bytes.NewReader(body))
		w := httptest.NewRecorder()
		h.HandleCollect(w, r)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		resp := decodeResponse(t, w)
		assert.Equal(t, "error", resp.Status)
		assert.Equal(t, "Payload too large", resp.Message)
	})

	t.Run("missing client id", func(t *testing.T) {
		h, _ := newTestHandler(t, true)
		w := postEvent(t, h, "", map[string]any{}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown client id", func(t *testing.T) {
		h, _ := newTestHandler(t, true)
		w := postEvent(t, h, "unknown", map[string]any{}, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("origin not authorized", func(t *testing.T) {
		h, _ := newTestHandler(t, true)
		w := postEvent(t, h, "abc123", map[string]any{}, func(r *http.Request) {
			r.Header.Set("Origin", "https://evil.com")
		})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("quota exceeded", func(t *testing.T) {
		h, _ := newTestHandler(t, false)
		w := postEvent(t, h, "abc123", map[string]any{}, nil)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "Exceeded event limit", decodeResponse(t, w).Message)
	})
}

func TestHandleCollect_BotAcknowledged(t *testing.T) {
	h, _ := newTestHandler(t, true)

	w := postEvent(t, h, "abc123", map[string]any{}, func(r *http.Request) {
		r.Header.Set("User-Agent", "curl/8.4.0")
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ignored", decodeResponse(t, w).Status)
}

func TestHandleCollect_DuplicateAcknowledged(t *testing.T) {
	h, _ := newTestHandler(t, true)
	payload := map[string]any{"type": "pageview", "event_id": "evt-dup"}

	first := postEvent(t, h, "abc123", payload, nil)
	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, "success", decodeResponse(t, first).Status)

	second := postEvent(t, h, "abc123", payload, nil)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "duplicate", decodeResponse(t, second).Status)
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandler(t, true)

	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
}

func TestReady(t *testing.T) {
	h, mr := newTestHandler(t, true)

	w := httptest.NewRecorder()
	h.Ready(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ready", resp["status"])
	assert.Equal(t, "ok", resp["cache"])

	// A down cache degrades the pipeline but never readiness.
	mr.Close()

	w = httptest.NewRecorder()
	h.Ready(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ready", resp["status"])
	assert.Equal(t, "unavailable", resp["cache"])
}
