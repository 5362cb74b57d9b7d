package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pathlight-analytics/gatekeeper/internal/cache"
	"github.com/pathlight-analytics/gatekeeper/internal/httputil"
	"github.com/pathlight-analytics/gatekeeper/internal/models"
	"github.com/pathlight-analytics/gatekeeper/internal/service"
)

// CollectHandler exposes the event collection endpoint.
type CollectHandler struct {
	service    *service.GateService
	store      *cache.Store
	maxPayload int
}

// NewCollectHandler creates the HTTP handler for event collection.
func NewCollectHandler(svc *service.GateService, store *cache.Store, maxPayload int) *CollectHandler {
	return &CollectHandler{
		service:    svc,
		store:      store,
		maxPayload: maxPayload,
	}
}

// HandleCollect accepts one analytics event per request and runs it
// through the admission pipeline.
func (h *CollectHandler) HandleCollect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	// Read at most one byte over the ceiling so oversized payloads are
	// detected without buffering unbounded input.
	body, err := io.ReadAll(io.LimitReader(r.Body, int64(h.maxPayload)+1))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}
	defer r.Body.Close()

	var payload map[string]any
	if len(body) > 0 && len(body) <= h.maxPayload {
		if err := json.Unmarshal(body, &payload); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "Invalid JSON payload")
			return
		}
	}

	outcome := h.service.Process(r.Context(), body, payload, r.URL.Query(), r)

	switch outcome.Status {
	case service.StatusSuccess, service.StatusIgnored, service.StatusDuplicate:
		// Dropped events are acknowledged like accepted ones.
		httputil.WriteJSON(w, http.StatusOK, models.Response{Status: outcome.Status})
	default:
		httputil.WriteJSON(w, statusCodeFor(outcome.Reason), models.Response{
			Status:  outcome.Status,
			Message: outcome.Message,
		})
	}
}

// statusCodeFor maps rejection reasons onto HTTP status codes.
func statusCodeFor(reason string) int {
	switch reason {
	case models.ReasonPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case models.ReasonMissingClientID:
		return http.StatusBadRequest
	case models.ReasonInvalidClientID, models.ReasonOriginNotAuthorized:
		return http.StatusForbidden
	case models.ReasonExceededEventLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadRequest
	}
}

// Health reports liveness.
func (h *CollectHandler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready reports readiness, including whether the shared cache is
// reachable. A down cache still returns ready: the pipeline fails open.
func (h *CollectHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	cacheStatus := "ok"
	if h.store != nil {
		if err := h.store.Ping(ctx); err != nil {
			cacheStatus = "unavailable"
		}
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
		"cache":  cacheStatus,
	})
}
