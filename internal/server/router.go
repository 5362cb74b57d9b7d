package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pathlight-analytics/gatekeeper/internal/handlers"
	"github.com/pathlight-analytics/gatekeeper/internal/middleware"
)

// NewRouter constructs a ServeMux with the gatekeeper routes registered.
func NewRouter(h *handlers.CollectHandler) http.Handler {
	mux := http.NewServeMux()

	// Event collection
	mux.HandleFunc("/collect", h.HandleCollect)

	// Health endpoints
	mux.HandleFunc("/healthz", h.Health)
	mux.HandleFunc("/readyz", h.Ready)

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())

	return middleware.RequestID(mux)
}
