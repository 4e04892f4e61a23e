package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	natsclient "github.com/afiliado-ai/agent-dashboard/internal/nats"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	natsClient *natsclient.Client
	pool       *pgxpool.Pool
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(natsClient *natsclient.Client, pool *pgxpool.Pool) *HealthHandler {
	return &HealthHandler{
		natsClient: natsClient,
		pool:       pool,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.pool == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "database not configured",
		})
		return
	}
	if err := h.pool.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "database not reachable",
		})
		return
	}

	// The realtime feed is degraded without NATS, but reads still work.
	realtime := "connected"
	if h.natsClient == nil || !h.natsClient.IsConnected() {
		realtime = "disconnected"
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ready",
		"realtime": realtime,
	})
}
