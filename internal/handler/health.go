package handler

import (
	"context"
	"net/http"
	"time"

	"chatrelay/internal/httputil"
)

// HealthHandler reports process liveness and database reachability.
type HealthHandler struct {
	ping func(ctx context.Context) error
}

// NewHealthHandler creates a health handler backed by a database ping.
func NewHealthHandler(ping func(ctx context.Context) error) *HealthHandler {
	return &HealthHandler{ping: ping}
}

// Check handles GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	code := http.StatusOK
	if err := h.ping(ctx); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	httputil.RespondJSON(w, code, map[string]string{"status": status})
}
