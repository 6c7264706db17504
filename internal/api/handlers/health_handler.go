package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

const defaultPingTimeout = 2 * time.Second

// Pinger reports whether a dependency is reachable (e.g. *pgxpool.Pool).
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	db          Pinger
	pingTimeout time.Duration
}

// NewHealthHandler creates a health handler that pings db on each check.
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db, pingTimeout: defaultPingTimeout}
}

// Check handles GET /health. Responds 503 when the database ping fails or times out.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.pingTimeout)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		slog.WarnContext(ctx, "health: database ping failed", "error", err)
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)

		return
	}

	w.WriteHeader(http.StatusOK)

	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health check response", "error", err)
	}
}
