package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger checks that backing storage answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

type healthHandler struct {
	pinger Pinger
	logger *slog.Logger
}

type healthResponse struct {
	Status string `json:"status"`
}

// live reports process liveness.
func (h *healthHandler) live(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// ready reports whether the service can take traffic.
func (h *healthHandler) ready(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.pinger.Ping(ctx); err != nil {
			h.logger.Warn("readiness check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}
