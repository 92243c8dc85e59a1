package api

import (
	"context"
	"net/http"

	"github.com/okian/runboard/pkg/logger"
)

// Pinger checks a backing dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	pinger Pinger
	logger logger.Logger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(p Pinger, l logger.Logger) *HealthHandler {
	return &HealthHandler{pinger: p, logger: l}
}

type healthResponse struct {
	Status  string `json:"status"`
	Storage string `json:"storage"`
}

// HandleHealth handles GET /healthz. It answers 503 when storage is down.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		methodNotAllowed(w, "GET, HEAD")
		return
	}
	if err := h.pinger.Ping(r.Context()); err != nil {
		h.logger.Warn(r.Context(), "storage ping failed", logger.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded", Storage: "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Storage: "ok"})
}
