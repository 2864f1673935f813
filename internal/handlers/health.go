package handlers

import (
	"context"
	"net/http"
	"time"

	"pipeline-hub/internal/circuitbreaker"
	"pipeline-hub/internal/common/errors"
)

// HealthResponse reports storage reachability and push delivery breakers.
type HealthResponse struct {
	Status       string                 `json:"status"`
	PushBreakers []circuitbreaker.Stats `json:"pushBreakers,omitempty"`
}

// Health reports whether storage is reachable and whether any push service
// is currently cut off by its breaker
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} ErrorResponse
// @Router /health [get]
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.storage.Health(ctx); err != nil {
		h.sendError(w, r, errors.ConnectionError("storage is unavailable", err))
		return
	}

	resp := HealthResponse{Status: "ok"}
	if h.push != nil {
		resp.PushBreakers = h.push.BreakerStats()
	}
	for _, b := range resp.PushBreakers {
		if b.State != circuitbreaker.StateClosed.String() {
			resp.Status = "degraded"
		}
	}
	h.sendJSON(w, http.StatusOK, resp)
}
