package handlers

import (
	"net/http"

	"pipeline-hub/internal/auth"
	"pipeline-hub/internal/common/errors"
	"pipeline-hub/internal/push"
)

// UnsubscribeRequest names the endpoint to remove.
type UnsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

// TestPushResponse reports the outcome per device.
type TestPushResponse struct {
	Sent       int                   `json:"sent"`
	Deliveries []push.DeliveryResult `json:"deliveries"`
}

// GetPublicKey returns the VAPID application server key
// @Summary VAPID public key
// @Tags push
// @Produce json
// @Success 200 {object} map[string]string
// @Router /push/public-key [get]
func (h *Handlers) GetPublicKey(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, http.StatusOK, map[string]string{"publicKey": h.push.PublicKey()})
}

// Subscribe registers a browser push subscription
// @Summary Subscribe
// @Tags push
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param subscription body push.SubscribeRequest true "Browser subscription"
// @Success 201 {object} models.PushSubscription
// @Router /push/subscribe [post]
func (h *Handlers) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req push.SubscribeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.sendError(w, r, err)
		return
	}

	sub, err := h.push.Subscribe(r.Context(), auth.UserID(r.Context()), &req)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.sendJSON(w, http.StatusCreated, sub)
}

// Unsubscribe removes a push subscription
// @Summary Unsubscribe
// @Tags push
// @Accept json
// @Security BearerAuth
// @Param subscription body UnsubscribeRequest true "Endpoint"
// @Success 204
// @Router /push/unsubscribe [post]
func (h *Handlers) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req UnsubscribeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.sendError(w, r, err)
		return
	}

	if err := h.push.Unsubscribe(r.Context(), auth.UserID(r.Context()), req.Endpoint); err != nil {
		h.sendError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TestPush sends a test notification to every device of the caller
// @Summary Send test notification
// @Tags push
// @Produce json
// @Security BearerAuth
// @Success 200 {object} TestPushResponse
// @Failure 404 {object} ErrorResponse
// @Router /push/test [post]
func (h *Handlers) TestPush(w http.ResponseWriter, r *http.Request) {
	results, err := h.push.SendToUser(r.Context(), auth.UserID(r.Context()), map[string]string{
		"type":    "test",
		"message": "Push notifications are working",
	})
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	if len(results) == 0 {
		h.sendError(w, r, errors.NotFoundError("push subscription"))
		return
	}

	sent := 0
	for _, res := range results {
		if res.Success {
			sent++
		}
	}
	h.sendJSON(w, http.StatusOK, TestPushResponse{Sent: sent, Deliveries: results})
}
