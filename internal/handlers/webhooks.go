package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"

	"pipeline-hub/internal/auth"
	"pipeline-hub/internal/common/errors"
	"pipeline-hub/internal/models"
	"pipeline-hub/internal/webhooks"
)

// ListWebhooks returns the webhooks of a pipeline
// @Summary List webhooks
// @Tags webhooks
// @Produce json
// @Security BearerAuth
// @Param id path string true "Pipeline ID"
// @Success 200 {array} webhooks.View
// @Router /pipelines/{id}/webhooks [get]
func (h *Handlers) ListWebhooks(w http.ResponseWriter, r *http.Request) {
	list, err := h.webhooks.List(r.Context(), mux.Vars(r)["id"], auth.UserID(r.Context()))
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.sendJSON(w, http.StatusOK, list)
}

// CreateWebhook issues a new webhook token for a pipeline
// @Summary Create webhook
// @Tags webhooks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Pipeline ID"
// @Param webhook body webhooks.CreateRequest false "Accepted method"
// @Success 201 {object} webhooks.View
// @Router /pipelines/{id}/webhooks [post]
func (h *Handlers) CreateWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhooks.CreateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.sendError(w, r, err)
		return
	}

	view, err := h.webhooks.Create(r.Context(), mux.Vars(r)["id"], auth.UserID(r.Context()), &req)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.sendJSON(w, http.StatusCreated, view)
}

// UpdateWebhook changes the method or toggles a webhook
// @Summary Update webhook
// @Tags webhooks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Webhook ID"
// @Param webhook body webhooks.UpdateRequest true "Fields to change"
// @Success 200 {object} webhooks.View
// @Router /webhooks/{id} [patch]
func (h *Handlers) UpdateWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhooks.UpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.sendError(w, r, err)
		return
	}

	view, err := h.webhooks.Update(r.Context(), mux.Vars(r)["id"], auth.UserID(r.Context()), &req)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.sendJSON(w, http.StatusOK, view)
}

// DeleteWebhook removes a webhook
// @Summary Delete webhook
// @Tags webhooks
// @Security BearerAuth
// @Param id path string true "Webhook ID"
// @Success 204
// @Router /webhooks/{id} [delete]
func (h *Handlers) DeleteWebhook(w http.ResponseWriter, r *http.Request) {
	if err := h.webhooks.Delete(r.Context(), mux.Vars(r)["id"], auth.UserID(r.Context())); err != nil {
		h.sendError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetLastRequest returns the full data of the most recent call
// @Summary Last webhook request
// @Tags webhooks
// @Produce json
// @Security BearerAuth
// @Param id path string true "Webhook ID"
// @Success 200 {object} webhooks.LastRequest
// @Failure 404 {object} ErrorResponse
// @Router /webhooks/{id}/last-request [get]
func (h *Handlers) GetLastRequest(w http.ResponseWriter, r *http.Request) {
	last, err := h.webhooks.LastRequest(r.Context(), mux.Vars(r)["id"], auth.UserID(r.Context()))
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.sendJSON(w, http.StatusOK, last)
}

// TriggerWebhook is the public entry point behind a webhook URL
// @Summary Trigger webhook
// @Tags triggers
// @Accept json
// @Produce json
// @Param token path string true "Webhook token"
// @Success 200 {object} triggers.Result
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /webhook/{token} [post]
func (h *Handlers) TriggerWebhook(w http.ResponseWriter, r *http.Request) {
	req, err := captureRequest(w, r)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	result, err := h.dispatcher.HandleWebhook(r.Context(), mux.Vars(r)["token"], r.Method, req)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.sendJSON(w, http.StatusOK, result)
}

// captureRequest reads the body, query and headers of an inbound call.
// JSON bodies are decoded, form bodies become a field map and anything
// else is kept as text.
func captureRequest(w http.ResponseWriter, r *http.Request) (*models.RequestData, error) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.ValidationError("request body is too large or unreadable")
	}

	return &models.RequestData{
		Body:    parseBody(r.Header.Get("Content-Type"), raw),
		Query:   flatten(r.URL.Query()),
		Headers: firstValues(r.Header),
	}, nil
}

func parseBody(contentType string, raw []byte) any {
	if len(raw) == 0 {
		return nil
	}

	mediaType, _, _ := mime.ParseMediaType(contentType)
	switch {
	case mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"):
		var body any
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&body); err == nil {
			if _, err := dec.Token(); err == io.EOF {
				return body
			}
		}
	case mediaType == "application/x-www-form-urlencoded":
		if values, err := url.ParseQuery(string(raw)); err == nil {
			return flatten(values)
		}
	}
	return string(raw)
}

// flatten keeps single values as strings and repeated keys as lists.
func flatten(values map[string][]string) map[string]any {
	out := make(map[string]any, len(values))
	for key, vs := range values {
		if len(vs) == 1 {
			out[key] = vs[0]
		} else {
			out[key] = vs
		}
	}
	return out
}

func firstValues(header http.Header) map[string]string {
	out := make(map[string]string, len(header))
	for key, vs := range header {
		if len(vs) > 0 {
			out[strings.ToLower(key)] = vs[0]
		}
	}
	return out
}
