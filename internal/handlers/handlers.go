// Package handlers exposes the pipeline-hub services over HTTP.
package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"pipeline-hub/internal/auth"
	"pipeline-hub/internal/common/errors"
	"pipeline-hub/internal/common/logging"
	"pipeline-hub/internal/pipelines"
	"pipeline-hub/internal/push"
	"pipeline-hub/internal/storage"
	"pipeline-hub/internal/triggers"
	"pipeline-hub/internal/webhooks"
)

// maxBodyBytes bounds every request body read by the API.
const maxBodyBytes = 1 << 20

type Handlers struct {
	storage    storage.Storage
	auth       *auth.Auth
	pipelines  *pipelines.Service
	webhooks   *webhooks.Service
	dispatcher *triggers.Dispatcher
	push       *push.Service
	logger     logging.Logger
}

func New(
	store storage.Storage,
	authService *auth.Auth,
	pipelineService *pipelines.Service,
	webhookService *webhooks.Service,
	dispatcher *triggers.Dispatcher,
	pushService *push.Service,
) *Handlers {
	return &Handlers{
		storage:    store,
		auth:       authService,
		pipelines:  pipelineService,
		webhooks:   webhookService,
		dispatcher: dispatcher,
		push:       pushService,
		logger:     logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "handlers"}),
	}
}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Type    string   `json:"type"`
	Details []string `json:"details,omitempty"`
}

func (h *Handlers) sendJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", err)
	}
}

// sendError maps err to its status. Internal failures are logged and
// reported without their cause.
func (h *Handlers) sendError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.WithContext(r.Context()).Error("Request failed", err,
			logging.Field{Key: "method", Value: r.Method},
			logging.Field{Key: "path", Value: r.URL.Path},
		)
	}

	resp := ErrorResponse{Error: "internal server error", Type: string(errors.ErrTypeInternal)}
	if appErr, ok := errors.As(err); ok && appErr.Type != errors.ErrTypeInternal {
		resp = ErrorResponse{Error: appErr.Message, Type: string(appErr.Type), Details: appErr.Details()}
	}
	h.sendJSON(w, status, resp)
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && err != io.EOF {
		// Node and trigger configs reject unknown types while decoding.
		if appErr, ok := errors.As(err); ok {
			return appErr
		}
		return errors.ValidationError("invalid JSON body: " + err.Error())
	}
	return nil
}
