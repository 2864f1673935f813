package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"pipeline-hub/internal/common/errors"
	"pipeline-hub/internal/nodes"
)

// NodeValidationRequest carries one node configuration to check.
type NodeValidationRequest struct {
	Type   string          `json:"type"`
	Config json.RawMessage `json:"config"`
}

// NodeValidationResponse lists the problems of a configuration and its
// summary with defaults applied.
type NodeValidationResponse struct {
	Valid   bool         `json:"valid"`
	Errors  []string     `json:"errors"`
	Summary string       `json:"summary"`
	Config  nodes.Config `json:"config"`
}

// ListNodeTypes returns the node catalog
// @Summary Node catalog
// @Tags nodes
// @Produce json
// @Success 200 {array} nodes.Descriptor
// @Router /nodes/types [get]
func (h *Handlers) ListNodeTypes(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, http.StatusOK, nodes.Catalog())
}

// GetNodeType describes one node type
// @Summary Node type
// @Tags nodes
// @Produce json
// @Param type path string true "Node type"
// @Success 200 {object} nodes.Descriptor
// @Failure 404 {object} ErrorResponse
// @Router /nodes/types/{type} [get]
func (h *Handlers) GetNodeType(w http.ResponseWriter, r *http.Request) {
	desc, err := nodes.Describe(mux.Vars(r)["type"])
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.sendJSON(w, http.StatusOK, desc)
}

// ValidateNode checks a single node configuration
// @Summary Validate node configuration
// @Tags nodes
// @Accept json
// @Produce json
// @Param node body NodeValidationRequest true "Type and configuration"
// @Success 200 {object} NodeValidationResponse
// @Failure 400 {object} ErrorResponse
// @Router /nodes/validate [post]
func (h *Handlers) ValidateNode(w http.ResponseWriter, r *http.Request) {
	var req NodeValidationRequest
	if err := decodeJSON(r, &req); err != nil {
		h.sendError(w, r, err)
		return
	}
	if req.Type == "" {
		h.sendError(w, r, errors.ValidationError("type is required"))
		return
	}

	cfg, err := nodes.New(req.Type, req.Config)
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	problems := cfg.Validate()
	if problems == nil {
		problems = []string{}
	}
	h.sendJSON(w, http.StatusOK, NodeValidationResponse{
		Valid:   len(problems) == 0,
		Errors:  problems,
		Summary: cfg.Summary(),
		Config:  cfg,
	})
}
