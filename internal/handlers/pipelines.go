package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"pipeline-hub/internal/auth"
	"pipeline-hub/internal/common/pagination"
	"pipeline-hub/internal/pipelines"
)

// ListPipelines returns one page of the caller's pipelines
// @Summary List pipelines
// @Tags pipelines
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number, from 1"
// @Param perPage query int false "Items per page, at most 100"
// @Success 200 {object} pagination.Response[models.Pipeline]
// @Router /pipelines [get]
func (h *Handlers) ListPipelines(w http.ResponseWriter, r *http.Request) {
	list, err := h.pipelines.List(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.sendJSON(w, http.StatusOK, pagination.Paginate(list, pagination.ParseParams(r)))
}

// CreatePipeline stores a new pipeline
// @Summary Create pipeline
// @Tags pipelines
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param pipeline body pipelines.CreateInput true "Pipeline definition"
// @Success 201 {object} models.Pipeline
// @Failure 400 {object} ErrorResponse
// @Router /pipelines [post]
func (h *Handlers) CreatePipeline(w http.ResponseWriter, r *http.Request) {
	var in pipelines.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		h.sendError(w, r, err)
		return
	}

	p, err := h.pipelines.Create(r.Context(), auth.UserID(r.Context()), &in)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.sendJSON(w, http.StatusCreated, p)
}

// GetPipeline returns one owned pipeline
// @Summary Get pipeline
// @Tags pipelines
// @Produce json
// @Security BearerAuth
// @Param id path string true "Pipeline ID"
// @Success 200 {object} models.Pipeline
// @Failure 404 {object} ErrorResponse
// @Router /pipelines/{id} [get]
func (h *Handlers) GetPipeline(w http.ResponseWriter, r *http.Request) {
	p, err := h.pipelines.Get(r.Context(), mux.Vars(r)["id"], auth.UserID(r.Context()))
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.sendJSON(w, http.StatusOK, p)
}

// UpdatePipeline applies a partial update
// @Summary Update pipeline
// @Tags pipelines
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Pipeline ID"
// @Param pipeline body pipelines.UpdateInput true "Fields to change"
// @Success 200 {object} models.Pipeline
// @Router /pipelines/{id} [patch]
func (h *Handlers) UpdatePipeline(w http.ResponseWriter, r *http.Request) {
	var in pipelines.UpdateInput
	if err := decodeJSON(r, &in); err != nil {
		h.sendError(w, r, err)
		return
	}

	p, err := h.pipelines.Update(r.Context(), mux.Vars(r)["id"], auth.UserID(r.Context()), &in)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.sendJSON(w, http.StatusOK, p)
}

// DeletePipeline removes a pipeline and its webhooks
// @Summary Delete pipeline
// @Tags pipelines
// @Security BearerAuth
// @Param id path string true "Pipeline ID"
// @Success 204
// @Router /pipelines/{id} [delete]
func (h *Handlers) DeletePipeline(w http.ResponseWriter, r *http.Request) {
	if err := h.pipelines.Delete(r.Context(), mux.Vars(r)["id"], auth.UserID(r.Context())); err != nil {
		h.sendError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ValidatePipeline reports configuration problems per node
// @Summary Validate pipeline
// @Tags pipelines
// @Produce json
// @Security BearerAuth
// @Param id path string true "Pipeline ID"
// @Success 200 {object} pipelines.Report
// @Router /pipelines/{id}/validate [post]
func (h *Handlers) ValidatePipeline(w http.ResponseWriter, r *http.Request) {
	report, err := h.pipelines.Validate(r.Context(), mux.Vars(r)["id"], auth.UserID(r.Context()))
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.sendJSON(w, http.StatusOK, report)
}

// RunPipeline fires a manual trigger
// @Summary Run pipeline
// @Tags pipelines
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Pipeline ID"
// @Param data body object false "Input data"
// @Success 200 {object} triggers.Result
// @Router /pipelines/{id}/run [post]
func (h *Handlers) RunPipeline(w http.ResponseWriter, r *http.Request) {
	var data any
	if err := decodeJSON(r, &data); err != nil {
		h.sendError(w, r, err)
		return
	}

	result, err := h.dispatcher.RunManual(r.Context(), mux.Vars(r)["id"], auth.UserID(r.Context()), data)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.sendJSON(w, http.StatusOK, result)
}

// GetSharedPipeline returns the public view of a published pipeline
// @Summary Shared pipeline
// @Tags shared
// @Produce json
// @Param token path string true "Share token"
// @Success 200 {object} pipelines.SharedPipeline
// @Failure 404 {object} ErrorResponse
// @Router /shared/{token} [get]
func (h *Handlers) GetSharedPipeline(w http.ResponseWriter, r *http.Request) {
	shared, err := h.pipelines.GetShared(r.Context(), mux.Vars(r)["token"])
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.sendJSON(w, http.StatusOK, shared)
}

// ClonePipeline copies a published pipeline into the caller's account
// @Summary Clone shared pipeline
// @Tags shared
// @Produce json
// @Security BearerAuth
// @Param token path string true "Share token"
// @Success 201 {object} models.Pipeline
// @Router /shared/{token}/clone [post]
func (h *Handlers) ClonePipeline(w http.ResponseWriter, r *http.Request) {
	p, err := h.pipelines.Clone(r.Context(), mux.Vars(r)["token"], auth.UserID(r.Context()))
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.sendJSON(w, http.StatusCreated, p)
}
