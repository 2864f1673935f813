package handlers

import (
	"net/http"

	"pipeline-hub/internal/auth"
)

// Register creates an account
// @Summary Register
// @Tags auth
// @Accept json
// @Produce json
// @Param credentials body auth.Credentials true "Email and password"
// @Success 201 {object} auth.Session
// @Failure 400 {object} ErrorResponse
// @Router /auth/register [post]
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var creds auth.Credentials
	if err := decodeJSON(r, &creds); err != nil {
		h.sendError(w, r, err)
		return
	}

	session, err := h.auth.Register(r.Context(), &creds)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.sendJSON(w, http.StatusCreated, session)
}

// Login exchanges credentials for a bearer token
// @Summary Login
// @Tags auth
// @Accept json
// @Produce json
// @Param credentials body auth.Credentials true "Email and password"
// @Success 200 {object} auth.Session
// @Failure 401 {object} ErrorResponse
// @Router /auth/login [post]
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var creds auth.Credentials
	if err := decodeJSON(r, &creds); err != nil {
		h.sendError(w, r, err)
		return
	}

	session, err := h.auth.Login(r.Context(), &creds)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.sendJSON(w, http.StatusOK, session)
}

// Me returns the signed-in user
// @Summary Current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.User
// @Router /auth/me [get]
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.Me(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.sendJSON(w, http.StatusOK, user)
}
