package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/lockbox/internal/auth/service"
	"github.com/aussiebroadwan/lockbox/pkg/authsdk"
	"github.com/aussiebroadwan/lockbox/pkg/httpx"
)

// SessionHandler exposes the caller's own session.
type SessionHandler struct {
	UserService *service.UserService
}

// HandleGet handles GET /v1/session
//
//	@Summary		Get the current session
//	@Description	Returns the session view projected from the bearer token.
//	@Tags			Session
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.SessionResponse	"Session view"
//	@Failure		401	{object}	authsdk.ErrorResponse	"Invalid or missing access token"
//	@Router			/v1/session [get].
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, sessionResponse(viewFrom(r)))
}

// HandleChangePassword handles POST /v1/session/password
//
//	@Summary		Change password
//	@Description	Replaces the caller's password after checking the current one.
//	@Tags			Session
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body	authsdk.ChangePasswordRequest	true	"Current and new password"
//	@Success		204		"Password changed"
//	@Failure		400		{object}	authsdk.ErrorResponse	"Invalid request or weak password"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Invalid token or wrong current password"
//	@Failure		500		{object}	authsdk.ErrorResponse	"Internal server error"
//	@Router			/v1/session/password [post].
func (h *SessionHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ChangePasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}

	err := h.UserService.ChangePassword(r.Context(), viewFrom(r).User.ID, req.CurrentPassword, req.NewPassword)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, service.ErrWrongPassword):
		authsdk.ErrInvalidCredentials.WriteError(w)
	case writeValidation(w, err):
	default:
		writeInternal(w, r, "failed to change password", err)
	}
}
