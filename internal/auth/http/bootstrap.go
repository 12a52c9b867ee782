package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/lockbox/internal/auth/domain"
	"github.com/aussiebroadwan/lockbox/internal/auth/service"
	"github.com/aussiebroadwan/lockbox/pkg/authsdk"
	"github.com/aussiebroadwan/lockbox/pkg/httpx"
	"github.com/aussiebroadwan/lockbox/pkg/slogx"
)

type BootstrapHandler struct {
	BootstrapService *service.BootstrapService
}

// ServeHTTP handles the bootstrap endpoint for initial system setup.
//
//	@Summary		Bootstrap the vault
//	@Description	Creates the first administrator of an empty vault. Only available when a bootstrap token is configured, and only once. A password is generated and returned when none is given.
//	@Tags			Bootstrap
//	@Accept			json
//	@Produce		json
//	@Param			X-Bootstrap-Token	header		string						true	"Bootstrap token for authorization"
//	@Param			request				body		authsdk.BootstrapRequest	true	"Initial administrator"
//	@Success		201					{object}	authsdk.BootstrapResponse	"Created administrator"
//	@Failure		400					{object}	authsdk.ErrorResponse		"Invalid request body or validation failed"
//	@Failure		401					{object}	authsdk.ErrorResponse		"Missing or invalid bootstrap token, or system already bootstrapped"
//	@Failure		404					{object}	authsdk.ErrorResponse		"Bootstrap not enabled (no token configured)"
//	@Failure		500					{object}	authsdk.ErrorResponse		"Failed to create admin user"
//	@Router			/v1/bootstrap [post].
func (h *BootstrapHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	l := slogx.FromContext(r.Context())
	l.Info("Starting to bootstrap")

	// 1. Check if enabled
	if h.BootstrapService.Token == "" {
		authsdk.NewAPIError(http.StatusNotFound, authsdk.ErrorCodeNotFound, "Bootstrap endpoint is not enabled").WriteError(w)
		return
	}

	// 2. Require bootstrap token header
	token := r.Header.Get("X-Bootstrap-Token")
	if token == "" {
		authsdk.NewAPIError(http.StatusUnauthorized, authsdk.ErrorCodeAccessDenied, "Bootstrap token is required in X-Bootstrap-Token header").WriteError(w)
		return
	}

	// 3. Parse request body and validate
	var req authsdk.BootstrapRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if errs := req.Validate(); errs != nil {
		authsdk.NewValidationError(errs).WriteError(w)
		return
	}

	// 4. Perform bootstrap
	result, err := h.BootstrapService.Bootstrap(r.Context(), token, domain.BootstrapData{
		AdminEmail:    strings.TrimSpace(req.AdminEmail),
		AdminName:     strings.TrimSpace(req.AdminName),
		AdminPassword: req.AdminPassword,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBootstrapAlready):
			authsdk.NewAPIError(http.StatusUnauthorized, authsdk.ErrorCodeAccessDenied, "System has already been bootstrapped").WriteError(w)
		case errors.Is(err, service.ErrBootstrapUnauthorized):
			authsdk.NewAPIError(http.StatusUnauthorized, authsdk.ErrorCodeAccessDenied, "Invalid bootstrap token").WriteError(w)
		case writeValidation(w, err):
		case errors.Is(err, service.ErrBootstrapFailedToCreateAdmin):
			writeInternal(w, r, "failed to create admin user", err)
		default:
			writeInternal(w, r, "bootstrap failed", err)
		}
		return
	}

	// 5. Respond with the admin; a generated password is only shown once
	httpx.WriteJSON(w, http.StatusCreated, authsdk.BootstrapResponse{
		AdminUserID:   result.UserID,
		AdminEmail:    result.Email,
		AdminPassword: result.Password,
	})
}
