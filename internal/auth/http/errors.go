package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/lockbox/internal/auth/domain"
	"github.com/aussiebroadwan/lockbox/internal/auth/session"
	"github.com/aussiebroadwan/lockbox/pkg/authsdk"
	"github.com/aussiebroadwan/lockbox/pkg/httpx"
	"github.com/aussiebroadwan/lockbox/pkg/jwtx"
	"github.com/aussiebroadwan/lockbox/pkg/slogx"
	"github.com/aussiebroadwan/lockbox/pkg/validx"
)

var errAdminRequired = errors.New("admin role required")

// fullSession refuses tokens whose login is still waiting for a second
// factor.
func fullSession(c jwtx.Claims) error {
	return session.Project(c).Require()
}

func adminSession(c jwtx.Claims) error {
	if !session.Project(c).HasRole(domain.RoleAdmin) {
		return errAdminRequired
	}
	return nil
}

// viewFrom projects the claims AuthnMiddleware stored in the request.
func viewFrom(r *http.Request) session.View {
	c, ok := httpx.ClaimsFromContext(r.Context())
	if !ok {
		return session.View{}
	}
	return session.Project(c)
}

// decodeBody reads a JSON body, answering 400 itself on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := httpx.DecodeJSON(w, r, v); err != nil {
		slogx.FromContext(r.Context()).Warn("failed to parse request", "err", err)
		authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest, "request body must be a single valid JSON object").WriteError(w)
		return false
	}
	return true
}

// writeValidation answers 400 with field details when err is a validation
// failure and reports whether it did.
func writeValidation(w http.ResponseWriter, err error) bool {
	var fe validx.FieldErrors
	if !errors.As(err, &fe) {
		return false
	}
	authsdk.NewValidationError(fe).WriteError(w)
	return true
}

// writeInternal logs err and answers with a generic server_error.
func writeInternal(w http.ResponseWriter, r *http.Request, msg string, err error) {
	slogx.FromContext(r.Context()).Error(msg, "err", err)
	authsdk.ErrServerError.WriteError(w)
}
