package httpx

import (
	"net/http"

	"github.com/aussiebroadwan/lockbox/pkg/jwtx"
)

// ClaimsCheck decides whether verified claims may reach a handler. A non-nil
// error refuses the request.
type ClaimsCheck func(jwtx.Claims) error

// RequireClaims runs check against the claims injected by AuthnMiddleware.
// Requests without claims, or whose claims fail check, get a 401 so clients
// know to (re)authenticate rather than retry.
func RequireClaims(check ClaimsCheck) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeBearerError(w, "missing bearer token")
				return
			}
			if err := check(claims); err != nil {
				writeBearerError(w, err.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireForbidden is RequireClaims for checks that concern permissions
// rather than authentication: failures answer 403.
func RequireForbidden(check ClaimsCheck) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeBearerError(w, "missing bearer token")
				return
			}
			if err := check(claims); err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer error="insufficient_scope"`)
				WriteJSON(w, http.StatusForbidden, map[string]string{
					"error":             "access_denied",
					"error_description": err.Error(),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
