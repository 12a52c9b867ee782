package httpx

import (
	"context"

	"github.com/aussiebroadwan/lockbox/pkg/jwtx"
)

type ctxKey string

const (
	CtxKeyUserID ctxKey = "user_id"
	CtxKeyClaims ctxKey = "claims"
	CtxKeyToken  ctxKey = "token" // raw bearer token, needed for refresh
)

// ClaimsFromContext returns the verified claims put there by AuthnMiddleware.
func ClaimsFromContext(ctx context.Context) (jwtx.Claims, bool) {
	c, ok := ctx.Value(CtxKeyClaims).(jwtx.Claims)
	return c, ok
}

// UserIDFromContext returns the token subject, or "" when unauthenticated.
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(CtxKeyUserID).(string)
	return id
}

// TokenFromContext returns the raw bearer token of the request.
func TokenFromContext(ctx context.Context) string {
	tok, _ := ctx.Value(CtxKeyToken).(string)
	return tok
}
