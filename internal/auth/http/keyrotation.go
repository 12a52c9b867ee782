package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/aussiebroadwan/lockbox/internal/auth/domain"
	"github.com/aussiebroadwan/lockbox/internal/auth/service"
	"github.com/aussiebroadwan/lockbox/pkg/authsdk"
	"github.com/aussiebroadwan/lockbox/pkg/httpx"
	"github.com/aussiebroadwan/lockbox/pkg/jwtx"
)

// JWKSHandler publishes the public half of every session signing key,
// retired ones included, so sessions they signed keep verifying elsewhere.
//
//	@Summary		Get JWKS
//	@Description	Public keys of the session signing keys, active and retired, for verifying lockbox session tokens.
//	@Tags			Keys
//	@Produce		json
//	@Success		200	{object}	authsdk.JWKSResponse	"The JSON Web Key Set"
//	@Router			/.well-known/jwks.json [get].
func JWKSHandler(keys *jwtx.KeySet) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, authsdk.JWKSResponse(keys.PublicJWKS()))
	}
}

// KeyRotationHandler handles session signing key rotation. Every endpoint
// requires an admin session.
type KeyRotationHandler struct {
	KeyRotationService *service.KeyRotationService
}

// HandleRotate handles POST /v1/keys/rotate
//
//	@Summary		Rotate signing keys
//	@Description	Generate a new signing key and optionally retire the existing ones. Retired keys keep verifying the sessions they signed.
//	@Tags			Keys
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authsdk.RotateKeyRequest	true	"Rotation options"
//	@Success		200		{object}	authsdk.RotateKeyResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"Bad Request"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Unauthorized"
//	@Failure		403		{object}	authsdk.ErrorResponse	"Forbidden - requires the ADMIN role"
//	@Failure		500		{object}	authsdk.ErrorResponse	"Internal Server Error"
//	@Security		BearerAuth
//	@Router			/v1/keys/rotate [post]
func (h *KeyRotationHandler) HandleRotate(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RotateKeyRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := h.KeyRotationService.RotateKey(r.Context(), req.RetireExisting)
	if err != nil {
		writeInternal(w, r, "failed to rotate signing key", err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.RotateKeyResponse{
		NewKey:      domainToSDKKey(resp.NewKey),
		RetiredKeys: domainKeysToSDK(resp.RetiredKeys),
		ActiveKeys:  resp.ActiveKeys,
	})
}

// HandleListKeys handles GET /v1/keys
//
//	@Summary		List signing keys
//	@Description	List every signing key of this instance with its status.
//	@Tags			Keys
//	@Produce		json
//	@Success		200	{array}		authsdk.SigningKeyInfo
//	@Failure		401	{object}	authsdk.ErrorResponse	"Unauthorized"
//	@Failure		403	{object}	authsdk.ErrorResponse	"Forbidden - requires the ADMIN role"
//	@Security		BearerAuth
//	@Router			/v1/keys [get]
func (h *KeyRotationHandler) HandleListKeys(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, domainKeysToSDK(h.KeyRotationService.ListSigningKeys(r.Context())))
}

// HandleRetireKey handles POST /v1/keys/{kid}/retire
//
//	@Summary		Retire a signing key
//	@Description	Stop signing with a key without generating a new one. The last active key cannot be retired.
//	@Tags			Keys
//	@Produce		json
//	@Param			kid	path	string	true	"Key ID to retire"
//	@Success		204	"No Content - key retired successfully"
//	@Failure		401	{object}	authsdk.ErrorResponse	"Unauthorized"
//	@Failure		403	{object}	authsdk.ErrorResponse	"Forbidden - requires the ADMIN role"
//	@Failure		404	{object}	authsdk.ErrorResponse	"Key not found"
//	@Failure		409	{object}	authsdk.ErrorResponse	"Last active key"
//	@Failure		500	{object}	authsdk.ErrorResponse
//	@Security		BearerAuth
//	@Router			/v1/keys/{kid}/retire [post]
func (h *KeyRotationHandler) HandleRetireKey(w http.ResponseWriter, r *http.Request) {
	err := h.KeyRotationService.RetireKey(r.Context(), r.PathValue("kid"))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, jwtx.ErrUnknownKID):
		authsdk.NewAPIError(http.StatusNotFound, authsdk.ErrorCodeNotFound, "no signing key with that kid").WriteError(w)
	case errors.Is(err, jwtx.ErrLastSigner):
		authsdk.NewAPIError(http.StatusConflict, authsdk.ErrorCodeConflict, "cannot retire the last active signing key").WriteError(w)
	default:
		writeInternal(w, r, "failed to retire signing key", err)
	}
}

func domainToSDKKey(key domain.SigningKey) authsdk.SigningKeyInfo {
	var retiredAt *string
	if key.RetiredAt != nil {
		str := key.RetiredAt.Format(time.RFC3339)
		retiredAt = &str
	}

	return authsdk.SigningKeyInfo{
		Kid:       key.Kid,
		Algorithm: key.Algorithm,
		CreatedAt: key.CreatedAt.Format(time.RFC3339),
		RetiredAt: retiredAt,
	}
}

func domainKeysToSDK(keys []domain.SigningKey) []authsdk.SigningKeyInfo {
	sdkKeys := make([]authsdk.SigningKeyInfo, len(keys))
	for i, key := range keys {
		sdkKeys[i] = domainToSDKKey(key)
	}
	return sdkKeys
}
