package authsdk

import (
	"context"
	"net/http"
	"net/url"
)

// The key endpoints require an ADMIN session. Anyone else gets
// ErrAccessDenied.

// RotateKey adds a signing key and, with RetireExisting, stops signing
// with every older one.
func (s *Session) RotateKey(ctx context.Context, req RotateKeyRequest) (*RotateKeyResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/keys/rotate", req)
	return decodeAs[RotateKeyResponse](resp, err, http.StatusOK)
}

// ListKeys returns every key the server knows, active and retired, oldest
// first.
func (s *Session) ListKeys(ctx context.Context) ([]SigningKeyInfo, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/v1/keys", nil)
	keys, err := decodeAs[[]SigningKeyInfo](resp, err, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return *keys, nil
}

// RetireKey stops signing with kid. Tokens it already signed keep verifying
// until they expire. The last active key cannot be retired.
func (s *Session) RetireKey(ctx context.Context, kid string) error {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/keys/"+url.PathEscape(kid)+"/retire", nil)
	return noContent(resp, err)
}
