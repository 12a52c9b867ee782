package authsdk

import (
	"context"
	"net/http"
)

// GetSession returns the server's view of the authenticated session.
// Automatically refreshes the access token if needed.
func (s *Session) GetSession(ctx context.Context) (*SessionResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/v1/session", nil)
	return decodeAs[SessionResponse](resp, err, http.StatusOK)
}

// ChangePassword replaces the caller's password. Existing tokens stay
// valid until they expire.
func (s *Session) ChangePassword(ctx context.Context, current, next string) error {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/session/password", ChangePasswordRequest{
		CurrentPassword: current,
		NewPassword:     next,
	})
	return noContent(resp, err)
}
