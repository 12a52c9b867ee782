package authsdk

import (
	"context"
	"net/http"
)

// CreateUser creates a password account. Requires an ADMIN session.
func (s *Session) CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/users", req)
	return decodeAs[UserResponse](resp, err, http.StatusCreated)
}

// ImportUser brings over an account with its existing password digest and
// provider links. Requires an ADMIN session.
func (s *Session) ImportUser(ctx context.Context, req ImportUserRequest) (*UserResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/users/import", req)
	return decodeAs[UserResponse](resp, err, http.StatusCreated)
}
