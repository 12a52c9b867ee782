package authsdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// refreshBuffer renews the access token this long before it expires.
const refreshBuffer = 30 * time.Second

// ErrSessionExpired is returned once the access token has lapsed without a
// refresh. The user has to log in again.
var ErrSessionExpired = errors.New("authsdk: session expired")

// Session represents an authenticated session with automatic token refresh.
// All Session methods automatically handle token expiration and refresh when needed.
type Session struct {
	client *SDKClient

	mu          sync.RWMutex
	accessToken string
	redirectTo  string
	refreshAt   time.Time
	expiresAt   time.Time

	now func() time.Time
}

// newSession creates a new authenticated session from a login response.
func newSession(client *SDKClient, out LoginResponse) *Session {
	s := &Session{client: client, now: time.Now, redirectTo: out.RedirectTo}
	s.store(out)
	return s
}

// store must be called with mu held for writing, or before s is shared.
func (s *Session) store(out LoginResponse) {
	now := s.now()
	s.accessToken = out.AccessToken
	s.expiresAt = now.Add(time.Duration(out.ExpiresIn) * time.Second)
	s.refreshAt = s.expiresAt.Add(-refreshBuffer)
}

// getValidToken returns a valid access token, refreshing it when it is
// within the refresh buffer of its expiry.
func (s *Session) getValidToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	if s.now().Before(s.refreshAt) {
		token := s.accessToken
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock (another goroutine may have refreshed)
	if s.now().Before(s.refreshAt) {
		return s.accessToken, nil
	}
	if !s.now().Before(s.expiresAt) {
		return "", ErrSessionExpired
	}

	out, err := s.client.refresh(ctx, s.accessToken)
	if err != nil {
		return "", fmt.Errorf("failed to refresh token: %w", err)
	}
	s.store(out)
	return s.accessToken, nil
}

// Refresh renews the access token now, whatever its remaining lifetime.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	out, err := s.client.refresh(ctx, s.accessToken)
	if err != nil {
		return err
	}
	s.store(out)
	return nil
}

func (c *SDKClient) refresh(ctx context.Context, token string) (LoginResponse, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/auth/refresh", nil, map[string]string{
		"Authorization": "Bearer " + token,
	})
	if err != nil {
		return LoginResponse{}, err
	}

	var out LoginResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return LoginResponse{}, err
	}
	if out.AccessToken == "" {
		return LoginResponse{}, fmt.Errorf("refresh response without access token")
	}
	return out, nil
}

// AccessToken returns the current access token without checking expiration.
// For most use cases, prefer using the Session methods which handle refresh automatically.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// ExpiresAt is when the current access token lapses.
func (s *Session) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}

// RedirectTo is where the login asked the client to land.
func (s *Session) RedirectTo() string {
	return s.redirectTo
}
