package authsdk

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// SDKClient is a client for the lockbox API.
// It provides access to unauthenticated operations and can create authenticated Sessions.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSDKClient creates a new lockbox API client.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Login runs the password step. Accounts with TOTP enabled answer with a
// *SecondFactorRequiredError carrying the challenge id; finish those with
// CompleteSecondFactor. Wrong credentials are ErrInvalidCredentials.
func (c *SDKClient) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/auth/login", req, nil)
	if err != nil {
		return nil, err
	}

	var out LoginResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return c.sessionFrom(out)
}

// CompleteSecondFactor finishes a login with a TOTP or backup code. A wrong
// code is ErrInvalidSecondFactor and the challenge may be retried; an
// expired or exhausted challenge is ErrInvalidCredentials.
func (c *SDKClient) CompleteSecondFactor(ctx context.Context, challengeID, code string) (*Session, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/auth/login/second-factor",
		SecondFactorRequest{ChallengeID: challengeID, Code: code}, nil)
	if err != nil {
		return nil, err
	}

	var out LoginResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return c.sessionFrom(out)
}

// NewSessionFromToken wraps a token obtained elsewhere. The session will
// still refresh it before it expires.
func (c *SDKClient) NewSessionFromToken(accessToken string, expiresIn int) *Session {
	return newSession(c, LoginResponse{
		Status:      LoginStatusAuthenticated,
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   expiresIn,
	})
}

func (c *SDKClient) sessionFrom(out LoginResponse) (*Session, error) {
	switch out.Status {
	case LoginStatusAuthenticated:
		if out.AccessToken == "" {
			return nil, fmt.Errorf("login response without access token")
		}
		return newSession(c, out), nil
	case LoginStatusSecondFactorRequired:
		return nil, &SecondFactorRequiredError{ChallengeID: out.ChallengeID}
	default:
		return nil, fmt.Errorf("unexpected login status %q", out.Status)
	}
}
