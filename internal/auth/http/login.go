package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/aussiebroadwan/lockbox/internal/auth/login"
	"github.com/aussiebroadwan/lockbox/internal/auth/service"
	"github.com/aussiebroadwan/lockbox/internal/auth/session"
	"github.com/aussiebroadwan/lockbox/pkg/authsdk"
	"github.com/aussiebroadwan/lockbox/pkg/httpx"
)

// LoginHandler serves both round trips of the login and token refresh.
type LoginHandler struct {
	Flow   *login.Controller
	Issuer *service.SessionIssuer
	Now    func() time.Time
}

func (h *LoginHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// HandleLogin handles POST /v1/auth/login
//
//	@Summary		Log in with email and password
//	@Description	First round trip of the login. Accounts with TOTP enabled answer with status second_factor_required and a challenge_id instead of a token; finish those at /v1/auth/login/second-factor.
//	@Description	Unknown emails and wrong passwords are indistinguishable.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.LoginRequest	true	"Credentials"
//	@Success		200		{object}	authsdk.LoginResponse	"Token, or a second factor challenge"
//	@Failure		400		{object}	authsdk.ErrorResponse	"Malformed request"
//	@Failure		401		{object}	authsdk.ErrorResponse	"invalid_credentials or invalid_second_factor"
//	@Failure		429		{object}	authsdk.ErrorResponse	"Too many attempts"
//	@Failure		500		{object}	authsdk.ErrorResponse	"Internal server error"
//	@Router			/v1/auth/login [post].
func (h *LoginHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	f, err := h.Flow.SubmitCredentials(r.Context(), login.New(req.CallbackURL), service.Credentials{
		Email:    req.Email,
		Password: req.Password,
		Code:     req.Code,
	})
	if err != nil {
		writeInternal(w, r, "login flow refused credentials", err)
		return
	}
	h.writeFlow(w, f)
}

// HandleSecondFactor handles POST /v1/auth/login/second-factor
//
//	@Summary		Complete a login with a second factor
//	@Description	Second round trip of the login. A wrong code answers invalid_second_factor and the challenge may be retried; an expired, unknown or exhausted challenge answers invalid_credentials and the login must start over.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.SecondFactorRequest	true	"Challenge and code"
//	@Success		200		{object}	authsdk.LoginResponse		"Token"
//	@Failure		400		{object}	authsdk.ErrorResponse		"Malformed request"
//	@Failure		401		{object}	authsdk.ErrorResponse		"invalid_credentials or invalid_second_factor"
//	@Failure		429		{object}	authsdk.ErrorResponse		"Too many attempts"
//	@Failure		500		{object}	authsdk.ErrorResponse		"Internal server error"
//	@Router			/v1/auth/login/second-factor [post].
func (h *LoginHandler) HandleSecondFactor(w http.ResponseWriter, r *http.Request) {
	var req authsdk.SecondFactorRequest
	if !decodeBody(w, r, &req) {
		return
	}

	// the callback target was stored with the challenge
	pending := login.Flow{State: login.AwaitingSecondFactor, ChallengeID: req.ChallengeID}
	f, err := h.Flow.SubmitCode(r.Context(), pending, req.Code)
	if err != nil {
		writeInternal(w, r, "login flow refused code", err)
		return
	}
	h.writeFlow(w, f)
}

// HandleRefresh handles POST /v1/auth/refresh
//
//	@Summary		Refresh the session token
//	@Description	Re-reads the user and issues a new token with a fresh expiry. The current token must still be valid.
//	@Tags			Auth
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.LoginResponse	"New token"
//	@Failure		401	{object}	authsdk.ErrorResponse	"Invalid or missing access token"
//	@Failure		500	{object}	authsdk.ErrorResponse	"Internal server error"
//	@Router			/v1/auth/refresh [post].
func (h *LoginHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	issued, err := h.Issuer.Refresh(r.Context(), httpx.TokenFromContext(r.Context()))
	switch {
	case errors.Is(err, service.ErrBadCredentials):
		authsdk.ErrInvalidToken.WriteError(w)
		return
	case err != nil:
		writeInternal(w, r, "failed to refresh session", err)
		return
	}
	h.writeIssued(w, issued.Token, issued.ExpiresAt(), issued.RedirectTo)
}

func (h *LoginHandler) writeFlow(w http.ResponseWriter, f login.Flow) {
	switch f.Current() {
	case login.Complete:
		h.writeIssued(w, f.Token, f.ExpiresAt, f.RedirectTo)
	case login.AwaitingSecondFactor:
		if f.Failed() {
			loginError(f.Error).WriteError(w)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, authsdk.LoginResponse{
			Status:      authsdk.LoginStatusSecondFactorRequired,
			ChallengeID: f.ChallengeID,
		})
	default:
		loginError(f.Error).WriteError(w)
	}
}

func (h *LoginHandler) writeIssued(w http.ResponseWriter, token string, expiresAt time.Time, redirect string) {
	httpx.WriteJSON(w, http.StatusOK, authsdk.LoginResponse{
		Status:      authsdk.LoginStatusAuthenticated,
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   max(int(expiresAt.Sub(h.now())/time.Second), 0),
		RedirectTo:  redirect,
	})
}

func loginError(reason string) *authsdk.APIError {
	switch reason {
	case service.ErrInvalidCredentials.Error():
		return authsdk.ErrInvalidCredentials
	case service.ErrInvalidSecondFactor.Error():
		return authsdk.ErrInvalidSecondFactor
	default:
		return authsdk.ErrServerError
	}
}

// sessionResponse converts a view for the API.
func sessionResponse(v session.View) authsdk.SessionResponse {
	return authsdk.SessionResponse{
		User: authsdk.SessionUser{
			ID:               v.User.ID,
			Name:             v.User.Name,
			Email:            v.User.Email,
			Role:             v.User.Role.String(),
			TwoFactorEnabled: v.User.TwoFactorEnabled,
			OAuth:            v.User.OAuth,
		},
		PendingTwoFactor: v.PendingTwoFactor,
		Expires:          v.Expires,
	}
}
