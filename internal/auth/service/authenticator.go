package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/lockbox/internal/auth/domain"
	"github.com/aussiebroadwan/lockbox/internal/auth/session"
	"github.com/aussiebroadwan/lockbox/internal/auth/store"
	"github.com/aussiebroadwan/lockbox/pkg/cryptox"
	"github.com/aussiebroadwan/lockbox/pkg/slogx"
	"github.com/aussiebroadwan/lockbox/pkg/validx"
)

// SignInIssuer is the part of SessionIssuer the Authenticator needs.
type SignInIssuer interface {
	SignIn(ctx context.Context, req SignInRequest) (*session.Issued, error)
}

// Authenticator decides the outcome of a login submission. It never returns
// an error: every failure is folded into an Invalid outcome and internal
// ones are logged.
type Authenticator struct {
	Store  store.Store
	Issuer SignInIssuer
	Now    func() time.Time
}

func (a *Authenticator) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// Authenticate runs the password step and, when the user has no second
// factor or supplied a code, the sign-in.
func (a *Authenticator) Authenticate(ctx context.Context, creds Credentials, callbackTarget string) Outcome {
	log := slogx.FromContext(ctx)
	creds.Code = strings.TrimSpace(creds.Code)

	if err := validx.Struct(creds); err != nil {
		return Invalid(ErrInvalidCredentials)
	}

	user, err := a.Store.Users().GetUserByEmail(ctx, creds.Email)
	if errors.Is(err, store.ErrNotFound) {
		burnPasswordCheck(creds.Password)
		return Invalid(ErrInvalidCredentials)
	}
	if err != nil {
		log.Error("failed to look up user", slog.Any("error", err))
		return Invalid(ErrInternal)
	}

	if !user.HasPassword() {
		burnPasswordCheck(creds.Password)
		return Invalid(ErrInvalidCredentials)
	}

	err = cryptox.VerifyPassword(creds.Password, user.PasswordHash)
	if errors.Is(err, cryptox.ErrPasswordMismatch) {
		return Invalid(ErrInvalidCredentials)
	}
	if err != nil {
		log.Error("failed to verify password", slog.String("user_id", user.ID), slog.Any("error", err))
		return Invalid(ErrInternal)
	}

	if user.TwoFactorEnabled() && creds.Code == "" {
		token, err := a.openChallenge(ctx, user, callbackTarget)
		if err != nil {
			log.Error("failed to open login challenge", slog.String("user_id", user.ID), slog.Any("error", err))
			return Invalid(ErrInternal)
		}
		return SecondFactorRequired(token)
	}

	return a.signIn(ctx, SignInRequest{
		Email:          creds.Email,
		Password:       creds.Password,
		Code:           creds.Code,
		RedirectTarget: callbackTarget,
	})
}

// Resume completes a login that stopped at SecondFactorRequired. The
// challenge token stands in for the password.
func (a *Authenticator) Resume(ctx context.Context, challengeToken, code, callbackTarget string) Outcome {
	log := slogx.FromContext(ctx)

	if challengeToken == "" {
		return Invalid(ErrInvalidCredentials)
	}
	id := cryptox.Fingerprint(challengeToken)
	challenges := a.Store.LoginChallenges()

	// counted before the code is checked
	ch, err := challenges.ReserveAttempt(ctx, id, domain.MaxChallengeAttempts)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return Invalid(ErrInvalidCredentials)
	case errors.Is(err, store.ErrExhausted):
		if err := challenges.DeleteChallenge(ctx, id); err != nil {
			log.Warn("failed to delete exhausted challenge", slog.Any("error", err))
		}
		log.Warn("login challenge exhausted")
		return Invalid(ErrInvalidCredentials)
	case err != nil:
		log.Error("failed to reserve challenge attempt", slog.Any("error", err))
		return Invalid(ErrInternal)
	}

	if callbackTarget == "" {
		callbackTarget = ch.RedirectTarget
	}

	outcome := a.signIn(ctx, SignInRequest{
		Email:          ch.Email,
		ChallengeID:    id,
		Code:           code,
		RedirectTarget: callbackTarget,
	})

	switch {
	case outcome.Kind == OutcomeAuthenticated:
		if err := challenges.DeleteChallenge(ctx, id); err != nil {
			log.Warn("failed to delete completed challenge", slog.Any("error", err))
		}
	case errors.Is(outcome.Reason, ErrInvalidSecondFactor):
		log.Info("second factor rejected",
			slog.String("user_id", ch.UserID),
			slog.Int("attempts", ch.Attempts),
		)
	case errors.Is(outcome.Reason, ErrInvalidCredentials):
		if err := challenges.DeleteChallenge(ctx, id); err != nil {
			log.Warn("failed to delete rejected challenge", slog.Any("error", err))
		}
	}
	return outcome
}

func (a *Authenticator) signIn(ctx context.Context, req SignInRequest) Outcome {
	issued, err := a.Issuer.SignIn(ctx, req)
	switch {
	case err == nil && issued.PendingTwoFactor():
		slogx.FromContext(ctx).Error("sign-in returned a session without its second factor")
		return Invalid(ErrInternal)
	case err == nil:
		return Authenticated(identityOf(*issued), issued)
	case errors.Is(err, ErrBadSecondFactor):
		return Invalid(ErrInvalidSecondFactor)
	case errors.Is(err, ErrBadCredentials):
		return Invalid(ErrInvalidCredentials)
	default:
		slogx.FromContext(ctx).Error("sign-in failed", slog.Any("error", err))
		return Invalid(ErrInternal)
	}
}

// openChallenge records a pending login and returns the opaque token the
// client presents on the second round trip. Only its fingerprint is stored.
func (a *Authenticator) openChallenge(ctx context.Context, user domain.User, redirect string) (string, error) {
	token, err := cryptox.RandomToken(cryptox.ChallengeBytes)
	if err != nil {
		return "", err
	}

	now := a.now()
	err = a.Store.LoginChallenges().CreateChallenge(ctx, domain.LoginChallenge{
		ID:             cryptox.Fingerprint(token),
		UserID:         user.ID,
		Email:          user.Email,
		RedirectTarget: redirect,
		CreatedAt:      now,
		ExpiresAt:      now.Add(domain.LoginChallengeTTL),
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

var (
	decoyOnce sync.Once
	decoyHash string
)

// burnPasswordCheck spends the same hashing work as a real verification so
// unknown emails answer as slowly as wrong passwords.
func burnPasswordCheck(password string) {
	decoyOnce.Do(func() {
		decoyHash, _ = cryptox.HashPassword("lockbox-decoy")
	})
	if decoyHash != "" {
		_ = cryptox.VerifyPassword(password, decoyHash)
	}
}
