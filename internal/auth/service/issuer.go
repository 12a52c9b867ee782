package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/lockbox/internal/auth/domain"
	"github.com/aussiebroadwan/lockbox/internal/auth/session"
	"github.com/aussiebroadwan/lockbox/internal/auth/store"
	"github.com/aussiebroadwan/lockbox/pkg/cryptox"
	"github.com/aussiebroadwan/lockbox/pkg/jwtx"
	"github.com/aussiebroadwan/lockbox/pkg/otpx"
	"github.com/aussiebroadwan/lockbox/pkg/slogx"
)

// DefaultRedirect is where a completed login lands when the caller gave no
// usable callback target.
const DefaultRedirect = "/vault"

// SignInRequest proves an identity either with a password or with the id of
// a login challenge that already passed the password step.
type SignInRequest struct {
	Email          string
	Password       string
	ChallengeID    string // fingerprint of the challenge token
	Code           string
	RedirectTarget string
}

// SessionIssuer verifies sign-in proofs and mints signed session tokens.
type SessionIssuer struct {
	Store      store.Store
	KeyManager *jwtx.KeyManager
	TOTP       *otpx.Manager
	Replay     ReplayGuard // defaults to StoreReplayGuard
	Issuer     string
	TTL        time.Duration
	Now        func() time.Time
}

func (s *SessionIssuer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *SessionIssuer) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return jwtx.DefaultSessionTTL
}

func (s *SessionIssuer) replay() ReplayGuard {
	if s.Replay != nil {
		return s.Replay
	}
	return StoreReplayGuard{Store: s.Store}
}

// SignIn checks req and returns a signed session.
//
// A user with two-factor enabled who supplies no code gets a token with
// PendingTwoFactor set, which no capability gate accepts.
func (s *SessionIssuer) SignIn(ctx context.Context, req SignInRequest) (*session.Issued, error) {
	log := slogx.FromContext(ctx)

	user, err := s.Store.Users().GetUserByEmail(ctx, req.Email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrBadCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	viaChallenge := req.ChallengeID != ""
	if viaChallenge {
		if err := s.checkChallenge(ctx, user, req.ChallengeID); err != nil {
			return nil, err
		}
	} else if err := s.checkPassword(ctx, user, req.Password); err != nil {
		return nil, err
	}

	pending := false
	if user.TwoFactorEnabled() {
		code := strings.TrimSpace(req.Code)
		switch {
		case code == "" && viaChallenge:
			return nil, ErrBadSecondFactor
		case code == "":
			pending = true
		default:
			if err := s.checkSecondFactor(ctx, user, code); err != nil {
				return nil, err
			}
		}
	}

	issued, err := s.mint(ctx, jwtx.NewSessionClaims(user.ID, s.Issuer, s.ttl(), s.now()), user, &session.Authentication{PendingTwoFactor: pending})
	if err != nil {
		return nil, err
	}
	issued.RedirectTo = SafeRedirect(req.RedirectTarget)

	log.Info("session issued",
		slog.String("user_id", user.ID),
		slog.Bool("pending_two_factor", pending),
	)
	return issued, nil
}

// Refresh re-reads the user behind token and re-signs with a fresh expiry.
// The pending flag is carried over unchanged.
func (s *SessionIssuer) Refresh(ctx context.Context, token string) (*session.Issued, error) {
	claims, err := s.KeyManager.Verifier.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadCredentials, err)
	}

	user, err := s.Store.Users().GetUserByID(ctx, claims.Subject)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrBadCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	claims.Renew(s.ttl(), s.now())
	return s.mint(ctx, claims, user, nil)
}

// View verifies token and projects it.
func (s *SessionIssuer) View(token string) (session.View, error) {
	claims, err := s.KeyManager.Verifier.Verify(token)
	if err != nil {
		return session.View{}, fmt.Errorf("%w: %w", session.ErrUnauthenticated, err)
	}
	return session.Project(claims), nil
}

func (s *SessionIssuer) mint(ctx context.Context, prior jwtx.Claims, user domain.User, authn *session.Authentication) (*session.Issued, error) {
	oauth, err := s.Store.Accounts().HasLinkedAccount(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("load linked accounts: %w", err)
	}

	claims := session.Mint(prior, &session.Snapshot{User: user, OAuth: oauth}, authn)
	token, err := s.KeyManager.Sign(claims)
	if err != nil {
		return nil, fmt.Errorf("sign session: %w", err)
	}
	return &session.Issued{Token: token, Claims: claims}, nil
}

func (s *SessionIssuer) checkPassword(ctx context.Context, user domain.User, password string) error {
	if !user.HasPassword() || password == "" {
		return ErrBadCredentials
	}

	err := cryptox.VerifyPassword(password, user.PasswordHash)
	if errors.Is(err, cryptox.ErrPasswordMismatch) {
		return ErrBadCredentials
	}
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}

	if cryptox.NeedsRehash(user.PasswordHash) {
		s.upgradeHash(ctx, user.ID, password)
	}
	return nil
}

// upgradeHash replaces an imported digest. Failure only costs another
// attempt on the next login.
func (s *SessionIssuer) upgradeHash(ctx context.Context, userID, password string) {
	log := slogx.FromContext(ctx)

	hash, err := cryptox.HashPassword(password)
	if err == nil {
		err = s.Store.Users().UpdatePasswordHash(ctx, userID, hash)
	}
	if err != nil {
		log.Warn("failed to upgrade password hash", slog.String("user_id", userID), slog.Any("error", err))
		return
	}
	log.Info("upgraded password hash", slog.String("user_id", userID))
}

func (s *SessionIssuer) checkChallenge(ctx context.Context, user domain.User, challengeID string) error {
	ch, err := s.Store.LoginChallenges().GetChallenge(ctx, challengeID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrBadCredentials
	}
	if err != nil {
		return fmt.Errorf("load challenge: %w", err)
	}
	// the caller reserves the current attempt first, so it is already counted
	if ch.UserID != user.ID || ch.Attempts > domain.MaxChallengeAttempts || ch.Expired(s.now()) {
		return ErrBadCredentials
	}
	return nil
}

// checkSecondFactor accepts a current TOTP code or an unused backup code.
func (s *SessionIssuer) checkSecondFactor(ctx context.Context, user domain.User, code string) error {
	if user.MFASecret == nil {
		return ErrBadSecondFactor
	}

	if otpx.IsCode(code, s.TOTP.Digits) {
		ok, err := consumeTOTP(ctx, s.TOTP, s.replay(), user.ID, *user.MFASecret, code, s.now())
		if err != nil {
			return err
		}
		if !ok {
			return ErrBadSecondFactor
		}
		return nil
	}

	ok, err := s.Store.BackupCodes().ConsumeBackupCode(ctx, user.ID, cryptox.Fingerprint(cryptox.NormalizeBackupCode(code)))
	if err != nil {
		return fmt.Errorf("consume backup code: %w", err)
	}
	if !ok {
		return ErrBadSecondFactor
	}

	slogx.FromContext(ctx).Info("backup code redeemed", slog.String("user_id", user.ID))
	return nil
}

// SafeRedirect keeps only same-origin absolute paths.
func SafeRedirect(target string) string {
	target = strings.TrimSpace(target)
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return DefaultRedirect
	}
	return target
}
