package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/lockbox/internal/auth/domain"
	"github.com/aussiebroadwan/lockbox/internal/auth/store"
	"github.com/aussiebroadwan/lockbox/pkg/cryptox"
	"github.com/aussiebroadwan/lockbox/pkg/otpx"
	"github.com/aussiebroadwan/lockbox/pkg/slogx"
)

const (
	backupCodeCount = 10
	qrCodeSize      = otpx.DefaultImageSize
)

var (
	ErrInvalidTOTPCode   = errors.New("invalid TOTP code")
	ErrMFANotEnabled     = errors.New("MFA not enabled for this user")
	ErrMFAAlreadyEnabled = errors.New("MFA already enabled for this user")
	ErrMFANotEnrolled    = errors.New("MFA not enrolled")
)

type MFAService struct {
	Store  store.Store
	TOTP   *otpx.Manager
	Replay ReplayGuard // defaults to StoreReplayGuard
	Now    func() time.Time
}

func (s *MFAService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *MFAService) replay() ReplayGuard {
	if s.Replay != nil {
		return s.Replay
	}
	return StoreReplayGuard{Store: s.Store}
}

// Enroll generates a TOTP secret for the user and returns it with the
// provisioning URI and its QR code. MFA is not enabled until Confirm.
// Enrolling again before confirming replaces the pending secret.
func (s *MFAService) Enroll(ctx context.Context, userID string) (domain.TOTPEnrollment, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return domain.TOTPEnrollment{}, fmt.Errorf("failed to load user: %w", err)
	}
	if user.TwoFactorEnabled() {
		return domain.TOTPEnrollment{}, ErrMFAAlreadyEnabled
	}

	secret, err := s.TOTP.GenerateSecret(user.Email)
	if err != nil {
		return domain.TOTPEnrollment{}, err
	}
	uri, err := s.TOTP.ProvisioningURI(secret)
	if err != nil {
		return domain.TOTPEnrollment{}, err
	}
	png, err := otpx.RenderPNG(uri, qrCodeSize)
	if err != nil {
		return domain.TOTPEnrollment{}, err
	}

	if err := s.Store.Users().UpdateMFASecret(ctx, userID, secret.Raw); err != nil {
		return domain.TOTPEnrollment{}, fmt.Errorf("failed to store MFA secret: %w", err)
	}

	slogx.FromContext(ctx).Info("totp enrollment started", slog.String("user_id", userID))
	return domain.TOTPEnrollment{
		Secret:  secret.Raw,
		URI:     uri,
		QRCode:  otpx.DataURL(png),
		Issuer:  secret.Issuer,
		Account: secret.AccountLabel,
	}, nil
}

// Confirm checks a code against the pending secret, enables MFA and returns
// freshly issued backup codes. Only their fingerprints are kept.
func (s *MFAService) Confirm(ctx context.Context, userID string, code string) ([]string, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user.TwoFactorEnabled() {
		return nil, ErrMFAAlreadyEnabled
	}
	if user.MFASecret == nil || *user.MFASecret == "" {
		return nil, ErrMFANotEnrolled
	}

	if err := s.consume(ctx, userID, *user.MFASecret, code); err != nil {
		return nil, err
	}

	backupCodes, err := generateBackupCodes()
	if err != nil {
		return nil, err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.BackupCodes().DeleteAllBackupCodes(ctx, userID); err != nil {
			return fmt.Errorf("failed to clear backup codes: %w", err)
		}
		for _, bc := range backupCodes {
			if err := tx.BackupCodes().CreateBackupCode(ctx, userID, cryptox.Fingerprint(bc)); err != nil {
				return fmt.Errorf("failed to store backup code: %w", err)
			}
		}
		if err := tx.Users().EnableMFA(ctx, userID); err != nil {
			return fmt.Errorf("failed to enable MFA: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slogx.FromContext(ctx).Info("totp enabled", slog.String("user_id", userID))
	return backupCodes, nil
}

// RegenerateBackupCodes replaces every backup code after verifying a TOTP code.
func (s *MFAService) RegenerateBackupCodes(ctx context.Context, userID string, code string) ([]string, error) {
	if err := s.verifyEnabled(ctx, userID, code); err != nil {
		return nil, err
	}

	backupCodes, err := generateBackupCodes()
	if err != nil {
		return nil, err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.BackupCodes().DeleteAllBackupCodes(ctx, userID); err != nil {
			return fmt.Errorf("failed to delete old backup codes: %w", err)
		}
		for _, bc := range backupCodes {
			if err := tx.BackupCodes().CreateBackupCode(ctx, userID, cryptox.Fingerprint(bc)); err != nil {
				return fmt.Errorf("failed to store backup code: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return backupCodes, nil
}

// BackupCodesRemaining counts the unused backup codes.
func (s *MFAService) BackupCodesRemaining(ctx context.Context, userID string) (int, error) {
	return s.Store.BackupCodes().CountUserBackupCodes(ctx, userID)
}

// Remove disables MFA after verifying a TOTP code and drops the backup codes.
func (s *MFAService) Remove(ctx context.Context, userID string, code string) error {
	if err := s.verifyEnabled(ctx, userID, code); err != nil {
		return err
	}

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().DisableMFA(ctx, userID); err != nil {
			return fmt.Errorf("failed to disable MFA: %w", err)
		}
		if err := tx.BackupCodes().DeleteAllBackupCodes(ctx, userID); err != nil {
			return fmt.Errorf("failed to delete backup codes: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("totp disabled", slog.String("user_id", userID))
	return nil
}

func (s *MFAService) verifyEnabled(ctx context.Context, userID, code string) error {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if !user.TwoFactorEnabled() || user.MFASecret == nil {
		return ErrMFANotEnabled
	}
	return s.consume(ctx, userID, *user.MFASecret, code)
}

func (s *MFAService) consume(ctx context.Context, userID, secret, code string) error {
	ok, err := consumeTOTP(ctx, s.TOTP, s.replay(), userID, secret, strings.TrimSpace(code), s.now())
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidTOTPCode
	}
	return nil
}

func generateBackupCodes() ([]string, error) {
	codes := make([]string, backupCodeCount)
	for i := range backupCodeCount {
		code, err := cryptox.NewBackupCode()
		if err != nil {
			return nil, fmt.Errorf("failed to generate backup code: %w", err)
		}
		codes[i] = code
	}
	return codes, nil
}
