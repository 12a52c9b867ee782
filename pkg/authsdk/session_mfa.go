package authsdk

import (
	"context"
	"net/http"
)

// EnrollTOTP starts TOTP enrollment for the authenticated user. The
// returned secret only becomes active after VerifyTOTP.
func (s *Session) EnrollTOTP(ctx context.Context) (*TOTPEnrollResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/mfa/totp/enroll", nil)
	return decodeAs[TOTPEnrollResponse](resp, err, http.StatusOK)
}

// VerifyTOTP confirms enrollment with a code from the authenticator app and
// returns the backup codes. They are shown only once.
func (s *Session) VerifyTOTP(ctx context.Context, code string) (*BackupCodesResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/mfa/totp/verify", TOTPVerifyRequest{Code: code})
	return decodeAs[BackupCodesResponse](resp, err, http.StatusOK)
}

// RegenerateBackupCodes replaces all backup codes. Requires a valid TOTP code.
func (s *Session) RegenerateBackupCodes(ctx context.Context, totpCode string) (*BackupCodesResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/mfa/backup-codes", BackupCodesRegenerateRequest{Code: totpCode})
	return decodeAs[BackupCodesResponse](resp, err, http.StatusOK)
}

// BackupCodesRemaining reports how many unused backup codes are left.
func (s *Session) BackupCodesRemaining(ctx context.Context) (int, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/v1/mfa/backup-codes", nil)
	status, err := decodeAs[BackupCodesStatusResponse](resp, err, http.StatusOK)
	if err != nil {
		return 0, err
	}
	return status.Remaining, nil
}

// RemoveMFA turns TOTP off. Requires a valid TOTP code.
func (s *Session) RemoveMFA(ctx context.Context, totpCode string) error {
	resp, err := s.doAuthRequest(ctx, http.MethodDelete, "/v1/mfa/totp", TOTPRemoveRequest{Code: totpCode})
	return noContent(resp, err)
}
