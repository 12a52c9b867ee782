package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/lockbox/internal/auth/service"
	"github.com/aussiebroadwan/lockbox/pkg/authsdk"
	"github.com/aussiebroadwan/lockbox/pkg/httpx"
	"github.com/aussiebroadwan/lockbox/pkg/slogx"
)

var (
	errMFAAlreadyEnabled = authsdk.NewAPIError(http.StatusBadRequest, "mfa_already_enabled", "MFA is already enabled for this user")
	errMFANotEnabled     = authsdk.NewAPIError(http.StatusBadRequest, "mfa_not_enabled", "MFA is not enabled for this user")
	errMFANotEnrolled    = authsdk.NewAPIError(http.StatusBadRequest, "mfa_not_enrolled", "Enroll in TOTP before verifying a code")
)

// MFAHandler handles all MFA-related endpoints.
type MFAHandler struct {
	MFAService *service.MFAService
}

// HandleEnroll handles POST /v1/mfa/totp/enroll
//
//	@Summary		Enroll in TOTP MFA
//	@Description	Generates a TOTP secret for the authenticated user and returns it with its otpauth URI and a QR code.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.TOTPEnrollResponse	"TOTP secret and QR code"
//	@Failure		400	{object}	authsdk.ErrorResponse		"MFA already enabled"
//	@Failure		401	{object}	authsdk.ErrorResponse		"Invalid or missing access token"
//	@Failure		500	{object}	authsdk.ErrorResponse		"Internal server error"
//	@Router			/v1/mfa/totp/enroll [post].
func (h *MFAHandler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	userID := viewFrom(r).User.ID

	enrollment, err := h.MFAService.Enroll(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, "failed to enroll TOTP", err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.TOTPEnrollResponse{
		Secret:  enrollment.Secret,
		URI:     enrollment.URI,
		QRCode:  enrollment.QRCode,
		Issuer:  enrollment.Issuer,
		Account: enrollment.Account,
	})
}

// HandleVerify handles POST /v1/mfa/totp/verify
//
//	@Summary		Verify TOTP code and enable MFA
//	@Description	Verifies a TOTP code against the pending secret and enables MFA. Returns backup codes.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.TOTPVerifyRequest	true	"TOTP code"
//	@Success		200		{object}	authsdk.BackupCodesResponse	"Backup codes (shown once)"
//	@Failure		400		{object}	authsdk.ErrorResponse		"Invalid TOTP code or request"
//	@Failure		401		{object}	authsdk.ErrorResponse		"Invalid or missing access token"
//	@Failure		500		{object}	authsdk.ErrorResponse		"Internal server error"
//	@Router			/v1/mfa/totp/verify [post].
func (h *MFAHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req authsdk.TOTPVerifyRequest
	if !decodeBody(w, r, &req) {
		return
	}

	codes, err := h.MFAService.Confirm(r.Context(), viewFrom(r).User.ID, req.Code)
	if err != nil {
		h.writeError(w, r, "failed to verify TOTP", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.BackupCodesResponse{Codes: codes})
}

// HandleRegenerateBackupCodes handles POST /v1/mfa/backup-codes
//
//	@Summary		Regenerate backup codes
//	@Description	Replaces every backup code. Requires a TOTP code.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.BackupCodesRegenerateRequest	true	"TOTP code for verification"
//	@Success		200		{object}	authsdk.BackupCodesResponse				"New backup codes (shown once)"
//	@Failure		400		{object}	authsdk.ErrorResponse					"Invalid TOTP code or request"
//	@Failure		401		{object}	authsdk.ErrorResponse					"Invalid or missing access token"
//	@Failure		500		{object}	authsdk.ErrorResponse					"Internal server error"
//	@Router			/v1/mfa/backup-codes [post].
func (h *MFAHandler) HandleRegenerateBackupCodes(w http.ResponseWriter, r *http.Request) {
	var req authsdk.BackupCodesRegenerateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	codes, err := h.MFAService.RegenerateBackupCodes(r.Context(), viewFrom(r).User.ID, req.Code)
	if err != nil {
		h.writeError(w, r, "failed to regenerate backup codes", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.BackupCodesResponse{Codes: codes})
}

// HandleBackupCodesRemaining handles GET /v1/mfa/backup-codes
//
//	@Summary		Count unused backup codes
//	@Tags			MFA
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.BackupCodesStatusResponse	"Unused backup codes"
//	@Failure		401	{object}	authsdk.ErrorResponse				"Invalid or missing access token"
//	@Router			/v1/mfa/backup-codes [get].
func (h *MFAHandler) HandleBackupCodesRemaining(w http.ResponseWriter, r *http.Request) {
	n, err := h.MFAService.BackupCodesRemaining(r.Context(), viewFrom(r).User.ID)
	if err != nil {
		writeInternal(w, r, "failed to count backup codes", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.BackupCodesStatusResponse{Remaining: n})
}

// HandleRemove handles DELETE /v1/mfa/totp
//
//	@Summary		Remove TOTP MFA
//	@Description	Disables TOTP and drops the backup codes. Requires a TOTP code.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Accept			json
//	@Param			request	body	authsdk.TOTPRemoveRequest	true	"TOTP code for verification"
//	@Success		204		"MFA removed"
//	@Failure		400		{object}	authsdk.ErrorResponse	"Invalid TOTP code or request"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Invalid or missing access token"
//	@Failure		500		{object}	authsdk.ErrorResponse	"Internal server error"
//	@Router			/v1/mfa/totp [delete].
func (h *MFAHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	var req authsdk.TOTPRemoveRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.MFAService.Remove(r.Context(), viewFrom(r).User.ID, req.Code); err != nil {
		h.writeError(w, r, "failed to remove MFA", err)
		return
	}
	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *MFAHandler) writeError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	log := slogx.FromContext(r.Context())
	switch {
	case errors.Is(err, service.ErrInvalidTOTPCode):
		log.Warn("invalid TOTP code")
		authsdk.ErrInvalidCode.WriteError(w)
	case errors.Is(err, service.ErrMFAAlreadyEnabled):
		errMFAAlreadyEnabled.WriteError(w)
	case errors.Is(err, service.ErrMFANotEnabled):
		errMFANotEnabled.WriteError(w)
	case errors.Is(err, service.ErrMFANotEnrolled):
		errMFANotEnrolled.WriteError(w)
	default:
		writeInternal(w, r, msg, err)
	}
}
