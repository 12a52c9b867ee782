package authsdk

import (
	"time"

	"github.com/aussiebroadwan/lockbox/pkg/jwtx"
)

// ============================================================================
// Error Types
// ============================================================================

// ErrorResponse is the JSON body of every error the service returns.
type ErrorResponse struct {
	// Error is the machine readable code (e.g., "invalid_credentials")
	Error string `json:"error"`

	// ErrorDescription is a human-readable description of the error
	ErrorDescription string `json:"error_description"`

	// Details maps request fields to what was wrong with them. Only set for
	// validation errors.
	Details map[string]string `json:"details,omitempty"`
}

// ============================================================================
// Login Types
// ============================================================================

const (
	LoginStatusAuthenticated        = "authenticated"
	LoginStatusSecondFactorRequired = "second_factor_required"
)

// LoginRequest is the first round trip of a login.
type LoginRequest struct {
	Email    string `json:"email" example:"alice@example.com"`
	Password string `json:"password"`

	// Code may be sent up front by clients that know a second factor is on.
	Code string `json:"code,omitempty" example:"123456"`

	// CallbackURL is where the client wants to land afterwards. Only
	// relative paths are honoured.
	CallbackURL string `json:"callback_url,omitempty" example:"/vault"`
}

// SecondFactorRequest completes a login that answered second_factor_required.
type SecondFactorRequest struct {
	ChallengeID string `json:"challenge_id"`

	// Code is a 6 digit TOTP code or a backup code.
	Code string `json:"code" example:"123456"`
}

// LoginResponse is returned by the login, second factor and refresh
// endpoints. Exactly one of AccessToken and ChallengeID is set.
type LoginResponse struct {
	// Status is "authenticated" or "second_factor_required"
	Status string `json:"status" example:"authenticated"`

	AccessToken string `json:"access_token,omitempty"`

	// TokenType is always "Bearer" when a token is present
	TokenType string `json:"token_type,omitempty"`

	// ExpiresIn is the lifetime of the access token in seconds
	ExpiresIn int `json:"expires_in,omitempty"`

	RedirectTo string `json:"redirect_to,omitempty" example:"/vault"`

	ChallengeID string `json:"challenge_id,omitempty"`
}

// ============================================================================
// Session Types
// ============================================================================

// SessionUser is the identity part of a session.
type SessionUser struct {
	ID               string `json:"id"`
	Name             string `json:"name,omitempty"`
	Email            string `json:"email,omitempty"`
	Role             string `json:"role" example:"USER"`
	TwoFactorEnabled bool   `json:"two_factor_enabled"`
	OAuth            bool   `json:"oauth"`
}

// SessionResponse is the projected view of the caller's session.
type SessionResponse struct {
	User             SessionUser `json:"user"`
	PendingTwoFactor bool        `json:"pending_two_factor"`
	Expires          time.Time   `json:"expires"`
}

// ChangePasswordRequest replaces the caller's password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ============================================================================
// Bootstrap Types
// ============================================================================

// BootstrapRequest seeds the first administrator of an empty vault.
type BootstrapRequest struct {
	// AdminEmail is the login of the initial admin
	AdminEmail string `json:"admin_email" validate:"required,email,max=320" example:"admin@example.com"`

	// AdminName is the display name of the admin (max 200 chars)
	AdminName string `json:"admin_name" validate:"max=200"`

	// AdminPassword is generated by the service when empty (min 12 chars)
	AdminPassword string `json:"admin_password,omitempty" validate:"omitempty,min=12,max=1024"`
}

// BootstrapResponse identifies the created admin.
type BootstrapResponse struct {
	AdminUserID string `json:"admin_user_id"`
	AdminEmail  string `json:"admin_email"`

	// AdminPassword is only returned when the service generated it
	AdminPassword string `json:"admin_password,omitempty"`
}

// ============================================================================
// User Administration Types
// ============================================================================

// CreateUserRequest creates a password account. Requires an ADMIN session.
type CreateUserRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Password string `json:"password"`

	// Role is "ADMIN" or "USER" (default)
	Role string `json:"role,omitempty" example:"USER"`
}

// LinkedAccount is an external provider identity carried over by an import.
type LinkedAccount struct {
	Provider          string `json:"provider" example:"github"`
	ProviderAccountID string `json:"provider_account_id"`
}

// ImportUserRequest brings over an account from another system, keeping its
// password digest (argon2id PHC or bcrypt).
type ImportUserRequest struct {
	Email        string          `json:"email"`
	Name         string          `json:"name,omitempty"`
	PasswordHash string          `json:"password_hash,omitempty"`
	Role         string          `json:"role,omitempty"`
	Accounts     []LinkedAccount `json:"accounts,omitempty"`
}

// UserResponse describes a user account.
type UserResponse struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	Name             string    `json:"name,omitempty"`
	Role             string    `json:"role"`
	TwoFactorEnabled bool      `json:"two_factor_enabled"`
	CreatedAt        time.Time `json:"created_at"`
}

// ============================================================================
// Vault Types
// ============================================================================

// VaultItemRequest creates a vault item.
type VaultItemRequest struct {
	Title    string `json:"title" example:"Bank"`
	Username string `json:"username,omitempty"`
	URL      string `json:"url,omitempty" example:"https://bank.example"`
	Password string `json:"password"`
	Notes    string `json:"notes,omitempty"`
}

// VaultItemPatch changes only the fields that are present.
type VaultItemPatch struct {
	Title    *string `json:"title,omitempty"`
	Username *string `json:"username,omitempty"`
	URL      *string `json:"url,omitempty"`
	Password *string `json:"password,omitempty"`
	Notes    *string `json:"notes,omitempty"`
}

// VaultItem is a stored credential.
type VaultItem struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Username  string    `json:"username"`
	URL       string    `json:"url"`
	Password  string    `json:"password"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListVaultItemsResponse holds the caller's items, newest first.
type ListVaultItemsResponse struct {
	Items []VaultItem `json:"items"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse represents the response structure for health check endpoints.
// Used by both /livez and /readyz endpoints (readyz includes additional Checks field).
type HealthResponse struct {
	// Status indicates the overall health status (e.g., "ok")
	Status string `json:"status"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	// Version is the service version string
	Version string `json:"version,omitempty"`

	// Checks contains readiness check results for critical dependencies (only for /readyz)
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks represents the status of critical service dependencies.
type HealthChecks struct {
	// Database indicates the database connection status
	Database string `json:"database"`

	// Signer indicates the JWT signing capability status
	Signer string `json:"signer"`

	// Replay indicates the used-code store status
	Replay string `json:"replay"`
}

// ============================================================================
// JWKS Types
// ============================================================================

// JWKSResponse contains the JSON Web Key Set.
// This is returned from the GET /.well-known/jwks.json endpoint and contains
// public keys used to verify JWT signatures.
type JWKSResponse jwtx.JWKS

// ============================================================================
// MFA Types
// ============================================================================

// TOTPEnrollResponse represents the response from TOTP enrollment.
type TOTPEnrollResponse struct {
	Secret  string `json:"secret" example:"JBSWY3DPEHPK3PXP"`
	URI     string `json:"uri" example:"otpauth://totp/Lockbox:user@example.com?secret=JBSWY3DPEHPK3PXP&issuer=Lockbox"`
	QRCode  string `json:"qr_code" example:"data:image/png;base64,iVBORw0KGgo..."`
	Issuer  string `json:"issuer"`
	Account string `json:"account"`
}

// BackupCodesResponse represents the response from backup code operations.
type BackupCodesResponse struct {
	Codes []string `json:"codes"`
}

// BackupCodesStatusResponse reports how many backup codes are left.
type BackupCodesStatusResponse struct {
	Remaining int `json:"remaining"`
}

// TOTPVerifyRequest is the request to verify a TOTP code.
type TOTPVerifyRequest struct {
	Code string `json:"code"` // 6-digit TOTP code
}

// TOTPRemoveRequest is the request to remove TOTP MFA.
type TOTPRemoveRequest struct {
	Code string `json:"code"` // 6-digit TOTP code for verification
}

// BackupCodesRegenerateRequest is the request to regenerate backup codes.
type BackupCodesRegenerateRequest struct {
	Code string `json:"code"` // 6-digit TOTP code for verification
}

// ============================================================================
// Key Rotation Types
// ============================================================================

// RotateKeyRequest represents a request to rotate signing keys.
type RotateKeyRequest struct {
	// RetireExisting will mark current active keys as retired if true.
	// If false, new key is added alongside existing keys.
	RetireExisting bool `json:"retire_existing"`
}

// SigningKeyInfo represents a JWT signing key with its metadata.
type SigningKeyInfo struct {
	Kid       string  `json:"kid"`                  // Key identifier in JWKS
	Algorithm string  `json:"algorithm"`            // EdDSA
	CreatedAt string  `json:"created_at"`           // RFC3339 timestamp
	RetiredAt *string `json:"retired_at,omitempty"` // RFC3339 timestamp (null if active)
}

// RotateKeyResponse represents the result of a key rotation operation.
type RotateKeyResponse struct {
	NewKey      SigningKeyInfo   `json:"new_key"`
	RetiredKeys []SigningKeyInfo `json:"retired_keys,omitempty"`
	ActiveKeys  int              `json:"active_keys"`
}
