package domain

import "time"

type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string     // argon2id PHC or imported bcrypt, empty for OAuth-only accounts
	Role         Role       // may be empty for accounts created before roles existed
	MFAEnabled   *time.Time // Timestamp when MFA was enabled (nullable)
	MFASecret    *string    // TOTP secret (nullable, base32 encoded)
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasPassword reports whether the account can log in with credentials.
func (u User) HasPassword() bool { return u.PasswordHash != "" }

// TwoFactorEnabled reports whether a confirmed TOTP secret is on file. An
// enrolled but unconfirmed secret does not count.
func (u User) TwoFactorEnabled() bool {
	return u.MFAEnabled != nil && u.MFASecret != nil && *u.MFASecret != ""
}

// Account links a user to an external identity provider. Lockbox never
// creates these itself; they arrive with imported users.
type Account struct {
	ID                string
	UserID            string
	Provider          string // e.g. "github", "google"
	ProviderAccountID string
	CreatedAt         time.Time
}
