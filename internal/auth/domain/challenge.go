package domain

import "time"

const (
	// LoginChallengeTTL bounds how long the second login step may take.
	LoginChallengeTTL = 5 * time.Minute

	// MaxChallengeAttempts failed codes end the challenge.
	MaxChallengeAttempts = 5
)

// LoginChallenge is the server-side record of a login that passed the
// password check and is waiting for a TOTP or backup code. The client only
// holds the opaque challenge token, ID is its fingerprint.
type LoginChallenge struct {
	ID             string
	UserID         string
	Email          string
	RedirectTarget string
	Attempts       int
	CreatedAt      time.Time
	ExpiresAt      time.Time
}

// Exhausted reports whether no further attempts are allowed.
func (c LoginChallenge) Exhausted() bool { return c.Attempts >= MaxChallengeAttempts }

// Expired reports whether the challenge is past its deadline at now.
func (c LoginChallenge) Expired(now time.Time) bool { return !now.Before(c.ExpiresAt) }

// TOTPEnrollment is what a user needs to add lockbox to an authenticator app.
type TOTPEnrollment struct {
	Secret  string // base32 secret for manual entry
	URI     string // otpauth:// provisioning URI
	QRCode  string // PNG data URL of the URI
	Issuer  string
	Account string
}
