package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultSessionTTL is how long a freshly minted session token lives. The
// holder refreshes before expiry to keep the session going.
const DefaultSessionTTL = 30 * time.Minute

// SessionClaims are the identity attributes the vault copies into every
// session token.
type SessionClaims struct {
	// Role of the user at the time the token was minted ("ADMIN", "USER").
	Role string `json:"role,omitempty"`

	// TwoFactorEnabled mirrors the user's enrollment state.
	TwoFactorEnabled bool `json:"two_factor_enabled"`

	// OAuth is true when the user has a linked external provider account.
	OAuth bool `json:"oauth"`

	// PendingTwoFactor marks a half-finished login: password accepted, TOTP
	// still outstanding. Such a token grants nothing but the second step.
	PendingTwoFactor bool `json:"pending_two_factor,omitempty"`
}

// Claims are the session token claims.
type Claims struct {
	jwt.RegisteredClaims
	SessionClaims

	// Name is the display name for the user
	Name string `json:"name,omitempty"`

	// Email the user logged in with
	Email string `json:"email,omitempty"`
}

// NewSessionClaims builds minimally-correct registered claims for subject.
// The session attributes are filled in by the enrichment pipeline.
func NewSessionClaims(subject, issuer string, ttl time.Duration, now time.Time) Claims {
	c := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:  issuer,
			Subject: subject,
		},
	}
	c.Renew(ttl, now)
	return c
}

// Renew stamps fresh iat/nbf/exp/jti values, keeping everything else.
func (c *Claims) Renew(ttl time.Duration, now time.Time) {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	c.IssuedAt = jwt.NewNumericDate(now)
	c.NotBefore = jwt.NewNumericDate(now)
	c.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	c.ID = NewJTI()
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil
	}
	if c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateAudience checks if at least one expected audience is present.
func (c *Claims) ValidateAudience(expected []string) error {
	if len(expected) == 0 {
		return nil
	}
	for _, want := range expected {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}
	return ErrAudience
}

// ValidateExpiry ensures the token hasn't expired (exp) and isn't before nbf.
func (c *Claims) ValidateExpiry() error {
	return c.ValidateExpiryWithLeeway(0)
}

// ValidateExpiryWithLeeway adds a small grace period for clock skew.
func (c *Claims) ValidateExpiryWithLeeway(leeway time.Duration) error {
	now := time.Now().UTC()

	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Add(leeway)) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Add(-leeway)) {
		return ErrNotYetValid
	}
	return nil
}
