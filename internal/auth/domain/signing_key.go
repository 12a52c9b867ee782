package domain

import "time"

// SigningKey describes one session signing key of the running instance.
// Retired keys no longer sign but still verify tokens they signed earlier.
type SigningKey struct {
	Kid       string
	Algorithm string
	CreatedAt time.Time
	RetiredAt *time.Time
}

// IsActive reports whether the key still signs new sessions.
func (k SigningKey) IsActive() bool { return k.RetiredAt == nil }
