// Package session turns a verified identity into session token claims and
// turns those claims back into the read-only view every authorization check
// consumes.
//
// The pipeline has two pure phases:
//
//	Mint    (phase A) runs whenever a token is created or refreshed and copies
//	        the identity attributes into the claims.
//	Project (phase B) runs whenever a request or UI reads the session.
//
// A token whose PendingTwoFactor flag is set belongs to a login that passed
// the password step only. Every capability gate treats it as
// unauthenticated.
package session

import (
	"errors"
	"time"

	"github.com/aussiebroadwan/lockbox/internal/auth/domain"
	"github.com/aussiebroadwan/lockbox/pkg/jwtx"
)

var ErrUnauthenticated = errors.New("unauthenticated")

// Snapshot is a fresh read of the user taken when a token is minted.
type Snapshot struct {
	User  domain.User
	OAuth bool // user has a linked external provider account
}

// Authentication is present only on the call that just authenticated the
// user, it is nil on refreshes.
type Authentication struct {
	PendingTwoFactor bool
}

// Mint produces the claims for the next token.
//
// Without a subject, or without a snapshot (user vanished), the prior claims
// come back unchanged. Otherwise the identity attributes are overwritten from
// the snapshot. The pending flag follows authn when present and is carried
// over from prior when authn is nil.
func Mint(prior jwtx.Claims, snap *Snapshot, authn *Authentication) jwtx.Claims {
	if prior.Subject == "" || snap == nil {
		return prior
	}

	next := prior
	next.Role = snap.User.Role.String()
	next.TwoFactorEnabled = snap.User.TwoFactorEnabled()
	next.OAuth = snap.OAuth
	next.Name = snap.User.Name
	next.Email = snap.User.Email

	if authn != nil {
		next.PendingTwoFactor = authn.PendingTwoFactor
	}
	return next
}

// User is the identity part of a View.
type User struct {
	ID               string      `json:"id"`
	Name             string      `json:"name,omitempty"`
	Email            string      `json:"email,omitempty"`
	Role             domain.Role `json:"role"`
	TwoFactorEnabled bool        `json:"two_factor_enabled"`
	OAuth            bool        `json:"oauth"`
}

// View is what the rest of the application sees of a session.
type View struct {
	User             User      `json:"user"`
	PendingTwoFactor bool      `json:"pending_two_factor"`
	Expires          time.Time `json:"expires"`
}

// Project copies claims into a View. It never fails: missing subject yields
// the zero (unauthenticated) View and a missing or unknown role yields
// RoleNone.
func Project(c jwtx.Claims) View {
	if c.Subject == "" {
		return View{}
	}

	role, err := domain.ParseRole(c.Role)
	if err != nil {
		role = domain.RoleNone
	}

	v := View{
		User: User{
			ID:               c.Subject,
			Name:             c.Name,
			Email:            c.Email,
			Role:             role,
			TwoFactorEnabled: c.TwoFactorEnabled,
			OAuth:            c.OAuth,
		},
		PendingTwoFactor: c.PendingTwoFactor,
	}
	if c.ExpiresAt != nil {
		v.Expires = c.ExpiresAt.Time
	}
	return v
}

// Authenticated reports whether the view grants access. A pending second
// factor does not.
func (v View) Authenticated() bool {
	return v.User.ID != "" && !v.PendingTwoFactor
}

// HasRole reports whether an authenticated session holds one of roles.
func (v View) HasRole(roles ...domain.Role) bool {
	if !v.Authenticated() || v.User.Role == domain.RoleNone {
		return false
	}
	for _, r := range roles {
		if v.User.Role == r {
			return true
		}
	}
	return false
}

// Require returns ErrUnauthenticated unless the view is authenticated.
func (v View) Require() error {
	if !v.Authenticated() {
		return ErrUnauthenticated
	}
	return nil
}
