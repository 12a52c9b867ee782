// Package login drives the two round trip sign-in protocol.
//
//	AwaitingCredentials --password ok, no second factor--> Complete
//	AwaitingCredentials --password ok, second factor on--> AwaitingSecondFactor
//	AwaitingSecondFactor --code ok--> Complete
//
// A rejected step leaves the flow where it was, except that a second factor
// step whose challenge is gone falls back to AwaitingCredentials. The flow
// never holds the password: after the first trip only the opaque challenge
// id is carried.
package login

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/lockbox/internal/auth/service"
	"github.com/aussiebroadwan/lockbox/internal/auth/session"
)

type State string

const (
	AwaitingCredentials  State = "awaiting_credentials"
	AwaitingSecondFactor State = "awaiting_second_factor"
	Complete             State = "complete"
)

var ErrWrongState = errors.New("login: operation not allowed in current state")

// Backend authenticates each round trip. service.Authenticator implements it.
type Backend interface {
	Authenticate(ctx context.Context, creds service.Credentials, callbackTarget string) service.Outcome
	Resume(ctx context.Context, challengeID, code, callbackTarget string) service.Outcome
}

// Flow is the state carried between round trips. It round-trips through
// JSON so a client can hold it.
type Flow struct {
	State       State  `json:"state"`
	Email       string `json:"email,omitempty"`
	ChallengeID string `json:"challenge_id,omitempty"`
	CallbackURL string `json:"callback_url,omitempty"`

	// Error is the reason of the last rejected step, e.g.
	// "invalid_credentials". Cleared by the next step.
	Error string `json:"error,omitempty"`

	// Set once Complete.
	Token      string    `json:"token,omitempty"`
	ExpiresAt  time.Time `json:"expires_at,omitzero"`
	RedirectTo string    `json:"redirect_to,omitempty"`
}

// New starts a flow that will land on callbackURL when complete.
func New(callbackURL string) Flow {
	return Flow{State: AwaitingCredentials, CallbackURL: callbackURL}
}

// Current reports the state, treating the zero Flow as AwaitingCredentials.
func (f Flow) Current() State {
	if f.State == "" {
		return AwaitingCredentials
	}
	return f.State
}

// Failed reports whether the last step was rejected.
func (f Flow) Failed() bool { return f.Error != "" }

// Controller applies round trips to flows.
type Controller struct {
	Backend Backend
}

// SubmitCredentials runs the password step. A code may come along for
// clients that already know a second factor is needed.
func (c *Controller) SubmitCredentials(ctx context.Context, f Flow, creds service.Credentials) (Flow, error) {
	if f.Current() != AwaitingCredentials {
		return f, ErrWrongState
	}

	next := f
	next.State = AwaitingCredentials
	next.Email = creds.Email
	next.ChallengeID = ""
	next.Error = ""

	out := c.Backend.Authenticate(ctx, creds, f.CallbackURL)
	switch out.Kind {
	case service.OutcomeAuthenticated:
		if !verified(out) {
			next.Error = service.ErrInternal.Error()
			return next, nil
		}
		return complete(next, out.Session), nil
	case service.OutcomeSecondFactorRequired:
		next.State = AwaitingSecondFactor
		next.ChallengeID = out.ChallengeID
		return next, nil
	default:
		next.Error = reason(out)
		return next, nil
	}
}

// SubmitCode runs the second factor step.
func (c *Controller) SubmitCode(ctx context.Context, f Flow, code string) (Flow, error) {
	if f.Current() != AwaitingSecondFactor {
		return f, ErrWrongState
	}

	next := f
	next.Error = ""

	out := c.Backend.Resume(ctx, f.ChallengeID, code, f.CallbackURL)
	switch {
	case out.Kind == service.OutcomeAuthenticated && verified(out):
		next.ChallengeID = ""
		return complete(next, out.Session), nil
	case out.Kind == service.OutcomeAuthenticated:
		next.Error = service.ErrInternal.Error()
		return next, nil
	case errors.Is(out.Reason, service.ErrInvalidSecondFactor):
		next.Error = reason(out)
		return next, nil
	default:
		// challenge expired, exhausted or otherwise unusable
		next.State = AwaitingCredentials
		next.ChallengeID = ""
		next.Error = reason(out)
		return next, nil
	}
}

// Restart abandons the flow, keeping the email for convenience. Nothing was
// issued for an abandoned second factor step.
func (f Flow) Restart() Flow {
	return Flow{State: AwaitingCredentials, Email: f.Email, CallbackURL: f.CallbackURL}
}

// verified reports whether an authenticated outcome carries a full session.
// Complete is never reached with a token that still awaits its second factor.
func verified(out service.Outcome) bool {
	return out.Session != nil && !out.Session.PendingTwoFactor()
}

func complete(f Flow, issued *session.Issued) Flow {
	f.State = Complete
	f.Error = ""
	if issued != nil {
		f.Token = issued.Token
		f.ExpiresAt = issued.ExpiresAt()
		f.RedirectTo = issued.RedirectTo
	}
	return f
}

func reason(out service.Outcome) string {
	if out.Reason == nil {
		return service.ErrInternal.Error()
	}
	for _, r := range []error{service.ErrInvalidSecondFactor, service.ErrInvalidCredentials} {
		if errors.Is(out.Reason, r) {
			return r.Error()
		}
	}
	return service.ErrInternal.Error()
}
