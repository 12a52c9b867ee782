package service

import (
	"errors"
	"fmt"

	"github.com/aussiebroadwan/lockbox/internal/auth/domain"
	"github.com/aussiebroadwan/lockbox/internal/auth/session"
)

// Reasons carried by an Invalid outcome. They are the only failure signals a
// login caller ever sees.
var (
	ErrInvalidCredentials  = errors.New("invalid_credentials")
	ErrInvalidSecondFactor = errors.New("invalid_second_factor")
	ErrInternal            = errors.New("internal")
)

// Signals returned by SessionIssuer.SignIn. A rejected second factor is also
// a rejected credential, so ErrBadSecondFactor matches ErrBadCredentials.
var (
	ErrBadCredentials  = errors.New("bad_credentials")
	ErrBadSecondFactor = fmt.Errorf("bad_second_factor: %w", ErrBadCredentials)
)

// Credentials is one login submission. Code is empty on the first round trip.
type Credentials struct {
	Email    string `validate:"required,email,max=320"`
	Password string `validate:"required,max=1024"`
	Code     string `validate:"omitempty,max=64"`
}

type OutcomeKind int

const (
	OutcomeInvalid OutcomeKind = iota
	OutcomeSecondFactorRequired
	OutcomeAuthenticated
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSecondFactorRequired:
		return "second_factor_required"
	case OutcomeAuthenticated:
		return "authenticated"
	default:
		return "invalid"
	}
}

// Identity is the subject an authenticated login resolved to.
type Identity struct {
	ID    string
	Email string
	Name  string
	Role  domain.Role
}

// Outcome is the result of one authentication attempt. Exactly one of the
// variant fields is meaningful, selected by Kind:
//
//	OutcomeInvalid              Reason
//	OutcomeSecondFactorRequired ChallengeID
//	OutcomeAuthenticated        Identity, Session
type Outcome struct {
	Kind        OutcomeKind
	Reason      error
	ChallengeID string
	Identity    Identity
	Session     *session.Issued
}

func Invalid(reason error) Outcome {
	return Outcome{Kind: OutcomeInvalid, Reason: reason}
}

func SecondFactorRequired(challengeID string) Outcome {
	return Outcome{Kind: OutcomeSecondFactorRequired, ChallengeID: challengeID}
}

func Authenticated(id Identity, s *session.Issued) Outcome {
	return Outcome{Kind: OutcomeAuthenticated, Identity: id, Session: s}
}

func (o Outcome) String() string {
	if o.Kind == OutcomeInvalid && o.Reason != nil {
		return "invalid(" + o.Reason.Error() + ")"
	}
	return o.Kind.String()
}

func identityOf(c session.Issued) Identity {
	return Identity{
		ID:    c.Claims.Subject,
		Email: c.Claims.Email,
		Name:  c.Claims.Name,
		Role:  domain.Role(c.Claims.Role),
	}
}
