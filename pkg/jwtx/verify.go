package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrUnknownKID  = errors.New("jwtx: unknown kid")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")

	ErrIssuer       = errors.New("jwtx: issuer mismatch")
	ErrAudience     = errors.New("jwtx: audience mismatch")
	ErrExpired      = errors.New("jwtx: token expired")
	ErrNotYetValid  = errors.New("jwtx: token not yet valid")
	ErrInvalidClaim = errors.New("jwtx: invalid claims")
)

// Verifier checks a session token and returns its claims. Errors wrap one
// of the package sentinels.
type Verifier interface {
	Verify(token string) (Claims, error)
}

// VerifyOptions are the checks applied after the signature.
type VerifyOptions struct {
	// Issuer the token must carry. Empty skips the check.
	Issuer string

	// Audience values of which the token must carry one. Empty skips the
	// check.
	Audience []string

	// Leeway for clock skew on exp and nbf.
	Leeway time.Duration
}

type edVerifier struct {
	keys   *KeySet
	opts   VerifyOptions
	parser *jwt.Parser
}

// NewVerifier returns a Verifier for EdDSA tokens signed by any key in keys,
// including keys added after it was built.
func NewVerifier(keys *KeySet, opts VerifyOptions) Verifier {
	return &edVerifier{
		keys: keys,
		opts: opts,
		// time claims are checked by Claims so the errors stay ours
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}
}

func (v *edVerifier) Verify(raw string) (Claims, error) {
	var c Claims
	if _, err := v.parser.ParseWithClaims(raw, &c, v.keyFor); err != nil {
		return Claims{}, classify(err)
	}

	if err := c.ValidateIssuer(v.opts.Issuer); err != nil {
		return Claims{}, err
	}
	if err := c.ValidateAudience(v.opts.Audience); err != nil {
		return Claims{}, err
	}
	if err := c.ValidateExpiryWithLeeway(v.opts.Leeway); err != nil {
		return Claims{}, err
	}
	if c.Subject == "" {
		return Claims{}, fmt.Errorf("%w: no subject", ErrInvalidClaim)
	}
	return c, nil
}

func (v *edVerifier) keyFor(t *jwt.Token) (any, error) {
	kid, _ := t.Header["kid"].(string)
	if kid == "" {
		return nil, fmt.Errorf("%w: missing kid", ErrUnknownKID)
	}
	pub, ok := v.keys.Lookup(kid)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownKID, kid)
	}
	return pub, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, ErrUnknownKID):
		return err
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrInvalidSig, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}
