package jwtx

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"

	"github.com/aussiebroadwan/lockbox/pkg/cryptox"
	"github.com/golang-jwt/jwt/v5"
)

// ErrDuplicateKID is returned when a kid is added to a KeySet twice.
var ErrDuplicateKID = errors.New("jwtx: duplicate kid")

// Signer mints session tokens under one key.
type Signer interface {
	Alg() string
	KID() string
	Sign(Claims) (string, error)
	PublicJWK() JWK
}

type edSigner struct {
	kid string
	key ed25519.PrivateKey
}

// NewSignerEdDSA builds a Signer from a PKCS8 PEM Ed25519 key.
func NewSignerEdDSA(kid string, pemKey []byte) (Signer, error) {
	if kid == "" {
		return nil, errors.New("jwtx: signer needs a kid")
	}
	key, err := cryptox.ParseEd25519Key(pemKey)
	if err != nil {
		return nil, fmt.Errorf("jwtx: signer %s: %w", kid, err)
	}
	return &edSigner{kid: kid, key: key}, nil
}

func (s *edSigner) Alg() string { return jwt.SigningMethodEdDSA.Alg() }
func (s *edSigner) KID() string { return s.kid }

func (s *edSigner) Sign(c Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodEdDSA, c)
	t.Header["kid"] = s.kid
	return t.SignedString(s.key)
}

func (s *edSigner) PublicJWK() JWK {
	return NewEd25519JWK(s.kid, "sig", s.Alg(), s.key.Public().(ed25519.PublicKey))
}

// KeySet is the set of public keys tokens are verified against, in the
// order they were added. Keys are never removed: a retired signer's tokens
// must keep verifying until they expire.
type KeySet struct {
	mu   sync.RWMutex
	jwks []JWK
	pub  map[string]ed25519.PublicKey
}

func NewKeySet() *KeySet {
	return &KeySet{pub: make(map[string]ed25519.PublicKey)}
}

// AddSigner publishes the public half of s.
func (k *KeySet) AddSigner(s Signer) error {
	return k.Add(s.PublicJWK())
}

// Add publishes j. Only Ed25519 OKP keys are accepted.
func (k *KeySet) Add(j JWK) error {
	pub, err := j.publicKey()
	if err != nil {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.pub[j.Kid]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateKID, j.Kid)
	}
	k.pub[j.Kid] = pub
	k.jwks = append(k.jwks, j)
	return nil
}

// Lookup returns the verification key for kid.
func (k *KeySet) Lookup(kid string) (ed25519.PublicKey, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	pub, ok := k.pub[kid]
	return pub, ok
}

// PublicJWKS is the document served at /.well-known/jwks.json.
func (k *KeySet) PublicJWKS() JWKS {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return JWKS{Keys: append([]JWK{}, k.jwks...)}
}

// IsReady reports whether any key is loaded.
func (k *KeySet) IsReady() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.pub) > 0
}

func (j JWK) publicKey() (ed25519.PublicKey, error) {
	if j.Kty != "OKP" {
		return nil, fmt.Errorf("jwtx: unsupported kty %q", j.Kty)
	}
	if j.Crv != "Ed25519" {
		return nil, fmt.Errorf("jwtx: unsupported OKP curve %q", j.Crv)
	}
	x, err := base64.RawURLEncoding.DecodeString(j.X)
	if err != nil {
		return nil, fmt.Errorf("jwtx: decode x: %w", err)
	}
	if len(x) != ed25519.PublicKeySize {
		return nil, errors.New("jwtx: invalid Ed25519 public key size")
	}
	return ed25519.PublicKey(x), nil
}
