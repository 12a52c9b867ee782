package cryptox

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

// ErrNotEd25519 is returned for PEM input that is not a PKCS8 Ed25519
// private key.
var ErrNotEd25519 = errors.New("cryptox: not an Ed25519 PKCS8 private key")

const pemPrivateKey = "PRIVATE KEY"

// GenerateEd25519Key returns a fresh signing key as a PKCS8 PEM block, the
// format lockbox keeps on disk.
func GenerateEd25519Key() ([]byte, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("cryptox: generate Ed25519 key: %w", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("cryptox: marshal PKCS8: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: pemPrivateKey, Bytes: der}), nil
}

// ParseEd25519Key reads a key written by GenerateEd25519Key or by
// `openssl genpkey -algorithm ed25519`.
func ParseEd25519Key(pemKey []byte) (ed25519.PrivateKey, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, fmt.Errorf("%w: invalid PEM", ErrNotEd25519)
	}
	if block.Type != pemPrivateKey {
		return nil, fmt.Errorf("%w: PEM block is %q", ErrNotEd25519, block.Type)
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotEd25519, err)
	}
	key, ok := parsed.(ed25519.PrivateKey)
	if !ok || len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: got %T", ErrNotEd25519, parsed)
	}
	return key, nil
}
