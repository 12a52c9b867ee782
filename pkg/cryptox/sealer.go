package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

var ErrCiphertext = errors.New("cryptox: ciphertext too short or corrupt")

// Sealer encrypts small secrets at rest with AES-256-GCM. The output layout
// is [12-byte nonce][ciphertext][16-byte tag].
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives a 32-byte key from keyMaterial with SHA-256.
func NewSealer(keyMaterial []byte) (*Sealer, error) {
	if len(keyMaterial) == 0 {
		return nil, errors.New("cryptox: empty master key")
	}
	key := sha256.Sum256(keyMaterial)

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("cryptox: create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptox: create GCM: %w", err)
	}
	return &Sealer{aead: gcm}, nil
}

// LoadSealer reads the master key from path, generating one on first start
// the same way the pepper is handled.
func LoadSealer(path string) (*Sealer, error) {
	path = filepath.Clean(path)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return nil, err
		}
		raw := make([]byte, 32)
		if _, err := rand.Read(raw); err != nil {
			return nil, err
		}
		data = []byte(base64.RawURLEncoding.EncodeToString(raw))
		if err := os.WriteFile(path, data, 0600); err != nil {
			return nil, fmt.Errorf("cryptox: write master key: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("cryptox: read master key: %w", err)
	}

	return NewSealer(data)
}

// Seal encrypts plaintext. aad binds the ciphertext to its owner so a row
// copied to another user fails to open.
func (s *Sealer) Seal(plaintext, aad []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("cryptox: nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plaintext, aad), nil
}

// Open reverses Seal.
func (s *Sealer) Open(sealed, aad []byte) ([]byte, error) {
	n := s.aead.NonceSize()
	if len(sealed) < n+s.aead.Overhead() {
		return nil, ErrCiphertext
	}
	plain, err := s.aead.Open(nil, sealed[:n], sealed[n:], aad)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCiphertext, err)
	}
	return plain, nil
}

// SealString is Seal with base64url text in and out, for TEXT columns.
func (s *Sealer) SealString(plaintext, aad string) (string, error) {
	out, err := s.Seal([]byte(plaintext), []byte(aad))
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(out), nil
}

// OpenString reverses SealString.
func (s *Sealer) OpenString(sealed, aad string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCiphertext, err)
	}
	out, err := s.Open(raw, []byte(aad))
	if err != nil {
		return "", err
	}
	return string(out), nil
}
