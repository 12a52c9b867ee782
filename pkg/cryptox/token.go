package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/base64"
	"fmt"
	"strings"
)

// Entropy, in bytes, of the random values lockbox hands out.
const (
	ChallengeBytes  = 32 // login challenge ids, bootstrap tokens
	BackupCodeBytes = 16
	KeyIDBytes      = 12
)

var backupEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

func randomBytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("cryptox: token size must be positive, got %d", n)
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("cryptox: read random: %w", err)
	}
	return b, nil
}

// RandomToken returns n random bytes as unpadded base64url.
func RandomToken(n int) (string, error) {
	b, err := randomBytes(n)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NewBackupCode returns a one-time recovery code: BackupCodeBytes of
// entropy as 26 uppercase base32 characters, easy to read off paper.
func NewBackupCode() (string, error) {
	b, err := randomBytes(BackupCodeBytes)
	if err != nil {
		return "", err
	}
	return backupEncoding.EncodeToString(b), nil
}

// NormalizeBackupCode undoes what users do to codes when typing them in:
// lowercase, spaces and dashes between groups.
func NormalizeBackupCode(code string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '-' || r == ' ' || r == '\t':
			return -1
		case 'a' <= r && r <= 'z':
			return r - 'a' + 'A'
		}
		return r
	}, code)
}

// Fingerprint is the SHA-256 of token as 43 characters of base64url.
// Challenge ids and backup codes are stored only as fingerprints.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
