// Package otpx wraps github.com/pquerna/otp with the TOTP parameters lockbox
// uses for second-factor enrollment and verification.
package otpx

import (
	"bytes"
	"crypto/subtle"
	"encoding/base32"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// Defaults shared by every authenticator app we care about.
const (
	DefaultPeriod     = 30
	DefaultSkew       = 1
	DefaultDigits     = otp.DigitsSix
	DefaultSecretSize = 20 // 160 bits
	DefaultImageSize  = 256
)

var (
	ErrInvalidSecret = errors.New("otpx: invalid secret")
	ErrInvalidURI    = errors.New("otpx: invalid provisioning uri")
)

// Secret is a TOTP shared secret together with the labels that end up in the
// provisioning URI.
type Secret struct {
	Raw          string // base32, no padding
	Issuer       string
	AccountLabel string
}

// Manager generates and verifies TOTP secrets. The zero value is not usable,
// use New.
type Manager struct {
	Issuer string
	Period uint
	Skew   uint
	Digits otp.Digits

	now func() time.Time
}

// New returns a Manager with a 30 second step, 6 digits and a drift window of
// one step either side.
func New(issuer string) *Manager {
	return &Manager{
		Issuer: issuer,
		Period: DefaultPeriod,
		Skew:   DefaultSkew,
		Digits: DefaultDigits,
		now:    time.Now,
	}
}

func (m *Manager) opts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    m.Period,
		Skew:      m.Skew,
		Digits:    m.Digits,
		Algorithm: otp.AlgorithmSHA1,
	}
}

// GenerateSecret returns a fresh random base32 secret for accountLabel.
func (m *Manager) GenerateSecret(accountLabel string) (Secret, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.Issuer,
		AccountName: accountLabel,
		Period:      m.Period,
		SecretSize:  DefaultSecretSize,
		Digits:      m.Digits,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return Secret{}, fmt.Errorf("otpx: generate secret: %w", err)
	}

	return Secret{
		Raw:          key.Secret(),
		Issuer:       m.Issuer,
		AccountLabel: accountLabel,
	}, nil
}

// ProvisioningURI builds the otpauth:// URI for an existing secret. The output
// only depends on its inputs and the manager parameters.
func (m *Manager) ProvisioningURI(s Secret) (string, error) {
	raw, err := decodeSecret(s.Raw)
	if err != nil {
		return "", err
	}

	issuer := s.Issuer
	if issuer == "" {
		issuer = m.Issuer
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: s.AccountLabel,
		Period:      m.Period,
		Secret:      raw,
		Digits:      m.Digits,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("otpx: build uri: %w", err)
	}

	return key.URL(), nil
}

// SecretFromURI extracts the base32 secret from a provisioning URI.
func SecretFromURI(uri string) (string, error) {
	key, err := otp.NewKeyFromURL(uri)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURI, err)
	}
	if key.Type() != "totp" || key.Secret() == "" {
		return "", ErrInvalidURI
	}
	return key.Secret(), nil
}

// RenderPNG encodes the provisioning URI as a square QR code PNG.
func RenderPNG(uri string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultImageSize
	}
	if !strings.HasPrefix(uri, "otpauth://") {
		return nil, ErrInvalidURI
	}

	key, err := otp.NewKeyFromURL(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURI, err)
	}

	img, err := key.Image(size, size)
	if err != nil {
		return nil, fmt.Errorf("otpx: render qr: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("otpx: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// DataURL wraps PNG bytes so a browser can show them inline.
func DataURL(pngBytes []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes)
}

// Verify reports whether code is valid for secret at the current time.
func (m *Manager) Verify(code, secret string) bool {
	_, ok := m.VerifyAt(code, secret, m.now())
	return ok
}

// VerifyAt checks code against the steps around t and returns the matched
// step counter. Every candidate is compared in constant time and all of them
// are checked, so the time taken does not depend on which step matched.
func (m *Manager) VerifyAt(code, secret string, t time.Time) (int64, bool) {
	if !IsCode(code, m.Digits) {
		return 0, false
	}
	if _, err := decodeSecret(secret); err != nil {
		return 0, false
	}

	period := int64(m.Period)
	if period <= 0 {
		period = DefaultPeriod
	}

	counter := t.Unix() / period
	skew := int64(m.Skew)

	var (
		matched int64
		found   int
	)
	for i := -skew; i <= skew; i++ {
		step := counter + i
		want, err := totp.GenerateCodeCustom(secret, time.Unix(step*period, 0).UTC(), m.opts())
		if err != nil {
			return 0, false
		}

		hit := subtle.ConstantTimeCompare([]byte(want), []byte(code))
		// Keep the first matching step without branching on the secret data.
		take := hit & (1 - found)
		matched = int64(subtle.ConstantTimeSelect(take, int(step), int(matched)))
		found |= hit
	}

	return matched, found == 1
}

// CodeAt generates the code for secret at t. Tests and tooling use it as a
// reference generator.
func (m *Manager) CodeAt(secret string, t time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, t, m.opts())
}

// IsCode reports whether s looks like a TOTP code: exactly the expected
// number of ASCII digits.
func IsCode(s string, digits otp.Digits) bool {
	if digits == 0 {
		digits = DefaultDigits
	}
	if len(s) != digits.Length() {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// decodeSecret accepts base32 with or without padding, in either case.
func decodeSecret(secret string) ([]byte, error) {
	s := strings.ToUpper(strings.TrimSpace(secret))
	if s == "" {
		return nil, ErrInvalidSecret
	}
	if n := len(s) % 8; n != 0 {
		s += strings.Repeat("=", 8-n)
	}
	raw, err := base32.StdEncoding.DecodeString(s)
	if err != nil || len(raw) == 0 {
		return nil, ErrInvalidSecret
	}
	return raw, nil
}
