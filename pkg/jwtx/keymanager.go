package jwtx

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"

	"github.com/aussiebroadwan/lockbox/pkg/cryptox"
)

var (
	// ErrLastSigner refuses to leave a KeyManager without a signing key.
	ErrLastSigner = errors.New("jwtx: cannot retire the last signing key")
	ErrNoKey      = errors.New("jwtx: no signing key")
)

// KeyManager owns the Ed25519 signing keys of a lockbox instance together
// with the verifier and KeySet derived from them.
type KeyManager struct {
	Verifier Verifier
	KeySet   *KeySet

	signers []Signer
	mu      sync.RWMutex
}

// KeyManagerOptions configures the KeyManager.
type KeyManagerOptions struct {
	// Issuer is the iss claim validated on every token. Required.
	Issuer string

	// Audience values the token must carry. Empty means no audience check.
	Audience []string

	// NumKeys is how many ephemeral signing keys to generate. Defaults to 1,
	// capped at 10. Ignored when KeyFile is set.
	NumKeys int

	// KeyFile, when set, holds a PKCS8 PEM Ed25519 key. It is created on
	// first start so tokens survive restarts.
	KeyFile string
}

// NewKeyManager builds a KeyManager. With a KeyFile the single key is loaded
// from (or generated into) that file, otherwise NumKeys ephemeral keys are
// generated and every token dies with the process.
func NewKeyManager(opts KeyManagerOptions) (*KeyManager, error) {
	if opts.Issuer == "" {
		return nil, errors.New("jwtx: Issuer is required")
	}

	var pems [][]byte
	if opts.KeyFile != "" {
		pemKey, err := loadOrGenerateKey(opts.KeyFile)
		if err != nil {
			return nil, err
		}
		pems = append(pems, pemKey)
	} else {
		n := min(max(opts.NumKeys, 1), 10)
		for range n {
			pemKey, err := cryptox.GenerateEd25519Key()
			if err != nil {
				return nil, err
			}
			pems = append(pems, pemKey)
		}
	}

	km := &KeyManager{KeySet: NewKeySet()}
	for i, pemKey := range pems {
		kid, err := keyID(opts.KeyFile, i)
		if err != nil {
			return nil, err
		}
		signer, err := NewSignerEdDSA(kid, pemKey)
		if err != nil {
			return nil, fmt.Errorf("jwtx: signer %d: %w", i+1, err)
		}
		if err := km.AddSigner(signer); err != nil {
			return nil, err
		}
	}

	km.Verifier = NewVerifier(km.KeySet, VerifyOptions{
		Issuer:   opts.Issuer,
		Audience: opts.Audience,
	})
	return km, nil
}

// NewEphemeralKeyManager is NewKeyManager without a key file.
func NewEphemeralKeyManager(opts KeyManagerOptions) (*KeyManager, error) {
	opts.KeyFile = ""
	return NewKeyManager(opts)
}

// IsReady returns true if the KeyManager has valid keys loaded.
func (km *KeyManager) IsReady() bool {
	return km.KeySet.IsReady()
}

// GetSigner returns one of the active signers, picked at random when there
// are several.
func (km *KeyManager) GetSigner() Signer {
	km.mu.RLock()
	defer km.mu.RUnlock()

	switch len(km.signers) {
	case 0:
		return nil
	case 1:
		return km.signers[0]
	default:
		return km.signers[rand.IntN(len(km.signers))]
	}
}

// NumSigners returns the number of active signing keys.
func (km *KeyManager) NumSigners() int {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return len(km.signers)
}

// GetSigners returns a copy of the active signers.
func (km *KeyManager) GetSigners() []Signer {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return append([]Signer(nil), km.signers...)
}

// RetireSignerByKid stops signing with kid. The public key stays in the
// KeySet so tokens it already signed keep verifying until they expire. The
// last active signer cannot be retired.
func (km *KeyManager) RetireSignerByKid(kid string) error {
	km.mu.Lock()
	defer km.mu.Unlock()

	for i, s := range km.signers {
		if s.KID() != kid {
			continue
		}
		if len(km.signers) == 1 {
			return ErrLastSigner
		}
		km.signers = append(km.signers[:i:i], km.signers[i+1:]...)
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnknownKID, kid)
}

// AddSigner adds a signing key to both the active list and the KeySet.
func (km *KeyManager) AddSigner(signer Signer) error {
	if signer == nil {
		return errors.New("jwtx: signer cannot be nil")
	}

	km.mu.Lock()
	defer km.mu.Unlock()

	if err := km.KeySet.AddSigner(signer); err != nil {
		return fmt.Errorf("jwtx: add signer to keyset: %w", err)
	}
	km.signers = append(km.signers, signer)
	return nil
}

// Sign signs claims with one of the active keys.
func (km *KeyManager) Sign(c Claims) (string, error) {
	s := km.GetSigner()
	if s == nil {
		return "", ErrNoKey
	}
	return s.Sign(c)
}

func loadOrGenerateKey(path string) ([]byte, error) {
	path = filepath.Clean(path)

	pemKey, err := os.ReadFile(path)
	if err == nil {
		return pemKey, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("jwtx: read key file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, err
	}
	pemKey, err = cryptox.GenerateEd25519Key()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, pemKey, 0600); err != nil {
		return nil, fmt.Errorf("jwtx: write key file: %w", err)
	}
	return pemKey, nil
}

// keyID derives a stable kid for a file-backed key and a random one for
// ephemeral keys.
func keyID(keyFile string, i int) (string, error) {
	if keyFile != "" {
		return fmt.Sprintf("lockbox-%s", cryptox.Fingerprint(filepath.Base(keyFile))[:16]), nil
	}
	kid, err := NewKeyID()
	if err != nil {
		return "", fmt.Errorf("jwtx: key id %d: %w", i+1, err)
	}
	return kid, nil
}

// NewKeyID returns a random kid for a freshly generated key.
func NewKeyID() (string, error) {
	token, err := cryptox.RandomToken(cryptox.KeyIDBytes)
	if err != nil {
		return "", err
	}
	return "lockbox-" + token, nil
}
