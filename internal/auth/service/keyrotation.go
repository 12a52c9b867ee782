package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/lockbox/internal/auth/domain"
	"github.com/aussiebroadwan/lockbox/pkg/cryptox"
	"github.com/aussiebroadwan/lockbox/pkg/jwtx"
	"github.com/aussiebroadwan/lockbox/pkg/slogx"
)

const algorithmEdDSA = "EdDSA"

// KeyRotationService rotates the session signing keys at runtime.
//
// Rotated keys live in memory only: a restart goes back to the configured
// key file (or fresh ephemeral keys). Retired keys stay in the KeySet, so
// sessions they signed verify until they expire or the process restarts.
type KeyRotationService struct {
	KeyManager *jwtx.KeyManager
	Now        func() time.Time

	mu   sync.Mutex
	keys map[string]domain.SigningKey
}

// NewKeyRotationService records the signers km starts with.
func NewKeyRotationService(km *jwtx.KeyManager) *KeyRotationService {
	s := &KeyRotationService{KeyManager: km, Now: time.Now, keys: map[string]domain.SigningKey{}}
	now := s.Now().UTC()
	for _, signer := range km.GetSigners() {
		s.keys[signer.KID()] = domain.SigningKey{Kid: signer.KID(), Algorithm: signer.Alg(), CreatedAt: now}
	}
	return s
}

// RotateKeyResponse represents the result of a key rotation operation.
type RotateKeyResponse struct {
	NewKey      domain.SigningKey
	RetiredKeys []domain.SigningKey
	ActiveKeys  int
}

// RotateKey generates a new signing key and optionally retires every other
// active key.
func (s *KeyRotationService) RotateKey(ctx context.Context, retireExisting bool) (*RotateKeyResponse, error) {
	kid, err := jwtx.NewKeyID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key ID: %w", err)
	}

	pemData, err := cryptox.GenerateEd25519Key()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key pair: %w", err)
	}
	signer, err := jwtx.NewSignerEdDSA(kid, pemData)
	if err != nil {
		return nil, fmt.Errorf("failed to create signer: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.KeyManager.GetSigners()
	if err := s.KeyManager.AddSigner(signer); err != nil {
		return nil, fmt.Errorf("failed to add signer to key manager: %w", err)
	}

	now := s.Now().UTC()
	newKey := domain.SigningKey{Kid: kid, Algorithm: algorithmEdDSA, CreatedAt: now}
	s.keys[kid] = newKey

	var retired []domain.SigningKey
	if retireExisting {
		for _, old := range previous {
			if err := s.KeyManager.RetireSignerByKid(old.KID()); err != nil {
				return nil, fmt.Errorf("failed to retire key %s: %w", old.KID(), err)
			}
			retired = append(retired, s.markRetired(old, now))
		}
	}

	slogx.FromContext(ctx).Info("signing key rotated",
		slog.String("kid", kid),
		slog.Int("retired", len(retired)),
	)
	return &RotateKeyResponse{
		NewKey:      newKey,
		RetiredKeys: retired,
		ActiveKeys:  s.KeyManager.NumSigners(),
	}, nil
}

// RetireKey stops signing with kid without generating a replacement.
func (s *KeyRotationService) RetireKey(ctx context.Context, kid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, signer := range s.KeyManager.GetSigners() {
		if signer.KID() != kid {
			continue
		}
		if err := s.KeyManager.RetireSignerByKid(kid); err != nil {
			return fmt.Errorf("failed to retire key: %w", err)
		}
		s.markRetired(signer, s.Now().UTC())
		slogx.FromContext(ctx).Info("signing key retired", slog.String("kid", kid))
		return nil
	}
	return fmt.Errorf("%w: %s", jwtx.ErrUnknownKID, kid)
}

// ListSigningKeys returns every key this instance knows, active and retired.
func (s *KeyRotationService) ListSigningKeys(context.Context) []domain.SigningKey {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.SigningKey, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, k)
	}
	slices.SortFunc(out, func(a, b domain.SigningKey) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Kid, b.Kid)
	})
	return out
}

func (s *KeyRotationService) markRetired(signer jwtx.Signer, now time.Time) domain.SigningKey {
	k, ok := s.keys[signer.KID()]
	if !ok {
		k = domain.SigningKey{Kid: signer.KID(), Algorithm: signer.Alg(), CreatedAt: now}
	}
	k.RetiredAt = &now
	s.keys[signer.KID()] = k
	return k
}
