package jwtx_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/lockbox/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestNewEphemeralKeyManager(t *testing.T) {
	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{Issuer: exampleIssuer})
	require.NoError(t, err)
	require.NotNil(t, km.Verifier)
	require.True(t, km.IsReady())
	require.Equal(t, 1, km.NumSigners())
}

func TestNewKeyManager_RequiresIssuer(t *testing.T) {
	km, err := jwtx.NewKeyManager(jwtx.KeyManagerOptions{})
	require.Error(t, err)
	require.Nil(t, km)
	require.Contains(t, err.Error(), "Issuer is required")
}

func TestKeyManager_SignAndVerifyRoundTrip(t *testing.T) {
	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{Issuer: exampleIssuer, NumKeys: 3})
	require.NoError(t, err)

	kids := map[string]bool{}
	for _, k := range km.KeySet.PublicJWKS().Keys {
		require.False(t, kids[k.Kid], "duplicate kid %s", k.Kid)
		kids[k.Kid] = true
	}
	require.Len(t, kids, 3)

	for range 10 {
		claims := sessionClaims(time.Now().UTC())
		token, err := km.Sign(claims)
		require.NoError(t, err)

		parsed, err := km.Verifier.Verify(token)
		require.NoError(t, err)
		require.Equal(t, claims.Subject, parsed.Subject)
		require.Equal(t, claims.SessionClaims, parsed.SessionClaims)
	}
}

func TestKeyManager_CustomNumKeys(t *testing.T) {
	tests := []struct {
		name     string
		numKeys  int
		expected int
	}{
		{"explicit 2 keys", 2, 2},
		{"max capped at 10", 15, 10},
		{"zero defaults to 1", 0, 1},
		{"negative defaults to 1", -1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
				Issuer:  exampleIssuer,
				NumKeys: tt.numKeys,
			})
			require.NoError(t, err)
			require.Equal(t, tt.expected, km.NumSigners())
			require.Len(t, km.KeySet.PublicJWKS().Keys, tt.expected)
		})
	}
}

func TestKeyManager_KeyFileSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "signing.pem")

	first, err := jwtx.NewKeyManager(jwtx.KeyManagerOptions{Issuer: exampleIssuer, KeyFile: path})
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	token, err := first.Sign(sessionClaims(time.Now().UTC()))
	require.NoError(t, err)

	second, err := jwtx.NewKeyManager(jwtx.KeyManagerOptions{Issuer: exampleIssuer, KeyFile: path})
	require.NoError(t, err)

	parsed, err := second.Verifier.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "user-456", parsed.Subject)
}

func TestKeyManager_RetireSignerByKid(t *testing.T) {
	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{Issuer: exampleIssuer, NumKeys: 2})
	require.NoError(t, err)

	signers := km.GetSigners()
	require.Len(t, signers, 2)
	retired, kept := signers[0], signers[1]

	// token signed before retirement
	oldToken, err := retired.Sign(sessionClaims(time.Now().UTC()))
	require.NoError(t, err)

	require.NoError(t, km.RetireSignerByKid(retired.KID()))
	require.Equal(t, 1, km.NumSigners())
	require.Equal(t, kept.KID(), km.GetSigner().KID())

	_, err = km.Verifier.Verify(oldToken)
	require.NoError(t, err, "retired key still verifies")

	require.ErrorIs(t, km.RetireSignerByKid("missing"), jwtx.ErrUnknownKID)
	require.ErrorIs(t, km.RetireSignerByKid(kept.KID()), jwtx.ErrLastSigner)
}
