package cryptox_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/aussiebroadwan/lockbox/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestEd25519KeyRoundTrip(t *testing.T) {
	pemKey, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)

	key, err := cryptox.ParseEd25519Key(pemKey)
	require.NoError(t, err)

	msg := []byte("session")
	sig := ed25519.Sign(key, msg)
	require.True(t, ed25519.Verify(key.Public().(ed25519.PublicKey), msg, sig))

	other, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	require.NotEqual(t, pemKey, other)
}

func TestParseEd25519KeyRejects(t *testing.T) {
	ec, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	ecDER, err := x509.MarshalPKCS8PrivateKey(ec)
	require.NoError(t, err)

	good, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	block, _ := pem.Decode(good)

	tests := []struct {
		name string
		in   []byte
	}{
		{"not pem", []byte("not-a-pem-key")},
		{"wrong block type", pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: block.Bytes})},
		{"corrupt der", pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: block.Bytes[:10]})},
		{"p256 key", pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: ecDER})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := cryptox.ParseEd25519Key(tt.in)
			require.ErrorIs(t, err, cryptox.ErrNotEd25519)
		})
	}
}
