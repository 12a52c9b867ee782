package cryptox_test

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aussiebroadwan/lockbox/pkg/cryptox"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "lockbox-cryptox")
	if err != nil {
		panic(err)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

func TestHashPassword(t *testing.T) {
	for _, pw := range []string{
		"correct horse battery staple",
		"P@ssw0rd!#$%^&*()",
		strings.Repeat("a", 100),
		"",
		"пароль🔒密码",
		"   spaces   ",
	} {
		t.Run(pw, func(t *testing.T) {
			hash, err := cryptox.HashPassword(pw)
			require.NoError(t, err)
			require.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=19456,t=2,p=1$"), hash)
			require.False(t, cryptox.NeedsRehash(hash))
			require.NoError(t, cryptox.VerifyPassword(pw, hash))

			again, err := cryptox.HashPassword(pw)
			require.NoError(t, err)
			require.NotEqual(t, hash, again, "fresh salt per hash")
		})
	}
}

func TestHashPasswordUsesPepper(t *testing.T) {
	hash, err := cryptox.HashPassword("vault-master")
	require.NoError(t, err)

	parts := strings.Split(hash, "$")
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	require.NoError(t, err)
	stored, err := base64.RawStdEncoding.DecodeString(parts[5])
	require.NoError(t, err)

	unpeppered := argon2.IDKey([]byte("vault-master"), salt, 2, 19*1024, 1, uint32(len(stored)))
	require.NotEqual(t, stored, unpeppered)

	peppered := argon2.IDKey([]byte("vault-master"+cryptox.GetPepper()), salt, 2, 19*1024, 1, uint32(len(stored)))
	require.Equal(t, stored, peppered)
}

func TestVerifyPasswordMismatch(t *testing.T) {
	hash, err := cryptox.HashPassword("correct-password")
	require.NoError(t, err)

	for _, wrong := range []string{
		"wrong-password",
		"Correct-Password",
		"correct-password ",
		"",
		"correct-passwor",
		strings.Repeat("x", 10000),
	} {
		require.ErrorIs(t, cryptox.VerifyPassword(wrong, hash), cryptox.ErrPasswordMismatch, "password %q", wrong)
	}
}

func TestVerifyPasswordUnknownHash(t *testing.T) {
	tests := []struct {
		name string
		hash string
	}{
		{"empty", ""},
		{"scrypt", "$scrypt$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA"},
		{"missing parts", "$argon2id$v=19$m=19456"},
		{"bad parameters", "$argon2id$v=19$invalid$c2FsdA$aGFzaA"},
		{"bad salt", "$argon2id$v=19$m=19456,t=2,p=1$!!!invalid!!!$aGFzaA"},
		{"bad digest", "$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$!!!invalid!!!"},
		{"argon2 v18", "$argon2id$v=18$m=19456,t=2,p=1$c2FsdA$aGFzaA"},
		{"no version", "$argon2id$m=19456,t=2,p=1$c2FsdA$aGFzaA"},
		{"truncated bcrypt", "$2b$10$short"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, cryptox.VerifyPassword("test-password", tt.hash), cryptox.ErrUnknownHash)
		})
	}
}

// Imported accounts carry bcrypt digests made without the pepper.
func TestVerifyPasswordImportedBcrypt(t *testing.T) {
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		t.Run(prefix, func(t *testing.T) {
			digest, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
			require.NoError(t, err)
			imported := prefix + string(digest[4:])

			require.NoError(t, cryptox.VerifyPassword("hunter22", imported))
			require.ErrorIs(t, cryptox.VerifyPassword("hunter23", imported), cryptox.ErrPasswordMismatch)
			require.True(t, cryptox.NeedsRehash(imported))
		})
	}
}

func TestGeneratePassword(t *testing.T) {
	seen := map[string]bool{}
	for range 100 {
		pw, err := cryptox.GeneratePassword()
		require.NoError(t, err)
		require.Len(t, pw, 16)
		require.Equal(t, -1, strings.IndexFunc(pw, func(r rune) bool {
			return !('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || '0' <= r && r <= '9')
		}), pw)
		require.False(t, seen[pw], "duplicate bootstrap password")
		seen[pw] = true
	}
}
