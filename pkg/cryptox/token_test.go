package cryptox_test

import (
	"testing"

	"github.com/aussiebroadwan/lockbox/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestRandomToken(t *testing.T) {
	tests := []struct {
		size    int
		wantLen int
	}{
		{cryptox.KeyIDBytes, 16},
		{cryptox.BackupCodeBytes, 22},
		{cryptox.ChallengeBytes, 43},
	}
	for _, tt := range tests {
		seen := map[string]bool{}
		for range 50 {
			tok, err := cryptox.RandomToken(tt.size)
			require.NoError(t, err)
			require.Len(t, tok, tt.wantLen)
			require.NotContains(t, tok, "=")
			require.False(t, seen[tok])
			seen[tok] = true
		}
	}

	for _, n := range []int{0, -1} {
		tok, err := cryptox.RandomToken(n)
		require.Error(t, err)
		require.Empty(t, tok)
	}
}

func TestBackupCodes(t *testing.T) {
	code, err := cryptox.NewBackupCode()
	require.NoError(t, err)
	require.Len(t, code, 26)
	require.Regexp(t, `^[A-Z2-7]+$`, code)
	require.Equal(t, code, cryptox.NormalizeBackupCode(code))

	other, err := cryptox.NewBackupCode()
	require.NoError(t, err)
	require.NotEqual(t, code, other)
}

func TestNormalizeBackupCode(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"ABCD2345", "ABCD2345"},
		{"abcd2345", "ABCD2345"},
		{"abcd-2345", "ABCD2345"},
		{" ABCD 2345\t", "ABCD2345"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			require.Equal(t, tt.want, cryptox.NormalizeBackupCode(tt.in))
		})
	}
}

func TestFingerprint(t *testing.T) {
	a := cryptox.Fingerprint("challenge-a")
	require.Equal(t, a, cryptox.Fingerprint("challenge-a"))
	require.NotEqual(t, a, cryptox.Fingerprint("challenge-b"))
	require.Len(t, a, 43)
	// sha256("") in base64url
	require.Equal(t, "47DEQpj8HBSa-_TImW-5JCeuQeRkm5NMpJWZG3hSuFU", cryptox.Fingerprint(""))
}
