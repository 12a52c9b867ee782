package idx_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/lockbox/pkg/idx"
	"github.com/stretchr/testify/require"
)

func TestNewAtCarriesTime(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	id := idx.NewAt(created)

	require.True(t, idx.Valid(id))
	require.True(t, created.Equal(idx.Time(id)))
}

func TestIDsSortByCreation(t *testing.T) {
	older := idx.NewAt(time.Unix(1_700_000_000, 0))
	newer := idx.NewAt(time.Unix(1_700_000_001, 0))
	require.Less(t, older, newer)

	// same millisecond: the monotonic source still orders them
	prev := idx.NewString()
	for range 100 {
		next := idx.NewString()
		require.Less(t, prev, next)
		prev = next
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{idx.NewString(), true},
		{"01HQ7T3Z1MZ0JQ3M6MZQ1FQ3ZV", true},
		{"", false},
		{"not-a-ulid", false},
		{"01HQ7T3Z1MZ0JQ3M6MZQ1FQ3Z", false},
		{"../../etc/passwd", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			require.Equal(t, tt.want, idx.Valid(tt.in))
		})
	}

	require.True(t, idx.Time("nope").IsZero())
}
