package session_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/lockbox/internal/auth/domain"
	"github.com/aussiebroadwan/lockbox/internal/auth/session"
	"github.com/aussiebroadwan/lockbox/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

var now = time.Unix(1_700_000_000, 0).UTC()

func enabledUser(role domain.Role) domain.User {
	secret := "JBSWY3DPEHPK3PXP"
	return domain.User{
		ID:         "u1",
		Email:      "a@x.com",
		Name:       "Ada",
		Role:       role,
		MFAEnabled: &now,
		MFASecret:  &secret,
	}
}

func TestMint(t *testing.T) {
	base := jwtx.NewSessionClaims("u1", "lockbox", time.Hour, now)

	pending := base
	pending.PendingTwoFactor = true

	tests := []struct {
		name        string
		prior       jwtx.Claims
		snap        *session.Snapshot
		authn       *session.Authentication
		wantPending bool
		wantRole    string
		unchanged   bool
	}{
		{
			name:     "fresh login copies identity",
			prior:    base,
			snap:     &session.Snapshot{User: enabledUser(domain.RoleAdmin), OAuth: true},
			authn:    &session.Authentication{},
			wantRole: "ADMIN",
		},
		{
			name:        "pending propagates",
			prior:       base,
			snap:        &session.Snapshot{User: enabledUser(domain.RoleAdmin)},
			authn:       &session.Authentication{PendingTwoFactor: true},
			wantPending: true,
			wantRole:    "ADMIN",
		},
		{
			name:     "explicit false clears pending",
			prior:    pending,
			snap:     &session.Snapshot{User: enabledUser(domain.RoleUser)},
			authn:    &session.Authentication{PendingTwoFactor: false},
			wantRole: "USER",
		},
		{
			name:        "refresh keeps pending",
			prior:       pending,
			snap:        &session.Snapshot{User: enabledUser(domain.RoleUser)},
			authn:       nil,
			wantPending: true,
			wantRole:    "USER",
		},
		{
			name:      "missing subject is identity",
			prior:     jwtx.Claims{},
			snap:      &session.Snapshot{User: enabledUser(domain.RoleAdmin)},
			authn:     &session.Authentication{},
			unchanged: true,
		},
		{
			name:        "vanished user is identity",
			prior:       pending,
			snap:        nil,
			authn:       &session.Authentication{},
			unchanged:   true,
			wantPending: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := session.Mint(tt.prior, tt.snap, tt.authn)
			if tt.unchanged {
				require.Equal(t, tt.prior, got)
				return
			}

			require.Equal(t, tt.wantPending, got.PendingTwoFactor)
			require.Equal(t, tt.wantRole, got.Role)
			require.Equal(t, tt.snap.User.TwoFactorEnabled(), got.TwoFactorEnabled)
			require.Equal(t, tt.snap.OAuth, got.OAuth)
			require.Equal(t, tt.snap.User.Email, got.Email)
			require.Equal(t, tt.snap.User.Name, got.Name)
			require.Equal(t, tt.prior.RegisteredClaims, got.RegisteredClaims)
		})
	}
}

func TestMintDoesNotMutatePrior(t *testing.T) {
	prior := jwtx.NewSessionClaims("u1", "lockbox", time.Hour, now)
	_ = session.Mint(prior, &session.Snapshot{User: enabledUser(domain.RoleAdmin)}, &session.Authentication{PendingTwoFactor: true})
	require.Empty(t, prior.Role)
	require.False(t, prior.PendingTwoFactor)
}

func TestProject(t *testing.T) {
	t.Run("copies every field", func(t *testing.T) {
		c := jwtx.NewSessionClaims("u1", "lockbox", time.Hour, now)
		c = session.Mint(c, &session.Snapshot{User: enabledUser(domain.RoleAdmin), OAuth: true}, &session.Authentication{})

		v := session.Project(c)
		require.Equal(t, session.User{
			ID:               "u1",
			Name:             "Ada",
			Email:            "a@x.com",
			Role:             domain.RoleAdmin,
			TwoFactorEnabled: true,
			OAuth:            true,
		}, v.User)
		require.False(t, v.PendingTwoFactor)
		require.Equal(t, now.Add(time.Hour), v.Expires)
		require.True(t, v.Authenticated())
		require.True(t, v.HasRole(domain.RoleAdmin))
		require.False(t, v.HasRole(domain.RoleUser))
		require.NoError(t, v.Require())
	})

	t.Run("missing role is empty and not an error", func(t *testing.T) {
		c := jwtx.NewSessionClaims("u1", "lockbox", time.Hour, now)
		v := session.Project(c)
		require.Equal(t, domain.RoleNone, v.User.Role)
		require.True(t, v.Authenticated())
		require.False(t, v.HasRole(domain.RoleAdmin, domain.RoleUser))
	})

	t.Run("unknown role degrades to none", func(t *testing.T) {
		c := jwtx.NewSessionClaims("u1", "lockbox", time.Hour, now)
		c.Role = "ROOT"
		require.Equal(t, domain.RoleNone, session.Project(c).User.Role)
	})

	t.Run("pending session grants nothing", func(t *testing.T) {
		c := jwtx.NewSessionClaims("u1", "lockbox", time.Hour, now)
		c = session.Mint(c, &session.Snapshot{User: enabledUser(domain.RoleAdmin)}, &session.Authentication{PendingTwoFactor: true})

		v := session.Project(c)
		require.True(t, v.PendingTwoFactor)
		require.False(t, v.Authenticated())
		require.False(t, v.HasRole(domain.RoleAdmin))
		require.ErrorIs(t, v.Require(), session.ErrUnauthenticated)
	})

	t.Run("no subject is the zero view", func(t *testing.T) {
		require.Equal(t, session.View{}, session.Project(jwtx.Claims{}))
		require.False(t, session.View{}.Authenticated())
	})
}
