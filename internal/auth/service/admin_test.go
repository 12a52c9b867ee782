package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/lockbox/internal/auth/domain"
	"github.com/aussiebroadwan/lockbox/internal/auth/service"
	"github.com/aussiebroadwan/lockbox/pkg/jwtx"
	"github.com/aussiebroadwan/lockbox/pkg/slogx"
	"github.com/aussiebroadwan/lockbox/pkg/validx"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBootstrap(t *testing.T) {
	f := newFixture(t)

	t.Run("disabled without a configured token", func(t *testing.T) {
		b := &service.BootstrapService{Store: f.store}
		_, err := b.Bootstrap(f.ctx, "", domain.BootstrapData{AdminEmail: "root@x.com"})
		require.ErrorIs(t, err, service.ErrBootstrapUnauthorized)
	})

	b := &service.BootstrapService{Store: f.store, Token: "s3cret"}

	t.Run("wrong token", func(t *testing.T) {
		_, err := b.Bootstrap(f.ctx, "guess", domain.BootstrapData{AdminEmail: "root@x.com"})
		require.ErrorIs(t, err, service.ErrBootstrapUnauthorized)
	})

	t.Run("invalid email", func(t *testing.T) {
		_, err := b.Bootstrap(f.ctx, "s3cret", domain.BootstrapData{AdminEmail: "root"})
		var fe validx.FieldErrors
		require.ErrorAs(t, err, &fe)
		require.Contains(t, fe, "admin_email")
	})

	t.Run("creates admin with generated password", func(t *testing.T) {
		res, err := b.Bootstrap(f.ctx, "s3cret", domain.BootstrapData{AdminEmail: "root@x.com", AdminName: "Root"})
		require.NoError(t, err)
		require.NotEmpty(t, res.UserID)
		require.Len(t, res.Password, 16)

		out := f.auth.Authenticate(f.ctx, service.Credentials{Email: "root@x.com", Password: res.Password}, "")
		require.Equal(t, service.OutcomeAuthenticated, out.Kind)
		require.Equal(t, domain.RoleAdmin, out.Identity.Role)

		done, err := b.IsBootstrapped(f.ctx)
		require.NoError(t, err)
		require.True(t, done)
	})

	t.Run("only once", func(t *testing.T) {
		_, err := b.Bootstrap(f.ctx, "s3cret", domain.BootstrapData{AdminEmail: "other@x.com"})
		require.ErrorIs(t, err, service.ErrBootstrapAlready)
	})
}

func TestHousekeepingCleanup(t *testing.T) {
	f := newFixture(t)
	u := f.createUser(t, "a@x.com", "correct")

	require.NoError(t, f.store.LoginChallenges().CreateChallenge(f.ctx, domain.LoginChallenge{
		ID: "old", UserID: u.ID, Email: u.Email, CreatedAt: f.now, ExpiresAt: f.now.Add(time.Minute),
	}))
	require.NoError(t, f.store.LoginChallenges().CreateChallenge(f.ctx, domain.LoginChallenge{
		ID: "fresh", UserID: u.ID, Email: u.Email, CreatedAt: f.now, ExpiresAt: f.now.Add(time.Hour),
	}))
	require.NoError(t, f.store.UsedCodes().MarkUsed(f.ctx, u.ID, 1, f.now.Add(time.Minute)))
	require.NoError(t, f.store.UsedCodes().MarkUsed(f.ctx, u.ID, 2, f.now.Add(time.Hour)))

	h := service.NewHousekeepingService(f.store, slogx.Discard(), time.Hour)
	h.Now = func() time.Time { return f.now.Add(2 * time.Minute) }
	require.Equal(t, int64(2), h.Cleanup(f.ctx))
	require.Equal(t, int64(0), h.Cleanup(f.ctx))

	f.advance(2 * time.Minute)
	_, err := f.store.LoginChallenges().GetChallenge(f.ctx, "fresh")
	require.NoError(t, err)

	t.Run("start and stop", func(t *testing.T) {
		h := service.NewHousekeepingService(f.store, slogx.Discard(), 0)
		require.Equal(t, time.Hour, h.Interval)
		h.Stop() // before Start is a no-op
		h.Start(f.ctx)
		h.Stop()
		h.Stop()
	})

	t.Run("stops with its context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(f.ctx)
		h := service.NewHousekeepingService(f.store, slogx.Discard(), time.Millisecond)
		h.Start(ctx)
		cancel()
		h.Stop()
	})
}

func TestKeyRotation(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "a@x.com", "correct")
	ctx := context.Background()

	before, err := f.issuer.SignIn(ctx, service.SignInRequest{Email: "a@x.com", Password: "correct"})
	require.NoError(t, err)

	rot := service.NewKeyRotationService(f.keys)
	require.Len(t, rot.ListSigningKeys(ctx), 1)
	original := rot.ListSigningKeys(ctx)[0].Kid

	res, err := rot.RotateKey(ctx, true)
	require.NoError(t, err)
	require.Equal(t, 1, res.ActiveKeys)
	require.Len(t, res.RetiredKeys, 1)
	require.Equal(t, original, res.RetiredKeys[0].Kid)
	require.True(t, res.NewKey.IsActive())

	_, err = f.issuer.View(before.Token)
	require.NoError(t, err, "sessions signed by the retired key still verify")

	after, err := f.issuer.SignIn(ctx, service.SignInRequest{Email: "a@x.com", Password: "correct"})
	require.NoError(t, err)
	_, err = f.issuer.View(after.Token)
	require.NoError(t, err)

	keys := rot.ListSigningKeys(ctx)
	require.Len(t, keys, 2)
	active := 0
	for _, k := range keys {
		if k.IsActive() {
			active++
			require.Equal(t, res.NewKey.Kid, k.Kid)
		}
	}
	require.Equal(t, 1, active)

	require.ErrorIs(t, rot.RetireKey(ctx, res.NewKey.Kid), jwtx.ErrLastSigner)
	require.ErrorIs(t, rot.RetireKey(ctx, original), jwtx.ErrUnknownKID)
}

func TestUserService(t *testing.T) {
	f := newFixture(t)
	users := &service.UserService{Store: f.store}

	t.Run("create", func(t *testing.T) {
		u, err := users.CreateUser(f.ctx, service.NewUser{Email: "new@x.com", Name: "New", Password: "long enough pw"})
		require.NoError(t, err)
		require.Equal(t, domain.RoleUser, u.Role)

		_, err = users.CreateUser(f.ctx, service.NewUser{Email: "NEW@x.com", Password: "long enough pw"})
		require.ErrorIs(t, err, service.ErrEmailTaken)

		_, err = users.CreateUser(f.ctx, service.NewUser{Email: "x@x.com", Password: "short"})
		var fe validx.FieldErrors
		require.ErrorAs(t, err, &fe)
		require.Contains(t, fe, "password")
	})

	t.Run("import with provider link", func(t *testing.T) {
		legacy, err := bcrypt.GenerateFromPassword([]byte("old password"), bcrypt.MinCost)
		require.NoError(t, err)

		u, err := users.ImportUser(f.ctx, service.ImportedUser{
			Email:        "imported@x.com",
			PasswordHash: string(legacy),
			Role:         domain.RoleAdmin,
			Accounts:     []service.ImportedAccount{{Provider: "github", ProviderAccountID: "42"}},
		})
		require.NoError(t, err)
		require.Equal(t, domain.RoleAdmin, u.Role)

		out := f.auth.Authenticate(f.ctx, service.Credentials{Email: "imported@x.com", Password: "old password"}, "")
		require.Equal(t, service.OutcomeAuthenticated, out.Kind)
		require.True(t, out.Session.Claims.OAuth)

		_, err = users.ImportUser(f.ctx, service.ImportedUser{Email: "md5@x.com", PasswordHash: "5f4dcc3b5aa765d61d8327deb882cf99"})
		require.ErrorIs(t, err, service.ErrUnsupportedHash)
	})

	t.Run("import rolls back on duplicate link", func(t *testing.T) {
		_, err := users.ImportUser(f.ctx, service.ImportedUser{
			Email:    "dup@x.com",
			Accounts: []service.ImportedAccount{{Provider: "github", ProviderAccountID: "42"}},
		})
		require.ErrorIs(t, err, service.ErrAccountTaken)

		_, err = f.store.Users().GetUserByEmail(f.ctx, "dup@x.com")
		require.Error(t, err)
	})

	t.Run("change password", func(t *testing.T) {
		u := f.createUser(t, "pw@x.com", "first password")

		require.ErrorIs(t, users.ChangePassword(f.ctx, u.ID, "wrong", "second password"), service.ErrWrongPassword)
		require.NoError(t, users.ChangePassword(f.ctx, u.ID, "first password", "second password"))

		out := f.auth.Authenticate(f.ctx, service.Credentials{Email: "pw@x.com", Password: "second password"}, "")
		require.Equal(t, service.OutcomeAuthenticated, out.Kind)
	})
}
