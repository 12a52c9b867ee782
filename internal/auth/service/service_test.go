package service_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/lockbox/internal/auth/domain"
	"github.com/aussiebroadwan/lockbox/internal/auth/service"
	"github.com/aussiebroadwan/lockbox/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/lockbox/pkg/cryptox"
	"github.com/aussiebroadwan/lockbox/pkg/idx"
	"github.com/aussiebroadwan/lockbox/pkg/jwtx"
	"github.com/aussiebroadwan/lockbox/pkg/otpx"
	"github.com/stretchr/testify/require"
)

const testIssuer = "https://lockbox.test"

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "lockbox-service-*")
	if err != nil {
		panic(err)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

type fixture struct {
	ctx    context.Context
	store  *sqlite.Store
	keys   *jwtx.KeyManager
	totp   *otpx.Manager
	issuer *service.SessionIssuer
	auth   *service.Authenticator
	mfa    *service.MFAService
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())

	keys, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{Issuer: testIssuer})
	require.NoError(t, err)

	// Tokens are verified against the wall clock, so stay close to it.
	f := &fixture{
		ctx:   context.Background(),
		store: s,
		keys:  keys,
		totp:  otpx.New("Lockbox"),
		now:   time.Now().UTC().Truncate(time.Second),
	}
	clock := func() time.Time { return f.now }
	s.Now = clock

	f.issuer = &service.SessionIssuer{
		Store:      s,
		KeyManager: keys,
		TOTP:       f.totp,
		Issuer:     testIssuer,
		TTL:        10 * time.Minute,
		Now:        clock,
	}
	f.auth = &service.Authenticator{Store: s, Issuer: f.issuer, Now: clock}
	f.mfa = &service.MFAService{Store: s, TOTP: f.totp, Now: clock}
	return f
}

// advance moves the fixture clock by d.
func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func (f *fixture) createUser(t *testing.T, email, password string) domain.User {
	t.Helper()

	hash, err := cryptox.HashPassword(password)
	require.NoError(t, err)

	u := domain.User{
		ID:           idx.NewString(),
		Email:        email,
		Name:         "Alice",
		PasswordHash: hash,
		Role:         domain.RoleUser,
	}
	require.NoError(t, f.store.Users().CreateUser(f.ctx, u))
	return u
}

// enableTOTP turns on two-factor for u and returns the secret.
func (f *fixture) enableTOTP(t *testing.T, u domain.User) string {
	t.Helper()

	secret, err := f.totp.GenerateSecret(u.Email)
	require.NoError(t, err)
	require.NoError(t, f.store.Users().UpdateMFASecret(f.ctx, u.ID, secret.Raw))
	require.NoError(t, f.store.Users().EnableMFA(f.ctx, u.ID))
	return secret.Raw
}

func (f *fixture) code(t *testing.T, secret string) string {
	t.Helper()
	c, err := f.totp.CodeAt(secret, f.now)
	require.NoError(t, err)
	return c
}

// wrongCode returns a well-formed code that does not verify right now.
func (f *fixture) wrongCode(t *testing.T, secret string) string {
	t.Helper()
	for _, c := range []string{"000000", "111111", "222222", "333333"} {
		if _, ok := f.totp.VerifyAt(c, secret, f.now); !ok {
			return c
		}
	}
	t.Fatal("no wrong code found")
	return ""
}
