package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	httpapi "github.com/aussiebroadwan/lockbox/internal/auth/http"
	"github.com/aussiebroadwan/lockbox/internal/auth/domain"
	"github.com/aussiebroadwan/lockbox/internal/auth/login"
	"github.com/aussiebroadwan/lockbox/internal/auth/service"
	"github.com/aussiebroadwan/lockbox/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/lockbox/internal/vault"
	"github.com/aussiebroadwan/lockbox/pkg/authsdk"
	"github.com/aussiebroadwan/lockbox/pkg/cryptox"
	"github.com/aussiebroadwan/lockbox/pkg/jwtx"
	"github.com/aussiebroadwan/lockbox/pkg/otpx"
	"github.com/aussiebroadwan/lockbox/pkg/slogx"
	"github.com/stretchr/testify/require"
)

const bootstrapToken = "bootstrap-secret"

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "lockbox-http-*")
	if err != nil {
		panic(err)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

type testServer struct {
	*authsdk.SDKClient
	url    string
	store  *sqlite.Store
	issuer *service.SessionIssuer
	users  *service.UserService
	totp   *otpx.Manager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{Issuer: "lockbox-test"})
	require.NoError(t, err)

	sealer, err := cryptox.NewSealer([]byte("http test master key"))
	require.NoError(t, err)

	totp := otpx.New("Lockbox")
	issuer := &service.SessionIssuer{Store: st, KeyManager: km, TOTP: totp, Issuer: "lockbox-test"}

	r := httpapi.NewRouter(km, "test", st, slogx.Discard())
	r.LoginFlow = &login.Controller{Backend: &service.Authenticator{Store: st, Issuer: issuer}}
	r.SessionIssuer = issuer
	r.UserService = &service.UserService{Store: st}
	r.BootstrapService = &service.BootstrapService{Store: st, Token: bootstrapToken}
	r.MFAService = &service.MFAService{Store: st, TOTP: totp}
	r.KeyRotationService = service.NewKeyRotationService(km)
	r.Vault = &vault.Service{Store: st, Sealer: sealer}
	r.ApplyRoutes()

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &testServer{
		SDKClient: authsdk.NewSDKClient(srv.URL),
		url:       srv.URL,
		store:     st,
		issuer:    issuer,
		users:     r.UserService,
		totp:      totp,
	}
}

func (s *testServer) createUser(t *testing.T, email string, role domain.Role) {
	t.Helper()
	_, err := s.users.CreateUser(context.Background(), service.NewUser{
		Email: email, Password: "correct horse battery", Role: role,
	})
	require.NoError(t, err)
}

func (s *testServer) login(t *testing.T, email string) *authsdk.Session {
	t.Helper()
	sess, err := s.Login(context.Background(), authsdk.LoginRequest{Email: email, Password: "correct horse battery"})
	require.NoError(t, err)
	return sess
}

func (s *testServer) code(t *testing.T, secret string, offset time.Duration) string {
	t.Helper()
	c, err := s.totp.CodeAt(secret, time.Now().Add(offset))
	require.NoError(t, err)
	return c
}

// do sends a raw request, for cases the SDK cannot express.
func (s *testServer) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.url+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func requireAPIError(t *testing.T, err error, status int, code string) {
	t.Helper()
	var apiErr *authsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, status, apiErr.StatusCode, apiErr.Error())
	require.Equal(t, code, apiErr.Code)
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)
	s.createUser(t, "alice@example.com", domain.RoleUser)

	t.Run("password only", func(t *testing.T) {
		sess, err := s.Login(ctx, authsdk.LoginRequest{
			Email: "alice@example.com", Password: "correct horse battery", CallbackURL: "/vault/42",
		})
		require.NoError(t, err)
		require.Equal(t, "/vault/42", sess.RedirectTo())

		view, err := sess.GetSession(ctx)
		require.NoError(t, err)
		require.Equal(t, "alice@example.com", view.User.Email)
		require.Equal(t, "USER", view.User.Role)
		require.False(t, view.PendingTwoFactor)
	})

	t.Run("wrong password and unknown email answer alike", func(t *testing.T) {
		_, err := s.Login(ctx, authsdk.LoginRequest{Email: "alice@example.com", Password: "wrong"})
		requireAPIError(t, err, http.StatusUnauthorized, authsdk.ErrorCodeInvalidCredentials)

		_, err = s.Login(ctx, authsdk.LoginRequest{Email: "nobody@example.com", Password: "wrong"})
		requireAPIError(t, err, http.StatusUnauthorized, authsdk.ErrorCodeInvalidCredentials)
	})

	t.Run("malformed body", func(t *testing.T) {
		resp := s.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{"username": "alice"})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("refresh", func(t *testing.T) {
		sess := s.login(t, "alice@example.com")
		before := sess.AccessToken()
		require.NoError(t, sess.Refresh(ctx))
		require.NotEqual(t, before, sess.AccessToken())
	})
}

func TestLoginWithSecondFactor(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)
	s.createUser(t, "bob@example.com", domain.RoleUser)

	bob := s.login(t, "bob@example.com")
	enroll, err := bob.EnrollTOTP(ctx)
	require.NoError(t, err)
	require.Contains(t, enroll.URI, "otpauth://totp/")
	require.Contains(t, enroll.QRCode, "data:image/png;base64,")

	_, err = bob.VerifyTOTP(ctx, "000000")
	requireAPIError(t, err, http.StatusBadRequest, authsdk.ErrorCodeInvalidCode)

	codes, err := bob.VerifyTOTP(ctx, s.code(t, enroll.Secret, 0))
	require.NoError(t, err)
	require.NotEmpty(t, codes.Codes)

	_, err = s.Login(ctx, authsdk.LoginRequest{
		Email: "bob@example.com", Password: "correct horse battery", CallbackURL: "/vault/7",
	})
	var sf *authsdk.SecondFactorRequiredError
	require.ErrorAs(t, err, &sf)

	_, err = s.CompleteSecondFactor(ctx, sf.ChallengeID, codes.Codes[0]+"x")
	requireAPIError(t, err, http.StatusUnauthorized, authsdk.ErrorCodeInvalidSecondFactor)

	sess, err := s.CompleteSecondFactor(ctx, sf.ChallengeID, s.code(t, enroll.Secret, 30*time.Second))
	require.NoError(t, err)
	require.Equal(t, "/vault/7", sess.RedirectTo())

	view, err := sess.GetSession(ctx)
	require.NoError(t, err)
	require.True(t, view.User.TwoFactorEnabled)

	// the challenge is spent
	_, err = s.CompleteSecondFactor(ctx, sf.ChallengeID, codes.Codes[1])
	requireAPIError(t, err, http.StatusUnauthorized, authsdk.ErrorCodeInvalidCredentials)

	n, err := sess.BackupCodesRemaining(ctx)
	require.NoError(t, err)
	require.Equal(t, len(codes.Codes), n)
}

func TestPendingTokensAreRefused(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)
	s.createUser(t, "carol@example.com", domain.RoleAdmin)

	carol := s.login(t, "carol@example.com")
	enroll, err := carol.EnrollTOTP(ctx)
	require.NoError(t, err)
	_, err = carol.VerifyTOTP(ctx, s.code(t, enroll.Secret, 0))
	require.NoError(t, err)

	issued, err := s.issuer.SignIn(ctx, service.SignInRequest{Email: "carol@example.com", Password: "correct horse battery"})
	require.NoError(t, err)
	require.True(t, issued.PendingTwoFactor())

	pending := s.NewSessionFromToken(issued.Token, 600)

	view, err := pending.GetSession(ctx)
	require.NoError(t, err)
	require.True(t, view.PendingTwoFactor)

	_, err = pending.ListItems(ctx)
	requireAPIError(t, err, http.StatusUnauthorized, authsdk.ErrorCodeInvalidToken)

	_, err = pending.ListKeys(ctx)
	requireAPIError(t, err, http.StatusUnauthorized, authsdk.ErrorCodeInvalidToken)

	err = pending.ChangePassword(ctx, "correct horse battery", "another long password")
	requireAPIError(t, err, http.StatusUnauthorized, authsdk.ErrorCodeInvalidToken)
}

func TestVault(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)
	s.createUser(t, "dave@example.com", domain.RoleUser)
	s.createUser(t, "erin@example.com", domain.RoleUser)
	dave := s.login(t, "dave@example.com")
	erin := s.login(t, "erin@example.com")

	item, err := dave.CreateItem(ctx, authsdk.VaultItemRequest{Title: "bank", Password: "s3cret", URL: "https://bank.example"})
	require.NoError(t, err)

	got, err := dave.GetItem(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, "s3cret", got.Password)

	_, err = erin.GetItem(ctx, item.ID)
	require.ErrorIs(t, err, authsdk.ErrNotFound)

	erinItems, err := erin.ListItems(ctx)
	require.NoError(t, err)
	require.Empty(t, erinItems)

	notes := "rotated yearly"
	updated, err := dave.UpdateItem(ctx, item.ID, authsdk.VaultItemPatch{Notes: &notes})
	require.NoError(t, err)
	require.Equal(t, "rotated yearly", updated.Notes)
	require.Equal(t, "s3cret", updated.Password)

	_, err = dave.CreateItem(ctx, authsdk.VaultItemRequest{Title: "x", Password: "p", URL: "not a url"})
	requireAPIError(t, err, http.StatusBadRequest, authsdk.ErrorCodeValidation)

	require.NoError(t, dave.DeleteItem(ctx, item.ID))
	require.NoError(t, dave.DeleteItem(ctx, item.ID))

	items, err := dave.ListItems(ctx)
	require.NoError(t, err)
	require.Empty(t, items)

	resp := s.do(t, http.MethodGet, "/v1/vault", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)
	s.createUser(t, "frank@example.com", domain.RoleUser)
	frank := s.login(t, "frank@example.com")

	err := frank.ChangePassword(ctx, "wrong", "a much longer password")
	requireAPIError(t, err, http.StatusUnauthorized, authsdk.ErrorCodeInvalidCredentials)

	err = frank.ChangePassword(ctx, "correct horse battery", "short")
	requireAPIError(t, err, http.StatusBadRequest, authsdk.ErrorCodeValidation)

	require.NoError(t, frank.ChangePassword(ctx, "correct horse battery", "a much longer password"))

	_, err = s.Login(ctx, authsdk.LoginRequest{Email: "frank@example.com", Password: "a much longer password"})
	require.NoError(t, err)
}

func TestAdminEndpoints(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)
	s.createUser(t, "root@example.com", domain.RoleAdmin)
	s.createUser(t, "user@example.com", domain.RoleUser)
	admin := s.login(t, "root@example.com")
	user := s.login(t, "user@example.com")

	t.Run("users cannot administer", func(t *testing.T) {
		_, err := user.CreateUser(ctx, authsdk.CreateUserRequest{Email: "x@example.com", Password: "long enough password"})
		requireAPIError(t, err, http.StatusForbidden, authsdk.ErrorCodeAccessDenied)

		_, err = user.RotateKey(ctx, authsdk.RotateKeyRequest{})
		requireAPIError(t, err, http.StatusForbidden, authsdk.ErrorCodeAccessDenied)
	})

	t.Run("create user", func(t *testing.T) {
		u, err := admin.CreateUser(ctx, authsdk.CreateUserRequest{Email: "new@example.com", Password: "long enough password"})
		require.NoError(t, err)
		require.Equal(t, "USER", u.Role)

		_, err = admin.CreateUser(ctx, authsdk.CreateUserRequest{Email: "new@example.com", Password: "long enough password"})
		requireAPIError(t, err, http.StatusConflict, authsdk.ErrorCodeConflict)

		_, err = admin.CreateUser(ctx, authsdk.CreateUserRequest{Email: "r@example.com", Password: "long enough password", Role: "OWNER"})
		requireAPIError(t, err, http.StatusBadRequest, authsdk.ErrorCodeValidation)
	})

	t.Run("import user", func(t *testing.T) {
		u, err := admin.ImportUser(ctx, authsdk.ImportUserRequest{
			Email:    "old@example.com",
			Accounts: []authsdk.LinkedAccount{{Provider: "github", ProviderAccountID: "42"}},
		})
		require.NoError(t, err)
		require.False(t, u.TwoFactorEnabled)

		_, err = admin.ImportUser(ctx, authsdk.ImportUserRequest{Email: "md5@example.com", PasswordHash: "5f4dcc3b5aa765d61d8327deb882cf99"})
		requireAPIError(t, err, http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest)
	})

	t.Run("key rotation", func(t *testing.T) {
		keys, err := admin.ListKeys(ctx)
		require.NoError(t, err)
		require.Len(t, keys, 1)

		rotated, err := admin.RotateKey(ctx, authsdk.RotateKeyRequest{RetireExisting: true})
		require.NoError(t, err)
		require.Equal(t, 1, rotated.ActiveKeys)
		require.Len(t, rotated.RetiredKeys, 1)

		// sessions signed by the retired key still verify
		_, err = admin.GetSession(ctx)
		require.NoError(t, err)

		err = admin.RetireKey(ctx, rotated.NewKey.Kid)
		requireAPIError(t, err, http.StatusConflict, authsdk.ErrorCodeConflict)

		err = admin.RetireKey(ctx, "nope")
		requireAPIError(t, err, http.StatusNotFound, authsdk.ErrorCodeNotFound)

		jwks, err := s.GetJWKS(ctx)
		require.NoError(t, err)
		require.Len(t, jwks.Keys, 2)
	})
}

func TestBootstrap(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)

	_, err := s.Bootstrap(ctx, "wrong", authsdk.BootstrapRequest{AdminEmail: "root@example.com"})
	requireAPIError(t, err, http.StatusUnauthorized, authsdk.ErrorCodeAccessDenied)

	resp := s.do(t, http.MethodPost, "/v1/bootstrap", "", authsdk.BootstrapRequest{AdminEmail: "root@example.com"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	out, err := s.Bootstrap(ctx, bootstrapToken, authsdk.BootstrapRequest{AdminEmail: "root@example.com"})
	require.NoError(t, err)
	require.NotEmpty(t, out.AdminPassword, "generated password is returned once")

	admin, err := s.Login(ctx, authsdk.LoginRequest{Email: "root@example.com", Password: out.AdminPassword})
	require.NoError(t, err)
	view, err := admin.GetSession(ctx)
	require.NoError(t, err)
	require.Equal(t, "ADMIN", view.User.Role)

	_, err = s.Bootstrap(ctx, bootstrapToken, authsdk.BootstrapRequest{AdminEmail: "again@example.com"})
	requireAPIError(t, err, http.StatusUnauthorized, authsdk.ErrorCodeAccessDenied)
}

func TestHealth(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)

	live, err := s.GetLiveness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", live.Status)
	require.Equal(t, "test", live.Version)

	ready, err := s.GetReadiness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", ready.Status)
	require.Equal(t, "ok", ready.Checks.Database)
	require.Equal(t, "ok", ready.Checks.Replay)

	require.NoError(t, s.store.Close())
	_, err = s.GetReadiness(ctx)
	require.Error(t, err)
}

func TestReadyzReportsReplayStore(t *testing.T) {
	s := newTestServer(t)
	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{Issuer: "x"})
	require.NoError(t, err)

	h := httpapi.ReadyzHandler(time.Now(), "test", s.store, km.KeySet, failingPinger{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var out authsdk.HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	require.Equal(t, "degraded", out.Status)
	require.Contains(t, out.Checks.Replay, "redis down")
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("redis down") }
