//go:build e2e

package lockbox_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/aussiebroadwan/lockbox/pkg/authsdk"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/network"
	"github.com/testcontainers/testcontainers-go/wait"
)

/*
 * Common constants and helper functions for lockbox end-to-end tests.
 * This includes container setup, service operations, and assertions.
 */

const (
	testImageName  = "lockbox-test:latest"
	redisImageName = "redis:7-alpine"

	bootstrapToken = "test-bootstrap-token-12345"
	adminEmail     = "admin@lockbox.test"
	adminName      = "Administrator"
	adminPassword  = "Admin123!Admin123!"
)

// relaxedRateLimits keeps tests that make many rapid requests under the
// limits. The rate limit test runs without them.
var relaxedRateLimits = map[string]string{
	"RATELIMIT_STRICT_REQUESTS":   "1000",
	"RATELIMIT_STRICT_WINDOW_SEC": "60",
	"RATELIMIT_STRICT_BURST":      "1000",
	"RATELIMIT_MODERATE_REQUESTS": "1000",
	"RATELIMIT_MODERATE_BURST":    "1000",
}

// TestMain builds the Docker image once before all tests and cleans it up
// after all tests complete.
func TestMain(m *testing.M) {
	fmt.Fprintf(os.Stdout, "Building lockbox Docker image...")

	if err := buildDockerImage(); err != nil {
		fmt.Fprintf(os.Stderr, "\nFailed to build Docker image: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, " done\n")

	exitCode := m.Run()

	fmt.Fprintf(os.Stdout, "Cleaning up lockbox Docker image...")
	cleanupDockerImage()
	fmt.Fprintf(os.Stdout, " done\n")

	os.Exit(exitCode)
}

func buildDockerImage() error {
	ctx := context.Background()
	cmd := exec.CommandContext(ctx, "docker", "build",
		"-t", testImageName,
		"-f", "../../../cmd/lockbox/Dockerfile",
		"../../../")
	cmd.Dir = "."
	cmd.Stdout = os.Stdout
	cmd.Stderr = nil

	return cmd.Run()
}

func cleanupDockerImage() {
	ctx := context.Background()
	cmd := exec.CommandContext(ctx, "docker", "rmi", "-f", testImageName)
	_ = cmd.Run() // Ignore errors - image might not exist
}

type containerOptions struct {
	redis      bool // record used TOTP steps in a redis sidecar
	rateLimits map[string]string
}

// setupLockbox starts the service (and its redis sidecar when asked) and
// returns the base URL. Containers are terminated when the test ends.
func setupLockbox(t *testing.T, opts containerOptions) string {
	t.Helper()
	ctx := context.Background()

	env := map[string]string{
		"BOOTSTRAP_TOKEN": bootstrapToken,
		"LOCKBOX_ISSUER":  "lockbox-e2e",
		"ENV":             "test",
		"LOG_LEVEL":       "info",
		"LOG_FORMAT":      "json",
	}
	for k, v := range opts.rateLimits {
		env[k] = v
	}

	req := testcontainers.ContainerRequest{
		Image:        testImageName,
		ExposedPorts: []string{"8080/tcp"},
		Env:          env,
		WaitingFor: wait.ForHTTP("/livez").
			WithPort("8080/tcp").
			WithStartupTimeout(60 * time.Second),
	}

	if opts.redis {
		nw, err := network.New(ctx)
		require.NoError(t, err)
		t.Cleanup(func() { _ = nw.Remove(ctx) })

		redis, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:          redisImageName,
				ExposedPorts:   []string{"6379/tcp"},
				Networks:       []string{nw.Name},
				NetworkAliases: map[string][]string{nw.Name: {"redis"}},
				WaitingFor:     wait.ForLog("Ready to accept connections"),
			},
			Started: true,
		})
		require.NoError(t, err)
		t.Cleanup(func() { terminate(t, redis) })

		req.Networks = []string{nw.Name}
		env["LOCKBOX_REPLAY_BACKEND"] = "redis"
		env["LOCKBOX_REDIS_URL"] = "redis://redis:6379/0"
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { terminate(t, container) })

	mappedPort, err := container.MappedPort(ctx, "8080")
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	return fmt.Sprintf("http://%s:%s", host, mappedPort.Port())
}

func terminate(t *testing.T, c testcontainers.Container) {
	if err := c.Terminate(context.Background()); err != nil {
		t.Logf("failed to terminate container: %v", err)
	}
}

// bootstrapAdmin creates the first administrator and logs in as them.
func bootstrapAdmin(t *testing.T, client *authsdk.SDKClient) *authsdk.Session {
	t.Helper()

	resp, err := client.Bootstrap(t.Context(), bootstrapToken, authsdk.BootstrapRequest{
		AdminEmail:    adminEmail,
		AdminName:     adminName,
		AdminPassword: adminPassword,
	})
	require.NoError(t, err, "Bootstrap should succeed")
	require.NotEmpty(t, resp.AdminUserID)
	require.Empty(t, resp.AdminPassword, "A supplied password is never echoed")

	return login(t, client, adminEmail, adminPassword)
}

// createUser has admin create a USER account.
func createUser(t *testing.T, admin *authsdk.Session, email, password string) {
	t.Helper()

	u, err := admin.CreateUser(t.Context(), authsdk.CreateUserRequest{Email: email, Password: password})
	require.NoError(t, err)
	require.Equal(t, "USER", u.Role)
}

func login(t *testing.T, client *authsdk.SDKClient, email, password string) *authsdk.Session {
	t.Helper()

	s, err := client.Login(t.Context(), authsdk.LoginRequest{Email: email, Password: password})
	require.NoError(t, err, "Login should succeed")
	require.NotEmpty(t, s.AccessToken())
	return s
}

// totpCode returns the code for the step offset steps from now. Each
// consumed step is burnt, so tests use a fresh offset for every code.
func totpCode(t *testing.T, secret string, offset int) string {
	t.Helper()

	code, err := totp.GenerateCode(secret, time.Now().Add(time.Duration(offset)*30*time.Second))
	require.NoError(t, err)
	return code
}

// enableTOTP enrolls s in TOTP and returns the secret and backup codes.
func enableTOTP(t *testing.T, s *authsdk.Session) (string, []string) {
	t.Helper()

	enroll, err := s.EnrollTOTP(t.Context())
	require.NoError(t, err)
	require.NotEmpty(t, enroll.Secret)
	require.Contains(t, enroll.URI, "otpauth://totp/")

	codes, err := s.VerifyTOTP(t.Context(), totpCode(t, enroll.Secret, 0))
	require.NoError(t, err)
	require.NotEmpty(t, codes.Codes)

	return enroll.Secret, codes.Codes
}

func requireAPIError(t *testing.T, err error, status int, code string) {
	t.Helper()

	var apiErr *authsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, status, apiErr.StatusCode, apiErr.Error())
	require.Equal(t, code, apiErr.Code)
}
