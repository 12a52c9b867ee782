//go:build e2e

package lockbox_test

import (
	"net/http"
	"testing"

	"github.com/aussiebroadwan/lockbox/pkg/authsdk"
)

// TestLoginRateLimit runs with the production limits: five attempts per
// minute for the same email from the same address.
func TestLoginRateLimit(t *testing.T) {
	client := authsdk.NewSDKClient(setupLockbox(t, containerOptions{}))

	req := authsdk.LoginRequest{Email: "victim@lockbox.test", Password: "guess"}
	for i := range 5 {
		_, err := client.Login(t.Context(), req)
		requireAPIError(t, err, http.StatusUnauthorized, authsdk.ErrorCodeInvalidCredentials)
		t.Logf("attempt %d refused", i+1)
	}

	_, err := client.Login(t.Context(), req)
	requireAPIError(t, err, http.StatusTooManyRequests, authsdk.ErrorCodeRateLimited)

	// a different email is a different bucket
	_, err = client.Login(t.Context(), authsdk.LoginRequest{Email: "other@lockbox.test", Password: "guess"})
	requireAPIError(t, err, http.StatusUnauthorized, authsdk.ErrorCodeInvalidCredentials)
}
