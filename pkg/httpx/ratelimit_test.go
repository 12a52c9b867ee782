package httpx_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/lockbox/pkg/httpx"
	"github.com/stretchr/testify/require"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

// perMinute is a limit that does not refill during a test.
func perMinute(n int) httpx.RateLimitConfig {
	return httpx.RateLimitConfig{RequestsPerWindow: n, Window: time.Minute, Burst: n}
}

func loginRequest(remote, email string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login",
		strings.NewReader(`{"email":"`+email+`","password":"pw"}`))
	req.RemoteAddr = remote
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIPKeyExtractor(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"peer address", nil, "192.0.2.10"},
		{"forwarded for", map[string]string{"X-Forwarded-For": "203.0.113.1, 10.0.0.1"}, "203.0.113.1"},
		{"real ip", map[string]string{"X-Real-IP": " 203.0.113.2 "}, "203.0.113.2"},
		{"forwarded wins over real ip", map[string]string{"X-Forwarded-For": "203.0.113.3", "X-Real-IP": "203.0.113.4"}, "203.0.113.3"},
		{"empty forwarded entry", map[string]string{"X-Forwarded-For": " , 10.0.0.1"}, "192.0.2.10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "192.0.2.10:51234"
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			require.Equal(t, tt.want, httpx.IPKeyExtractor(req))
		})
	}
}

func TestJSONFieldKeyExtractor(t *testing.T) {
	t.Run("lowercases and restores the body", func(t *testing.T) {
		req := loginRequest("192.0.2.1:1", " Alice@Example.COM")
		require.Equal(t, "alice@example.com", httpx.JSONFieldKeyExtractor("email")(req))

		var body map[string]string
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		require.Equal(t, "pw", body["password"])
	})

	for name, body := range map[string]string{
		"missing field": `{"password":"pw"}`,
		"not a string":  `{"email":42}`,
		"not json":      `email=alice`,
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
			require.Empty(t, httpx.JSONFieldKeyExtractor("email")(req))

			rest, err := io.ReadAll(req.Body)
			require.NoError(t, err)
			require.Equal(t, body, string(rest))
		})
	}
}

func TestRateLimitByIPAndJSONField(t *testing.T) {
	h := httpx.RateLimitByIPAndJSONField(perMinute(2), "email")(okHandler)

	for range 2 {
		require.Equal(t, http.StatusNoContent, serve(h, loginRequest("192.0.2.1:1", "alice@example.com")).Code)
	}

	rec := serve(h, loginRequest("192.0.2.1:1", "ALICE@example.com"))
	require.Equal(t, http.StatusTooManyRequests, rec.Code, "case variants share a bucket")
	require.Contains(t, rec.Body.String(), "rate_limit_exceeded")
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
	require.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))

	// another account from the same address, and the same account from
	// another address, are unaffected
	require.Equal(t, http.StatusNoContent, serve(h, loginRequest("192.0.2.1:1", "bob@example.com")).Code)
	require.Equal(t, http.StatusNoContent, serve(h, loginRequest("198.51.100.7:1", "alice@example.com")).Code)
}

func TestRateLimitByUser(t *testing.T) {
	h := httpx.RateLimitByUser(perMinute(1))(okHandler)

	asUser := func(sub string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/v1/vault", nil)
		req.RemoteAddr = "192.0.2.1:1"
		return req.WithContext(context.WithValue(req.Context(), httpx.CtxKeyUserID, sub))
	}

	require.Equal(t, http.StatusNoContent, serve(h, asUser("alice")).Code)
	require.Equal(t, http.StatusTooManyRequests, serve(h, asUser("alice")).Code)
	require.Equal(t, http.StatusNoContent, serve(h, asUser("bob")).Code)
}

func TestRateLimitInstancesAreIndependent(t *testing.T) {
	login := httpx.RateLimitByIP(perMinute(1))(okHandler)
	bootstrap := httpx.RateLimitByIP(perMinute(1))(okHandler)

	req := func() *http.Request {
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		r.RemoteAddr = "192.0.2.1:1"
		return r
	}

	require.Equal(t, http.StatusNoContent, serve(login, req()).Code)
	require.Equal(t, http.StatusTooManyRequests, serve(login, req()).Code)
	require.Equal(t, http.StatusNoContent, serve(bootstrap, req()).Code)
}

func TestRateLimitWithoutKeyAllows(t *testing.T) {
	h := httpx.RateLimitMiddleware(perMinute(1), func(*http.Request) string { return "" })(okHandler)
	for range 3 {
		require.Equal(t, http.StatusNoContent, serve(h, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
	}
}

func TestRateLimitRefills(t *testing.T) {
	h := httpx.RateLimitByIP(httpx.RateLimitConfig{RequestsPerWindow: 20, Window: time.Second, Burst: 1})(okHandler)
	req := func() *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "192.0.2.1:1"
		return r
	}

	require.Equal(t, http.StatusNoContent, serve(h, req()).Code)
	require.Equal(t, http.StatusTooManyRequests, serve(h, req()).Code)
	require.Eventually(t, func() bool {
		return serve(h, req()).Code == http.StatusNoContent
	}, time.Second, 10*time.Millisecond)
}

func TestProfiles(t *testing.T) {
	require.Less(t, httpx.StrictLimit.RequestsPerWindow, httpx.ModerateLimit.RequestsPerWindow)
	require.Less(t, httpx.ModerateLimit.RequestsPerWindow, httpx.LenientLimit.RequestsPerWindow)
	require.Less(t, httpx.LenientLimit.RequestsPerWindow, httpx.PublicLimit.RequestsPerWindow)
}

func TestLimitFromEnv(t *testing.T) {
	def := perMinute(5)

	tests := []struct {
		name string
		env  map[string]string
		want httpx.RateLimitConfig
	}{
		{"no overrides", nil, def},
		{
			"all overrides",
			map[string]string{"REQUESTS": "1000", "WINDOW_SEC": "30", "BURST": "50"},
			httpx.RateLimitConfig{RequestsPerWindow: 1000, Window: 30 * time.Second, Burst: 50},
		},
		{
			"partial override",
			map[string]string{"BURST": "9"},
			httpx.RateLimitConfig{RequestsPerWindow: 5, Window: time.Minute, Burst: 9},
		},
		{"garbage ignored", map[string]string{"REQUESTS": "lots", "WINDOW_SEC": "-1", "BURST": "0"}, def},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv("RATELIMIT_LOCKBOXTEST_"+k, v)
			}
			require.Equal(t, tt.want, httpx.LimitFromEnv("LOCKBOXTEST", def))
		})
	}
}
