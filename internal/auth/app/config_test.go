package app_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/lockbox/internal/auth/app"
	"github.com/aussiebroadwan/lockbox/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := app.LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "lockbox", cfg.Issuer)
	require.Equal(t, jwtx.DefaultSessionTTL, cfg.SessionTTL)
	require.Equal(t, app.ReplayBackendSQLite, cfg.ReplayBackend)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, time.Hour, cfg.HousekeepingInterval)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("LOCKBOX_SESSION_TTL", "45")
	t.Setenv("SHUTDOWN_GRACE_PERIOD", "3s")
	t.Setenv("LOCKBOX_REPLAY_BACKEND", "Redis")
	t.Setenv("LOCKBOX_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("PORT", "not-a-port")

	cfg, err := app.LoadConfig()
	require.NoError(t, err)
	require.Equal(t, 45*time.Minute, cfg.SessionTTL, "bare numbers are minutes")
	require.Equal(t, 3*time.Second, cfg.ShutdownGracePeriod)
	require.Equal(t, app.ReplayBackendRedis, cfg.ReplayBackend)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, 8080, cfg.Port, "unparsable falls back")
}

func TestLoadConfigRejects(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		field string
	}{
		{"unknown replay backend", map[string]string{"LOCKBOX_REPLAY_BACKEND": "memcached"}, "ReplayBackend"},
		{"redis without url", map[string]string{"LOCKBOX_REPLAY_BACKEND": "redis"}, "RedisURL"},
		{"too many keys", map[string]string{"LOCKBOX_NUM_KEYS": "11"}, "NumKeys"},
		{"short sessions", map[string]string{"LOCKBOX_SESSION_TTL": "10s"}, "SessionTTL"},
		{"port out of range", map[string]string{"PORT": "70000"}, "Port"},
		{"log format", map[string]string{"LOG_FORMAT": "xml"}, "LogFormat"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := app.LoadConfig()
			require.ErrorContains(t, err, tt.field)
		})
	}
}
