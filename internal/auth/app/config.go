package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/lockbox/pkg/jwtx"
	"github.com/aussiebroadwan/lockbox/pkg/validx"
)

// Replay backends for used TOTP steps.
const (
	ReplayBackendSQLite = "sqlite"
	ReplayBackendRedis  = "redis"
)

// Config is read from the environment once at startup. The env var of each
// field is listed in LoadConfig.
type Config struct {
	Issuer         string `validate:"required"` // iss claim of session tokens
	TOTPIssuer     string `validate:"required"` // issuer shown in authenticator apps
	BootstrapToken string // required by POST /v1/bootstrap when set

	SessionTTL     time.Duration `validate:"gte=1m"`
	NumKeys        int           `validate:"gte=1,lte=10"` // ephemeral signing keys when SigningKeyFile is empty
	SigningKeyFile string        // Ed25519 PEM, created on first start; empty means ephemeral keys
	MasterKeyFile  string        `validate:"required"` // vault master key, created on first start
	DatabaseFile   string        `validate:"required"`
	PepperFile     string        `validate:"required"`

	ReplayBackend string `validate:"oneof=sqlite redis"`
	RedisURL      string `validate:"required_if=ReplayBackend redis"` // redis://host:6379/0

	Env                  string        `validate:"oneof=dev test staging prod"`
	LogLevel             string        `validate:"oneof=debug info warn error"`
	LogFormat            string        `validate:"oneof=json text"`
	Port                 int           `validate:"gte=1,lte=65535"`
	ShutdownGracePeriod  time.Duration `validate:"gt=0"`
	HousekeepingInterval time.Duration `validate:"gt=0"`
}

// LoadConfig reads the environment and validates the result. Unparsable
// numbers and durations fall back to their defaults.
func LoadConfig() (Config, error) {
	cfg := Config{
		Issuer:               envString("LOCKBOX_ISSUER", "lockbox"),
		TOTPIssuer:           envString("LOCKBOX_TOTP_ISSUER", "Lockbox"),
		BootstrapToken:       os.Getenv("BOOTSTRAP_TOKEN"),
		SessionTTL:           envDuration("LOCKBOX_SESSION_TTL", jwtx.DefaultSessionTTL),
		NumKeys:              envInt("LOCKBOX_NUM_KEYS", 1),
		SigningKeyFile:       os.Getenv("LOCKBOX_SIGNING_KEY_FILE"),
		MasterKeyFile:        envString("LOCKBOX_MASTER_KEY_FILE", "master.key"),
		DatabaseFile:         envString("LOCKBOX_DATABASE_FILE", "lockbox.db"),
		PepperFile:           envString("LOCKBOX_PEPPER_FILE", "pepper"),
		ReplayBackend:        strings.ToLower(envString("LOCKBOX_REPLAY_BACKEND", ReplayBackendSQLite)),
		RedisURL:             os.Getenv("LOCKBOX_REDIS_URL"),
		Env:                  strings.ToLower(envString("ENV", "dev")),
		LogLevel:             strings.ToLower(envString("LOG_LEVEL", "info")),
		LogFormat:            strings.ToLower(envString("LOG_FORMAT", "json")),
		Port:                 envInt("PORT", 8080),
		ShutdownGracePeriod:  envDuration("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: envDuration("HOUSEKEEPING_INTERVAL", time.Hour),
	}
	if err := validx.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return def
}

// envDuration accepts Go durations ("90s", "1h") and bare minutes ("30").
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if minutes, err := strconv.Atoi(v); err == nil {
		return time.Duration(minutes) * time.Minute
	}
	return def
}
