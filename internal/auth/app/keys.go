package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/lockbox/internal/auth/service"
	"github.com/aussiebroadwan/lockbox/pkg/cryptox"
	"github.com/aussiebroadwan/lockbox/pkg/jwtx"
	"github.com/aussiebroadwan/lockbox/pkg/replay"
)

// InitSessionKeys creates the KeyManager that signs session tokens.
//
// With SigningKeyFile set the key is loaded from that file (generated on
// first start) and sessions survive restarts. Otherwise NumKeys ephemeral
// keys are generated and every session dies with the process.
func InitSessionKeys(cfg Config, logger *slog.Logger) (*jwtx.KeyManager, error) {
	keyManager, err := jwtx.NewKeyManager(jwtx.KeyManagerOptions{
		Issuer:  cfg.Issuer,
		NumKeys: cfg.NumKeys,
		KeyFile: cfg.SigningKeyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize key manager: %w", err)
	}

	if cfg.SigningKeyFile != "" {
		logger.Info("signing key loaded", "path", cfg.SigningKeyFile, "issuer", cfg.Issuer)
		return keyManager, nil
	}

	logger.Info("generated ephemeral signing keys",
		"num_keys", keyManager.NumSigners(),
		"issuer", cfg.Issuer,
	)
	logger.Warn("all existing sessions are now invalid due to key rotation on startup")
	return keyManager, nil
}

// InitSealer loads the vault master key, generating it on first start.
func InitSealer(cfg Config, logger *slog.Logger) (*cryptox.Sealer, error) {
	sealer, err := cryptox.LoadSealer(cfg.MasterKeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load master key: %w", err)
	}
	logger.Info("master key loaded", "path", cfg.MasterKeyFile)
	return sealer, nil
}

// InitReplayGuard picks where consumed TOTP steps are recorded. The sqlite
// backend needs nothing beyond the database; the redis backend lets several
// instances share the record. The returned guard is nil for sqlite.
func InitReplayGuard(ctx context.Context, cfg Config, logger *slog.Logger) (*replay.Guard, error) {
	switch cfg.ReplayBackend {
	case ReplayBackendSQLite, "":
		logger.Info("used TOTP steps recorded in the database")
		return nil, nil
	case ReplayBackendRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("LOCKBOX_REDIS_URL is required for the %s replay backend", ReplayBackendRedis)
		}
		guard, err := replay.NewFromURL(cfg.RedisURL, replay.DefaultPrefix)
		if err != nil {
			return nil, err
		}
		if err := guard.Ping(ctx); err != nil {
			_ = guard.Close()
			return nil, fmt.Errorf("failed to reach redis: %w", err)
		}
		logger.Info("used TOTP steps recorded in redis")
		return guard, nil
	default:
		return nil, fmt.Errorf("unknown replay backend %q", cfg.ReplayBackend)
	}
}

// replayGuard returns g as a service.ReplayGuard, or nil so services fall
// back to the database.
func replayGuard(g *replay.Guard) service.ReplayGuard {
	if g == nil {
		return nil
	}
	return g
}
