package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	httpapi "github.com/aussiebroadwan/lockbox/internal/auth/http"
	"github.com/aussiebroadwan/lockbox/internal/auth/login"
	"github.com/aussiebroadwan/lockbox/internal/auth/service"
	"github.com/aussiebroadwan/lockbox/internal/auth/store"
	"github.com/aussiebroadwan/lockbox/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/lockbox/internal/vault"
	"github.com/aussiebroadwan/lockbox/pkg/cryptox"
	"github.com/aussiebroadwan/lockbox/pkg/jwtx"
	"github.com/aussiebroadwan/lockbox/pkg/otpx"
	"github.com/aussiebroadwan/lockbox/pkg/replay"
	"github.com/aussiebroadwan/lockbox/pkg/slogx"
)

// BuildVersion is stamped with
// -ldflags "-X github.com/aussiebroadwan/lockbox/internal/auth/app.BuildVersion=...".
var BuildVersion = "dev"

// Application encapsulates the lockbox service with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db         store.Store
	keyManager *jwtx.KeyManager
	sealer     *cryptox.Sealer
	replay     *replay.Guard // nil when used codes live in the database
	totp       *otpx.Manager

	// Services
	sessionIssuer       *service.SessionIssuer
	authenticator       *service.Authenticator
	userService         *service.UserService
	bootstrapService    *service.BootstrapService
	mfaService          *service.MFAService
	housekeepingService *service.HousekeepingService
	keyRotationService  *service.KeyRotationService
	vault               *vault.Service

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "lockbox",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	// Set pepper path for password hashing
	cryptox.SetPepperPath(app.cfg.PepperFile)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	keyManager, err := InitSessionKeys(app.cfg, app.logger)
	if err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.keyManager = keyManager

	sealer, err := InitSealer(app.cfg, app.logger)
	if err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.sealer = sealer

	guard, err := InitReplayGuard(context.Background(), app.cfg, app.logger)
	if err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.replay = guard

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Handler returns the HTTP handler, for tests that serve it themselves.
func (app *Application) Handler() http.Handler {
	return app.router
}

// Run serves until ctx is cancelled or the listener fails, then shuts
// down.
func (app *Application) Run(ctx context.Context) error {
	app.housekeepingService.Start(ctx)
	app.logger.Info("lockbox starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		_ = app.Shutdown()
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		app.logger.Info("shutdown requested", "cause", context.Cause(ctx))
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down lockbox...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if app.replay != nil {
		if err := app.replay.Close(); err != nil {
			app.logger.Error("error closing redis client", "error", err)
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("lockbox stopped")
	return nil
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	version, err := db.SchemaVersion()
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	app.logger.Info("database ready", "file", app.cfg.DatabaseFile, "schema_version", version)
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.totp = otpx.New(app.cfg.TOTPIssuer)

	app.sessionIssuer = &service.SessionIssuer{
		Store:      app.db,
		KeyManager: app.keyManager,
		TOTP:       app.totp,
		Replay:     replayGuard(app.replay),
		Issuer:     app.cfg.Issuer,
		TTL:        app.cfg.SessionTTL,
	}
	app.authenticator = &service.Authenticator{
		Store:  app.db,
		Issuer: app.sessionIssuer,
	}

	app.userService = &service.UserService{Store: app.db}
	app.bootstrapService = &service.BootstrapService{
		Store: app.db,
		Token: app.cfg.BootstrapToken,
	}
	app.mfaService = &service.MFAService{
		Store:  app.db,
		TOTP:   app.totp,
		Replay: replayGuard(app.replay),
	}
	app.keyRotationService = service.NewKeyRotationService(app.keyManager)
	app.vault = &vault.Service{Store: app.db, Sealer: app.sealer}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(app.keyManager, BuildVersion, app.db, app.logger)

	// Wire services to router
	router.LoginFlow = &login.Controller{Backend: app.authenticator}
	router.SessionIssuer = app.sessionIssuer
	router.UserService = app.userService
	router.BootstrapService = app.bootstrapService
	router.MFAService = app.mfaService
	router.KeyRotationService = app.keyRotationService
	router.Vault = app.vault
	if app.replay != nil {
		router.Replay = app.replay
	}
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
