package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/lockbox/internal/auth/login"
	"github.com/aussiebroadwan/lockbox/internal/auth/service"
	"github.com/aussiebroadwan/lockbox/internal/auth/store"
	"github.com/aussiebroadwan/lockbox/internal/vault"
	"github.com/aussiebroadwan/lockbox/pkg/httpx"
	"github.com/aussiebroadwan/lockbox/pkg/jwtx"
	"github.com/aussiebroadwan/lockbox/pkg/slogx"

	_ "github.com/aussiebroadwan/lockbox/api/lockbox" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store              store.Store
	Replay             Pinger // optional, the external used-code store
	LoginFlow          *login.Controller
	SessionIssuer      *service.SessionIssuer
	UserService        *service.UserService
	BootstrapService   *service.BootstrapService
	MFAService         *service.MFAService
	KeyRotationService *service.KeyRotationService
	Vault              *vault.Service
}

func NewRouter(
	km *jwtx.KeyManager,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         km.KeySet,
		verifier:     km.Verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerSession()
	r.registerVault()
	r.registerMFA()
	r.registerUsers()
	r.registerKeyRotation()
	r.registerSystem()
	r.registerBootstrap()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Lockbox API
//	@version		0.1.0
//	@description	Password vault with a two step login: email and password, then a TOTP or backup code for accounts that enabled one.
//	@description
//	@description				Session tokens are EdDSA signed JWTs and can be verified using the JWKS endpoint.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/lockbox
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Session token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// authenticated gates h behind a complete session: a valid token whose
// login is not waiting for a second factor.
func (r *Router) authenticated(h http.HandlerFunc, limit httpx.RateLimitConfig) http.Handler {
	return httpx.Chain(h,
		httpx.AuthnMiddleware(r.verifier),
		httpx.RequireClaims(fullSession),
		httpx.RateLimitByUser(limit),
	)
}

// admin is authenticated plus the ADMIN role.
func (r *Router) admin(h http.HandlerFunc, limit httpx.RateLimitConfig) http.Handler {
	return httpx.Chain(h,
		httpx.AuthnMiddleware(r.verifier),
		httpx.RequireClaims(fullSession),
		httpx.RequireForbidden(adminSession),
		httpx.RateLimitByUser(limit),
	)
}

func (r *Router) registerAuth() {
	h := &LoginHandler{Flow: r.LoginFlow, Issuer: r.SessionIssuer}

	// Rate limited by IP + email field to slow down password guessing
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIPAndJSONField(httpx.StrictLimit, "email"),
		),
	)

	// Rate limited by IP + challenge so a single challenge cannot be brute forced
	r.Mux.Handle("POST /v1/auth/login/second-factor",
		httpx.Chain(http.HandlerFunc(h.HandleSecondFactor),
			httpx.RateLimitByIPAndJSONField(httpx.StrictLimit, "challenge_id"),
		),
	)

	r.Mux.Handle("POST /v1/auth/refresh", r.authenticated(h.HandleRefresh, httpx.ModerateLimit))

	// GET /jwks.json - public endpoint with high limit
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}

func (r *Router) registerSession() {
	h := &SessionHandler{UserService: r.UserService}

	// Reading the session works for half-finished logins too
	r.Mux.Handle("GET /v1/session",
		httpx.Chain(http.HandlerFunc(h.HandleGet),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("POST /v1/session/password", r.authenticated(h.HandleChangePassword, httpx.StrictLimit))
}

func (r *Router) registerVault() {
	h := &VaultHandler{Vault: r.Vault}

	r.Mux.Handle("GET /v1/vault", r.authenticated(h.HandleList, httpx.LenientLimit))
	r.Mux.Handle("POST /v1/vault", r.authenticated(h.HandleCreate, httpx.ModerateLimit))
	r.Mux.Handle("GET /v1/vault/{id}", r.authenticated(h.HandleGet, httpx.LenientLimit))
	r.Mux.Handle("PATCH /v1/vault/{id}", r.authenticated(h.HandleUpdate, httpx.ModerateLimit))
	r.Mux.Handle("DELETE /v1/vault/{id}", r.authenticated(h.HandleDelete, httpx.ModerateLimit))
}

func (r *Router) registerMFA() {
	h := &MFAHandler{MFAService: r.MFAService}

	r.Mux.Handle("POST /v1/mfa/totp/enroll", r.authenticated(h.HandleEnroll, httpx.ModerateLimit))
	// strict: these accept TOTP codes
	r.Mux.Handle("POST /v1/mfa/totp/verify", r.authenticated(h.HandleVerify, httpx.StrictLimit))
	r.Mux.Handle("POST /v1/mfa/backup-codes", r.authenticated(h.HandleRegenerateBackupCodes, httpx.StrictLimit))
	r.Mux.Handle("DELETE /v1/mfa/totp", r.authenticated(h.HandleRemove, httpx.StrictLimit))
	r.Mux.Handle("GET /v1/mfa/backup-codes", r.authenticated(h.HandleBackupCodesRemaining, httpx.LenientLimit))
}

func (r *Router) registerUsers() {
	h := &UsersHandler{UserService: r.UserService}

	r.Mux.Handle("POST /v1/users", r.admin(h.HandleCreate, httpx.ModerateLimit))
	r.Mux.Handle("POST /v1/users/import", r.admin(h.HandleImport, httpx.ModerateLimit))
}

func (r *Router) registerKeyRotation() {
	// Rotated keys live in memory: a restart goes back to the key file
	h := &KeyRotationHandler{KeyRotationService: r.KeyRotationService}

	r.Mux.Handle("POST /v1/keys/rotate", r.admin(h.HandleRotate, httpx.ModerateLimit))
	r.Mux.Handle("GET /v1/keys", r.admin(h.HandleListKeys, httpx.ModerateLimit))
	r.Mux.Handle("POST /v1/keys/{kid}/retire", r.admin(h.HandleRetireKey, httpx.ModerateLimit))
}

func (r *Router) registerBootstrap() {
	// POST /bootstrap - very strict rate limit by IP (one-time setup endpoint)
	bootstrapHandler := &BootstrapHandler{BootstrapService: r.BootstrapService}
	r.Mux.Handle("POST /v1/bootstrap",
		httpx.Chain(bootstrapHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys, r.Replay),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
