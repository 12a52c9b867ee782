package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aussiebroadwan/lockbox/internal/auth/store"
	"github.com/aussiebroadwan/lockbox/pkg/authsdk"
	"github.com/aussiebroadwan/lockbox/pkg/httpx"
	"github.com/aussiebroadwan/lockbox/pkg/jwtx"
	"github.com/aussiebroadwan/lockbox/pkg/slogx"
)

// LivezHandler answers as long as the process serves requests. It checks
// nothing else.
//
//	@Summary		Liveness probe
//	@Description	Always 200 while lockbox is running, with uptime and build version.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"status, uptime, version"
//	@Router			/livez [get].
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, authsdk.HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}

// Pinger is a dependency that can report whether it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyzHandler reports whether lockbox can serve logins: the database
// answers, a signing key is loaded and, when configured, the used-code store
// answers. Any failed check turns the answer into a 503.
//
//	@Summary		Readiness probe
//	@Description	Checks the database, the signing keys and the used-code store.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"every check is ok"
//	@Failure		503	{object}	authsdk.HealthResponse	"status degraded, failing checks carry the error"
//	@Router			/readyz [get].
func ReadyzHandler(
	startTime time.Time,
	version string,
	st store.Store,
	keys *jwtx.KeySet,
	replay Pinger, // nil when used codes live in the database
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		healthy := true
		check := func(err error) string {
			if err == nil {
				return "ok"
			}
			healthy = false
			return "error: " + err.Error()
		}

		checks := &authsdk.HealthChecks{
			Database: check(st.Ping(r.Context())),
			Signer:   check(signerReady(keys)),
			Replay:   "ok",
		}
		if replay != nil {
			checks.Replay = check(replay.Ping(r.Context()))
		}

		resp := authsdk.HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		}
		code := http.StatusOK
		if !healthy {
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
			slogx.FromContext(r.Context()).Warn("not ready",
				"database", checks.Database, "signer", checks.Signer, "replay", checks.Replay)
		}
		httpx.WriteJSON(w, code, resp)
	}
}

func signerReady(keys *jwtx.KeySet) error {
	if !keys.IsReady() {
		return errors.New("no keys loaded")
	}
	return nil
}
