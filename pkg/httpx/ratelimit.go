package httpx

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/lockbox/pkg/slogx"
	"golang.org/x/time/rate"
)

// RateLimitConfig is a token bucket: RequestsPerWindow refill over Window,
// at most Burst at once.
type RateLimitConfig struct {
	RequestsPerWindow int
	Window            time.Duration
	Burst             int
}

func (c RateLimitConfig) limit() rate.Limit {
	if c.Window <= 0 || c.RequestsPerWindow <= 0 {
		return rate.Inf
	}
	return rate.Limit(float64(c.RequestsPerWindow) / c.Window.Seconds())
}

// Profiles used by the router. Each one can be overridden with
// RATELIMIT_<NAME>_REQUESTS, RATELIMIT_<NAME>_WINDOW_SEC and
// RATELIMIT_<NAME>_BURST.
var (
	// StrictLimit guards endpoints that accept a password or a code.
	StrictLimit = LimitFromEnv("STRICT", RateLimitConfig{RequestsPerWindow: 5, Window: time.Minute, Burst: 5})

	// ModerateLimit is for authenticated writes.
	ModerateLimit = LimitFromEnv("MODERATE", RateLimitConfig{RequestsPerWindow: 20, Window: time.Minute, Burst: 20})

	// LenientLimit is for authenticated reads and health probes.
	LenientLimit = LimitFromEnv("LENIENT", RateLimitConfig{RequestsPerWindow: 100, Window: time.Minute, Burst: 100})

	// PublicLimit is for the JWKS document.
	PublicLimit = LimitFromEnv("PUBLIC", RateLimitConfig{RequestsPerWindow: 1000, Window: time.Minute, Burst: 1000})
)

// LimitFromEnv returns def with any RATELIMIT_<name>_* overrides applied.
// Unparsable or non-positive values are ignored.
func LimitFromEnv(name string, def RateLimitConfig) RateLimitConfig {
	positive := func(suffix string) (int, bool) {
		n, err := strconv.Atoi(os.Getenv("RATELIMIT_" + name + "_" + suffix))
		return n, err == nil && n > 0
	}

	cfg := def
	if n, ok := positive("REQUESTS"); ok {
		cfg.RequestsPerWindow = n
	}
	if n, ok := positive("WINDOW_SEC"); ok {
		cfg.Window = time.Duration(n) * time.Second
	}
	if n, ok := positive("BURST"); ok {
		cfg.Burst = n
	}
	return cfg
}

// KeyExtractor names the bucket a request draws from. An empty key means
// the request cannot be attributed and is let through.
type KeyExtractor func(*http.Request) string

// IPKeyExtractor uses the left-most X-Forwarded-For entry, then X-Real-IP,
// then the peer address.
func IPKeyExtractor(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// UserIDKeyExtractor uses the session subject set by AuthnMiddleware.
func UserIDKeyExtractor(r *http.Request) string {
	return UserIDFromContext(r.Context())
}

// JSONFieldKeyExtractor uses a top-level string field of the JSON body,
// lowercased, such as the email of a login. The body is put back for the
// handler.
func JSONFieldKeyExtractor(field string) KeyExtractor {
	return func(r *http.Request) string {
		if r.Body == nil {
			return ""
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes))
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))
		if err != nil {
			return ""
		}

		var fields map[string]json.RawMessage
		if json.Unmarshal(body, &fields) != nil {
			return ""
		}
		var v string
		if json.Unmarshal(fields[field], &v) != nil {
			return ""
		}
		return strings.ToLower(strings.TrimSpace(v))
	}
}

// CompositeKeyExtractor joins the non-empty keys of extractors with sep.
func CompositeKeyExtractor(sep string, extractors ...KeyExtractor) KeyExtractor {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(extractors))
		for _, extract := range extractors {
			if k := extract(r); k != "" {
				parts = append(parts, k)
			}
		}
		return strings.Join(parts, sep)
	}
}

// idleAfter is how long a bucket may go unused before it is swept. It must
// exceed the longest refill time of any profile.
const idleAfter = 10 * time.Minute

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// buckets holds one limiter per key for a single middleware instance.
type buckets struct {
	cfg RateLimitConfig

	mu        sync.Mutex
	byKey     map[string]*bucket
	lastSweep time.Time
}

func (b *buckets) get(key string, now time.Time) *rate.Limiter {
	b.mu.Lock()
	defer b.mu.Unlock()

	if now.Sub(b.lastSweep) >= idleAfter {
		for k, bk := range b.byKey {
			if now.Sub(bk.lastSeen) >= idleAfter {
				delete(b.byKey, k)
			}
		}
		b.lastSweep = now
	}

	bk, ok := b.byKey[key]
	if !ok {
		bk = &bucket{lim: rate.NewLimiter(b.cfg.limit(), b.cfg.Burst)}
		b.byKey[key] = bk
	}
	bk.lastSeen = now
	return bk.lim
}

// RateLimitMiddleware answers 429 once the bucket named by key is empty.
// Every call builds its own set of buckets, so two routes never share one.
func RateLimitMiddleware(cfg RateLimitConfig, key KeyExtractor) Middleware {
	b := &buckets{cfg: cfg, byKey: map[string]*bucket{}, lastSweep: time.Now()}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				slogx.FromContext(r.Context()).Warn("rate limit: no key for request, allowing")
				next.ServeHTTP(w, r)
				return
			}

			now := time.Now()
			lim := b.get(k, now)
			if lim.AllowN(now, 1) {
				next.ServeHTTP(w, r)
				return
			}

			res := lim.ReserveN(now, 1)
			retry := max(int(res.DelayFrom(now).Round(time.Second)/time.Second), 1)
			res.CancelAt(now)

			slogx.FromContext(r.Context()).Warn("rate limit exceeded",
				"key", k,
				"path", r.URL.Path,
				"retry_after", retry,
			)

			w.Header().Set("Retry-After", strconv.Itoa(retry))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.RequestsPerWindow))
			w.Header().Set("X-RateLimit-Window", cfg.Window.String())
			WriteJSON(w, http.StatusTooManyRequests, map[string]string{
				"error":             "rate_limit_exceeded",
				"error_description": "too many requests, try again later",
			})
		})
	}
}

// RateLimitByIP keys on the client address.
func RateLimitByIP(cfg RateLimitConfig) Middleware {
	return RateLimitMiddleware(cfg, IPKeyExtractor)
}

// RateLimitByUser keys on the session subject plus address. It must run
// after AuthnMiddleware.
func RateLimitByUser(cfg RateLimitConfig) Middleware {
	return RateLimitMiddleware(cfg, CompositeKeyExtractor(":", UserIDKeyExtractor, IPKeyExtractor))
}

// RateLimitByIPAndJSONField keys on address plus a body field, so guessing
// against one account is slowed without locking out its owner elsewhere.
func RateLimitByIPAndJSONField(cfg RateLimitConfig, field string) Middleware {
	return RateLimitMiddleware(cfg, CompositeKeyExtractor(":", IPKeyExtractor, JSONFieldKeyExtractor(field)))
}
