// Package replay remembers consumed one-time codes in Redis so a TOTP code
// accepted by one lockbox instance is refused by every other instance until
// it could no longer verify anyway.
package replay

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrReplayed is returned when the code was already consumed.
var ErrReplayed = errors.New("replay: code already used")

// DefaultPrefix namespaces the keys written by Guard.
const DefaultPrefix = "lockbox:totp:used:"

// Guard records used TOTP steps with SET NX and an expiry.
type Guard struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// New returns a Guard writing keys under prefix (DefaultPrefix when empty).
func New(client redis.UniversalClient, prefix string) *Guard {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Guard{client: client, prefix: prefix, now: time.Now}
}

// NewFromURL connects to the redis server at rawURL, e.g.
// "redis://localhost:6379/0".
func NewFromURL(rawURL, prefix string) (*Guard, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("replay: parse url: %w", err)
	}
	return New(redis.NewClient(opts), prefix), nil
}

// MarkUsed claims step for userID until expiresAt. A second claim of the same
// step returns ErrReplayed.
func (g *Guard) MarkUsed(ctx context.Context, userID string, step int64, expiresAt time.Time) error {
	ttl := expiresAt.Sub(g.now())
	if ttl < time.Second {
		ttl = time.Second
	}

	ok, err := g.client.SetNX(ctx, g.key(userID, step), 1, ttl).Result()
	if err != nil {
		return fmt.Errorf("replay: mark used: %w", err)
	}
	if !ok {
		return ErrReplayed
	}
	return nil
}

// Ping checks the connection, used by readiness checks.
func (g *Guard) Ping(ctx context.Context) error {
	return g.client.Ping(ctx).Err()
}

func (g *Guard) Close() error { return g.client.Close() }

func (g *Guard) key(userID string, step int64) string {
	return g.prefix + userID + ":" + strconv.FormatInt(step, 10)
}
