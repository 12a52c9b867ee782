package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aussiebroadwan/lockbox/pkg/jwtx"
)

// refreshSkew renews a token this long before it actually expires.
const refreshSkew = 30 * time.Second

var ErrNoToken = errors.New("session: no token")

// Issued is a signed session token together with the claims it carries.
type Issued struct {
	Token      string
	Claims     jwtx.Claims
	RedirectTo string
}

// ExpiresAt is the token's exp claim, zero when absent.
func (i *Issued) ExpiresAt() time.Time {
	if i == nil || i.Claims.ExpiresAt == nil {
		return time.Time{}
	}
	return i.Claims.ExpiresAt.Time
}

// PendingTwoFactor reports whether the token only covers the password step.
func (i *Issued) PendingTwoFactor() bool {
	return i != nil && i.Claims.PendingTwoFactor
}

// Refresher re-runs phase A for an existing token.
type Refresher interface {
	Refresh(ctx context.Context, token string) (*Issued, error)
}

// Cell holds the current token of a client session. Readers always see one
// consistent token/claims pair even while a refresh replaces it.
type Cell struct {
	cur atomic.Pointer[Issued]

	// serialises refreshes so concurrent readers don't stampede the server
	refreshMu sync.Mutex
	now       func() time.Time
}

// NewCell returns an empty Cell.
func NewCell() *Cell {
	return &Cell{now: time.Now}
}

// Store replaces the held token atomically. The Cell keeps its own copy.
func (c *Cell) Store(i *Issued) {
	if i == nil {
		c.cur.Store(nil)
		return
	}
	cp := *i
	c.cur.Store(&cp)
}

// Clear forgets the held token.
func (c *Cell) Clear() { c.cur.Store(nil) }

// View projects the held claims. An empty cell yields the zero View.
func (c *Cell) View() View {
	i := c.cur.Load()
	if i == nil {
		return View{}
	}
	return Project(i.Claims)
}

// Token returns the held token without checking expiry.
func (c *Cell) Token() string {
	if i := c.cur.Load(); i != nil {
		return i.Token
	}
	return ""
}

// ValidToken returns a token that is not about to expire, refreshing through
// r when needed.
func (c *Cell) ValidToken(ctx context.Context, r Refresher) (string, error) {
	if tok, ok := c.fresh(); ok {
		return tok, nil
	}

	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	// another goroutine may have refreshed while we waited
	if tok, ok := c.fresh(); ok {
		return tok, nil
	}

	cur := c.cur.Load()
	if cur == nil {
		return "", ErrNoToken
	}

	next, err := r.Refresh(ctx, cur.Token)
	if err != nil {
		return "", err
	}
	c.Store(next)
	return next.Token, nil
}

func (c *Cell) fresh() (string, bool) {
	i := c.cur.Load()
	if i == nil || i.Claims.ExpiresAt == nil {
		return "", false
	}
	if c.now().Add(refreshSkew).Before(i.Claims.ExpiresAt.Time) {
		return i.Token, true
	}
	return "", false
}
