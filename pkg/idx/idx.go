// Package idx mints the ULIDs lockbox uses as primary keys and request ids.
package idx

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

// NewAt returns a ULID stamped with t. Within one millisecond the ids are
// strictly increasing, so rows created in a burst keep their order.
func NewAt(t time.Time) string {
	mu.Lock()
	defer mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// NewString returns a ULID stamped with the current time.
func NewString() string { return NewAt(time.Now().UTC()) }

// Valid reports whether s is a well-formed ULID. Ids from the URL are checked
// with it before they reach the store.
func Valid(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}

// Time is the creation time embedded in id, zero when id is malformed.
func Time(id string) time.Time {
	u, err := ulid.ParseStrict(id)
	if err != nil {
		return time.Time{}
	}
	return ulid.Time(u.Time())
}
