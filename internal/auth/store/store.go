package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/lockbox/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
	ErrExhausted     = errors.New("store: attempts exhausted")
)

// Store is the root data access interface. Concrete drivers implement it and
// expose sub-repositories so a Tx can hand out the same repos bound to the
// transaction. Nested transactions are refused.
type Store interface {
	Users() Users
	Accounts() Accounts
	LoginChallenges() LoginChallenges
	BackupCodes() BackupCodes
	UsedCodes() UsedCodes
	VaultItems() VaultItems

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn inside a transaction, committing when fn returns nil
	// and rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail matches case-insensitively.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	// Returns ErrAlreadyExists when the email is taken.
	CreateUser(ctx context.Context, u domain.User) error

	// UpdatePasswordHash replaces the digest, used to upgrade imported
	// bcrypt hashes after a successful login.
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error

	// DeleteUser cascades to accounts, challenges, codes and vault items.
	DeleteUser(ctx context.Context, userID string) error

	// IsEmpty returns true if there are no users.
	IsEmpty(ctx context.Context) (bool, error)

	// UpdateMFASecret stores an enrolled but not yet confirmed secret.
	UpdateMFASecret(ctx context.Context, userID string, secret string) error

	// EnableMFA sets the mfa_enabled timestamp.
	EnableMFA(ctx context.Context, userID string) error

	// DisableMFA clears mfa_enabled and mfa_secret.
	DisableMFA(ctx context.Context, userID string) error
}

type Accounts interface {
	// CreateAccount links an external provider identity to a user.
	CreateAccount(ctx context.Context, a domain.Account) error

	// HasLinkedAccount reports whether any provider account exists for userID.
	HasLinkedAccount(ctx context.Context, userID string) (bool, error)
}

type LoginChallenges interface {
	CreateChallenge(ctx context.Context, c domain.LoginChallenge) error

	// GetChallenge returns the challenge only while it has not expired.
	GetChallenge(ctx context.Context, id string) (domain.LoginChallenge, error)

	// ReserveAttempt counts one attempt against a live challenge in a single
	// statement and returns the updated challenge. It fails with ErrExhausted
	// once limit attempts have been counted, and ErrNotFound when the
	// challenge is missing or expired.
	ReserveAttempt(ctx context.Context, id string, limit int) (domain.LoginChallenge, error)

	DeleteChallenge(ctx context.Context, id string) error

	// DeleteExpiredChallenges is housekeeping. It returns the rows removed.
	DeleteExpiredChallenges(ctx context.Context, now time.Time) (int64, error)
}

type BackupCodes interface {
	// CreateBackupCode stores a backup code fingerprint for a user.
	CreateBackupCode(ctx context.Context, userID string, codeHash string) error

	// ConsumeBackupCode deletes the code and reports whether it existed, so a
	// code can be redeemed at most once even under concurrent logins.
	ConsumeBackupCode(ctx context.Context, userID string, codeHash string) (bool, error)

	DeleteAllBackupCodes(ctx context.Context, userID string) error

	CountUserBackupCodes(ctx context.Context, userID string) (int, error)
}

type UsedCodes interface {
	// MarkUsed records that the TOTP step was consumed by userID. It returns
	// ErrAlreadyExists when the step was already used.
	MarkUsed(ctx context.Context, userID string, step int64, expiresAt time.Time) error

	// DeleteExpiredUsedCodes is housekeeping. It returns the rows removed.
	DeleteExpiredUsedCodes(ctx context.Context, now time.Time) (int64, error)
}

type VaultItems interface {
	// ListItems returns the user's items, newest first.
	ListItems(ctx context.Context, userID string) ([]domain.VaultItem, error)

	GetItem(ctx context.Context, userID, id string) (domain.VaultItem, error)

	CreateItem(ctx context.Context, item domain.VaultItem) error

	// UpdateItem rewrites an item owned by item.UserID. ErrNotFound when no
	// such item belongs to that user.
	UpdateItem(ctx context.Context, item domain.VaultItem) error

	// DeleteItem removes the item if it belongs to userID and reports how
	// many rows went. Deleting a missing item is not an error.
	DeleteItem(ctx context.Context, userID, id string) (int64, error)
}
