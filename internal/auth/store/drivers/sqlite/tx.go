package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/lockbox/internal/auth/store"
)

type txStore struct {
	tx  *sql.Tx
	now func() time.Time
}

func newTx(tx *sql.Tx, now func() time.Time) *txStore {
	return &txStore{tx: tx, now: now}
}

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

func (t *txStore) Close() error { return nil } // the outer DB stays open

// Ping is a no-op, the transaction already holds a live connection.
func (t *txStore) Ping(ctx context.Context) error { return nil }

func (t *txStore) Tx(ctx context.Context) (store.Tx, error) {
	return nil, sql.ErrTxDone
}

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return sql.ErrTxDone
}

func (t *txStore) Users() store.Users                     { return &usersRepo{db: t.tx, now: t.now} }
func (t *txStore) Accounts() store.Accounts               { return &accountsRepo{db: t.tx, now: t.now} }
func (t *txStore) LoginChallenges() store.LoginChallenges { return &challengesRepo{db: t.tx, now: t.now} }
func (t *txStore) BackupCodes() store.BackupCodes         { return &backupCodesRepo{db: t.tx, now: t.now} }
func (t *txStore) UsedCodes() store.UsedCodes             { return &usedCodesRepo{db: t.tx} }
func (t *txStore) VaultItems() store.VaultItems           { return &vaultItemsRepo{db: t.tx, now: t.now} }

func (t *txStore) ApplyMigrations() error { return nil } // migrations run before any tx
