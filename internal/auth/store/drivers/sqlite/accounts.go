package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/lockbox/internal/auth/domain"
)

type accountsRepo struct {
	db  dbtx
	now func() time.Time
}

func (r *accountsRepo) CreateAccount(ctx context.Context, a domain.Account) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = r.now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, user_id, provider, provider_account_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.Provider, a.ProviderAccountID, unix(a.CreatedAt))
	return mapConstraint(err)
}

func (r *accountsRepo) HasLinkedAccount(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE user_id = ?)`, userID).Scan(&exists)
	return exists, err
}
