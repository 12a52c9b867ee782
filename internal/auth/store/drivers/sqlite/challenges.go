package sqlite

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/lockbox/internal/auth/domain"
	"github.com/aussiebroadwan/lockbox/internal/auth/store"
)

type challengesRepo struct {
	db  dbtx
	now func() time.Time
}

const challengeColumns = `id, user_id, email, redirect_target, attempts, created_at, expires_at`

func scanChallenge(row interface{ Scan(...any) error }) (domain.LoginChallenge, error) {
	var (
		c                domain.LoginChallenge
		created, expires int64
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.Email, &c.RedirectTarget, &c.Attempts, &created, &expires); err != nil {
		return domain.LoginChallenge{}, mapNotFound(err)
	}
	c.CreatedAt = fromUnix(created)
	c.ExpiresAt = fromUnix(expires)
	return c, nil
}

func (r *challengesRepo) CreateChallenge(ctx context.Context, c domain.LoginChallenge) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = r.now()
	}
	if c.ExpiresAt.IsZero() {
		c.ExpiresAt = c.CreatedAt.Add(domain.LoginChallengeTTL)
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO login_challenges (`+challengeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Email, c.RedirectTarget, c.Attempts, unix(c.CreatedAt), unix(c.ExpiresAt))
	return mapConstraint(err)
}

func (r *challengesRepo) GetChallenge(ctx context.Context, id string) (domain.LoginChallenge, error) {
	return scanChallenge(r.db.QueryRowContext(ctx,
		`SELECT `+challengeColumns+` FROM login_challenges WHERE id = ? AND expires_at > ?`,
		id, unix(r.now())))
}

func (r *challengesRepo) ReserveAttempt(ctx context.Context, id string, limit int) (domain.LoginChallenge, error) {
	now := unix(r.now())
	c, err := scanChallenge(r.db.QueryRowContext(ctx,
		`UPDATE login_challenges SET attempts = attempts + 1
		 WHERE id = ? AND expires_at > ? AND attempts < ?
		 RETURNING `+challengeColumns,
		id, now, limit))
	if !errors.Is(err, store.ErrNotFound) {
		return c, err
	}

	// nothing updated: tell a used-up challenge from a missing one
	if _, err := r.GetChallenge(ctx, id); err != nil {
		return domain.LoginChallenge{}, err
	}
	return domain.LoginChallenge{}, store.ErrExhausted
}

func (r *challengesRepo) DeleteChallenge(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM login_challenges WHERE id = ?`, id)
	return err
}

func (r *challengesRepo) DeleteExpiredChallenges(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM login_challenges WHERE expires_at <= ?`, unix(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
