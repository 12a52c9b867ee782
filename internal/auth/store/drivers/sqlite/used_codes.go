package sqlite

import (
	"context"
	"time"
)

type usedCodesRepo struct {
	db dbtx
}

func (r *usedCodesRepo) MarkUsed(ctx context.Context, userID string, step int64, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO used_totp_steps (user_id, step, expires_at) VALUES (?, ?, ?)`,
		userID, step, unix(expiresAt))
	return mapConstraint(err)
}

func (r *usedCodesRepo) DeleteExpiredUsedCodes(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM used_totp_steps WHERE expires_at <= ?`, unix(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
