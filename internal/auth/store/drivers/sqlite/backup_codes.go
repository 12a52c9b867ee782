package sqlite

import (
	"context"
	"time"
)

type backupCodesRepo struct {
	db  dbtx
	now func() time.Time
}

func (r *backupCodesRepo) CreateBackupCode(ctx context.Context, userID string, codeHash string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO backup_codes (user_id, code_hash, created_at) VALUES (?, ?, ?)`,
		userID, codeHash, unix(r.now()))
	return mapConstraint(err)
}

func (r *backupCodesRepo) ConsumeBackupCode(ctx context.Context, userID string, codeHash string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM backup_codes WHERE user_id = ? AND code_hash = ?`, userID, codeHash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *backupCodesRepo) DeleteAllBackupCodes(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM backup_codes WHERE user_id = ?`, userID)
	return err
}

func (r *backupCodesRepo) CountUserBackupCodes(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM backup_codes WHERE user_id = ?`, userID).Scan(&count)
	return count, err
}
