package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/aussiebroadwan/lockbox/internal/auth/domain"
)

type usersRepo struct {
	db  dbtx
	now func() time.Time
}

const userColumns = `id, email, name, password_hash, role, mfa_enabled, mfa_secret, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (domain.User, error) {
	var (
		u          domain.User
		role       string
		mfaEnabled sql.NullInt64
		mfaSecret  sql.NullString
		created    int64
		updated    int64
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &role, &mfaEnabled, &mfaSecret, &created, &updated); err != nil {
		return domain.User{}, mapNotFound(err)
	}
	u.Role = domain.Role(role)
	u.MFAEnabled = mapNullTimePtr(mfaEnabled)
	u.MFASecret = mapNullStringPtr(mfaSecret)
	u.CreatedAt = fromUnix(created)
	u.UpdatedAt = fromUnix(updated)
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? COLLATE NOCASE`, strings.TrimSpace(email)))
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	now := r.now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}

	var mfaEnabled sql.NullInt64
	if u.MFAEnabled != nil {
		mfaEnabled = sql.NullInt64{Int64: unix(*u.MFAEnabled), Valid: true}
	}
	var mfaSecret sql.NullString
	if u.MFASecret != nil {
		mfaSecret = stringToNullString(*u.MFASecret)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, strings.TrimSpace(u.Email), u.Name, u.PasswordHash, string(u.Role),
		mfaEnabled, mfaSecret, unix(u.CreatedAt), unix(u.UpdatedAt),
	)
	return mapConstraint(err)
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID string, newHash string) error {
	return requireRow(r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		newHash, unix(r.now()), userID))
}

func (r *usersRepo) DeleteUser(ctx context.Context, userID string) error {
	return requireRow(r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID))
}

func (r *usersRepo) IsEmpty(ctx context.Context) (bool, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return false, err
	}
	return count == 0, nil
}

func (r *usersRepo) UpdateMFASecret(ctx context.Context, userID string, secret string) error {
	return requireRow(r.db.ExecContext(ctx,
		`UPDATE users SET mfa_secret = ?, updated_at = ? WHERE id = ?`,
		stringToNullString(secret), unix(r.now()), userID))
}

func (r *usersRepo) EnableMFA(ctx context.Context, userID string) error {
	now := unix(r.now())
	return requireRow(r.db.ExecContext(ctx,
		`UPDATE users SET mfa_enabled = ?, updated_at = ? WHERE id = ? AND mfa_secret IS NOT NULL`,
		now, now, userID))
}

func (r *usersRepo) DisableMFA(ctx context.Context, userID string) error {
	return requireRow(r.db.ExecContext(ctx,
		`UPDATE users SET mfa_enabled = NULL, mfa_secret = NULL, updated_at = ? WHERE id = ?`,
		unix(r.now()), userID))
}
