package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/lockbox/internal/auth/domain"
)

type vaultItemsRepo struct {
	db  dbtx
	now func() time.Time
}

const vaultColumns = `id, user_id, title, username, url, password, notes, created_at, updated_at`

func scanItem(row interface{ Scan(...any) error }) (domain.VaultItem, error) {
	var (
		it               domain.VaultItem
		created, updated int64
	)
	if err := row.Scan(&it.ID, &it.UserID, &it.Title, &it.Username, &it.URL, &it.Password, &it.Notes, &created, &updated); err != nil {
		return domain.VaultItem{}, mapNotFound(err)
	}
	it.CreatedAt = fromUnix(created)
	it.UpdatedAt = fromUnix(updated)
	return it, nil
}

func (r *vaultItemsRepo) ListItems(ctx context.Context, userID string) ([]domain.VaultItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+vaultColumns+` FROM vault_items WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.VaultItem, 0)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *vaultItemsRepo) GetItem(ctx context.Context, userID, id string) (domain.VaultItem, error) {
	return scanItem(r.db.QueryRowContext(ctx,
		`SELECT `+vaultColumns+` FROM vault_items WHERE id = ? AND user_id = ?`, id, userID))
}

func (r *vaultItemsRepo) CreateItem(ctx context.Context, item domain.VaultItem) error {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = r.now()
	}
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = item.CreatedAt
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO vault_items (`+vaultColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.UserID, item.Title, item.Username, item.URL, item.Password, item.Notes,
		unix(item.CreatedAt), unix(item.UpdatedAt))
	return mapConstraint(err)
}

func (r *vaultItemsRepo) UpdateItem(ctx context.Context, item domain.VaultItem) error {
	return requireRow(r.db.ExecContext(ctx,
		`UPDATE vault_items SET title = ?, username = ?, url = ?, password = ?, notes = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		item.Title, item.Username, item.URL, item.Password, item.Notes, unix(r.now()),
		item.ID, item.UserID))
}

func (r *vaultItemsRepo) DeleteItem(ctx context.Context, userID, id string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM vault_items WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
