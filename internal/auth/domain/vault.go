package domain

import "time"

// VaultItem is a stored credential owned by exactly one user.
type VaultItem struct {
	ID        string
	UserID    string
	Title     string
	Username  string
	URL       string
	Password  string
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
