// Package vault stores the credentials a signed-in user keeps in lockbox.
//
// Every operation takes the caller's session view and refuses sessions that
// are not fully authenticated, including ones still waiting for a second
// factor. Passwords and notes are sealed at rest and bound to their owner
// and item id.
package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/lockbox/internal/auth/domain"
	"github.com/aussiebroadwan/lockbox/internal/auth/session"
	"github.com/aussiebroadwan/lockbox/internal/auth/store"
	"github.com/aussiebroadwan/lockbox/pkg/cryptox"
	"github.com/aussiebroadwan/lockbox/pkg/idx"
	"github.com/aussiebroadwan/lockbox/pkg/slogx"
	"github.com/aussiebroadwan/lockbox/pkg/validx"
)

var (
	ErrUnauthorized = errors.New("vault: unauthorized")
	ErrNotFound     = errors.New("vault: item not found")
)

// ItemInput is a new item or a full replacement.
type ItemInput struct {
	Title    string `json:"title" validate:"required,max=200"`
	Username string `json:"username" validate:"max=200"`
	URL      string `json:"url" validate:"omitempty,url,max=1000"`
	Password string `json:"password" validate:"required,max=500"`
	Notes    string `json:"notes" validate:"max=2000"`
}

// ItemPatch changes only the fields that are set.
type ItemPatch struct {
	Title    *string `json:"title" validate:"omitnil,min=1,max=200"`
	Username *string `json:"username" validate:"omitnil,max=200"`
	URL      *string `json:"url" validate:"omitempty,url,max=1000"`
	Password *string `json:"password" validate:"omitnil,min=1,max=500"`
	Notes    *string `json:"notes" validate:"omitnil,max=2000"`
}

// Service is the vault collaborator behind the /v1/vault endpoints.
type Service struct {
	Store  store.Store
	Sealer *cryptox.Sealer
	Now    func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func authorize(v session.View) (string, error) {
	if err := v.Require(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	return v.User.ID, nil
}

// List returns the caller's items, newest first.
func (s *Service) List(ctx context.Context, v session.View) ([]domain.VaultItem, error) {
	userID, err := authorize(v)
	if err != nil {
		return nil, err
	}

	items, err := s.Store.VaultItems().ListItems(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if err := s.open(&items[i]); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// Get returns one of the caller's items.
func (s *Service) Get(ctx context.Context, v session.View, id string) (domain.VaultItem, error) {
	userID, err := authorize(v)
	if err != nil {
		return domain.VaultItem{}, err
	}

	if !idx.Valid(id) {
		return domain.VaultItem{}, ErrNotFound
	}

	item, err := s.Store.VaultItems().GetItem(ctx, userID, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.VaultItem{}, ErrNotFound
	}
	if err != nil {
		return domain.VaultItem{}, err
	}
	if err := s.open(&item); err != nil {
		return domain.VaultItem{}, err
	}
	return item, nil
}

// Create stores a new item owned by the caller.
func (s *Service) Create(ctx context.Context, v session.View, in ItemInput) (domain.VaultItem, error) {
	userID, err := authorize(v)
	if err != nil {
		return domain.VaultItem{}, err
	}
	in.Title = strings.TrimSpace(in.Title)
	if err := validx.Struct(in); err != nil {
		return domain.VaultItem{}, err
	}

	now := s.now()
	item := domain.VaultItem{
		ID:        idx.NewAt(now),
		UserID:    userID,
		Title:     in.Title,
		Username:  in.Username,
		URL:       in.URL,
		Password:  in.Password,
		Notes:     in.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}

	sealed, err := s.seal(item)
	if err != nil {
		return domain.VaultItem{}, err
	}
	if err := s.Store.VaultItems().CreateItem(ctx, sealed); err != nil {
		return domain.VaultItem{}, err
	}

	slogx.FromContext(ctx).Info("vault item created", slog.String("item_id", item.ID))
	return item, nil
}

// Update applies patch to one of the caller's items. Someone else's item
// and a missing item are both ErrNotFound.
func (s *Service) Update(ctx context.Context, v session.View, id string, patch ItemPatch) (domain.VaultItem, error) {
	userID, err := authorize(v)
	if err != nil {
		return domain.VaultItem{}, err
	}
	if err := validx.Struct(patch); err != nil {
		return domain.VaultItem{}, err
	}

	item, err := s.Get(ctx, v, id)
	if err != nil {
		return domain.VaultItem{}, err
	}

	apply(&item.Title, patch.Title)
	apply(&item.Username, patch.Username)
	apply(&item.URL, patch.URL)
	apply(&item.Password, patch.Password)
	apply(&item.Notes, patch.Notes)
	item.Title = strings.TrimSpace(item.Title)
	if item.Title == "" {
		return domain.VaultItem{}, validx.FieldErrors{"title": "is required"}
	}
	item.UserID = userID
	item.UpdatedAt = s.now()

	sealed, err := s.seal(item)
	if err != nil {
		return domain.VaultItem{}, err
	}
	err = s.Store.VaultItems().UpdateItem(ctx, sealed)
	if errors.Is(err, store.ErrNotFound) {
		return domain.VaultItem{}, ErrNotFound
	}
	if err != nil {
		return domain.VaultItem{}, err
	}

	slogx.FromContext(ctx).Info("vault item updated", slog.String("item_id", id))
	return item, nil
}

// Delete removes one of the caller's items. Deleting a missing item, or
// someone else's, succeeds and removes nothing.
func (s *Service) Delete(ctx context.Context, v session.View, id string) error {
	userID, err := authorize(v)
	if err != nil {
		return err
	}

	if !idx.Valid(id) {
		return nil
	}

	n, err := s.Store.VaultItems().DeleteItem(ctx, userID, id)
	if err != nil {
		return err
	}
	slogx.FromContext(ctx).Info("vault item deleted", slog.String("item_id", id), slog.Int64("count", n))
	return nil
}

func apply(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func aad(it domain.VaultItem) string { return it.UserID + "/" + it.ID }

func (s *Service) seal(it domain.VaultItem) (domain.VaultItem, error) {
	var err error
	if it.Password != "" {
		if it.Password, err = s.Sealer.SealString(it.Password, aad(it)); err != nil {
			return domain.VaultItem{}, fmt.Errorf("seal password: %w", err)
		}
	}
	if it.Notes != "" {
		if it.Notes, err = s.Sealer.SealString(it.Notes, aad(it)); err != nil {
			return domain.VaultItem{}, fmt.Errorf("seal notes: %w", err)
		}
	}
	return it, nil
}

func (s *Service) open(it *domain.VaultItem) error {
	var err error
	if it.Password != "" {
		if it.Password, err = s.Sealer.OpenString(it.Password, aad(*it)); err != nil {
			return fmt.Errorf("open password of %s: %w", it.ID, err)
		}
	}
	if it.Notes != "" {
		if it.Notes, err = s.Sealer.OpenString(it.Notes, aad(*it)); err != nil {
			return fmt.Errorf("open notes of %s: %w", it.ID, err)
		}
	}
	return nil
}
