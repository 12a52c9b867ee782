package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aussiebroadwan/lockbox/internal/auth/domain"
	"github.com/aussiebroadwan/lockbox/internal/auth/store"
	"github.com/aussiebroadwan/lockbox/pkg/cryptox"
	"github.com/aussiebroadwan/lockbox/pkg/idx"
	"github.com/aussiebroadwan/lockbox/pkg/slogx"
	"github.com/aussiebroadwan/lockbox/pkg/validx"
)

var (
	ErrEmailTaken      = errors.New("email already registered")
	ErrAccountTaken    = errors.New("provider account already linked")
	ErrWrongPassword   = errors.New("current password is wrong")
	ErrUnsupportedHash = errors.New("unsupported password hash")
)

type UserService struct {
	Store store.Store
}

// NewUser is an administrator's request to create a password account.
type NewUser struct {
	Email    string      `json:"email" validate:"required,email,max=320"`
	Name     string      `json:"name" validate:"max=200"`
	Password string      `json:"password" validate:"required,min=12,max=1024"`
	Role     domain.Role `json:"role" validate:"omitempty,oneof=ADMIN USER"`
}

// ImportedUser is a user carried over from the previous vault. PasswordHash
// is a bcrypt digest or empty for accounts that only signed in through a
// provider.
type ImportedUser struct {
	Email        string            `json:"email" validate:"required,email,max=320"`
	Name         string            `json:"name" validate:"max=200"`
	PasswordHash string            `json:"password_hash" validate:"omitempty,max=256"`
	Role         domain.Role       `json:"role" validate:"omitempty,oneof=ADMIN USER"`
	Accounts     []ImportedAccount `json:"accounts" validate:"dive"`
}

type ImportedAccount struct {
	Provider          string `json:"provider" validate:"required,max=64"`
	ProviderAccountID string `json:"provider_account_id" validate:"required,max=256"`
}

// GetUserByID fetches a user by id.
func (s *UserService) GetUserByID(ctx context.Context, userID string) (domain.User, error) {
	return s.Store.Users().GetUserByID(ctx, userID)
}

// CreateUser hashes the password and stores a new user. Role defaults to USER.
func (s *UserService) CreateUser(ctx context.Context, req NewUser) (domain.User, error) {
	if err := validx.Struct(req); err != nil {
		return domain.User{}, err
	}

	hash, err := cryptox.HashPassword(req.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	u := domain.User{
		ID:           idx.NewString(),
		Email:        strings.TrimSpace(req.Email),
		Name:         req.Name,
		PasswordHash: hash,
		Role:         roleOrDefault(req.Role),
	}
	if err := s.Store.Users().CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, ErrEmailTaken
		}
		return domain.User{}, err
	}

	slogx.FromContext(ctx).Info("user created", slog.String("user_id", u.ID), slog.String("role", u.Role.String()))
	return s.Store.Users().GetUserByID(ctx, u.ID)
}

// ImportUser stores a user with its existing digest and provider links in
// one transaction. The digest is upgraded to argon2id on first login.
func (s *UserService) ImportUser(ctx context.Context, req ImportedUser) (domain.User, error) {
	if err := validx.Struct(req); err != nil {
		return domain.User{}, err
	}
	if req.PasswordHash != "" && !strings.HasPrefix(req.PasswordHash, "$2") && !strings.HasPrefix(req.PasswordHash, "$argon2id$") {
		return domain.User{}, ErrUnsupportedHash
	}

	u := domain.User{
		ID:           idx.NewString(),
		Email:        strings.TrimSpace(req.Email),
		Name:         req.Name,
		PasswordHash: req.PasswordHash,
		Role:         roleOrDefault(req.Role),
	}

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().CreateUser(ctx, u); err != nil {
			return err
		}
		for _, a := range req.Accounts {
			err := tx.Accounts().CreateAccount(ctx, domain.Account{
				ID:                idx.NewString(),
				UserID:            u.ID,
				Provider:          a.Provider,
				ProviderAccountID: a.ProviderAccountID,
			})
			if errors.Is(err, store.ErrAlreadyExists) {
				return fmt.Errorf("%w: %s", ErrAccountTaken, a.Provider)
			}
			if err != nil {
				return fmt.Errorf("link %s account: %w", a.Provider, err)
			}
		}
		return nil
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		return domain.User{}, ErrEmailTaken
	}
	if err != nil {
		return domain.User{}, err
	}

	slogx.FromContext(ctx).Info("user imported",
		slog.String("user_id", u.ID),
		slog.Int("linked_accounts", len(req.Accounts)),
	)
	return s.Store.Users().GetUserByID(ctx, u.ID)
}

// ChangePassword replaces the password after checking the current one.
func (s *UserService) ChangePassword(ctx context.Context, userID, current, next string) error {
	if err := validx.Validator().Var(next, "required,min=12,max=1024"); err != nil {
		return validx.FieldErrors{"new_password": "must be between 12 and 1024 characters long"}
	}

	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.HasPassword() {
		err := cryptox.VerifyPassword(current, user.PasswordHash)
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			return ErrWrongPassword
		}
		if err != nil {
			return fmt.Errorf("verify password: %w", err)
		}
	}

	hash, err := cryptox.HashPassword(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.Store.Users().UpdatePasswordHash(ctx, userID, hash); err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("password changed", slog.String("user_id", userID))
	return nil
}

func roleOrDefault(r domain.Role) domain.Role {
	if r == domain.RoleNone {
		return domain.RoleUser
	}
	return r
}
