package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/lockbox/internal/auth/domain"
	"github.com/aussiebroadwan/lockbox/internal/auth/store"
	"github.com/aussiebroadwan/lockbox/pkg/cryptox"
	"github.com/aussiebroadwan/lockbox/pkg/idx"
	"github.com/aussiebroadwan/lockbox/pkg/slogx"
	"github.com/aussiebroadwan/lockbox/pkg/validx"
)

var (
	ErrBootstrapAlready             = errors.New("system already bootstrapped")
	ErrBootstrapUnauthorized        = errors.New("unauthorized bootstrap attempt")
	ErrBootstrapFailedToCreateAdmin = errors.New("failed to create admin user")
)

type BootstrapService struct {
	Store store.Store
	Token string // Pre-configured bootstrap token, empty disables bootstrap
}

type bootstrapInput struct {
	Email    string `json:"admin_email" validate:"required,email,max=320"`
	Name     string `json:"admin_name" validate:"max=200"`
	Password string `json:"admin_password" validate:"omitempty,min=12,max=1024"`
}

func (s *BootstrapService) IsBootstrapped(ctx context.Context) (bool, error) {
	empty, err := s.Store.Users().IsEmpty(ctx)
	if err != nil {
		return false, err
	}
	return !empty, nil
}

// Bootstrap creates the first administrator of an empty vault. When no
// password is supplied one is generated and returned once in the result.
func (s *BootstrapService) Bootstrap(ctx context.Context, token string, req domain.BootstrapData) (domain.BootstrapResult, error) {
	l := slogx.FromContext(ctx)

	// 1. Validate provided token
	if s.Token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.Token)) != 1 {
		l.Warn("unauthorized bootstrap attempt")
		return domain.BootstrapResult{}, ErrBootstrapUnauthorized
	}

	// 2. Check if already bootstrapped
	bootstrapped, err := s.IsBootstrapped(ctx)
	if err != nil {
		return domain.BootstrapResult{}, fmt.Errorf("check bootstrap state: %w", err)
	}
	if bootstrapped {
		l.Warn("attempted bootstrap on already-bootstrapped system")
		return domain.BootstrapResult{}, ErrBootstrapAlready
	}

	if err := validx.Struct(bootstrapInput{Email: req.AdminEmail, Name: req.AdminName, Password: req.AdminPassword}); err != nil {
		return domain.BootstrapResult{}, err
	}

	// 3. Generate a password when none was given
	result := domain.BootstrapResult{Email: req.AdminEmail}
	password := req.AdminPassword
	if password == "" {
		password, err = cryptox.GeneratePassword()
		if err != nil {
			return domain.BootstrapResult{}, err
		}
		result.Password = password
	}

	passHash, err := cryptox.HashPassword(password)
	if err != nil {
		l.Error("failed to hash admin password", slog.Any("error", err))
		return domain.BootstrapResult{}, ErrBootstrapFailedToCreateAdmin
	}

	// 4. Create the admin user
	result.UserID = idx.NewString()
	err = s.Store.Users().CreateUser(ctx, domain.User{
		ID:           result.UserID,
		Email:        req.AdminEmail,
		Name:         req.AdminName,
		PasswordHash: passHash,
		Role:         domain.RoleAdmin,
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		return domain.BootstrapResult{}, ErrBootstrapAlready
	}
	if err != nil {
		l.Error("failed to create admin user",
			slog.String("admin_user_id", result.UserID),
			slog.Any("error", err),
		)
		return domain.BootstrapResult{}, ErrBootstrapFailedToCreateAdmin
	}

	l.Info("successfully bootstrapped system", slog.String("admin_user_id", result.UserID))
	return result, nil
}
