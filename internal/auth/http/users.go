package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/lockbox/internal/auth/domain"
	"github.com/aussiebroadwan/lockbox/internal/auth/service"
	"github.com/aussiebroadwan/lockbox/pkg/authsdk"
	"github.com/aussiebroadwan/lockbox/pkg/httpx"
)

// UsersHandler lets administrators create and import accounts.
type UsersHandler struct {
	UserService *service.UserService
}

// HandleCreate handles POST /v1/users
//
//	@Summary		Create a user
//	@Tags			Users
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.CreateUserRequest	true	"New user"
//	@Success		201		{object}	authsdk.UserResponse		"Created user"
//	@Failure		400		{object}	authsdk.ErrorResponse		"Validation failed"
//	@Failure		403		{object}	authsdk.ErrorResponse		"Forbidden - requires the ADMIN role"
//	@Failure		409		{object}	authsdk.ErrorResponse		"Email already registered"
//	@Router			/v1/users [post].
func (h *UsersHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req authsdk.CreateUserRequest
	if !decodeBody(w, r, &req) {
		return
	}
	role, ok := parseRole(w, req.Role)
	if !ok {
		return
	}

	u, err := h.UserService.CreateUser(r.Context(), service.NewUser{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
		Role:     role,
	})
	if err != nil {
		writeUserError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, userResponse(u))
}

// HandleImport handles POST /v1/users/import
//
//	@Summary		Import a user
//	@Description	Brings over an account with its existing password digest and linked provider accounts. Bcrypt digests are upgraded on first login.
//	@Tags			Users
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.ImportUserRequest	true	"Imported user"
//	@Success		201		{object}	authsdk.UserResponse		"Imported user"
//	@Failure		400		{object}	authsdk.ErrorResponse		"Validation failed or unsupported digest"
//	@Failure		403		{object}	authsdk.ErrorResponse		"Forbidden - requires the ADMIN role"
//	@Failure		409		{object}	authsdk.ErrorResponse		"Email or provider account already taken"
//	@Router			/v1/users/import [post].
func (h *UsersHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ImportUserRequest
	if !decodeBody(w, r, &req) {
		return
	}
	role, ok := parseRole(w, req.Role)
	if !ok {
		return
	}

	accounts := make([]service.ImportedAccount, len(req.Accounts))
	for i, a := range req.Accounts {
		accounts[i] = service.ImportedAccount{Provider: a.Provider, ProviderAccountID: a.ProviderAccountID}
	}

	u, err := h.UserService.ImportUser(r.Context(), service.ImportedUser{
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: req.PasswordHash,
		Role:         role,
		Accounts:     accounts,
	})
	if err != nil {
		writeUserError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, userResponse(u))
}

func parseRole(w http.ResponseWriter, s string) (domain.Role, bool) {
	role, err := domain.ParseRole(s)
	if err != nil {
		authsdk.NewValidationError(map[string]string{"role": "must be ADMIN or USER"}).WriteError(w)
		return domain.RoleNone, false
	}
	return role, true
}

func writeUserError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrEmailTaken):
		authsdk.NewAPIError(http.StatusConflict, authsdk.ErrorCodeConflict, "email already registered").WriteError(w)
	case errors.Is(err, service.ErrAccountTaken):
		authsdk.NewAPIError(http.StatusConflict, authsdk.ErrorCodeConflict, err.Error()).WriteError(w)
	case errors.Is(err, service.ErrUnsupportedHash):
		authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest, "password_hash must be a bcrypt or argon2id digest").WriteError(w)
	case writeValidation(w, err):
	default:
		writeInternal(w, r, "failed to store user", err)
	}
}

func userResponse(u domain.User) authsdk.UserResponse {
	return authsdk.UserResponse{
		ID:               u.ID,
		Email:            u.Email,
		Name:             u.Name,
		Role:             u.Role.String(),
		TwoFactorEnabled: u.TwoFactorEnabled(),
		CreatedAt:        u.CreatedAt,
	}
}
