package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/lockbox/internal/auth/domain"
	"github.com/aussiebroadwan/lockbox/internal/vault"
	"github.com/aussiebroadwan/lockbox/pkg/authsdk"
	"github.com/aussiebroadwan/lockbox/pkg/httpx"
)

// VaultHandler serves the caller's vault items.
type VaultHandler struct {
	Vault *vault.Service
}

// HandleList handles GET /v1/vault
//
//	@Summary		List vault items
//	@Tags			Vault
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.ListVaultItemsResponse	"Items, newest first"
//	@Failure		401	{object}	authsdk.ErrorResponse			"Missing, invalid or half-finished session"
//	@Failure		500	{object}	authsdk.ErrorResponse			"Internal server error"
//	@Router			/v1/vault [get].
func (h *VaultHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	items, err := h.Vault.List(r.Context(), viewFrom(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := authsdk.ListVaultItemsResponse{Items: make([]authsdk.VaultItem, 0, len(items))}
	for _, it := range items {
		out.Items = append(out.Items, vaultItem(it))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleGet handles GET /v1/vault/{id}
//
//	@Summary		Get a vault item
//	@Tags			Vault
//	@Security		BearerAuth
//	@Produce		json
//	@Param			id	path		string				true	"Item ID"
//	@Success		200	{object}	authsdk.VaultItem		"Item"
//	@Failure		401	{object}	authsdk.ErrorResponse	"Missing, invalid or half-finished session"
//	@Failure		404	{object}	authsdk.ErrorResponse	"No such item for this user"
//	@Router			/v1/vault/{id} [get].
func (h *VaultHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	item, err := h.Vault.Get(r.Context(), viewFrom(r), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, vaultItem(item))
}

// HandleCreate handles POST /v1/vault
//
//	@Summary		Create a vault item
//	@Tags			Vault
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.VaultItemRequest	true	"Item"
//	@Success		201		{object}	authsdk.VaultItem			"Created item"
//	@Failure		400		{object}	authsdk.ErrorResponse		"Validation failed"
//	@Failure		401		{object}	authsdk.ErrorResponse		"Missing, invalid or half-finished session"
//	@Router			/v1/vault [post].
func (h *VaultHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req authsdk.VaultItemRequest
	if !decodeBody(w, r, &req) {
		return
	}

	item, err := h.Vault.Create(r.Context(), viewFrom(r), vault.ItemInput{
		Title:    req.Title,
		Username: req.Username,
		URL:      req.URL,
		Password: req.Password,
		Notes:    req.Notes,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, vaultItem(item))
}

// HandleUpdate handles PATCH /v1/vault/{id}
//
//	@Summary		Update a vault item
//	@Description	Changes only the fields present in the body.
//	@Tags			Vault
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Item ID"
//	@Param			request	body		authsdk.VaultItemPatch	true	"Fields to change"
//	@Success		200		{object}	authsdk.VaultItem		"Updated item"
//	@Failure		400		{object}	authsdk.ErrorResponse	"Validation failed"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Missing, invalid or half-finished session"
//	@Failure		404		{object}	authsdk.ErrorResponse	"No such item for this user"
//	@Router			/v1/vault/{id} [patch].
func (h *VaultHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req authsdk.VaultItemPatch
	if !decodeBody(w, r, &req) {
		return
	}

	item, err := h.Vault.Update(r.Context(), viewFrom(r), r.PathValue("id"), vault.ItemPatch{
		Title:    req.Title,
		Username: req.Username,
		URL:      req.URL,
		Password: req.Password,
		Notes:    req.Notes,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, vaultItem(item))
}

// HandleDelete handles DELETE /v1/vault/{id}
//
//	@Summary		Delete a vault item
//	@Description	Deleting a missing item succeeds.
//	@Tags			Vault
//	@Security		BearerAuth
//	@Param			id	path	string	true	"Item ID"
//	@Success		204	"Deleted"
//	@Failure		401	{object}	authsdk.ErrorResponse	"Missing, invalid or half-finished session"
//	@Router			/v1/vault/{id} [delete].
func (h *VaultHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.Vault.Delete(r.Context(), viewFrom(r), r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *VaultHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, vault.ErrUnauthorized):
		authsdk.ErrInvalidToken.WriteError(w)
	case errors.Is(err, vault.ErrNotFound):
		authsdk.ErrNotFound.WriteError(w)
	case writeValidation(w, err):
	default:
		writeInternal(w, r, "vault operation failed", err)
	}
}

func vaultItem(it domain.VaultItem) authsdk.VaultItem {
	return authsdk.VaultItem{
		ID:        it.ID,
		Title:     it.Title,
		Username:  it.Username,
		URL:       it.URL,
		Password:  it.Password,
		Notes:     it.Notes,
		CreatedAt: it.CreatedAt,
		UpdatedAt: it.UpdatedAt,
	}
}
