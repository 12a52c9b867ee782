package authsdk

import (
	"context"
	"net/http"
	"net/url"
)

// ListItems returns the caller's vault items, newest first.
func (s *Session) ListItems(ctx context.Context) ([]VaultItem, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/v1/vault", nil)
	list, err := decodeAs[ListVaultItemsResponse](resp, err, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return list.Items, nil
}

// GetItem returns one vault item. Items of other users are ErrNotFound.
func (s *Session) GetItem(ctx context.Context, id string) (*VaultItem, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/v1/vault/"+url.PathEscape(id), nil)
	return decodeAs[VaultItem](resp, err, http.StatusOK)
}

// CreateItem stores a new vault item.
func (s *Session) CreateItem(ctx context.Context, req VaultItemRequest) (*VaultItem, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/vault", req)
	return decodeAs[VaultItem](resp, err, http.StatusCreated)
}

// UpdateItem changes the fields set in patch.
func (s *Session) UpdateItem(ctx context.Context, id string, patch VaultItemPatch) (*VaultItem, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodPatch, "/v1/vault/"+url.PathEscape(id), patch)
	return decodeAs[VaultItem](resp, err, http.StatusOK)
}

// DeleteItem removes a vault item. Deleting a missing item succeeds.
func (s *Session) DeleteItem(ctx context.Context, id string) error {
	resp, err := s.doAuthRequest(ctx, http.MethodDelete, "/v1/vault/"+url.PathEscape(id), nil)
	return noContent(resp, err)
}
