package authsdk

import (
	"context"
	"net/http"
)

// Bootstrap creates the first admin of an empty vault. token must match the
// server's BOOTSTRAP_TOKEN. Call req.Validate first to catch bad input
// without a round trip.
func (c *SDKClient) Bootstrap(ctx context.Context, token string, req BootstrapRequest) (*BootstrapResponse, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/bootstrap", req, map[string]string{
		"X-Bootstrap-Token": token,
	})
	return decodeAs[BootstrapResponse](resp, err, http.StatusCreated)
}
