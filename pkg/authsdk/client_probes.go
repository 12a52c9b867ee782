package authsdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrNotReady is returned by GetReadiness when /readyz answers 503. The
// failing checks are in the returned HealthResponse.
var ErrNotReady = errors.New("lockbox is not ready")

// GetLiveness calls /livez.
func (c *SDKClient) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	resp, err := c.doJSON(ctx, http.MethodGet, "/livez", nil, nil)
	return decodeAs[HealthResponse](resp, err, http.StatusOK)
}

// GetReadiness calls /readyz. A degraded service returns both the report
// and an error wrapping ErrNotReady.
func (c *SDKClient) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	resp, err := c.doJSON(ctx, http.MethodGet, "/readyz", nil, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		return decodeAs[HealthResponse](resp, nil, http.StatusOK)
	}

	health, err := decodeAs[HealthResponse](resp, nil, http.StatusServiceUnavailable)
	if err != nil {
		return nil, err
	}
	if health.Checks == nil {
		return health, ErrNotReady
	}
	return health, fmt.Errorf("%w: database=%q signer=%q replay=%q", ErrNotReady,
		health.Checks.Database, health.Checks.Signer, health.Checks.Replay)
}

// GetJWKS fetches the public keys lockbox tokens verify against, including
// retired keys whose tokens may still be live.
func (c *SDKClient) GetJWKS(ctx context.Context) (*JWKSResponse, error) {
	resp, err := c.doJSON(ctx, http.MethodGet, "/.well-known/jwks.json", nil, nil)
	return decodeAs[JWKSResponse](resp, err, http.StatusOK)
}
