package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// maxResponseBytes bounds what the client reads from one response.
const maxResponseBytes = 1 << 20

// send issues one request. in, when not nil, is sent as JSON. bearer, when
// not empty, goes into the Authorization header.
func (c *SDKClient) send(ctx context.Context, method, path string, in any, headers map[string]string, bearer string) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

// doJSON is an unauthenticated request.
func (c *SDKClient) doJSON(ctx context.Context, method, path string, in any, headers map[string]string) (*http.Response, error) {
	return c.send(ctx, method, path, in, headers, "")
}

// doAuthRequest sends the session's access token, refreshing it first when
// it is about to expire.
func (s *Session) doAuthRequest(ctx context.Context, method, path string, in any) (*http.Response, error) {
	token, err := s.getValidToken(ctx)
	if err != nil {
		return nil, err
	}
	return s.client.send(ctx, method, path, in, nil, token)
}

// readBody drains and closes resp. Any status but want becomes an error,
// an *APIError when the server sent one.
func readBody(resp *http.Response, want int) ([]byte, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode == want {
		return body, nil
	}
	if err := parseErrorResponse(resp, body); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
}

// decodeJSON decodes a want response into target.
func decodeJSON(resp *http.Response, target any, want int) error {
	body, err := readBody(resp, want)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// decodeAs is decodeJSON for the common case of a single typed result.
func decodeAs[T any](resp *http.Response, err error, want int) (*T, error) {
	if err != nil {
		return nil, err
	}
	var out T
	if err := decodeJSON(resp, &out, want); err != nil {
		return nil, err
	}
	return &out, nil
}

// noContent is the decodeAs of endpoints answering 204.
func noContent(resp *http.Response, err error) error {
	if err != nil {
		return err
	}
	_, err = readBody(resp, http.StatusNoContent)
	return err
}
