package authsdk

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/aussiebroadwan/lockbox/pkg/httpx"
)

// ============================================================================
// Error Codes
// ============================================================================

const (
	ErrorCodeInvalidRequest      = "invalid_request"
	ErrorCodeInvalidCredentials  = "invalid_credentials"
	ErrorCodeInvalidSecondFactor = "invalid_second_factor"
	ErrorCodeInvalidToken        = "invalid_token"
	ErrorCodeInvalidCode         = "invalid_code"
	ErrorCodeAccessDenied        = "access_denied"
	ErrorCodeNotFound            = "not_found"
	ErrorCodeConflict            = "conflict"
	ErrorCodeValidation          = "validation_error"
	ErrorCodeRateLimited         = "rate_limit_exceeded"
	ErrorCodeServerError         = "server_error"
)

// ============================================================================
// APIError - the service's error type
// ============================================================================

// APIError is an error response of the lockbox API. It is used both by the
// server (to write HTTP responses) and by the SDK client (to represent
// errors).
type APIError struct {
	// StatusCode is the HTTP status code for this error
	StatusCode int `json:"-"`

	// Code is the machine readable error code (e.g., "invalid_credentials")
	Code string `json:"error"`

	// Description is a human-readable description of the error
	Description string `json:"error_description"`

	// Details maps fields to problems for validation errors
	Details map[string]string `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if len(e.Details) == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Description)
	}
	keys := make([]string, 0, len(e.Details))
	for k := range e.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Details[k])
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Description, strings.Join(parts, ", "))
}

// Is matches another APIError with the same code, so callers can write
// errors.Is(err, authsdk.ErrInvalidCredentials).
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	return ok && t.Code == e.Code
}

// WriteError writes this APIError to an HTTP response writer.
func (e *APIError) WriteError(w http.ResponseWriter) {
	if e.StatusCode == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer error="`+e.Code+`"`)
	}
	httpx.WriteJSON(w, e.StatusCode, ErrorResponse{
		Error:            e.Code,
		ErrorDescription: e.Description,
		Details:          e.Details,
	})
}

// ============================================================================
// Predefined Errors
// ============================================================================

var (
	// ErrInvalidRequest is returned when the request is malformed or missing
	// required parameters.
	ErrInvalidRequest = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request is malformed or missing required parameters",
	}

	// ErrInvalidCredentials is returned for every failed password step and
	// for unusable login challenges. Unknown emails look the same.
	ErrInvalidCredentials = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidCredentials,
		Description: "invalid email or password",
	}

	// ErrInvalidSecondFactor is returned when the TOTP or backup code is
	// wrong or was already used. The challenge stays usable.
	ErrInvalidSecondFactor = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidSecondFactor,
		Description: "invalid or already used code",
	}

	// ErrInvalidToken is returned when the access token is missing, invalid
	// or expired.
	ErrInvalidToken = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidToken,
		Description: "the access token is missing, invalid or expired",
	}

	// ErrInvalidCode is returned by MFA management when the code does not
	// verify.
	ErrInvalidCode = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidCode,
		Description: "invalid code",
	}

	// ErrAccessDenied is returned when the session lacks the required role.
	ErrAccessDenied = &APIError{
		StatusCode:  http.StatusForbidden,
		Code:        ErrorCodeAccessDenied,
		Description: "access denied",
	}

	// ErrNotFound is returned for missing resources, including resources the
	// caller does not own.
	ErrNotFound = &APIError{
		StatusCode:  http.StatusNotFound,
		Code:        ErrorCodeNotFound,
		Description: "not found",
	}

	// ErrServerError is returned when the service hit an unexpected
	// condition. Details are only logged.
	ErrServerError = &APIError{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "internal server error",
	}
)

// NewAPIError creates an APIError with the given status code, error code and
// description.
func NewAPIError(statusCode int, code, description string) *APIError {
	return &APIError{
		StatusCode:  statusCode,
		Code:        code,
		Description: description,
	}
}

// NewValidationError reports per-field problems with a 400.
func NewValidationError(details map[string]string) *APIError {
	return &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeValidation,
		Description: "request validation failed",
		Details:     details,
	}
}

// ============================================================================
// Second Factor Challenge
// ============================================================================

// SecondFactorRequiredError is returned by SDKClient.Login when the account
// has TOTP enabled. Pass ChallengeID to CompleteSecondFactor.
type SecondFactorRequiredError struct {
	ChallengeID string
}

// Error implements the error interface.
func (e *SecondFactorRequiredError) Error() string {
	return "second factor required"
}

// ============================================================================
// Error Parsing Helpers
// ============================================================================

// parseErrorResponse turns a non-2xx response into an *APIError. Returns nil
// if the response indicates success.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &APIError{
			StatusCode:  resp.StatusCode,
			Code:        errResp.Error,
			Description: errResp.ErrorDescription,
			Details:     errResp.Details,
		}
	}

	// Fallback: create generic error from status code
	return &APIError{
		StatusCode:  resp.StatusCode,
		Code:        ErrorCodeServerError,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
