/*
Package authsdk is a Go client for the lockbox API.

# SDKClient vs Session

The package is organized around two main types:

  - SDKClient: unauthenticated operations (login, bootstrap, health, JWKS)
  - Session: authenticated operations with automatic token refresh

Create an SDKClient and log in:

	client := authsdk.NewSDKClient("https://lockbox.example.com")

	session, err := client.Login(ctx, authsdk.LoginRequest{
		Email:    "alice@example.com",
		Password: password,
	})

# Two step login

Accounts with TOTP enabled do not get a session from the password step.
Login returns a *SecondFactorRequiredError instead; its ChallengeID is
passed back with a code from the authenticator app (or a backup code):

	session, err := client.Login(ctx, req)
	var sf *authsdk.SecondFactorRequiredError
	if errors.As(err, &sf) {
		session, err = client.CompleteSecondFactor(ctx, sf.ChallengeID, code)
	}

A wrong code answers ErrInvalidSecondFactor and the same challenge may be
tried again, up to five times within five minutes. After that, or once the
challenge has expired, the answer is ErrInvalidCredentials and the login
starts over.

# Automatic Token Refresh

Session methods call getValidToken() internally, which renews the access
token through /v1/auth/refresh once it is within 30 seconds of expiry. A
token that has already lapsed cannot be refreshed; such sessions return
ErrSessionExpired.

# Error Handling

Service errors are *APIError values and match the predefined errors with
errors.Is:

	_, err := session.GetItem(ctx, id)
	if errors.Is(err, authsdk.ErrNotFound) {
		// missing, or owned by someone else
	}

Validation failures carry per-field Details.

# Thread Safety

Sessions are safe for concurrent use. Concurrent callers that find the
token due for refresh trigger a single refresh.
*/
package authsdk
