package redirect

import (
	"errors"
	"fmt"
)

var (
	// ErrNoHandlerAvailable means the platform has no external handler for
	// the authorization URL. It selects the embedded fallback and is never
	// shown to the user.
	ErrNoHandlerAvailable = errors.New("no external URL handler available")

	// ErrInteractionRequired means the embedded surface reached a page that
	// needs the user to sign in.
	ErrInteractionRequired = errors.New("portal requires interactive sign-in")

	// ErrNotRedirect is returned when a URI handed to the app does not match
	// the configured redirect URI.
	ErrNotRedirect = errors.New("URI does not match the configured redirect URI")

	// ErrMissingCode is returned when the redirect carries neither a code
	// nor an error.
	ErrMissingCode = errors.New("redirect URI has no code parameter")

	// ErrAbandoned is returned when the user leaves the authorization page
	// without completing it.
	ErrAbandoned = errors.New("authorization abandoned")

	// ErrCallbackStopped is returned by CallbackServer.Wait when the server
	// stopped before receiving a redirect.
	ErrCallbackStopped = errors.New("callback server stopped")
)

// AuthorizationDeniedError is returned when the portal redirects back with
// an error instead of a code, e.g. because the user declined consent.
type AuthorizationDeniedError struct {
	Code        string
	Description string
}

// Error implements the error interface.
func (e *AuthorizationDeniedError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("authorization denied: %s - %s", e.Code, e.Description)
	}
	return fmt.Sprintf("authorization denied: %s", e.Code)
}
