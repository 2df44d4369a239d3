package oauth

import (
	"errors"
	"fmt"
)

// ErrExchangeFailed is the single error kind for every token exchange
// failure: transport errors, non-2xx responses, portal error payloads and
// responses without an access token.
var ErrExchangeFailed = errors.New("token exchange failed")

// ExchangeFailedError carries the details of a failed exchange.
type ExchangeFailedError struct {
	// StatusCode is the HTTP status of the token response, 0 if no response
	// was received.
	StatusCode int

	// ProviderCode is the OAuth error code returned by the portal, if any.
	ProviderCode string

	// Message is the portal's human-readable reason, if any.
	Message string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *ExchangeFailedError) Error() string {
	msg := ErrExchangeFailed.Error()
	if e.ProviderCode != "" {
		msg += ": " + e.ProviderCode
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	switch {
	case e.Message != "":
		msg += ": " + e.Message
	case e.Cause != nil:
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the cause for error chain inspection.
func (e *ExchangeFailedError) Unwrap() error {
	return e.Cause
}

// Is makes errors.Is(err, ErrExchangeFailed) match.
func (e *ExchangeFailedError) Is(target error) bool {
	return target == ErrExchangeFailed
}
