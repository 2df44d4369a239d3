package portal

import (
	"errors"
	"fmt"
)

// ErrWaitTimeout is the reason for a cancelled access when no authorization
// code arrived within the wait timeout.
var ErrWaitTimeout = errors.New("timed out waiting for authorization")

// ErrTooManyRounds is the reason for a cancelled access that kept being
// challenged.
var ErrTooManyRounds = errors.New("too many authentication rounds")

// ErrUnsupportedScheme is returned when the portal asks for an
// authentication scheme other than bearer tokens.
var ErrUnsupportedScheme = errors.New("portal requires an unsupported authentication scheme")

// AccessCancelledError is returned when a secured resource could not be
// accessed because authentication was cancelled.
type AccessCancelledError struct {
	Resource string
	Reason   error
}

// Error implements the error interface.
func (e *AccessCancelledError) Error() string {
	if e.Reason == nil {
		return fmt.Sprintf("access to %s cancelled", e.Resource)
	}
	return fmt.Sprintf("access to %s cancelled: %v", e.Resource, e.Reason)
}

// Unwrap returns the reason for error chain inspection.
func (e *AccessCancelledError) Unwrap() error {
	return e.Reason
}

// IsAccessCancelled reports whether err is an AccessCancelledError.
func IsAccessCancelled(err error) bool {
	var cancelled *AccessCancelledError
	return errors.As(err, &cancelled)
}
