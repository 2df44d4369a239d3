package challenge

import "errors"

var (
	// ErrTokenExpired means the stored token's expiry has passed.
	ErrTokenExpired = errors.New("access token expired")

	// ErrTokenRevoked means an unexpired token was rejected repeatedly.
	ErrTokenRevoked = errors.New("access token rejected by portal")

	// ErrRetryLimitExceeded means the failure count reached the ceiling
	// without a usable credential.
	ErrRetryLimitExceeded = errors.New("authorization retry limit exceeded")

	// ErrRestartFailed means a new authorization flow could not be started.
	ErrRestartFailed = errors.New("failed to start authorization flow")

	// ErrStoreUnavailable means the token store could not be read or written.
	ErrStoreUnavailable = errors.New("token store unavailable")

	errCodeConsumed = errors.New("authorization code already consumed")
)
