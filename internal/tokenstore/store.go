package tokenstore

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrEmptyToken is returned when storing a credential without a token.
	// An expiry is never persisted without its token.
	ErrEmptyToken = errors.New("access token is empty")

	// ErrEmptyCode is returned when storing a pending code without a value.
	ErrEmptyCode = errors.New("authorization code is empty")
)

// Credential is a stored access token and its expiry.
type Credential struct {
	// AccessToken is treated as an opaque bearer value.
	AccessToken string

	// Expiry is when the token stops being valid. Zero means no expiry was
	// recorded.
	Expiry time.Time
}

// ExpiredAt reports whether the credential has a recorded expiry that lies
// strictly before now.
func (c Credential) ExpiredAt(now time.Time) bool {
	return !c.Expiry.IsZero() && c.Expiry.Before(now)
}

// PendingCode is an authorization code captured from a redirect that has not
// been exchanged yet.
type PendingCode struct {
	Code       string
	CapturedAt time.Time
}

// StaleAt reports whether the code is older than ttl. A zero ttl or an
// unknown capture time never makes a code stale.
func (p PendingCode) StaleAt(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 || p.CapturedAt.IsZero() {
		return false
	}
	return now.Sub(p.CapturedAt) > ttl
}

// Store persists the credential and the pending authorization code.
//
// Implementations write and clear the token and its expiry together, so a
// reader never observes one without the other. Clearing absent state is a
// no-op.
//
// SECURITY: no implementation encrypts the access token.
type Store interface {
	// Credential returns the stored credential, or false if none is held.
	Credential(ctx context.Context) (Credential, bool, error)

	// PutCredential atomically stores the token and expiry.
	PutCredential(ctx context.Context, cred Credential) error

	// ClearCredential atomically removes the token and expiry.
	ClearCredential(ctx context.Context) error

	// PendingCode returns the pending authorization code, or false if none.
	PendingCode(ctx context.Context) (PendingCode, bool, error)

	// PutPendingCode stores a captured authorization code.
	PutPendingCode(ctx context.Context, code PendingCode) error

	// ClearPendingCode removes the pending authorization code.
	ClearPendingCode(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// Watcher is implemented by stores that can signal changes, including
// changes made by other processes.
type Watcher interface {
	// Watch returns a channel that receives a value after every change
	// until ctx is cancelled.
	Watch(ctx context.Context) (<-chan struct{}, error)
}

// record is the persisted layout shared by the file and redis backends.
type record struct {
	AuthorizationCode           string `json:"authorization_code,omitempty"`
	AuthorizationCodeCapturedAt int64  `json:"authorization_code_captured_at,omitempty"`
	AccessToken                 string `json:"access_token,omitempty"`
	AccessTokenExpiry           int64  `json:"access_token_expiry"`
}

func (r *record) credential() (Credential, bool) {
	if r.AccessToken == "" {
		return Credential{}, false
	}
	return Credential{
		AccessToken: r.AccessToken,
		Expiry:      fromEpochMillis(r.AccessTokenExpiry),
	}, true
}

func (r *record) setCredential(cred Credential) {
	r.AccessToken = cred.AccessToken
	r.AccessTokenExpiry = toEpochMillis(cred.Expiry)
}

func (r *record) clearCredential() {
	r.AccessToken = ""
	r.AccessTokenExpiry = 0
}

func (r *record) pendingCode() (PendingCode, bool) {
	if r.AuthorizationCode == "" {
		return PendingCode{}, false
	}
	return PendingCode{
		Code:       r.AuthorizationCode,
		CapturedAt: fromEpochMillis(r.AuthorizationCodeCapturedAt),
	}, true
}

func (r *record) setPendingCode(code PendingCode) {
	r.AuthorizationCode = code.Code
	r.AuthorizationCodeCapturedAt = toEpochMillis(code.CapturedAt)
}

func (r *record) clearPendingCode() {
	r.AuthorizationCode = ""
	r.AuthorizationCodeCapturedAt = 0
}

// toEpochMillis converts t to epoch milliseconds, mapping the zero time to 0.
func toEpochMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// fromEpochMillis is the inverse of toEpochMillis.
func fromEpochMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
