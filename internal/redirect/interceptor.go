package redirect

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"portalauth/internal/tokenstore"
)

// Decision is the result of offering a navigation target to the Interceptor.
type Decision int

const (
	// PassThrough lets the navigation proceed.
	PassThrough Decision = iota

	// Handled means the target was the redirect URI: the navigation must be
	// cancelled.
	Handled
)

// String returns the string representation of the decision.
func (d Decision) String() string {
	if d == Handled {
		return "handled"
	}
	return "pass_through"
}

// Interceptor recognises the configured redirect URI and turns it into a
// pending authorization code. It is the single capture point for every
// strategy: platform re-invocation, loopback callback, embedded navigation
// and pasted URLs.
type Interceptor struct {
	scheme string
	host   string
	path   string

	store     tokenstore.Store
	now       func() time.Time
	onCapture func(code tokenstore.PendingCode)
	logger    *slog.Logger
}

// InterceptorOption configures an Interceptor.
type InterceptorOption func(*Interceptor)

// WithOnCapture registers a hook called after a code has been persisted.
func WithOnCapture(fn func(code tokenstore.PendingCode)) InterceptorOption {
	return func(i *Interceptor) {
		i.onCapture = fn
	}
}

// WithNow overrides the clock used to stamp captured codes.
func WithNow(now func() time.Time) InterceptorOption {
	return func(i *Interceptor) {
		i.now = now
	}
}

// WithInterceptorLogger sets a custom logger.
func WithInterceptorLogger(logger *slog.Logger) InterceptorOption {
	return func(i *Interceptor) {
		i.logger = logger
	}
}

// NewInterceptor creates an Interceptor for redirectURI. The URI acts as a
// template: scheme and host must match, and its path too when it has one.
func NewInterceptor(redirectURI string, store tokenstore.Store, opts ...InterceptorOption) (*Interceptor, error) {
	tmpl, err := url.Parse(redirectURI)
	if err != nil {
		return nil, fmt.Errorf("invalid redirect URI: %w", err)
	}
	if tmpl.Scheme == "" || tmpl.Host == "" {
		return nil, fmt.Errorf("invalid redirect URI %q: scheme and host are required", redirectURI)
	}

	i := &Interceptor{
		scheme: strings.ToLower(tmpl.Scheme),
		host:   strings.ToLower(tmpl.Host),
		path:   normalizePath(tmpl.Path),
		store:  store,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Matches reports whether target is the redirect URI.
func (i *Interceptor) Matches(target *url.URL) bool {
	if target == nil {
		return false
	}
	if !strings.EqualFold(target.Scheme, i.scheme) || !strings.EqualFold(target.Host, i.host) {
		return false
	}
	return i.path == "" || normalizePath(target.Path) == i.path
}

// Intercept is invoked for every navigation attempt before it is followed.
// A matching target is Handled: its code is persisted as the pending code
// and the caller must not navigate to it. The error reports a denied
// authorization, a missing code or a store failure; it is only ever
// non-nil together with Handled.
func (i *Interceptor) Intercept(ctx context.Context, target *url.URL) (Decision, error) {
	if !i.Matches(target) {
		return PassThrough, nil
	}

	query := target.Query()

	if errCode := query.Get("error"); errCode != "" {
		denied := &AuthorizationDeniedError{
			Code:        errCode,
			Description: query.Get("error_description"),
		}
		i.logger.Warn("OAuth authorization failed",
			"error", denied.Code,
			"error_description", denied.Description,
		)
		return Handled, denied
	}

	code := query.Get("code")
	if code == "" {
		return Handled, ErrMissingCode
	}

	pending := tokenstore.PendingCode{Code: code, CapturedAt: i.now()}
	if err := i.store.PutPendingCode(ctx, pending); err != nil {
		return Handled, fmt.Errorf("failed to store authorization code: %w", err)
	}

	i.logger.Info("Authorization code captured", "redirect", i.scheme+"://"+i.host)

	if i.onCapture != nil {
		i.onCapture(pending)
	}
	return Handled, nil
}

// CaptureURI handles a redirect URI handed to the app by the platform.
func (i *Interceptor) CaptureURI(ctx context.Context, rawURI string) error {
	target, err := url.Parse(strings.TrimSpace(rawURI))
	if err != nil {
		return fmt.Errorf("invalid redirect URI: %w", err)
	}

	decision, err := i.Intercept(ctx, target)
	if decision == PassThrough {
		return ErrNotRedirect
	}
	return err
}

// RedirectURI returns the template the interceptor matches.
func (i *Interceptor) RedirectURI() string {
	return i.scheme + "://" + i.host + i.path
}

func normalizePath(p string) string {
	return strings.TrimSuffix(p, "/")
}
