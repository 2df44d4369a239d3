package challenge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"portalauth/internal/tokenstore"
)

const (
	// DefaultRetryCeiling is the number of failed attempts after which the
	// resolver stops restarting the flow.
	DefaultRetryCeiling = 2

	// DefaultTokenLifetime is the lifetime requested from the portal: two
	// weeks.
	DefaultTokenLifetime = 20160 * time.Minute

	// DefaultPendingCodeTTL bounds how long a captured code may wait for
	// its exchange.
	DefaultPendingCodeTTL = 10 * time.Minute
)

// Resolver decides how to answer authentication challenges. It is safe for
// concurrent use; concurrent resolves for the same pending code share one
// exchange.
type Resolver struct {
	store     tokenstore.Store
	exchanger Exchanger
	restarter FlowRestarter

	lifetime     time.Duration
	codeTTL      time.Duration
	retryCeiling int
	clock        Clock
	notifier     Notifier
	logger       *slog.Logger

	exchanges singleflight.Group
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTokenLifetime sets the lifetime used to compute stored expiries.
func WithTokenLifetime(d time.Duration) Option {
	return func(r *Resolver) {
		r.lifetime = d
	}
}

// WithPendingCodeTTL sets how long a pending code stays usable. Zero
// disables the check.
func WithPendingCodeTTL(d time.Duration) Option {
	return func(r *Resolver) {
		r.codeTTL = d
	}
}

// WithRetryCeiling sets the failure count at which restarts stop.
func WithRetryCeiling(n int) Option {
	return func(r *Resolver) {
		r.retryCeiling = n
	}
}

// WithClock sets the clock used for expiry checks.
func WithClock(c Clock) Option {
	return func(r *Resolver) {
		r.clock = c
	}
}

// WithNotifier sets the sink for user-facing failure messages.
func WithNotifier(n Notifier) Option {
	return func(r *Resolver) {
		r.notifier = n
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// NewResolver creates a resolver over store.
func NewResolver(store tokenstore.Store, exchanger Exchanger, restarter FlowRestarter, opts ...Option) *Resolver {
	r := &Resolver{
		store:        store,
		exchanger:    exchanger,
		restarter:    restarter,
		lifetime:     DefaultTokenLifetime,
		codeTTL:      DefaultPendingCodeTTL,
		retryCeiling: DefaultRetryCeiling,
		clock:        realClock{},
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve answers ch. It never returns an error: failures clear the
// affected state, are reported to the notifier and end in a cancel-type
// outcome carrying the reason.
func (r *Resolver) Resolve(ctx context.Context, ch Challenge) Outcome {
	logger := r.logger.With(
		"challenge", ch.Type.String(),
		"failure_count", ch.FailureCount,
		"resource", ch.Resource,
	)

	cred, ok, err := r.store.Credential(ctx)
	if err != nil {
		return r.fail(logger, Cancel, fmt.Errorf("%w: %v", ErrStoreUnavailable, err))
	}
	if ok {
		return r.resolveCached(ctx, logger, ch, cred)
	}

	code, ok, err := r.store.PendingCode(ctx)
	if err != nil {
		return r.fail(logger, Cancel, fmt.Errorf("%w: %v", ErrStoreUnavailable, err))
	}
	if ok && code.StaleAt(r.clock.Now(), r.codeTTL) {
		logger.Info("Discarding stale authorization code", "captured_at", code.CapturedAt)
		if err := r.store.ClearPendingCode(ctx); err != nil {
			return r.fail(logger, Cancel, fmt.Errorf("%w: %v", ErrStoreUnavailable, err))
		}
		ok = false
	}
	if ok {
		return r.resolveCode(ctx, logger, code)
	}

	if ch.FailureCount < r.retryCeiling {
		logger.Debug("No credential available, starting authorization flow")
		return r.restart(ctx, logger, nil)
	}
	return r.fail(logger, Cancel, ErrRetryLimitExceeded)
}

func (r *Resolver) resolveCached(ctx context.Context, logger *slog.Logger, ch Challenge, cred tokenstore.Credential) Outcome {
	if cred.ExpiredAt(r.clock.Now()) {
		logger.Info("Stored access token expired", "expiry", cred.Expiry)
		return r.discardCredential(ctx, logger, ErrTokenExpired)
	}

	if ch.Type == TokenRetry && ch.FailureCount >= r.retryCeiling {
		logger.Warn("Unexpired access token keeps being rejected")
		return r.discardCredential(ctx, logger, ErrTokenRevoked)
	}

	return useCredential(cred)
}

// discardCredential clears the token and its expiry together and starts a
// new flow.
func (r *Resolver) discardCredential(ctx context.Context, logger *slog.Logger, reason error) Outcome {
	if err := r.store.ClearCredential(ctx); err != nil {
		return r.fail(logger, Cancel, errors.Join(reason, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)))
	}
	return r.restart(ctx, logger, reason)
}

func (r *Resolver) resolveCode(ctx context.Context, logger *slog.Logger, code tokenstore.PendingCode) Outcome {
	v, err, shared := r.exchanges.Do(code.Code, func() (interface{}, error) {
		return r.exchange(ctx, code.Code)
	})
	if shared {
		logger.Debug("Shared token exchange with a concurrent challenge")
	}
	if errors.Is(err, errCodeConsumed) {
		// A concurrent challenge already failed this exchange and launched
		// a new flow.
		logger.Debug("Authorization code consumed by a concurrent challenge")
		return Outcome{Kind: RestartFlow}
	}
	if err != nil {
		logger.Warn("Token exchange failed", "error", err)
		return r.restart(ctx, logger, err)
	}
	return useCredential(v.(tokenstore.Credential))
}

// exchange consumes code. The code is cleared whatever the result so it is
// never sent twice. A code that is no longer pending was consumed by an
// earlier exchange; its credential is returned if one was stored.
func (r *Resolver) exchange(ctx context.Context, code string) (tokenstore.Credential, error) {
	current, ok, err := r.store.PendingCode(ctx)
	if err != nil {
		return tokenstore.Credential{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !ok || current.Code != code {
		cred, ok, err := r.store.Credential(ctx)
		if err != nil {
			return tokenstore.Credential{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if ok {
			return cred, nil
		}
		return tokenstore.Credential{}, errCodeConsumed
	}

	token, exchangeErr := r.exchanger.Exchange(ctx, code)

	if err := r.store.ClearPendingCode(ctx); err != nil {
		r.logger.Error("Failed to clear consumed authorization code", "error", err)
	}
	if exchangeErr != nil {
		return tokenstore.Credential{}, exchangeErr
	}

	cred := tokenstore.Credential{
		AccessToken: token.AccessToken,
		Expiry:      r.expiryFor(token),
	}
	if err := r.store.PutCredential(ctx, cred); err != nil {
		return tokenstore.Credential{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	r.logger.Info("Access token obtained", "expiry", cred.Expiry)
	return cred, nil
}

// expiryFor is now plus the configured lifetime, or the portal's expiry if
// that is earlier.
func (r *Resolver) expiryFor(token *oauth2.Token) time.Time {
	now := r.clock.Now()
	var expiry time.Time
	if r.lifetime > 0 {
		expiry = now.Add(r.lifetime)
	}
	if !token.Expiry.IsZero() && (expiry.IsZero() || token.Expiry.Before(expiry)) {
		expiry = token.Expiry
	}
	return expiry
}

// restart launches a new flow and returns RestartFlow with reason. If the
// flow cannot be started the access is cancelled instead.
func (r *Resolver) restart(ctx context.Context, logger *slog.Logger, reason error) Outcome {
	if err := r.restarter.RestartFlow(ctx); err != nil {
		restartErr := fmt.Errorf("%w: %w", ErrRestartFailed, err)
		if reason != nil {
			restartErr = errors.Join(reason, restartErr)
		}
		return r.fail(logger, Cancel, restartErr)
	}
	r.notify(reason)
	return Outcome{Kind: RestartFlow, Reason: reason}
}

func (r *Resolver) fail(logger *slog.Logger, kind Kind, reason error) Outcome {
	logger.Warn("Authentication challenge cancelled", "reason", reason)
	r.notify(reason)
	return Outcome{Kind: kind, Reason: reason}
}

func (r *Resolver) notify(err error) {
	if r.notifier != nil && err != nil {
		r.notifier.Notify(err.Error())
	}
}
