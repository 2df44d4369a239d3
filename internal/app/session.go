package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"portalauth/internal/challenge"
	"portalauth/internal/config"
	"portalauth/internal/oauth"
	"portalauth/internal/portal"
	"portalauth/internal/redirect"
	"portalauth/internal/tokenstore"
	"portalauth/pkg/logging"
)

// Session owns every component of the authorization flow. It is built once
// per process and injects the resolver into the portal client.
type Session struct {
	Config      config.PortalAuthConfig
	OAuth       oauth.Config
	Store       tokenstore.Store
	Exchanger   *oauth.Exchanger
	Interceptor *redirect.Interceptor
	Handler     *redirect.Handler
	Resolver    *challenge.Resolver
	Portal      *portal.Client

	storeLocation string
	indicator     func() (stop func())
	logger        *slog.Logger
}

type sessionOptions struct {
	out        io.Writer
	notifier   challenge.Notifier
	store      tokenstore.Store
	httpClient *http.Client
	opener     redirect.Opener
	setOpener  bool
	prompt     bool
	clock      challenge.Clock
	indicator  func() (stop func())
	logger     *slog.Logger
}

// SessionOption configures a Session.
type SessionOption func(*sessionOptions)

// WithOutput sets where interactive instructions are written.
func WithOutput(w io.Writer) SessionOption {
	return func(o *sessionOptions) {
		o.out = w
	}
}

// WithNotifier sets the sink for transient failure messages.
func WithNotifier(n challenge.Notifier) SessionOption {
	return func(o *sessionOptions) {
		o.notifier = n
	}
}

// WithStore uses store instead of the configured backend.
func WithStore(store tokenstore.Store) SessionOption {
	return func(o *sessionOptions) {
		o.store = store
	}
}

// WithHTTPClient sets the client used for the token endpoint, the embedded
// surface and portal resources.
func WithHTTPClient(c *http.Client) SessionOption {
	return func(o *sessionOptions) {
		o.httpClient = c
	}
}

// WithOpener replaces the platform browser. A nil opener disables the
// external strategy.
func WithOpener(opener redirect.Opener) SessionOption {
	return func(o *sessionOptions) {
		o.opener = opener
		o.setOpener = true
	}
}

// WithPrompt enables the paste-the-redirect prompt when the embedded
// surface needs interactive sign-in.
func WithPrompt(enabled bool) SessionOption {
	return func(o *sessionOptions) {
		o.prompt = enabled
	}
}

// WithClock sets the clock used for expiry decisions.
func WithClock(c challenge.Clock) SessionOption {
	return func(o *sessionOptions) {
		o.clock = c
	}
}

// WithWaitIndicator registers a progress indicator shown while waiting for
// the authorization redirect.
func WithWaitIndicator(start func() (stop func())) SessionOption {
	return func(o *sessionOptions) {
		o.indicator = start
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) SessionOption {
	return func(o *sessionOptions) {
		o.logger = logger
	}
}

// NewSession builds the store, exchanger, redirect handler, resolver and
// portal client from cfg.
func NewSession(ctx context.Context, cfg config.PortalAuthConfig, opts ...SessionOption) (*Session, error) {
	o := &sessionOptions{
		out:    os.Stderr,
		logger: logging.For("Session"),
	}
	for _, opt := range opts {
		opt(o)
	}

	oauthCfg := oauth.Config{
		PortalURL:     cfg.Portal.URL,
		AuthorizePath: cfg.Portal.AuthorizePath,
		TokenPath:     cfg.Portal.TokenPath,
		ClientID:      cfg.OAuth.ClientID,
		RedirectURI:   cfg.OAuth.RedirectURI,
		TokenLifetime: cfg.OAuth.TokenLifetime(),
	}
	if err := oauthCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid oauth configuration: %w", err)
	}

	s := &Session{
		Config:    cfg,
		OAuth:     oauthCfg,
		indicator: o.indicator,
		logger:    o.logger,
	}

	if o.store != nil {
		s.Store = o.store
		s.storeLocation = "injected"
	} else {
		store, location, err := openStore(ctx, cfg.Storage, logging.For("TokenStore"))
		if err != nil {
			return nil, fmt.Errorf("failed to open token store: %w", err)
		}
		s.Store = store
		s.storeLocation = location
	}

	exchangeClient := o.httpClient
	if exchangeClient == nil {
		exchangeClient = &http.Client{Timeout: cfg.OAuth.ExchangeTimeout}
	}
	s.Exchanger = oauth.NewExchanger(oauthCfg,
		oauth.WithHTTPClient(exchangeClient),
		oauth.WithLogger(logging.For("Exchange")),
	)

	interceptorOpts := []redirect.InterceptorOption{
		redirect.WithInterceptorLogger(logging.For("Redirect")),
		redirect.WithOnCapture(func(code tokenstore.PendingCode) {
			logging.Audit(logging.AuditEvent{
				Action:  "authorization_code_captured",
				Outcome: "success",
				Target:  cfg.Portal.URL,
			})
		}),
	}
	// Capture times are compared against the resolver's clock.
	if o.clock != nil {
		interceptorOpts = append(interceptorOpts, redirect.WithNow(o.clock.Now))
	}
	interceptor, err := redirect.NewInterceptor(cfg.OAuth.RedirectURI, s.Store, interceptorOpts...)
	if err != nil {
		_ = s.Store.Close()
		return nil, err
	}
	s.Interceptor = interceptor

	embeddedOpts := []redirect.EmbeddedOption{redirect.WithEmbeddedLogger(logging.For("Embedded"))}
	if o.httpClient != nil && o.httpClient.Transport != nil {
		embeddedOpts = append(embeddedOpts, redirect.WithTransport(o.httpClient.Transport))
	}

	handlerOpts := []redirect.HandlerOption{
		redirect.WithEmbedded(redirect.NewEmbeddedSurface(interceptor, embeddedOpts...)),
		redirect.WithBrowserDisabled(cfg.Redirect.DisableBrowser),
		redirect.WithHandlerLogger(logging.For("Redirect")),
	}
	if o.setOpener {
		handlerOpts = append(handlerOpts, redirect.WithExternal(o.opener))
	}
	if o.prompt {
		handlerOpts = append(handlerOpts, redirect.WithPrompt(redirect.NewPromptSurface(interceptor, o.out)))
	}
	s.Handler = redirect.NewHandler(oauthCfg, interceptor, handlerOpts...)

	resolverOpts := []challenge.Option{
		challenge.WithTokenLifetime(cfg.OAuth.TokenLifetime()),
		challenge.WithPendingCodeTTL(cfg.OAuth.PendingCodeTTL),
		challenge.WithRetryCeiling(cfg.OAuth.RetryCeiling),
		challenge.WithLogger(logging.For("Resolver")),
	}
	if o.notifier != nil {
		resolverOpts = append(resolverOpts, challenge.WithNotifier(o.notifier))
	}
	if o.clock != nil {
		resolverOpts = append(resolverOpts, challenge.WithClock(o.clock))
	}
	s.Resolver = challenge.NewResolver(s.Store, s.Exchanger, s.Handler, resolverOpts...)

	portalOpts := []portal.Option{
		portal.WithWaitTimeout(cfg.Redirect.WaitTimeout),
		portal.WithPollInterval(cfg.Redirect.PollInterval),
		portal.WithLogger(logging.For("Portal")),
	}
	if o.httpClient != nil {
		portalOpts = append(portalOpts, portal.WithHTTPClient(o.httpClient))
	}
	if o.indicator != nil {
		portalOpts = append(portalOpts, portal.WithWaitIndicator(o.indicator))
	}
	s.Portal, err = portal.NewClient(cfg.Portal.URL, s.Resolver, s.Store, portalOpts...)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.logger.Debug("Session ready", "store", s.storeLocation, "redirect_uri", cfg.OAuth.RedirectURI)
	return s, nil
}

// StoreLocation describes where the token state lives.
func (s *Session) StoreLocation() string {
	return s.storeLocation
}

// Login obtains a usable credential, running authorization flows until one
// is stored or the resolver cancels.
func (s *Session) Login(ctx context.Context) (tokenstore.Credential, error) {
	failures := 0
	for {
		outcome := s.Resolver.Resolve(ctx, challenge.Challenge{
			Type:         challenge.SchemeDetected,
			FailureCount: failures,
			Resource:     s.Config.Portal.URL,
		})

		switch outcome.Kind {
		case challenge.UseCredential:
			logging.Audit(logging.AuditEvent{Action: "login", Outcome: "success", Target: s.Config.Portal.URL})
			return outcome.Credential, nil

		case challenge.RestartFlow:
			failures++
			if err := s.waitForCode(ctx); err != nil {
				return tokenstore.Credential{}, err
			}

		default:
			logging.Audit(logging.AuditEvent{
				Action:  "login",
				Outcome: "failure",
				Target:  s.Config.Portal.URL,
				Details: fmt.Sprint(outcome.Reason),
			})
			return tokenstore.Credential{}, &portal.AccessCancelledError{Resource: s.Config.Portal.URL, Reason: outcome.Reason}
		}
	}
}

func (s *Session) waitForCode(ctx context.Context) error {
	waitCtx := ctx
	if s.Config.Redirect.WaitTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, s.Config.Redirect.WaitTimeout)
		defer cancel()
	}

	if s.indicator != nil {
		stop := s.indicator()
		defer stop()
	}

	_, err := tokenstore.WaitForPendingCode(waitCtx, s.Store, s.Config.Redirect.PollInterval)
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return &portal.AccessCancelledError{Resource: s.Config.Portal.URL, Reason: portal.ErrWaitTimeout}
	}
	return err
}

// Logout clears the stored credential and any pending code.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.Store.ClearCredential(ctx); err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	if err := s.Store.ClearPendingCode(ctx); err != nil {
		return fmt.Errorf("failed to clear pending code: %w", err)
	}
	logging.Audit(logging.AuditEvent{Action: "logout", Outcome: "success", Target: s.Config.Portal.URL})
	return nil
}

// Status summarises the stored token state.
type Status struct {
	Portal         string
	Store          string
	HasCredential  bool
	Expiry         time.Time
	Expired        bool
	HasPendingCode bool
	CodeCapturedAt time.Time
}

// Status reads the token state without changing it.
func (s *Session) Status(ctx context.Context, now time.Time) (Status, error) {
	st := Status{Portal: s.Config.Portal.URL, Store: s.storeLocation}

	cred, ok, err := s.Store.Credential(ctx)
	if err != nil {
		return st, err
	}
	if ok {
		st.HasCredential = true
		st.Expiry = cred.Expiry
		st.Expired = cred.ExpiredAt(now)
	}

	code, ok, err := s.Store.PendingCode(ctx)
	if err != nil {
		return st, err
	}
	if ok {
		st.HasPendingCode = true
		st.CodeCapturedAt = code.CapturedAt
	}
	return st, nil
}

// Close releases the callback server and store connections.
func (s *Session) Close() error {
	if s.Handler != nil {
		s.Handler.Close()
	}
	if s.Store != nil {
		return s.Store.Close()
	}
	return nil
}
