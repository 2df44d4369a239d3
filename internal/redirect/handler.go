package redirect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"portalauth/internal/oauth"
)

// Strategy names how an authorization flow was presented to the user.
type Strategy string

const (
	// StrategyExternal hands the URL to the platform browser.
	StrategyExternal Strategy = "external"
	// StrategyEmbedded navigates in-process.
	StrategyEmbedded Strategy = "embedded"
	// StrategyPrompt asks the user to paste the redirect URL.
	StrategyPrompt Strategy = "prompt"
)

// Opener hands a URL to an external agent.
type Opener interface {
	Open(ctx context.Context, url string) error
}

// Surface loads the authorization URL and returns once the redirect has
// been captured or the attempt failed.
type Surface interface {
	Load(ctx context.Context, authURL string) error
}

// Launch describes one authorization flow attempt.
type Launch struct {
	FlowID    string
	URL       string
	Strategy  Strategy
	StartedAt time.Time
}

// Handler starts authorization flows. It tries the external agent first
// and falls back to the embedded surface only when no external handler is
// available.
type Handler struct {
	cfg         oauth.Config
	interceptor *Interceptor

	external       Opener
	embedded       Surface
	prompt         Surface
	disableBrowser bool
	callbackWait   time.Duration
	now            func() time.Time
	logger         *slog.Logger

	mu       sync.Mutex
	last     *Launch
	callback *CallbackServer
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithExternal sets the external agent. A nil opener disables it.
func WithExternal(o Opener) HandlerOption {
	return func(h *Handler) {
		h.external = o
	}
}

// WithEmbedded sets the embedded surface.
func WithEmbedded(s Surface) HandlerOption {
	return func(h *Handler) {
		h.embedded = s
	}
}

// WithPrompt sets the surface used when the embedded surface needs
// interactive sign-in.
func WithPrompt(s Surface) HandlerOption {
	return func(h *Handler) {
		h.prompt = s
	}
}

// WithBrowserDisabled skips the external agent.
func WithBrowserDisabled(disabled bool) HandlerOption {
	return func(h *Handler) {
		h.disableBrowser = disabled
	}
}

// WithCallbackTimeout bounds how long a loopback callback server stays up
// waiting for the portal's redirect.
func WithCallbackTimeout(d time.Duration) HandlerOption {
	return func(h *Handler) {
		h.callbackWait = d
	}
}

// WithHandlerLogger sets a custom logger.
func WithHandlerLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// NewHandler creates a Handler. Without options it uses the platform
// browser and an embedded surface over the default transport.
func NewHandler(cfg oauth.Config, interceptor *Interceptor, opts ...HandlerOption) *Handler {
	h := &Handler{
		cfg:          cfg,
		interceptor:  interceptor,
		external:     NewBrowser(),
		callbackWait: CallbackTimeout,
		now:          time.Now,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.embedded == nil {
		h.embedded = NewEmbeddedSurface(interceptor, WithEmbeddedLogger(h.logger))
	}
	return h
}

// RestartFlow launches a new authorization flow.
func (h *Handler) RestartFlow(ctx context.Context) error {
	_, err := h.Launch(ctx)
	return err
}

// Launch builds the authorization URL and presents it with the first
// strategy that works.
func (h *Handler) Launch(ctx context.Context) (*Launch, error) {
	authURL, err := oauth.AuthorizationURL(h.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build authorization URL: %w", err)
	}

	launch := &Launch{
		FlowID:    uuid.NewString(),
		URL:       authURL,
		StartedAt: h.now(),
	}
	logger := h.logger.With("flow_id", launch.FlowID)

	if IsLoopbackRedirect(h.cfg.RedirectURI) {
		if err := h.startCallbackServer(ctx); err != nil {
			return nil, err
		}
	}

	strategy, err := h.present(ctx, logger, authURL)
	if err != nil {
		return nil, err
	}
	launch.Strategy = strategy

	h.mu.Lock()
	h.last = launch
	h.mu.Unlock()

	logger.Info("Authorization flow started", "strategy", string(strategy))
	return launch, nil
}

func (h *Handler) present(ctx context.Context, logger *slog.Logger, authURL string) (Strategy, error) {
	if h.external != nil && !h.disableBrowser {
		err := h.external.Open(ctx, authURL)
		if err == nil {
			return StrategyExternal, nil
		}
		if !errors.Is(err, ErrNoHandlerAvailable) {
			return "", err
		}
		logger.Debug("No external handler, using embedded surface", "reason", err.Error())
	}

	err := h.embedded.Load(ctx, authURL)
	if err == nil {
		return StrategyEmbedded, nil
	}
	if !errors.Is(err, ErrInteractionRequired) || h.prompt == nil {
		return "", err
	}

	logger.Debug("Portal requires interactive sign-in, prompting for redirect URL")
	if err := h.prompt.Load(ctx, authURL); err != nil {
		return "", err
	}
	return StrategyPrompt, nil
}

// startCallbackServer replaces any listener left by a previous attempt.
func (h *Handler) startCallbackServer(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.callback != nil {
		h.callback.Stop()
		h.callback = nil
	}

	server, err := NewCallbackServer(h.interceptor, h.logger)
	if err != nil {
		return err
	}
	if err := server.Start(ctx); err != nil {
		return err
	}
	h.callback = server

	go func() {
		waitCtx, cancel := context.WithTimeout(ctx, h.callbackWait)
		defer cancel()
		if err := server.Wait(waitCtx); err != nil && !errors.Is(err, ErrCallbackStopped) {
			h.logger.Warn("Loopback callback did not complete", "error", err)
		}
		server.Stop()
	}()
	return nil
}

// LastLaunch returns the most recent flow attempt, or nil.
func (h *Handler) LastLaunch() *Launch {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}

// Close stops the loopback callback server, if one is running.
func (h *Handler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.callback != nil {
		h.callback.Stop()
		h.callback = nil
	}
}
