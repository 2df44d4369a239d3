package redirect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"time"
)

// DefaultMaxRedirects bounds the navigation chain of the embedded surface.
const DefaultMaxRedirects = 10

// EmbeddedSurface is an in-process navigation surface. It loads the
// authorization URL and consults the Interceptor before following each
// redirect, so the custom-scheme redirect is captured and never navigated
// to. Cookies persist across loads like a browser session.
type EmbeddedSurface struct {
	interceptor  *Interceptor
	jar          http.CookieJar
	transport    http.RoundTripper
	timeout      time.Duration
	maxRedirects int
	logger       *slog.Logger
}

// EmbeddedOption configures an EmbeddedSurface.
type EmbeddedOption func(*EmbeddedSurface)

// WithTransport sets the HTTP transport used for navigation.
func WithTransport(rt http.RoundTripper) EmbeddedOption {
	return func(s *EmbeddedSurface) {
		s.transport = rt
	}
}

// WithEmbeddedLogger sets a custom logger.
func WithEmbeddedLogger(logger *slog.Logger) EmbeddedOption {
	return func(s *EmbeddedSurface) {
		s.logger = logger
	}
}

// NewEmbeddedSurface creates an embedded surface routing navigation through
// interceptor.
func NewEmbeddedSurface(interceptor *Interceptor, opts ...EmbeddedOption) *EmbeddedSurface {
	jar, _ := cookiejar.New(nil) // never fails without options

	s := &EmbeddedSurface{
		interceptor:  interceptor,
		jar:          jar,
		transport:    http.DefaultTransport,
		timeout:      30 * time.Second,
		maxRedirects: DefaultMaxRedirects,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load navigates to authURL. It returns nil once the redirect has been
// captured, ErrInteractionRequired if navigation stopped on a page instead
// of redirecting, or the interceptor's error for a denied authorization.
func (s *EmbeddedSurface) Load(ctx context.Context, authURL string) error {
	var (
		handled      bool
		interceptErr error
	)

	client := &http.Client{
		Transport: s.transport,
		Jar:       s.jar,
		Timeout:   s.timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			decision, err := s.interceptor.Intercept(req.Context(), req.URL)
			if decision == Handled {
				handled = true
				interceptErr = err
				return http.ErrUseLastResponse
			}
			if len(via) >= s.maxRedirects {
				return fmt.Errorf("stopped after %d redirects", s.maxRedirects)
			}
			return nil
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, authURL, nil)
	if err != nil {
		return fmt.Errorf("invalid authorization URL: %w", err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to load authorization page: %w", err)
	}
	defer resp.Body.Close()

	if handled {
		s.logger.Debug("Embedded navigation reached redirect URI", "status", resp.StatusCode)
		return interceptErr
	}

	s.logger.Debug("Embedded navigation stopped on a page",
		"status", resp.StatusCode,
		"url", resp.Request.URL.Redacted(),
	)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("authorization page returned status %d", resp.StatusCode)
	}
	return ErrInteractionRequired
}

// IsInteractionRequired reports whether err means the user has to sign in.
func IsInteractionRequired(err error) bool {
	return errors.Is(err, ErrInteractionRequired)
}
