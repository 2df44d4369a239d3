package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"portalauth/internal/challenge"
	"portalauth/internal/tokenstore"
)

const (
	// DefaultWaitTimeout bounds the wait for an authorization code after a
	// flow restart.
	DefaultWaitTimeout = 10 * time.Minute

	// DefaultPollInterval is used for stores that cannot be watched.
	DefaultPollInterval = time.Second

	// maxRounds guards against a portal that challenges forever.
	maxRounds = 8

	// maxBodySize caps the size of resource bodies.
	maxBodySize = 16 << 20
)

// Portal error codes carried in JSON bodies.
const (
	codeInvalidToken  = 498
	codeTokenRequired = 499
)

// Resolver answers authentication challenges.
type Resolver interface {
	Resolve(ctx context.Context, ch challenge.Challenge) challenge.Outcome
}

// Response is a successfully fetched resource.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client fetches secured portal resources, raising a challenge to the
// Resolver whenever the portal asks for credentials.
type Client struct {
	baseURL      *url.URL
	resolver     Resolver
	store        tokenstore.Store
	httpClient   *http.Client
	waitTimeout  time.Duration
	pollInterval time.Duration
	indicator    func() (stop func())
	logger       *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithWaitTimeout bounds the wait for a pending code after a restart.
func WithWaitTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.waitTimeout = d
	}
}

// WithPollInterval sets the store polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		c.pollInterval = d
	}
}

// WithWaitIndicator registers a function called when the client starts
// waiting for an authorization code. The returned function is called when
// the wait ends.
func WithWaitIndicator(start func() (stop func())) Option {
	return func(c *Client) {
		c.indicator = start
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client for the portal at baseURL. Relative resources
// are resolved against it.
func NewClient(baseURL string, resolver Resolver, store tokenstore.Store, opts ...Option) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid portal URL: %w", err)
	}

	c := &Client{
		baseURL:      base,
		resolver:     resolver,
		store:        store,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		waitTimeout:  DefaultWaitTimeout,
		pollInterval: DefaultPollInterval,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get fetches resource, which is either an absolute URL or a path relative
// to the portal. Authentication challenges are resolved transparently; an
// *AccessCancelledError is returned when the resolver cancels.
func (c *Client) Get(ctx context.Context, resource string) (*Response, error) {
	target, err := c.resolve(resource)
	if err != nil {
		return nil, err
	}

	var (
		cred     *tokenstore.Credential
		failures int
	)

	for round := 0; round < maxRounds; round++ {
		resp, challenged, err := c.do(ctx, target, cred)
		if err != nil {
			return nil, err
		}
		if !challenged {
			return resp, nil
		}

		ch := challenge.Challenge{Type: challenge.SchemeDetected, FailureCount: failures, Resource: target}
		if cred != nil {
			failures++
			ch.Type = challenge.TokenRetry
			ch.FailureCount = failures
		}

		outcome := c.resolver.Resolve(ctx, ch)
		c.logger.Debug("Authentication challenge resolved",
			"resource", target,
			"challenge", ch.Type.String(),
			"outcome", outcome.Kind.String(),
		)

		switch outcome.Kind {
		case challenge.UseCredential:
			cred = &outcome.Credential
		case challenge.RestartFlow:
			failures++
			cred = nil
			if err := c.waitForCode(ctx); err != nil {
				return nil, &AccessCancelledError{Resource: target, Reason: err}
			}
		default:
			return nil, &AccessCancelledError{Resource: target, Reason: outcome.Reason}
		}
	}

	return nil, &AccessCancelledError{Resource: target, Reason: ErrTooManyRounds}
}

// GetJSON fetches resource and decodes its JSON body into v.
func (c *Client) GetJSON(ctx context.Context, resource string, v interface{}) error {
	resp, err := c.Get(ctx, resource)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) waitForCode(ctx context.Context) error {
	waitCtx := ctx
	if c.waitTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, c.waitTimeout)
		defer cancel()
	}

	c.logger.Info("Waiting for authorization to complete")
	if c.indicator != nil {
		stop := c.indicator()
		defer stop()
	}
	_, err := tokenstore.WaitForPendingCode(waitCtx, c.store, c.pollInterval)
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return ErrWaitTimeout
	}
	return err
}

// do issues one request. challenged reports whether the portal asked for
// credentials.
func (c *Client) do(ctx context.Context, target string, cred *tokenstore.Credential) (*Response, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if cred != nil {
		req.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("failed to fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, false, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		if ch := parseWWWAuthenticate(resp.Header.Get("WWW-Authenticate")); ch != nil {
			if !ch.isBearer() {
				return nil, false, fmt.Errorf("%w: %s", ErrUnsupportedScheme, ch.Scheme)
			}
			if ch.Error != "" {
				c.logger.Debug("Portal rejected credential", "error", ch.Error, "error_description", ch.ErrorDescription)
			}
		}
		return nil, true, nil
	}
	if isJSON(resp.Header) && hasTokenErrorCode(body) {
		return nil, true, nil
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, false, fmt.Errorf("portal returned status %d for %s", resp.StatusCode, target)
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, false, nil
}

func (c *Client) resolve(resource string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(resource))
	if err != nil {
		return "", fmt.Errorf("invalid resource %q: %w", resource, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	base := *c.baseURL
	base.Path = strings.TrimSuffix(base.Path, "/") + "/" + strings.TrimPrefix(ref.Path, "/")
	base.RawQuery = ref.RawQuery
	return base.String(), nil
}

func isJSON(h http.Header) bool {
	mediaType, _, err := mime.ParseMediaType(h.Get("Content-Type"))
	return err == nil && (mediaType == "application/json" || mediaType == "text/plain")
}

// hasTokenErrorCode reports whether body is a portal error payload for an
// invalid or missing token.
func hasTokenErrorCode(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	var payload struct {
		Error *struct {
			Code int `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(trimmed, &payload); err != nil || payload.Error == nil {
		return false
	}
	return payload.Error.Code == codeInvalidToken || payload.Error.Code == codeTokenRequired
}
