package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// DefaultHTTPTimeout is the default timeout for token endpoint requests.
const DefaultHTTPTimeout = 30 * time.Second

// Exchanger trades authorization codes for access tokens at the portal's
// token endpoint. Exchange blocks on the network and must not be called
// from a UI goroutine.
type Exchanger struct {
	cfg        Config
	oauth2     *oauth2.Config
	httpClient *http.Client
	logger     *slog.Logger
}

// ExchangerOption configures an Exchanger.
type ExchangerOption func(*Exchanger)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ExchangerOption {
	return func(e *Exchanger) {
		e.httpClient = httpClient
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ExchangerOption {
	return func(e *Exchanger) {
		e.logger = logger
	}
}

// NewExchanger creates an Exchanger for cfg.
func NewExchanger(cfg Config, opts ...ExchangerOption) *Exchanger {
	e := &Exchanger{
		cfg:        cfg,
		oauth2:     cfg.oauth2Config(),
		httpClient: &http.Client{Timeout: DefaultHTTPTimeout},
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	client := *e.httpClient
	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	client.Transport = &portalErrorTransport{base: base}
	e.httpClient = &client

	return e
}

// Exchange sends grant_type=authorization_code with the code, client id and
// redirect URI. Every failure is returned as *ExchangeFailedError.
func (e *Exchanger) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if code == "" {
		return nil, &ExchangeFailedError{Cause: errors.New("authorization code is empty")}
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)

	start := time.Now()
	token, err := e.oauth2.Exchange(ctx, code)
	if err != nil {
		exchangeErr := &ExchangeFailedError{Cause: err}

		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			exchangeErr.ProviderCode = retrieveErr.ErrorCode
			exchangeErr.Message = retrieveErr.ErrorDescription
			if retrieveErr.Response != nil {
				exchangeErr.StatusCode = retrieveErr.Response.StatusCode
			}
			if pe, ok := parsePortalError(retrieveErr.Body); ok {
				if exchangeErr.ProviderCode == "" {
					exchangeErr.ProviderCode = pe.Error
				}
				if exchangeErr.Message == "" {
					exchangeErr.Message = pe.reason()
				}
			}
		}

		e.logger.Debug("Token exchange failed",
			"token_endpoint", e.cfg.TokenEndpoint(),
			"status", exchangeErr.StatusCode,
			"provider_code", exchangeErr.ProviderCode,
			"duration", time.Since(start),
			"error", err.Error(),
		)
		return nil, exchangeErr
	}

	if token.AccessToken == "" {
		return nil, &ExchangeFailedError{Cause: errors.New("token response is missing access_token")}
	}

	e.logger.Debug("Token exchange succeeded",
		"token_endpoint", e.cfg.TokenEndpoint(),
		"duration", time.Since(start),
		"has_expiry", !token.Expiry.IsZero(),
	)
	return token, nil
}

// maxTokenResponseSize bounds how much of a token response is buffered.
const maxTokenResponseSize = 1 << 20

// portalError is the error object the portal returns, often with HTTP 200:
//
//	{"error":{"code":400,"error":"invalid_request","error_description":"...","message":"..."}}
type portalError struct {
	Code        int      `json:"code"`
	Error       string   `json:"error"`
	Description string   `json:"error_description"`
	Message     string   `json:"message"`
	Details     []string `json:"details"`
}

func (p portalError) reason() string {
	switch {
	case p.Description != "":
		return p.Description
	case p.Message != "":
		return p.Message
	case len(p.Details) > 0:
		return p.Details[0]
	}
	return ""
}

func parsePortalError(body []byte) (portalError, bool) {
	var envelope struct {
		Error *portalError `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Error == nil {
		return portalError{}, false
	}
	return *envelope.Error, true
}

// portalErrorTransport turns in-band portal errors on successful responses
// into HTTP failures, so they surface as *oauth2.RetrieveError with the
// body attached.
type portalErrorTransport struct {
	base http.RoundTripper
}

func (t *portalErrorTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil || resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseSize))
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	if pe, ok := parsePortalError(body); ok {
		status := pe.Code
		if status < 400 || status > 599 {
			status = http.StatusBadRequest
		}
		resp.StatusCode = status
		resp.Status = fmt.Sprintf("%d %s", status, http.StatusText(status))
	}
	return resp, nil
}
