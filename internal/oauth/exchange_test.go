package oauth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tokenServer serves the portal token endpoint with the given handler and
// records the last form it received.
func tokenServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *http.Request) {
	t.Helper()
	var last http.Request

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		last = *r
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &last
}

func TestExchanger_Exchange_Success(t *testing.T) {
	srv, last := tokenServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok_1","expires_in":1800,"username":"jdoe"}`))
	})

	exchanger := NewExchanger(testConfig(srv.URL), WithHTTPClient(srv.Client()))

	token, err := exchanger.Exchange(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "tok_1", token.AccessToken)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), token.Expiry, time.Minute)

	assert.Equal(t, http.MethodPost, last.Method)
	assert.Equal(t, "/sharing/rest/oauth2/token", last.URL.Path)
	assert.Equal(t, "authorization_code", last.PostForm.Get("grant_type"))
	assert.Equal(t, "abc123", last.PostForm.Get("code"))
	assert.Equal(t, "client-123", last.PostForm.Get("client_id"))
	assert.Equal(t, "portalauth://auth", last.PostForm.Get("redirect_uri"))
	assert.Empty(t, last.PostForm.Get("client_secret"))
}

func TestExchanger_Exchange_Failures(t *testing.T) {
	tests := []struct {
		name         string
		handler      http.HandlerFunc
		providerCode string
		status       int
		message      string
	}{
		{
			name: "oauth error response",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"code expired"}`))
			},
			providerCode: "invalid_grant",
			status:       http.StatusBadRequest,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			status: http.StatusInternalServerError,
		},
		{
			name: "portal error payload with 200",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"error":{"code":400,"message":"Invalid authorization code"}}`))
			},
			status:  http.StatusBadRequest,
			message: "Invalid authorization code",
		},
		{
			name: "portal error with oauth code",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/plain;charset=utf-8")
				_, _ = w.Write([]byte(`{"error":{"code":400,"error":"invalid_request","error_description":"Invalid redirect_uri","message":"Invalid redirect_uri"}}`))
			},
			providerCode: "invalid_request",
			status:       http.StatusBadRequest,
			message:      "Invalid redirect_uri",
		},
		{
			name: "portal error with non-http code",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"error":{"code":42,"details":["Code already used"]}}`))
			},
			status:  http.StatusBadRequest,
			message: "Code already used",
		},
		{
			name: "portal error object with 400",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":{"code":400,"error":"invalid_grant","error_description":"Code expired"}}`))
			},
			providerCode: "invalid_grant",
			status:       http.StatusBadRequest,
			message:      "Code expired",
		},
		{
			name: "missing access token",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"expires_in":1800}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := tokenServer(t, tt.handler)
			exchanger := NewExchanger(testConfig(srv.URL), WithHTTPClient(srv.Client()))

			token, err := exchanger.Exchange(context.Background(), "abc123")
			require.Error(t, err)
			assert.Nil(t, token)
			assert.True(t, errors.Is(err, ErrExchangeFailed))

			var exchangeErr *ExchangeFailedError
			require.ErrorAs(t, err, &exchangeErr)
			if tt.providerCode != "" {
				assert.Equal(t, tt.providerCode, exchangeErr.ProviderCode)
			}
			if tt.status != 0 {
				assert.Equal(t, tt.status, exchangeErr.StatusCode)
			}
			if tt.message != "" {
				assert.Equal(t, tt.message, exchangeErr.Message)
				assert.Contains(t, err.Error(), tt.message)
			}
		})
	}
}

func TestExchanger_Exchange_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	cfg := testConfig(srv.URL)
	srv.Close()

	exchanger := NewExchanger(cfg)

	_, err := exchanger.Exchange(context.Background(), "abc123")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExchangeFailed)
}

func TestExchanger_Exchange_EmptyCode(t *testing.T) {
	exchanger := NewExchanger(testConfig("https://www.arcgis.com"))

	_, err := exchanger.Exchange(context.Background(), "")
	assert.ErrorIs(t, err, ErrExchangeFailed)
}

func TestExchangeFailedError_Error(t *testing.T) {
	err := &ExchangeFailedError{StatusCode: 400, ProviderCode: "invalid_grant", Cause: errors.New("boom")}
	assert.Equal(t, "token exchange failed: invalid_grant (status 400): boom", err.Error())
	assert.Equal(t, "boom", errors.Unwrap(err).Error())

	err.Message = "Code expired"
	assert.Equal(t, "token exchange failed: invalid_grant (status 400): Code expired", err.Error())
}
