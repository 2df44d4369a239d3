package mock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Portal paths served by the mock.
const (
	AuthorizePath = "/sharing/rest/oauth2/authorize"
	TokenPath     = "/sharing/rest/oauth2/token"
	ItemsPath     = "/sharing/rest/content/items/"
)

// PortalConfig configures the mock portal.
type PortalConfig struct {
	// ClientID is the only client id the portal accepts.
	ClientID string

	// AutoApprove redirects straight back with a code. Without it the
	// authorize endpoint serves a sign-in page.
	AutoApprove bool

	// Deny redirects back with error=access_denied.
	Deny bool

	// InvalidGrant makes the token endpoint reject every code.
	InvalidGrant bool

	// ErrorsAsJSON reports invalid tokens as a 200 response with an
	// error code 498 body instead of a 401 status.
	ErrorsAsJSON bool

	// Clock drives token expiry. Defaults to RealClock.
	Clock Clock
}

type portalCode struct {
	redirectURI string
	minutes     int
}

// Portal is a mock mapping portal: an authorization endpoint, a token
// endpoint and a secured content resource.
type Portal struct {
	config   PortalConfig
	server   *http.Server
	listener net.Listener
	baseURL  string

	mu           sync.Mutex
	codes        map[string]portalCode
	tokens       map[string]time.Time
	exchanges    int
	resourceHits int
}

// NewPortal creates a mock portal.
func NewPortal(config PortalConfig) *Portal {
	if config.ClientID == "" {
		config.ClientID = "test-client"
	}
	if config.Clock == nil {
		config.Clock = RealClock{}
	}
	return &Portal{
		config: config,
		codes:  make(map[string]portalCode),
		tokens: make(map[string]time.Time),
	}
}

// Start listens on a random loopback port and returns the base URL.
func (p *Portal) Start() (string, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("failed to listen: %w", err)
	}
	p.listener = listener
	p.baseURL = "http://" + listener.Addr().String()

	mux := http.NewServeMux()
	mux.HandleFunc(AuthorizePath, p.handleAuthorize)
	mux.HandleFunc(TokenPath, p.handleToken)
	mux.HandleFunc(ItemsPath, p.handleItem)

	p.server = &http.Server{
		Handler:  mux,
		ErrorLog: log.New(io.Discard, "", 0),
	}
	go func() { _ = p.server.Serve(listener) }()

	return p.baseURL, nil
}

// Stop shuts the portal down.
func (p *Portal) Stop(ctx context.Context) error {
	if p.server == nil {
		return nil
	}
	return p.server.Shutdown(ctx)
}

// URL returns the portal base URL.
func (p *Portal) URL() string {
	return p.baseURL
}

// ItemURL returns the URL of a secured item.
func (p *Portal) ItemURL(id string) string {
	return p.baseURL + ItemsPath + id
}

// IssueCode registers a code as if the user had approved the request.
func (p *Portal) IssueCode(redirectURI string, minutes int) string {
	code := randomToken()
	p.mu.Lock()
	p.codes[code] = portalCode{redirectURI: redirectURI, minutes: minutes}
	p.mu.Unlock()
	return code
}

// RevokeAll invalidates every issued token.
func (p *Portal) RevokeAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokens = make(map[string]time.Time)
}

// Exchanges returns the number of token requests served.
func (p *Portal) Exchanges() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exchanges
}

// ResourceHits returns the number of resource requests served.
func (p *Portal) ResourceHits() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resourceHits
}

func (p *Portal) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if q.Get("client_id") != p.config.ClientID || q.Get("response_type") != "code" {
		http.Error(w, "invalid client_id or response_type", http.StatusBadRequest)
		return
	}
	redirectURI := q.Get("redirect_uri")
	target, err := url.Parse(redirectURI)
	if err != nil || target.Scheme == "" {
		http.Error(w, "invalid redirect_uri", http.StatusBadRequest)
		return
	}

	if !p.config.AutoApprove {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, "<html><body><form method=\"post\">Sign in</form></body></html>")
		return
	}

	params := url.Values{}
	if p.config.Deny {
		params.Set("error", "access_denied")
		params.Set("error_description", "The user denied your request.")
	} else {
		minutes, _ := strconv.Atoi(q.Get("expiration"))
		params.Set("code", p.IssueCode(redirectURI, minutes))
	}
	target.RawQuery = params.Encode()

	http.Redirect(w, r, target.String(), http.StatusFound)
}

func (p *Portal) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, "invalid_request", err.Error())
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.exchanges++

	if r.PostForm.Get("grant_type") != "authorization_code" {
		writeOAuthError(w, "unsupported_grant_type", "grant_type must be authorization_code")
		return
	}
	if r.PostForm.Get("client_id") != p.config.ClientID {
		writeOAuthError(w, "invalid_client", "unknown client")
		return
	}

	code := r.PostForm.Get("code")
	entry, ok := p.codes[code]
	delete(p.codes, code)
	if !ok || p.config.InvalidGrant || entry.redirectURI != r.PostForm.Get("redirect_uri") {
		writeOAuthError(w, "invalid_grant", "Invalid authorization code")
		return
	}

	lifetime := time.Duration(entry.minutes) * time.Minute
	if lifetime <= 0 {
		lifetime = 30 * time.Minute
	}
	token := randomToken()
	p.tokens[token] = p.config.Clock.Now().Add(lifetime)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"access_token": token,
		"expires_in":   int(lifetime.Seconds()),
		"username":     "test-user",
		"ssl":          true,
	})
}

func (p *Portal) handleItem(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.resourceHits++
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	expiry, ok := p.tokens[token]
	valid := ok && !p.config.Clock.Now().After(expiry)
	p.mu.Unlock()

	if !valid {
		if p.config.ErrorsAsJSON {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"error": map[string]interface{}{"code": 498, "message": "Invalid token."},
			})
			return
		}
		w.Header().Set("WWW-Authenticate", `Bearer realm="portal"`)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, ItemsPath)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"id":    id,
		"title": "Item " + id,
		"type":  "Web Map",
	})
}

func writeOAuthError(w http.ResponseWriter, code, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             code,
		"error_description": description,
	})
}

func randomToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
