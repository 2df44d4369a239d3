package redirect

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// CallbackTimeout is how long a loopback callback server waits for the
// portal's redirect.
const CallbackTimeout = 10 * time.Minute

var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>portalauth</title>
<style>body{font-family:sans-serif;margin:4em auto;max-width:32em;text-align:center}</style>
</head>
<body>
{{if .Error}}<h1>Sign-in failed</h1><p>{{.Error}}</p>
{{else}}<h1>Signed in</h1><p>You can close this window and return to the terminal.</p>
{{end}}
</body>
</html>
`))

// IsLoopbackRedirect reports whether redirectURI points at an http listener
// on this machine.
func IsLoopbackRedirect(redirectURI string) bool {
	u, err := url.Parse(redirectURI)
	if err != nil || u.Scheme != "http" {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// CallbackServer is a temporary local HTTP server receiving the portal's
// redirect when the redirect URI is a loopback http address. Each request is
// routed through the Interceptor; the server stops after the first one it
// handles.
type CallbackServer struct {
	interceptor *Interceptor
	addr        string
	path        string
	logger      *slog.Logger

	server   *http.Server
	listener net.Listener
	resultCh chan error
	once     sync.Once
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewCallbackServer creates a callback server bound to the host and port of
// the interceptor's redirect URI.
func NewCallbackServer(interceptor *Interceptor, logger *slog.Logger) (*CallbackServer, error) {
	u, err := url.Parse(interceptor.RedirectURI())
	if err != nil {
		return nil, fmt.Errorf("invalid redirect URI: %w", err)
	}
	if !IsLoopbackRedirect(u.String()) {
		return nil, fmt.Errorf("redirect URI %s is not a loopback address", u.Redacted())
	}

	port := u.Port()
	if port == "" {
		port = "80"
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &CallbackServer{
		interceptor: interceptor,
		addr:        net.JoinHostPort(u.Hostname(), port),
		path:        path,
		logger:      logger,
		resultCh:    make(chan error, 1),
		stopped:     make(chan struct{}),
	}, nil
}

// Start begins listening. The server stops when ctx is cancelled.
func (s *CallbackServer) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to start callback server on %s: %w", s.addr, err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.handleCallback)

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.finish(err)
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Debug("Callback server listening", "addr", listener.Addr().String(), "path", s.path)
	return nil
}

// Addr returns the address the server listens on.
func (s *CallbackServer) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Wait blocks until a redirect has been handled. It returns the
// interceptor's result for that redirect, or ErrCallbackStopped if the
// server stopped first.
func (s *CallbackServer) Wait(ctx context.Context) error {
	select {
	case err := <-s.resultCh:
		return err
	case <-s.stopped:
		select {
		case err := <-s.resultCh:
			return err
		default:
			return ErrCallbackStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *CallbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'unsafe-inline'")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store")

	// Rebuild the absolute URL the portal redirected to.
	target := *r.URL
	target.Scheme = "http"
	target.Host = r.Host

	decision, err := s.interceptor.Intercept(r.Context(), &target)
	if decision == PassThrough {
		http.NotFound(w, r)
		return
	}

	data := map[string]string{}
	var denied *AuthorizationDeniedError
	switch {
	case errors.As(err, &denied):
		data["Error"] = strings.TrimSpace(denied.Code + " " + denied.Description)
	case err != nil:
		data["Error"] = err.Error()
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := callbackPage.Execute(w, data); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}

	if errors.Is(err, ErrMissingCode) {
		return
	}
	s.finish(err)

	go func() {
		time.Sleep(1 * time.Second)
		s.Stop()
	}()
}

func (s *CallbackServer) finish(err error) {
	s.once.Do(func() {
		s.resultCh <- err
	})
}

// Stop gracefully shuts down the callback server.
func (s *CallbackServer) Stop() {
	s.stopOnce.Do(func() { close(s.stopped) })
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(ctx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
}
