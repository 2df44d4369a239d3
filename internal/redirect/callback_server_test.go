package redirect

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func TestIsLoopbackRedirect(t *testing.T) {
	assert.True(t, IsLoopbackRedirect("http://127.0.0.1:7777/callback"))
	assert.True(t, IsLoopbackRedirect("http://localhost:7777/callback"))
	assert.True(t, IsLoopbackRedirect("http://[::1]:7777/"))
	assert.False(t, IsLoopbackRedirect("https://127.0.0.1:7777/callback"))
	assert.False(t, IsLoopbackRedirect("http://example.com/callback"))
	assert.False(t, IsLoopbackRedirect("portalauth://auth"))
}

func TestNewCallbackServer_RejectsCustomScheme(t *testing.T) {
	i, _ := newTestInterceptor(t, "portalauth://auth")
	_, err := NewCallbackServer(i, nil)
	assert.Error(t, err)
}

func startTestCallbackServer(t *testing.T) (*CallbackServer, *Interceptor, string) {
	t.Helper()
	base := fmt.Sprintf("http://127.0.0.1:%d/callback", freePort(t))
	i, _ := newTestInterceptor(t, base)

	server, err := NewCallbackServer(i, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := server.Start(ctx); err != nil {
		t.Skipf("Could not start callback server (port may be in use): %v", err)
	}
	t.Cleanup(server.Stop)
	return server, i, base
}

func TestCallbackServer_CapturesCode(t *testing.T) {
	server, i, base := startTestCallbackServer(t)

	resp, err := http.Get(base + "?code=loopback")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
	assert.Contains(t, string(body), "Signed in")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Wait(ctx))

	code, ok, err := i.store.PendingCode(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "loopback", code.Code)
}

func TestCallbackServer_Denied(t *testing.T) {
	server, _, base := startTestCallbackServer(t)

	resp, err := http.Get(base + "?error=access_denied&error_description=declined")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Contains(t, string(body), "Sign-in failed")
	assert.Contains(t, string(body), "declined")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var denied *AuthorizationDeniedError
	assert.ErrorAs(t, server.Wait(ctx), &denied)
}

func TestCallbackServer_WaitHonoursContext(t *testing.T) {
	server, _, _ := startTestCallbackServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, server.Wait(ctx), context.DeadlineExceeded)
}

func TestCallbackServer_WaitAfterStop(t *testing.T) {
	server, _, _ := startTestCallbackServer(t)
	server.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.ErrorIs(t, server.Wait(ctx), ErrCallbackStopped)
}
