package redirect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedSurface_CapturesRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/authorize", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "signed-in"})
		http.Redirect(w, r, "/approve", http.StatusFound)
	})
	mux.HandleFunc("/approve", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("session"); err != nil || c.Value != "signed-in" {
			http.Error(w, "no session", http.StatusUnauthorized)
			return
		}
		http.Redirect(w, r, "portalauth://auth?code=xyz", http.StatusFound)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	i, store := newTestInterceptor(t, "portalauth://auth")
	surface := NewEmbeddedSurface(i)

	require.NoError(t, surface.Load(context.Background(), server.URL+"/authorize"))

	code, ok, err := store.PendingCode(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "xyz", code.Code)
}

func TestEmbeddedSurface_Denied(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "portalauth://auth?error=access_denied", http.StatusFound)
	}))
	defer server.Close()

	i, _ := newTestInterceptor(t, "portalauth://auth")
	err := NewEmbeddedSurface(i).Load(context.Background(), server.URL)

	var denied *AuthorizationDeniedError
	assert.ErrorAs(t, err, &denied)
}

func TestEmbeddedSurface_SignInPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<form>sign in</form>"))
	}))
	defer server.Close()

	i, store := newTestInterceptor(t, "portalauth://auth")
	err := NewEmbeddedSurface(i).Load(context.Background(), server.URL)

	assert.True(t, IsInteractionRequired(err))
	_, ok, _ := store.PendingCode(context.Background())
	assert.False(t, ok)
}

func TestEmbeddedSurface_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid client_id", http.StatusBadRequest)
	}))
	defer server.Close()

	i, _ := newTestInterceptor(t, "portalauth://auth")
	err := NewEmbeddedSurface(i).Load(context.Background(), server.URL)

	require.Error(t, err)
	assert.False(t, IsInteractionRequired(err))
	assert.Contains(t, err.Error(), "400")
}

func TestEmbeddedSurface_RedirectLoop(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	}))
	defer server.Close()

	i, _ := newTestInterceptor(t, "portalauth://auth")
	err := NewEmbeddedSurface(i).Load(context.Background(), server.URL)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "redirects")
}
