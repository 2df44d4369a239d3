package portal

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portalauth/internal/challenge"
	"portalauth/internal/tokenstore"
)

type scriptedResolver struct {
	mu         sync.Mutex
	challenges []challenge.Challenge
	respond    func(ch challenge.Challenge) challenge.Outcome
}

func (r *scriptedResolver) Resolve(_ context.Context, ch challenge.Challenge) challenge.Outcome {
	r.mu.Lock()
	r.challenges = append(r.challenges, ch)
	r.mu.Unlock()
	return r.respond(ch)
}

func bearerServer(t *testing.T, token string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"abc","path":"` + r.URL.Path + `"}`))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestClient_UsesResolvedCredential(t *testing.T) {
	server := bearerServer(t, "tok_1")
	resolver := &scriptedResolver{respond: func(challenge.Challenge) challenge.Outcome {
		return challenge.Outcome{Kind: challenge.UseCredential, Credential: tokenstore.Credential{AccessToken: "tok_1"}}
	}}

	client, err := NewClient(server.URL, resolver, tokenstore.NewMemoryStore())
	require.NoError(t, err)

	var item struct {
		ID   string `json:"id"`
		Path string `json:"path"`
	}
	require.NoError(t, client.GetJSON(context.Background(), "/sharing/rest/content/items/abc", &item))
	assert.Equal(t, "abc", item.ID)
	assert.Equal(t, "/sharing/rest/content/items/abc", item.Path)

	require.Len(t, resolver.challenges, 1)
	assert.Equal(t, challenge.SchemeDetected, resolver.challenges[0].Type)
	assert.Equal(t, 0, resolver.challenges[0].FailureCount)
}

func TestClient_NoChallengeForPublicResource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("public"))
	}))
	defer server.Close()

	resolver := &scriptedResolver{respond: func(challenge.Challenge) challenge.Outcome {
		t.Fatal("resolver must not be called")
		return challenge.Outcome{}
	}}
	client, err := NewClient(server.URL, resolver, tokenstore.NewMemoryStore())
	require.NoError(t, err)

	resp, err := client.Get(context.Background(), server.URL+"/anything")
	require.NoError(t, err)
	assert.Equal(t, "public", string(resp.Body))
}

func TestClient_RejectedCredentialRaisesTokenRetry(t *testing.T) {
	server := bearerServer(t, "tok_good")
	resolver := &scriptedResolver{respond: func(ch challenge.Challenge) challenge.Outcome {
		if ch.Type == challenge.TokenRetry && ch.FailureCount >= 2 {
			return challenge.Outcome{Kind: challenge.Cancel, Reason: challenge.ErrTokenRevoked}
		}
		return challenge.Outcome{Kind: challenge.UseCredential, Credential: tokenstore.Credential{AccessToken: "tok_bad"}}
	}}

	client, err := NewClient(server.URL, resolver, tokenstore.NewMemoryStore())
	require.NoError(t, err)

	_, err = client.Get(context.Background(), "/item")

	var cancelled *AccessCancelledError
	require.ErrorAs(t, err, &cancelled)
	assert.ErrorIs(t, err, challenge.ErrTokenRevoked)
	assert.True(t, IsAccessCancelled(err))

	require.Len(t, resolver.challenges, 3)
	assert.Equal(t, challenge.SchemeDetected, resolver.challenges[0].Type)
	assert.Equal(t, challenge.TokenRetry, resolver.challenges[1].Type)
	assert.Equal(t, 1, resolver.challenges[1].FailureCount)
	assert.Equal(t, 2, resolver.challenges[2].FailureCount)
}

func TestClient_JSONErrorCodeIsChallenge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if r.Header.Get("Authorization") == "" {
			_, _ = w.Write([]byte(`{"error":{"code":499,"message":"Token Required"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	resolver := &scriptedResolver{respond: func(challenge.Challenge) challenge.Outcome {
		return challenge.Outcome{Kind: challenge.UseCredential, Credential: tokenstore.Credential{AccessToken: "tok"}}
	}}
	client, err := NewClient(server.URL, resolver, tokenstore.NewMemoryStore())
	require.NoError(t, err)

	resp, err := client.Get(context.Background(), "/x")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Body))
	assert.Len(t, resolver.challenges, 1)
}

func TestClient_RestartWaitsForPendingCode(t *testing.T) {
	server := bearerServer(t, "tok_new")
	store := tokenstore.NewMemoryStore()

	resolver := &scriptedResolver{}
	resolver.respond = func(ch challenge.Challenge) challenge.Outcome {
		if _, ok, _ := store.PendingCode(context.Background()); ok {
			return challenge.Outcome{Kind: challenge.UseCredential, Credential: tokenstore.Credential{AccessToken: "tok_new"}}
		}
		go func() {
			time.Sleep(20 * time.Millisecond)
			_ = store.PutPendingCode(context.Background(), tokenstore.PendingCode{Code: "abc123", CapturedAt: time.Now()})
		}()
		return challenge.Outcome{Kind: challenge.RestartFlow}
	}

	client, err := NewClient(server.URL, resolver, store, WithPollInterval(10*time.Millisecond))
	require.NoError(t, err)

	_, err = client.Get(context.Background(), "/item")
	require.NoError(t, err)

	require.Len(t, resolver.challenges, 2)
	assert.Equal(t, challenge.SchemeDetected, resolver.challenges[1].Type)
	assert.Equal(t, 1, resolver.challenges[1].FailureCount)
}

func TestClient_RestartWaitTimeout(t *testing.T) {
	server := bearerServer(t, "tok")
	resolver := &scriptedResolver{respond: func(challenge.Challenge) challenge.Outcome {
		return challenge.Outcome{Kind: challenge.RestartFlow}
	}}

	client, err := NewClient(server.URL, resolver, tokenstore.NewMemoryStore(),
		WithWaitTimeout(30*time.Millisecond), WithPollInterval(10*time.Millisecond))
	require.NoError(t, err)

	_, err = client.Get(context.Background(), "/item")
	assert.ErrorIs(t, err, ErrWaitTimeout)
	assert.True(t, IsAccessCancelled(err))
}

func TestClient_CancelOutcome(t *testing.T) {
	server := bearerServer(t, "tok")
	resolver := &scriptedResolver{respond: func(challenge.Challenge) challenge.Outcome {
		return challenge.Outcome{Kind: challenge.Cancel, Reason: challenge.ErrRetryLimitExceeded}
	}}

	client, err := NewClient(server.URL, resolver, tokenstore.NewMemoryStore())
	require.NoError(t, err)

	_, err = client.Get(context.Background(), "/item")
	assert.ErrorIs(t, err, challenge.ErrRetryLimitExceeded)
	assert.Contains(t, err.Error(), "cancelled")
}

func TestClient_ServerErrorIsNotChallenge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	resolver := &scriptedResolver{respond: func(challenge.Challenge) challenge.Outcome {
		t.Fatal("resolver must not be called")
		return challenge.Outcome{}
	}}
	client, err := NewClient(server.URL, resolver, tokenstore.NewMemoryStore())
	require.NoError(t, err)

	_, err = client.Get(context.Background(), "/item")
	require.Error(t, err)
	assert.False(t, IsAccessCancelled(err))
	assert.Contains(t, err.Error(), "500")
}

func TestAccessCancelledError(t *testing.T) {
	err := &AccessCancelledError{Resource: "/item"}
	assert.Equal(t, "access to /item cancelled", err.Error())
	assert.False(t, IsAccessCancelled(errors.New("other")))
}

func TestHasTokenErrorCode(t *testing.T) {
	assert.True(t, hasTokenErrorCode([]byte(`{"error":{"code":498}}`)))
	assert.True(t, hasTokenErrorCode([]byte(` {"error":{"code":499,"message":"x"}}`)))
	assert.False(t, hasTokenErrorCode([]byte(`{"error":{"code":400}}`)))
	assert.False(t, hasTokenErrorCode([]byte(`{"id":"abc"}`)))
	assert.False(t, hasTokenErrorCode([]byte(`[1,2]`)))
	assert.False(t, hasTokenErrorCode(nil))
}

func TestClient_UnsupportedScheme(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("WWW-Authenticate", "Negotiate")
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	resolver := &scriptedResolver{respond: func(challenge.Challenge) challenge.Outcome {
		t.Fatal("resolver must not be called")
		return challenge.Outcome{}
	}}
	client, err := NewClient(server.URL, resolver, tokenstore.NewMemoryStore())
	require.NoError(t, err)

	_, err = client.Get(context.Background(), "/item")
	assert.ErrorIs(t, err, ErrUnsupportedScheme)
}
