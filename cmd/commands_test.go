package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portalauth/internal/testing/mock"
	"portalauth/internal/tokenstore"
)

// writeTestConfig creates a config directory using the file backend.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	content := `portal:
  url: https://portal.example.com
oauth:
  clientId: cli-client
  redirectUri: portalauth://auth
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0600))
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		logLevel = ""
		authQuiet = false
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	SetVersion("9.9.9")
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "portalauth version 9.9.9\n", out)
}

func TestAuthorizeURLCommand(t *testing.T) {
	dir := writeTestConfig(t)

	out, err := execute(t, "--config", dir, "--log-level", "error", "authorize-url")
	require.NoError(t, err)
	assert.Contains(t, out, "https://portal.example.com/sharing/rest/oauth2/authorize?")
	assert.Contains(t, out, "client_id=cli-client")
	assert.Contains(t, out, "expiration=20160")
	assert.Contains(t, out, "response_type=code")
}

func TestRedirectCommandStoresCode(t *testing.T) {
	dir := writeTestConfig(t)

	out, err := execute(t, "--config", dir, "--log-level", "error", "redirect", "portalauth://auth?code=xyz")
	require.NoError(t, err)
	assert.Contains(t, out, "Authorization received")

	store, err := tokenstore.NewFileStore(dir)
	require.NoError(t, err)
	code, ok, err := store.PendingCode(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "xyz", code.Code)
}

func TestRedirectCommandRejectsForeignURI(t *testing.T) {
	dir := writeTestConfig(t)

	_, err := execute(t, "--config", dir, "--log-level", "error", "redirect", "https://example.com/?code=xyz")
	require.Error(t, err)
	assert.Equal(t, ExitCodeError, getExitCode(err))
}

func TestAuthStatusAndLogout(t *testing.T) {
	dir := writeTestConfig(t)

	store, err := tokenstore.NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.PutCredential(context.Background(), tokenstore.Credential{AccessToken: "tok_1"}))

	out, err := execute(t, "--config", dir, "--log-level", "error", "auth", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in")
	assert.Contains(t, out, "never")

	out, err = execute(t, "--config", dir, "--log-level", "error", "auth", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed out")

	_, ok, err := store.Credential(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAuthLoginCommandEmbedded(t *testing.T) {
	portal := mock.NewPortal(mock.PortalConfig{ClientID: "cli-client", AutoApprove: true})
	portalURL, err := portal.Start()
	require.NoError(t, err)
	t.Cleanup(func() { _ = portal.Stop(context.Background()) })

	dir := t.TempDir()
	content := "portal:\n  url: " + portalURL + "\noauth:\n  clientId: cli-client\n  redirectUri: portalauth://auth\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0600))
	t.Cleanup(func() { loginNoBrowser = false })

	out, err := execute(t, "--config", dir, "--log-level", "error", "auth", "login", "--no-browser")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in to "+portalURL)
	assert.Contains(t, out, "via embedded")
	assert.Equal(t, 1, portal.Exchanges())
}
