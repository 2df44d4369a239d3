package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"portalauth/internal/challenge"
	"portalauth/internal/config"
	"portalauth/internal/oauth"
	"portalauth/internal/portal"
	"portalauth/internal/redirect"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates authentication is required but was cancelled
	// or did not complete in time.
	ExitCodeAuthRequired = 2
	// ExitCodeAuthFailed indicates the authorization flow failed.
	ExitCodeAuthFailed = 3
)

var (
	configPath string
	logLevel   string
)

// rootCmd represents the base command for the portalauth application.
var rootCmd = &cobra.Command{
	Use:   "portalauth",
	Short: "Sign in to a mapping portal with OAuth2",
	Long: `portalauth signs you in to a mapping portal using the OAuth2
authorization code flow, keeps the access token on disk and fetches
secured portal resources with it.

The authorization page opens in your browser when one is available. The
portal then redirects to the registered redirect URI, which is handed back
to portalauth by your desktop ("portalauth redirect <uri>") or received
by a local callback server for loopback redirect URIs. Without a browser,
portalauth falls back to an in-process navigation and, if the portal asks
you to sign in, to pasting the redirect URL by hand.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
// This function is called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "portalauth version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
func getExitCode(err error) int {
	var denied *redirect.AuthorizationDeniedError
	if errors.As(err, &denied) ||
		errors.Is(err, oauth.ErrExchangeFailed) ||
		errors.Is(err, challenge.ErrRestartFailed) {
		return ExitCodeAuthFailed
	}

	if portal.IsAccessCancelled(err) {
		return ExitCodeAuthRequired
	}

	return ExitCodeError
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.GetDefaultConfigPathOrPanic(), "Configuration directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default from config)")

	rootCmd.AddCommand(newVersionCmd())
}
