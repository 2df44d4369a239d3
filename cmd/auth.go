package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var authQuiet bool

// authCmd represents the auth command group
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage portal authentication",
	Long: `Manage the portal access token.

Examples:
  portalauth auth login                # Sign in and store an access token
  portalauth auth login --no-browser   # Sign in without opening a browser
  portalauth auth status               # Show the stored token state
  portalauth auth logout               # Remove the stored token`,
}

// authLogoutCmd represents the auth logout command
var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the stored access token",
	Long: `Remove the stored access token and any pending authorization code.
The next access to a secured resource starts a new authorization flow.`,
	Args: cobra.NoArgs,
	RunE: runAuthLogout,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)

	authCmd.PersistentFlags().BoolVarP(&authQuiet, "quiet", "q", false, "Suppress non-essential output")
}

// authPrint prints output only if the --quiet flag is not set.
func authPrint(cmd *cobra.Command, format string, args ...interface{}) {
	if !authQuiet {
		fmt.Fprintf(cmd.OutOrStdout(), format, args...)
	}
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	session, err := newSession(cmd.Context(), cmd.ErrOrStderr(), true)
	if err != nil {
		return err
	}
	defer session.Close()

	if err := session.Logout(cmd.Context()); err != nil {
		return err
	}

	authPrint(cmd, "Signed out of %s.\n", session.Config.Portal.URL)
	return nil
}
