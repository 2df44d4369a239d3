package cmd

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

// redirectCmd receives the portal's redirect from the desktop.
var redirectCmd = &cobra.Command{
	Use:   "redirect <uri>",
	Short: "Hand a redirect URI back to a waiting sign-in",
	Long: `Capture the authorization code from a redirect URI.

Register this command as the handler for the redirect URI scheme. The
desktop runs it when the portal redirects back after sign-in; the code is
stored where the waiting "portalauth auth login" or "portalauth fetch"
picks it up.`,
	Args:   cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := newSession(cmd.Context(), cmd.ErrOrStderr(), true)
		if err != nil {
			return err
		}
		defer session.Close()

		if err := session.Interceptor.CaptureURI(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to capture redirect: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s Authorization received. You can return to the terminal.\n", text.FgGreen.Sprint("✓"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(redirectCmd)
}
