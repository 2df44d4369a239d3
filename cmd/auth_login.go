package cmd

import (
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"portalauth/internal/app"
)

var loginNoBrowser bool

// authLoginCmd represents the auth login command
var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the portal",
	Long: `Sign in to the configured portal and store an access token.

A stored, unexpired token is reused. Otherwise the authorization page is
opened in your browser; with --no-browser, or when no browser is
available, it is loaded in-process instead.`,
	Args: cobra.NoArgs,
	RunE: runAuthLogin,
}

func init() {
	authLoginCmd.Flags().BoolVar(&loginNoBrowser, "no-browser", false, "Do not open a browser")
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var opts []app.SessionOption
	if loginNoBrowser {
		opts = append(opts, app.WithOpener(nil))
	}

	session, err := newSession(ctx, cmd.ErrOrStderr(), authQuiet, opts...)
	if err != nil {
		return err
	}
	defer session.Close()

	cred, err := session.Login(ctx)
	if err != nil {
		return err
	}

	authPrint(cmd, "%s Signed in to %s\n", text.FgGreen.Sprint("✓"), session.Config.Portal.URL)
	authPrint(cmd, "  Expires: %s\n", formatExpiry(cred.Expiry, time.Now()))
	if launch := session.Handler.LastLaunch(); launch != nil {
		authPrint(cmd, "  Flow:    %s via %s\n", launch.FlowID, launch.Strategy)
	}
	return nil
}
