package cmd

import (
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"portalauth/internal/app"
)

// authStatusCmd represents the auth status command
var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show authentication status",
	Long: `Show the stored token state: whether a token is held, when it
expires and whether an authorization code is waiting to be exchanged.
The portal is not contacted.`,
	Args: cobra.NoArgs,
	RunE: runAuthStatus,
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	session, err := newSession(cmd.Context(), cmd.ErrOrStderr(), true)
	if err != nil {
		return err
	}
	defer session.Close()

	st, err := session.Status(cmd.Context(), time.Now())
	if err != nil {
		return err
	}

	renderStatus(cmd.OutOrStdout(), st, time.Now())
	return nil
}

// renderStatus writes st as a table.
func renderStatus(out io.Writer, st app.Status, now time.Time) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)

	t.AppendRow(table.Row{text.FgHiCyan.Sprint("Portal"), st.Portal})
	t.AppendRow(table.Row{text.FgHiCyan.Sprint("Store"), st.Store})

	switch {
	case !st.HasCredential:
		t.AppendRow(table.Row{text.FgHiCyan.Sprint("Status"), text.FgYellow.Sprint("Not signed in")})
	case st.Expired:
		t.AppendRow(table.Row{text.FgHiCyan.Sprint("Status"), text.FgYellow.Sprint("Token expired")})
	default:
		t.AppendRow(table.Row{text.FgHiCyan.Sprint("Status"), text.FgGreen.Sprint("Signed in")})
	}
	if st.HasCredential {
		t.AppendRow(table.Row{text.FgHiCyan.Sprint("Expires"), formatExpiry(st.Expiry, now)})
	}

	if st.HasPendingCode {
		age := "unknown"
		if !st.CodeCapturedAt.IsZero() {
			age = formatDuration(now.Sub(st.CodeCapturedAt)) + " ago"
		}
		t.AppendRow(table.Row{text.FgHiCyan.Sprint("Pending code"), "captured " + age})
	}

	t.Render()
}
