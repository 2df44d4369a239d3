package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var fetchOutput string

// fetchCmd fetches a secured portal resource.
var fetchCmd = &cobra.Command{
	Use:   "fetch <resource>",
	Short: "Fetch a secured portal resource",
	Long: `Fetch a secured portal resource, signing in first if the portal asks
for credentials. The resource is a URL or a path relative to the portal.

Examples:
  portalauth fetch /sharing/rest/content/items/<id>?f=json
  portalauth fetch https://www.arcgis.com/sharing/rest/portals/self?f=json -o self.json`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "", "Write the response body to a file")
}

func runFetch(cmd *cobra.Command, args []string) error {
	session, err := newSession(cmd.Context(), cmd.ErrOrStderr(), false)
	if err != nil {
		return err
	}
	defer session.Close()

	resp, err := session.Portal.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if fetchOutput != "" {
		if err := os.WriteFile(fetchOutput, resp.Body, 0600); err != nil {
			return fmt.Errorf("failed to write %s: %w", fetchOutput, err)
		}
		return nil
	}

	_, err = cmd.OutOrStdout().Write(resp.Body)
	return err
}
