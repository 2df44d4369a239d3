package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"portalauth/internal/oauth"
)

// authorizeURLCmd prints the authorization URL.
var authorizeURLCmd = &cobra.Command{
	Use:   "authorize-url",
	Short: "Print the authorization URL",
	Long: `Print the portal authorization URL for the configured client. Open it
on any device and pass the resulting redirect to "portalauth redirect".`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		authURL, err := oauth.AuthorizationURL(oauth.Config{
			PortalURL:     cfg.Portal.URL,
			AuthorizePath: cfg.Portal.AuthorizePath,
			TokenPath:     cfg.Portal.TokenPath,
			ClientID:      cfg.OAuth.ClientID,
			RedirectURI:   cfg.OAuth.RedirectURI,
			TokenLifetime: cfg.OAuth.TokenLifetime(),
		})
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), authURL)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(authorizeURLCmd)
}
