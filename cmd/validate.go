package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/mediapress/internal/config"
	"github.com/lehigh-university-libraries/mediapress/internal/openai"
	"github.com/lehigh-university-libraries/mediapress/internal/wordpress"
)

func newValidateCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check stored credentials against the remote APIs",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "openai",
		Short: "Check the OpenAI API key by listing models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := root.loadConfig()
			if err != nil {
				return err
			}
			if cfg.OpenAI == nil {
				return fmt.Errorf("OpenAI configuration not found")
			}

			client := &http.Client{Timeout: config.HTTPTimeout()}
			valid, err := openai.ValidateCredentials(cmd.Context(), client, cfg.OpenAI.APIURL, cfg.OpenAI.APIKey)
			if err != nil {
				return err
			}
			return reportValidation(cmd, "OpenAI", valid)
		},
	})

	var siteID string
	wp := &cobra.Command{
		Use:   "wordpress",
		Short: "Check a site's application password and upload permission",
		Long: `Reads the current user, uploads a 1x1 test image and deletes it again.
A rejected password reports invalid; a missing upload permission is an error.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := root.loadConfig()
			if err != nil {
				return err
			}
			site, ok := cfg.FindSite(siteID)
			if !ok {
				return fmt.Errorf("WordPress site not found")
			}

			valid, err := wordpress.NewPublisher().ValidateCredentials(cmd.Context(), site.SiteURL, site.Username, site.AppPassword)
			if err != nil {
				return err
			}
			return reportValidation(cmd, "WordPress site "+site.ID, valid)
		},
	}
	wp.Flags().StringVarP(&siteID, "site", "s", "", "Id of the WordPress site to check")
	_ = wp.MarkFlagRequired("site")
	cmd.AddCommand(wp)

	return cmd
}

func reportValidation(cmd *cobra.Command, what string, valid bool) error {
	if !valid {
		return fmt.Errorf("%s credentials are invalid", what)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s credentials are valid\n", what)
	return nil
}
