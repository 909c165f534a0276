// Package commands implements the CLI commands.
package commands

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lucifergaming/savagetech/internal/auth"
	"github.com/lucifergaming/savagetech/internal/config"
	"github.com/lucifergaming/savagetech/internal/output"
	"github.com/lucifergaming/savagetech/internal/tui"
)

// NewAuthCmd creates the auth command group.
func NewAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage vendor credentials",
		Long: `Manage the vendor id and secret used to call the SavageTech API.

Credentials are stored per API origin in the system keyring, falling back to
a 0600 file when no keyring is available. SAVAGETECH_VENDOR_ID and
SAVAGETECH_VENDOR_SECRET take precedence over stored credentials.`,
	}

	cmd.AddCommand(
		newAuthLoginCmd(),
		newAuthLogoutCmd(),
		newAuthStatusCmd(),
	)

	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	var vendorID string
	var vendorSecret string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store vendor credentials",
		Long:  "Save a vendor id and secret for the configured API origin. Prompts when flags are omitted on a terminal.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}
			origin := config.NormalizeAPIURL(app.Config.APIURL)

			creds := tui.CredentialPrompt{
				VendorID:     strings.TrimSpace(vendorID),
				VendorSecret: strings.TrimSpace(vendorSecret),
			}
			if creds.VendorID == "" || creds.VendorSecret == "" {
				if !app.IsInteractive() {
					return output.ErrUsageHint("vendor id and secret are required",
						"Pass --vendor-id and --vendor-secret, or run in a terminal")
				}
				creds, err = tui.PromptCredentials(origin, creds)
				if err != nil {
					if errors.Is(err, tui.ErrNotInteractive) {
						return output.ErrUsage("vendor id and secret are required")
					}
					return err
				}
			}

			if err := app.Auth.Login(auth.Credentials{
				VendorID:     creds.VendorID,
				VendorSecret: creds.VendorSecret,
			}); err != nil {
				return err
			}

			status, err := app.Auth.Status()
			if err != nil {
				return err
			}
			return app.OK(status,
				output.WithSummary(fmt.Sprintf("Saved credentials for %s (%s)", creds.VendorID, origin)),
				output.WithBreadcrumbs(output.Breadcrumb{
					Action:      "status",
					Cmd:         "savagetech auth status",
					Description: "Check stored credentials",
				}),
			)
		},
	}

	cmd.Flags().StringVar(&vendorID, "vendor-id", "", "Vendor id")
	cmd.Flags().StringVar(&vendorSecret, "vendor-secret", "", "Vendor secret")

	return cmd
}

func newAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove stored credentials",
		Long:  "Remove stored vendor credentials for the current API origin.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}

			if err := app.Auth.Logout(); err != nil {
				return err
			}

			return app.OK(map[string]string{
				"status": "logged_out",
				"origin": config.NormalizeAPIURL(app.Config.APIURL),
			}, output.WithSummary("Successfully logged out"))
		},
	}
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show credential status",
		Long:  "Show which vendor credentials are in effect and where they come from. The secret is never shown.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}

			status, err := app.Auth.Status()
			if err != nil {
				return err
			}

			summary := "Not authenticated for " + status.Origin
			if status.Authenticated {
				summary = fmt.Sprintf("Authenticated as %s via %s", status.VendorID, status.Source)
				if status.SavedAt > 0 {
					summary += ", saved " + app.Locale.FormatTime(time.Unix(status.SavedAt, 0))
				}
			}

			opts := []output.ResponseOption{output.WithSummary(summary)}
			if !status.Authenticated {
				opts = append(opts, output.WithBreadcrumbs(output.Breadcrumb{
					Action:      "login",
					Cmd:         "savagetech auth login",
					Description: "Store vendor credentials",
				}))
			}
			return app.OK(status, opts...)
		},
	}
}
