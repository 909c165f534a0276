package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lucifergaming/savagetech/internal/appctx"
	"github.com/lucifergaming/savagetech/internal/output"
	"github.com/lucifergaming/savagetech/internal/version"
)

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// The root skips app setup for version so it works without config.
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), version.Full())
				return err
			}
			return app.OK(version.Info(), output.WithSummary(version.Full()))
		},
	}
}
