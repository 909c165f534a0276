package commands

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lucifergaming/savagetech/internal/output"
	"github.com/lucifergaming/savagetech/internal/presenter"
	"github.com/lucifergaming/savagetech/internal/refresh"
	"github.com/lucifergaming/savagetech/internal/sdk"
	"github.com/lucifergaming/savagetech/internal/widget"
)

// tokenView is the token command's data payload.
type tokenView struct {
	UserID    string     `json:"user_id"`
	Currency  string     `json:"currency"`
	JWT       string     `json:"jwt"`
	Pubsub    string     `json:"pubsub"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	RefreshAt *time.Time `json:"refresh_at,omitempty"`
}

func newTokenView(userID, currency string, tok sdk.Token, margin time.Duration) tokenView {
	v := tokenView{UserID: userID, Currency: currency, JWT: tok.JWT, Pubsub: tok.Pubsub}
	if exp, ok := refresh.ExpiryFromJWT(tok.JWT); ok {
		at := exp.Add(-margin)
		v.ExpiresAt = &exp
		v.RefreshAt = &at
	}
	return v
}

// NewTokenCmd creates the token command.
func NewTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Fetch a widget access token",
		Long:  "Request a widget access token for a player and show when it should be refreshed.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}
			userID, err := userArg(args[0])
			if err != nil {
				return err
			}
			client, err := app.Client()
			if err != nil {
				return err
			}

			currency := app.Config.DefaultCurrency
			tok, err := client.FetchInitial(cmd.Context(), sdk.TokenRequest{UserID: userID, Currency: currency})
			if err != nil {
				return err
			}

			view := newTokenView(userID, currency, tok, app.Config.RefreshMargin())
			summary := "Token for " + userID
			if view.ExpiresAt != nil {
				summary += ", expires " + presenter.FormatUntil(*view.ExpiresAt, time.Now())
			}

			return app.OK(view,
				output.WithSummary(summary),
				output.WithBreadcrumbs(output.Breadcrumb{
					Action:      "watch",
					Cmd:         "savagetech watch " + userID,
					Description: "Keep the token fresh in the foreground",
				}),
			)
		},
	}

	return cmd
}

// NewInitCodeCmd creates the init-code command.
func NewInitCodeCmd() *cobra.Command {
	var rawConfig string

	cmd := &cobra.Command{
		Use:   "init-code <user-id>",
		Short: "Generate the widget init snippet",
		Long: `Fetch a token for a player and render the window.Savage.init(...) call
that boots the widget.

Widget options are passed through verbatim with --config:
  savagetech init-code alice --config '{"theme":"dark"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}
			userID, err := userArg(args[0])
			if err != nil {
				return err
			}

			var widgetConfig map[string]any
			if rawConfig != "" {
				if err := json.Unmarshal([]byte(rawConfig), &widgetConfig); err != nil {
					return output.ErrUsageHint(
						fmt.Sprintf("--config must be a JSON object: %v", err),
						`Example: --config '{"theme":"dark"}'`)
				}
			}

			client, err := app.Client()
			if err != nil {
				return err
			}

			res, err := widget.Generate(cmd.Context(), client, client.VendorID(), userID, widgetConfig, app.Config.DefaultCurrency)
			if err != nil {
				return err
			}

			return app.OK(widget.NewInitPayload(res, app.Config.RefreshBefore),
				output.WithSummary("Widget init code for "+userID))
		},
	}

	cmd.Flags().StringVar(&rawConfig, "config", "", "Widget config as a JSON object")

	return cmd
}
