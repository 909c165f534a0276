package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lucifergaming/savagetech/internal/output"
)

// NewDepositCmd creates the deposit command.
func NewDepositCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deposit <user-id> <amount>",
		Short: "Report a completed deposit",
		Long:  "Tell the vendor a player completed a deposit so the widget can react to it.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}
			userID, err := userArg(args[0])
			if err != nil {
				return err
			}
			amount, err := parseAmount("amount", args[1])
			if err != nil {
				return err
			}
			client, err := app.Client()
			if err != nil {
				return err
			}

			currency := app.Config.DefaultCurrency
			resp, err := client.DepositMade(cmd.Context(), userID, amount, currency)
			if err != nil {
				return err
			}

			return app.OK(responseData(resp),
				output.WithSummary(fmt.Sprintf("Deposit of %s recorded for %s",
					app.Locale.FormatAmount(amount, currency), userID)))
		},
	}

	return cmd
}

// NewBetCmd creates the bet command.
func NewBetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bet <user-id> <amount> <odds>",
		Short: "Report a placed bet",
		Long:  "Tell the vendor a player placed a bet at the given decimal odds.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}
			userID, err := userArg(args[0])
			if err != nil {
				return err
			}
			amount, err := parseAmount("amount", args[1])
			if err != nil {
				return err
			}
			odds, err := parseAmount("odds", args[2])
			if err != nil {
				return err
			}
			client, err := app.Client()
			if err != nil {
				return err
			}

			currency := app.Config.DefaultCurrency
			resp, err := client.BetPlaced(cmd.Context(), userID, amount, odds, currency)
			if err != nil {
				return err
			}

			return app.OK(responseData(resp),
				output.WithSummary(fmt.Sprintf("Bet of %s at %s recorded for %s",
					app.Locale.FormatAmount(amount, currency), app.Locale.FormatOdds(odds), userID)))
		},
	}

	return cmd
}
