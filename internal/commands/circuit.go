package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lucifergaming/savagetech/internal/appctx"
	"github.com/lucifergaming/savagetech/internal/output"
	"github.com/lucifergaming/savagetech/internal/presenter"
	"github.com/lucifergaming/savagetech/internal/resilience"
)

// NewCircuitCmd creates the circuit command group.
func NewCircuitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "circuit",
		Short: "Inspect the vendor circuit breaker",
		Long: `Inspect or reset the circuit breaker guarding vendor API calls.

After repeated transport errors or 5xx responses the circuit opens and calls
fail fast until a probe succeeds. A 429 pauses all calls for the vendor's
Retry-After. State is shared by every savagetech process using the same
cache directory and API origin.`,
	}

	cmd.AddCommand(newCircuitStatusCmd(), newCircuitResetCmd())
	return cmd
}

type circuitView struct {
	resilience.Status
	PausedSeconds int `json:"paused_seconds,omitempty"`
}

func requireGate(app *appctx.App) (*resilience.Gate, error) {
	gate := app.Gate()
	if gate == nil {
		return nil, output.ErrUsageHint("circuit breaker is disabled", "Set cache_dir or pass --cache-dir")
	}
	return gate, nil
}

func newCircuitStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show circuit state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}
			gate, err := requireGate(app)
			if err != nil {
				return err
			}

			st, err := gate.Status()
			if err != nil {
				return err
			}
			view := circuitView{Status: st, PausedSeconds: int(st.PausedFor.Round(time.Second).Seconds())}

			summary := "Vendor circuit " + st.Circuit
			if st.OpenedAt != nil {
				summary += " since " + app.Locale.FormatTime(*st.OpenedAt)
			}
			if st.PausedFor > 0 {
				summary += ", rate limited, resumes " + presenter.FormatUntil(time.Now().Add(st.PausedFor), time.Now())
			}

			opts := []output.ResponseOption{output.WithSummary(summary)}
			if st.Circuit != resilience.CircuitClosed || st.PausedFor > 0 {
				opts = append(opts, output.WithBreadcrumbs(output.Breadcrumb{
					Action:      "reset",
					Cmd:         "savagetech circuit reset",
					Description: "Close the circuit and clear the backoff",
				}))
			}
			return app.OK(view, opts...)
		},
	}
}

func newCircuitResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Close the circuit and clear any backoff",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}
			gate, err := requireGate(app)
			if err != nil {
				return err
			}
			if err := gate.Reset(); err != nil {
				return fmt.Errorf("reset circuit: %w", err)
			}
			return app.OK(map[string]string{"circuit": resilience.CircuitClosed},
				output.WithSummary("Vendor circuit reset"))
		},
	}
}
