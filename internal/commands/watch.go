package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lucifergaming/savagetech/internal/appctx"
	"github.com/lucifergaming/savagetech/internal/output"
	"github.com/lucifergaming/savagetech/internal/presenter"
	"github.com/lucifergaming/savagetech/internal/refresh"
	"github.com/lucifergaming/savagetech/internal/sdk"
)

// rotationView is emitted for the initial token (rotation 0) and after every refresh.
type rotationView struct {
	tokenView
	Rotation int `json:"rotation"`
}

// NewWatchCmd creates the watch command.
func NewWatchCmd() *cobra.Command {
	var margin time.Duration

	cmd := &cobra.Command{
		Use:   "watch <user-id>",
		Short: "Keep a player's widget token fresh",
		Long: `Fetch a token for a player and refresh it ahead of expiry until interrupted.

Every rotation is written as its own response. The command exits non-zero
as soon as a scheduled refresh fails.`,
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
			client, err := app.Client()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("refresh-before") {
				margin = app.Config.RefreshMargin()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runWatch(ctx, app, client, sdk.TokenRequest{
				UserID:   userID,
				Currency: app.Config.DefaultCurrency,
			}, margin)
		},
	}

	cmd.Flags().DurationVar(&margin, "refresh-before", refresh.DefaultMargin, "Refresh this long before expiry (default from config)")

	return cmd
}

// runWatch drives one refresh session until ctx ends or a refresh fails.
func runWatch(ctx context.Context, app *appctx.App, client sdk.TokenClient, req sdk.TokenRequest, margin time.Duration) error {
	var (
		mu        sync.Mutex
		rotations int
		session   *refresh.Session
	)
	failed := make(chan error, 1)

	emit := func(tok sdk.Token, rotated bool) {
		mu.Lock()
		defer mu.Unlock()

		summary := "Initial token for " + req.UserID
		if rotated {
			rotations++
			summary = fmt.Sprintf("Token rotated for %s (#%d)", req.UserID, rotations)
		}
		view := rotationView{tokenView: newTokenView(req.UserID, req.Currency, tok, margin)}
		if rotated {
			view.Rotation = rotations
		}
		if next, ok := session.NextRefresh(); ok {
			app.Hooks.OnScheduled(req.UserID, next)
			summary += ", next refresh " + presenter.FormatUntil(next, time.Now())
		}

		if err := app.OK(view, output.WithSummary(summary)); err != nil {
			app.Logger.Warn("writing rotation failed", "error", err)
		}
	}

	session = refresh.NewSession(client, req,
		refresh.WithMargin(margin),
		refresh.WithSessionLogger(app.Logger),
		refresh.WithNotifier(refresh.NotifierFunc(func(_ context.Context, creds refresh.Credentials) {
			app.Hooks.OnRefresh(req.UserID, nil)
			emit(sdk.Token{JWT: creds.JWT, Pubsub: creds.Pubsub}, true)
		})),
		refresh.WithErrorHandler(func(err error) {
			if !errors.Is(err, refresh.ErrExpiresWithinMargin) {
				app.Hooks.OnRefresh(req.UserID, err)
			}
			select {
			case failed <- err:
			default:
			}
		}),
	)
	defer session.Close()

	tok, err := session.Start(ctx)
	if err != nil {
		return err
	}

	// A stale first token is refreshed inside Start and already printed as
	// a rotation.
	mu.Lock()
	rotated := rotations > 0
	mu.Unlock()
	if !rotated {
		emit(tok, false)
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-failed:
		if errors.Is(err, refresh.ErrExpiresWithinMargin) {
			return output.ErrUsageHint(
				"vendor tokens expire within the refresh margin",
				"Lower --refresh-before or token_refresh_before_minutes")
		}
		return err
	}
}
