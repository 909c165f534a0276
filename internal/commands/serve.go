package commands

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/lucifergaming/savagetech/internal/appctx"
	"github.com/lucifergaming/savagetech/internal/config"
	"github.com/lucifergaming/savagetech/internal/observability"
	"github.com/lucifergaming/savagetech/internal/server"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	var listen string
	var prefix string
	var noReload bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the widget endpoints over HTTP",
		Long: `Run the HTTP server a web frontend calls to boot and refresh the widget.

Routes (under --prefix, default /api/savage-tech):
  GET  /init           widget init code for ?user_id=
  GET  /refresh-token  fresh credentials for ?user_id=
  POST /deposit        {user_id, amount, currency}
  POST /bet            {user_id, amount, odds, currency}
  POST /currencies     {currencies}

Plus GET /healthz and GET /metrics at the root. Changes to the global
config file are picked up without a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}
			client, err := app.Client()
			if err != nil {
				return err
			}

			if listen == "" {
				listen = app.Config.ListenAddr
			}
			if !cmd.Flags().Changed("prefix") {
				prefix = app.Config.RoutePrefix
			}

			logger := serverLogger(app)

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			metrics := observability.NewMetrics(reg)
			app.Hooks.SetMetrics(metrics)

			srv := server.New(client, server.SettingsFromConfig(app.Config),
				server.WithPrefix(prefix),
				server.WithLogger(logger),
				server.WithMetrics(metrics, reg),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if !noReload {
				overrides := config.FlagOverrides{
					APIURL:   app.Flags.APIURL,
					Currency: app.Flags.Currency,
					CacheDir: app.Flags.CacheDir,
				}
				reloader := server.NewReloader(config.GlobalConfigPath(), func() (*config.Config, error) {
					return config.Load(overrides)
				}, srv, logger, metrics)
				go func() {
					if err := reloader.Run(ctx); err != nil && ctx.Err() == nil {
						logger.Warn("config reload disabled", "error", err)
					}
				}()
			}

			logger.Info("starting widget server",
				"addr", listen,
				"prefix", prefix,
				"vendor_api", app.Config.APIURL)
			return srv.Run(ctx, listen)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (default from config, :8080)")
	cmd.Flags().StringVar(&prefix, "prefix", config.DefaultRoutePrefix, "Route prefix for widget endpoints")
	cmd.Flags().BoolVar(&noReload, "no-reload", false, "Do not watch the config file for changes")

	return cmd
}

// serverLogger writes JSON to stderr; -v lowers the level to debug.
func serverLogger(app *appctx.App) *slog.Logger {
	level := slog.LevelInfo
	if app.Hooks.Level() > 0 {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(app.Stderr, &slog.HandlerOptions{Level: level}))
}

