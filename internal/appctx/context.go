// Package appctx provides application context helpers.
package appctx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/lucifergaming/savagetech/internal/auth"
	"github.com/lucifergaming/savagetech/internal/config"
	"github.com/lucifergaming/savagetech/internal/hostutil"
	"github.com/lucifergaming/savagetech/internal/observability"
	"github.com/lucifergaming/savagetech/internal/output"
	"github.com/lucifergaming/savagetech/internal/presenter"
	"github.com/lucifergaming/savagetech/internal/resilience"
	"github.com/lucifergaming/savagetech/internal/sdk"
)

// contextKey is a private type for context keys.
type contextKey string

const appKey contextKey = "app"

// App holds the shared application context for all commands.
type App struct {
	Config *config.Config
	Auth   *auth.Manager
	Output *output.Writer
	Locale presenter.Locale

	// Logger is silent unless -v is given.
	Logger *slog.Logger

	// Observability
	Collector *observability.SessionCollector
	Hooks     *observability.CLIHooks

	// Flags holds the global flag values
	Flags GlobalFlags

	// Stdout and Stderr default to the process streams.
	Stdout io.Writer
	Stderr io.Writer

	clientOnce sync.Once
	client     *sdk.Client
	clientErr  error

	gateOnce sync.Once
	gate     *resilience.Gate
}

// GlobalFlags holds values for global CLI flags.
type GlobalFlags struct {
	// Output format flags
	JSON   bool
	Quiet  bool
	MD     bool // Literal Markdown syntax output
	Styled bool // Force ANSI styled output (even when piped)
	JQ     string

	// Vendor API flags
	APIURL   string
	Currency string

	// Behavior flags
	Verbose  int // 0=off, 1=refreshes, 2=refreshes+requests (stacks with -v -v or -vv)
	Stats    bool
	CacheDir string
}

// NewApp creates a new App with the given configuration.
func NewApp(cfg *config.Config) *App {
	// Collector always runs to gather stats; hooks control output verbosity.
	// ApplyFlags sets the actual level from -v flags.
	collector := observability.NewSessionCollector()
	hooks := observability.NewCLIHooks(0, collector, observability.NewTraceWriter())

	return &App{
		Config:    cfg,
		Auth:      auth.NewManager(cfg),
		Locale:    presenter.DetectLocale(),
		Logger:    slog.New(slog.DiscardHandler),
		Collector: collector,
		Hooks:     hooks,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
		Output: output.New(output.Options{
			Format: formatFromConfig(cfg.Format),
			Writer: os.Stdout,
		}),
	}
}

func formatFromConfig(format string) output.Format {
	switch format {
	case "json":
		return output.FormatJSON
	case "markdown", "md":
		return output.FormatMarkdown
	case "styled":
		return output.FormatStyled
	case "quiet":
		return output.FormatQuiet
	default:
		return output.FormatAuto
	}
}

// ApplyFlags applies global flag values to the app configuration.
func (a *App) ApplyFlags() {
	format := formatFromConfig(a.Config.Format)
	switch {
	case a.Flags.Quiet:
		format = output.FormatQuiet
	case a.Flags.JSON:
		format = output.FormatJSON
	case a.Flags.Styled:
		format = output.FormatStyled
	case a.Flags.MD:
		format = output.FormatMarkdown
	}
	a.Output = output.New(output.Options{
		Format: format,
		Writer: a.Stdout,
		JQ:     a.Flags.JQ,
	})

	// SAVAGETECH_DEBUG can be "1", "2", or "true" (treated as 2)
	verboseLevel := a.Flags.Verbose
	if debugEnv := os.Getenv("SAVAGETECH_DEBUG"); debugEnv != "" {
		if level, err := strconv.Atoi(debugEnv); err == nil {
			verboseLevel = max(verboseLevel, level)
		} else if debugEnv == "true" {
			verboseLevel = 2
		}
	}

	if a.Hooks != nil {
		a.Hooks.SetLevel(verboseLevel)
	}

	if verboseLevel > 0 {
		a.Logger = slog.New(slog.NewTextHandler(a.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
}

// Client returns the vendor API client, resolving credentials on first use.
func (a *App) Client() (*sdk.Client, error) {
	a.clientOnce.Do(func() {
		if err := hostutil.RequireSecureURL(a.Config.APIURL); err != nil {
			a.clientErr = output.ErrUsage(err.Error())
			return
		}
		creds, err := a.Auth.Credentials()
		if err != nil {
			a.clientErr = err
			return
		}
		opts := []sdk.Option{sdk.WithHooks(a.Hooks)}
		if gate := a.Gate(); gate != nil {
			opts = append(opts, sdk.WithGate(gate))
		}
		a.client = sdk.NewClient(sdk.Config{
			BaseURL:         a.Config.APIURL,
			VendorID:        creds.VendorID,
			VendorSecret:    creds.VendorSecret,
			DefaultCurrency: a.Config.DefaultCurrency,
			Timeout:         a.Config.HTTPTimeout,
			ConnectTimeout:  a.Config.ConnectTimeout,
		}, opts...)
	})
	return a.client, a.clientErr
}

// Gate returns the vendor circuit breaker for the configured origin, or nil
// when no cache directory is configured.
func (a *App) Gate() *resilience.Gate {
	a.gateOnce.Do(func() {
		if a.Config.CacheDir == "" {
			return
		}
		store := resilience.NewStore(resilience.StoreDir(a.Config.CacheDir, a.Config.APIURL))
		a.gate = resilience.NewGate(store, resilience.DefaultConfig(), resilience.WithLogger(a.Logger))
	})
	return a.gate
}

// SetClient injects a prebuilt client (for tests).
func (a *App) SetClient(c *sdk.Client) {
	a.clientOnce.Do(func() {})
	a.client = c
	a.clientErr = nil
}

// OK outputs a success response, automatically including stats if --stats flag is set.
func (a *App) OK(data any, opts ...output.ResponseOption) error {
	if a.Flags.Stats && a.Collector != nil {
		opts = append(opts, output.WithMeta("stats", a.Collector.Summary().Map()))
	}
	return a.Output.OK(data, opts...)
}

// Err outputs an error response, printing stats to stderr if --stats flag is set.
func (a *App) Err(err error) error {
	if outputErr := a.Output.Err(err); outputErr != nil {
		return outputErr
	}

	if a.Flags.Stats && a.Collector != nil && !a.isMachineOutput() {
		if parts := a.Collector.Summary().FormatParts(); len(parts) > 0 {
			fmt.Fprintf(a.Stderr, "\nStats: %s\n", strings.Join(parts, " | "))
		}
	}
	return nil
}

// isMachineOutput returns true if the output mode is intended for programmatic consumption.
func (a *App) isMachineOutput() bool {
	if a.Flags.Quiet || a.Flags.JQ != "" {
		return true
	}
	return a.Config != nil && a.Config.Format == "quiet"
}

// IsInteractive returns true if prompts may be shown.
func (a *App) IsInteractive() bool {
	if a.Flags.JSON || a.Flags.Quiet || a.Flags.JQ != "" {
		return false
	}

	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// WithApp stores the app in the context.
func WithApp(ctx context.Context, app *App) context.Context {
	return context.WithValue(ctx, appKey, app)
}

// FromContext retrieves the app from the context.
func FromContext(ctx context.Context) *App {
	app, _ := ctx.Value(appKey).(*App)
	return app
}
