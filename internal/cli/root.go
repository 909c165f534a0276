// Package cli wires the root command, global flags and error exit codes.
package cli

import (
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lucifergaming/savagetech/internal/appctx"
	"github.com/lucifergaming/savagetech/internal/commands"
	"github.com/lucifergaming/savagetech/internal/config"
	"github.com/lucifergaming/savagetech/internal/hostutil"
	"github.com/lucifergaming/savagetech/internal/output"
	"github.com/lucifergaming/savagetech/internal/version"
)

// NewRootCmd creates the root cobra command.
func NewRootCmd() *cobra.Command {
	var flags appctx.GlobalFlags

	cmd := &cobra.Command{
		Use:   "savagetech",
		Short: "Command-line interface for the SavageTech widget",
		Long: `savagetech issues widget tokens, keeps them fresh ahead of expiry, and
forwards deposit, bet and currency events to the SavageTech vendor API.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Skip setup for help and version commands
			if cmd.Name() == "help" || cmd.Name() == "version" {
				return nil
			}

			if flags.JQ != "" {
				if _, err := output.CompileJQ(flags.JQ); err != nil {
					return err
				}
			}

			cfg, err := config.Load(config.FlagOverrides{
				APIURL:   hostutil.Normalize(flags.APIURL),
				Currency: flags.Currency,
				CacheDir: flags.CacheDir,
			})
			if err != nil {
				return err
			}

			// Create app and store in context
			app := appctx.NewApp(cfg)
			app.Flags = flags
			app.Stdout = cmd.OutOrStdout()
			app.Stderr = cmd.ErrOrStderr()
			app.ApplyFlags()

			cmd.SetContext(appctx.WithApp(cmd.Context(), app))
			return nil
		},
	}

	// Allow flags anywhere in the command line
	cmd.Flags().SetInterspersed(true)
	cmd.PersistentFlags().SetInterspersed(true)

	// Output format flags
	cmd.PersistentFlags().BoolVarP(&flags.JSON, "json", "j", false, "Output as JSON")
	cmd.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "q", false, "Output data only, no envelope")
	cmd.PersistentFlags().BoolVarP(&flags.MD, "md", "m", false, "Output as Markdown (portable)")
	cmd.PersistentFlags().BoolVar(&flags.MD, "markdown", false, "Output as Markdown (portable)")
	cmd.PersistentFlags().BoolVar(&flags.Styled, "styled", false, "Force styled output (ANSI colors)")
	cmd.PersistentFlags().StringVar(&flags.JQ, "jq", "", "Filter JSON output with a jq expression")

	// Vendor API flags
	cmd.PersistentFlags().StringVar(&flags.APIURL, "api-url", "", "Vendor API base URL (e.g. func.savagebet.gg)")
	cmd.PersistentFlags().StringVar(&flags.Currency, "currency", "", "Currency code (overrides default_currency)")

	// Behavior flags
	cmd.PersistentFlags().CountVarP(&flags.Verbose, "verbose", "v", "Verbose output (-v for refreshes, -vv for requests)")
	cmd.PersistentFlags().BoolVar(&flags.Stats, "stats", false, "Show session statistics")
	cmd.PersistentFlags().StringVar(&flags.CacheDir, "cache-dir", "", "Cache directory")

	return cmd
}

// Execute runs the root command and exits with the error's exit code.
func Execute() {
	os.Exit(Run(os.Args[1:], os.Stdout, os.Stderr))
}

// Run executes the CLI with args and returns the process exit code.
func Run(args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCmd()
	cmd.AddCommand(commands.All()...)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	// Use ExecuteC to get the executed command (for correct context access)
	executedCmd, err := cmd.ExecuteC()
	if err == nil {
		return output.ExitOK
	}

	err = transformCobraError(err)
	apiErr := output.AsError(err)

	// Try to use app.Err() if app is available (for --stats support)
	if executedCmd != nil {
		if app := appctx.FromContext(executedCmd.Context()); app != nil {
			_ = app.Err(err)
			return apiErr.ExitCode()
		}
	}

	// Fallback: output error directly (app not available, e.g., during setup)
	pf := cmd.PersistentFlags()
	format := output.FormatAuto
	quiet, _ := pf.GetBool("quiet")
	styled, _ := pf.GetBool("styled")
	md, _ := pf.GetBool("md")
	jsonFlag, _ := pf.GetBool("json")

	switch {
	case quiet:
		format = output.FormatQuiet
	case jsonFlag:
		format = output.FormatJSON
	case styled:
		format = output.FormatStyled
	case md:
		format = output.FormatMarkdown
	}

	writer := output.New(output.Options{
		Format: format,
		Writer: stdout,
	})
	_ = writer.Err(err)

	return apiErr.ExitCode()
}

var (
	shorthandFlagRe = regexp.MustCompile(`unknown shorthand flag: '.' in (-\w)`)
	requiredFlagRe  = regexp.MustCompile(`required flag\(s\) "([\w-]+)"`)
	argCountRe      = regexp.MustCompile(`accepts (\d+) arg\(s\), received (\d+)`)
)

// transformCobraError rewrites cobra's parse errors as usage errors with
// friendlier messages.
func transformCobraError(err error) error {
	msg := err.Error()

	// "flag needs an argument: --FLAG" → "--FLAG requires a value"
	if strings.HasPrefix(msg, "flag needs an argument: ") {
		flag := strings.TrimPrefix(msg, "flag needs an argument: ")
		return output.ErrUsage(flag + " requires a value")
	}

	// "unknown flag: --FLAG" → "Unknown option: --FLAG"
	if strings.HasPrefix(msg, "unknown flag: ") {
		flag := strings.TrimPrefix(msg, "unknown flag: ")
		return output.ErrUsage("Unknown option: " + flag)
	}

	// "unknown shorthand flag: 'X' in -X" → "Unknown option: -X"
	if strings.HasPrefix(msg, "unknown shorthand flag: ") {
		if matches := shorthandFlagRe.FindStringSubmatch(msg); len(matches) > 1 {
			return output.ErrUsage("Unknown option: " + matches[1])
		}
	}

	if strings.HasPrefix(msg, "unknown command ") {
		return output.ErrUsageHint(msg, "Run: savagetech commands")
	}

	if strings.Contains(msg, "invalid argument") {
		return output.ErrUsage(msg)
	}

	// "accepts 2 arg(s), received 1" → "Expected 2 arguments, got 1"
	if matches := argCountRe.FindStringSubmatch(msg); len(matches) > 2 {
		return output.ErrUsage("Expected " + matches[1] + " arguments, got " + matches[2])
	}

	// "required flag(s) "file" not set" → "--file required"
	if matches := requiredFlagRe.FindStringSubmatch(msg); len(matches) > 1 {
		return output.ErrUsage("--" + matches[1] + " required")
	}

	return err
}
