package commands

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lucifergaming/savagetech/internal/appctx"
	"github.com/lucifergaming/savagetech/internal/config"
	"github.com/lucifergaming/savagetech/internal/output"
)

// NewConfigCmd creates the config command for managing configuration.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage savagetech configuration.

Configuration is loaded from multiple sources with the following precedence:
  flags > env > .env > local > global > system > defaults

Config locations:
  - System: /etc/savagetech/config.json
  - Global: ~/.config/savagetech/config.json
  - Local:  .savagetech/config.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd, false)
		},
	}

	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigSetCmd(),
	)

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var asYAML bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long:  "Display the current effective configuration with source information.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd, asYAML)
		},
	}

	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Print effective values as YAML")

	return cmd
}

// configEntry is one resolved key with the layer it came from.
type configEntry struct {
	Value  string `json:"value"`
	Source string `json:"source"`
}

func effectiveConfig(cfg *config.Config) map[string]configEntry {
	values := map[string]string{
		"api_url":                      cfg.APIURL,
		"default_currency":             cfg.DefaultCurrency,
		"http_timeout":                 cfg.HTTPTimeout.String(),
		"http_connect_timeout":         cfg.ConnectTimeout.String(),
		"widget_enabled":               strconv.FormatBool(cfg.WidgetEnabled),
		"token_refresh_before_minutes": strconv.FormatFloat(cfg.RefreshBefore, 'f', -1, 64),
		"listen_addr":                  cfg.ListenAddr,
		"route_prefix":                 cfg.RoutePrefix,
		"cache_dir":                    cfg.CacheDir,
		"format":                       cfg.Format,
	}
	if cfg.VendorID != "" {
		values["vendor_id"] = cfg.VendorID
	}

	entries := make(map[string]configEntry, len(values))
	for key, value := range values {
		source := cfg.Sources[key]
		if source == "" {
			source = string(config.SourceDefault)
		}
		entries[key] = configEntry{Value: value, Source: source}
	}
	return entries
}

func runConfigShow(cmd *cobra.Command, asYAML bool) error {
	app := appctx.FromContext(cmd.Context())
	entries := effectiveConfig(app.Config)

	if asYAML {
		flat := make(map[string]string, len(entries))
		for k, e := range entries {
			flat[k] = e.Value
		}
		data, err := yaml.Marshal(flat)
		if err != nil {
			return fmt.Errorf("encoding config: %w", err)
		}
		_, err = app.Stdout.Write(data)
		return err
	}

	return app.OK(entries,
		output.WithSummary("Effective configuration"),
		output.WithBreadcrumbs(
			output.Breadcrumb{
				Action:      "set",
				Cmd:         "savagetech config set <key> <value>",
				Description: "Set config value",
			},
		),
	)
}

func newConfigSetCmd() *cobra.Command {
	var local bool

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration value in the global config file (or the local one with --local).

Durations accept Go syntax (30s, 2m) or plain seconds.`,
		Args: cobra.ExactArgs(2),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return config.SettableKeys(), cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())

			key := args[0]
			value := args[1]

			scope := "global"
			path := config.GlobalConfigPath()
			if local {
				// Local config may not redirect credentials to another host.
				if key == "api_url" {
					return output.ErrUsageHint("api_url cannot be set in local config", "Drop --local to set it globally")
				}
				scope = "local"
				path = config.LocalConfigPath()
			}

			stored, err := config.Set(path, key, value)
			if err != nil {
				var keyErr *config.InvalidKeyError
				var valErr *config.InvalidValueError
				if errors.As(err, &keyErr) || errors.As(err, &valErr) {
					return output.ErrUsage(err.Error())
				}
				return err
			}

			return app.OK(map[string]any{
				"key":   key,
				"value": stored,
				"scope": scope,
				"path":  path,
			}, output.WithSummary(fmt.Sprintf("Set %s = %v (%s)", key, stored, scope)))
		},
	}

	cmd.Flags().BoolVar(&local, "local", false, "Write to .savagetech/config.json in the current directory")

	return cmd
}
