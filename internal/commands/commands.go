package commands

import (
	"github.com/spf13/cobra"

	"github.com/lucifergaming/savagetech/internal/appctx"
	"github.com/lucifergaming/savagetech/internal/output"
)

// CommandInfo describes a CLI command.
type CommandInfo struct {
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Actions     []string `json:"actions,omitempty"`
}

// CommandCategory groups commands by category.
type CommandCategory struct {
	Name     string        `json:"name"`
	Commands []CommandInfo `json:"commands"`
}

// commandCategories returns all command categories for the catalog.
func commandCategories() []CommandCategory {
	return []CommandCategory{
		{
			Name: "Widget",
			Commands: []CommandInfo{
				{Name: "token", Category: "widget", Description: "Fetch a widget access token"},
				{Name: "init-code", Category: "widget", Description: "Generate the widget init snippet"},
				{Name: "watch", Category: "widget", Description: "Keep a player's widget token fresh"},
				{Name: "serve", Category: "widget", Description: "Serve the widget endpoints over HTTP"},
			},
		},
		{
			Name: "Events",
			Commands: []CommandInfo{
				{Name: "deposit", Category: "events", Description: "Report a completed deposit"},
				{Name: "bet", Category: "events", Description: "Report a placed bet"},
				{Name: "currencies", Category: "events", Description: "Manage vendor currency definitions", Actions: []string{"set", "show"}},
			},
		},
		{
			Name: "Auth & Config",
			Commands: []CommandInfo{
				{Name: "auth", Category: "auth", Description: "Manage vendor credentials", Actions: []string{"login", "logout", "status"}},
				{Name: "config", Category: "auth", Description: "Manage configuration", Actions: []string{"show", "set"}},
				{Name: "circuit", Category: "auth", Description: "Inspect the vendor circuit breaker", Actions: []string{"status", "reset"}},
			},
		},
		{
			Name: "Additional Commands",
			Commands: []CommandInfo{
				{Name: "commands", Category: "additional", Description: "List all commands"},
				{Name: "completion", Category: "additional", Description: "Generate shell completions", Actions: []string{"bash", "zsh", "fish", "powershell"}},
				{Name: "help", Category: "additional", Description: "Show help"},
				{Name: "version", Category: "additional", Description: "Show version"},
			},
		},
	}
}

// CatalogCommandNames returns all command names from the catalog.
// Used by tests to verify catalog matches registered commands.
func CatalogCommandNames() []string {
	categories := commandCategories()
	total := 0
	for _, cat := range categories {
		total += len(cat.Commands)
	}
	names := make([]string, 0, total)
	for _, cat := range categories {
		for _, cmd := range cat.Commands {
			names = append(names, cmd.Name)
		}
	}
	return names
}

// NewCommandsCmd creates the commands listing command.
func NewCommandsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "commands",
		Aliases: []string{"cmds"},
		Short:   "List all available commands",
		Long:    "List all available savagetech commands organized by category.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())

			return app.OK(commandCategories(),
				output.WithSummary("All available savagetech commands"),
				output.WithBreadcrumbs(
					output.Breadcrumb{
						Action:      "help",
						Cmd:         "savagetech --help",
						Description: "View help",
					},
				),
			)
		},
	}
}

// All returns every top-level command in registration order.
func All() []*cobra.Command {
	return []*cobra.Command{
		NewTokenCmd(),
		NewInitCodeCmd(),
		NewWatchCmd(),
		NewServeCmd(),
		NewDepositCmd(),
		NewBetCmd(),
		NewCurrenciesCmd(),
		NewAuthCmd(),
		NewConfigCmd(),
		NewCircuitCmd(),
		NewCommandsCmd(),
		NewVersionCmd(),
	}
}
