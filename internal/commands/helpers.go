package commands

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lucifergaming/savagetech/internal/appctx"
	"github.com/lucifergaming/savagetech/internal/output"
	"github.com/lucifergaming/savagetech/internal/sdk"
)

// requireApp returns the app stored on the command context.
func requireApp(cmd *cobra.Command) (*appctx.App, error) {
	app := appctx.FromContext(cmd.Context())
	if app == nil {
		return nil, fmt.Errorf("app not initialized")
	}
	return app, nil
}

// parseAmount parses a positional numeric argument.
func parseAmount(name, raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, output.ErrUsage(fmt.Sprintf("%s must be a number, got %q", name, raw))
	}
	return v, nil
}

// userArg trims a user id argument and rejects empty values.
func userArg(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", output.ErrUsage(sdk.ErrMissingUserID.Error())
	}
	return id, nil
}

// responseData decodes a vendor response body for display. Non-JSON or empty
// bodies are shown as-is.
func responseData(resp *sdk.Response) any {
	if resp == nil || len(resp.Data) == 0 {
		return map[string]any{}
	}
	var v any
	if err := json.Unmarshal(resp.Data, &v); err != nil {
		return string(resp.Data)
	}
	return v
}
