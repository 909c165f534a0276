package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/lucifergaming/savagetech/internal/output"
	"github.com/lucifergaming/savagetech/internal/sdk"
)

// NewCurrenciesCmd creates the currencies command group.
func NewCurrenciesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "currencies",
		Short: "Manage vendor currency definitions",
		Long: `Manage the currency table the vendor uses for conversions.

Definitions are read from a JSON or YAML file keyed by currency code:

  usd:
    symbol: "$"
    fullName: US Dollar
    shortName: USD
    conversionToUSD: 1
    roundedTo: 2

A top-level "currencies" key wrapping the table is also accepted.`,
	}

	cmd.AddCommand(
		newCurrenciesSetCmd(),
		newCurrenciesShowCmd(),
	)

	return cmd
}

func newCurrenciesSetCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Upload currency definitions",
		Long:  "Replace the vendor's currency definitions with the ones in --file.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}
			currencies, err := loadCurrencies(file)
			if err != nil {
				return err
			}
			client, err := app.Client()
			if err != nil {
				return err
			}

			resp, err := client.SetCurrencies(cmd.Context(), currencies)
			if err != nil {
				return err
			}

			return app.OK(responseData(resp),
				output.WithSummary(fmt.Sprintf("Uploaded %d currencies", len(currencies))))
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Currency definitions (.json, .yaml or .yml)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func newCurrenciesShowCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Validate and display a currency file",
		Long:  "Parse --file and display the definitions without contacting the vendor.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}
			currencies, err := loadCurrencies(file)
			if err != nil {
				return err
			}

			return app.OK(currencyRows(currencies),
				output.WithSummary(fmt.Sprintf("%d currencies in %s", len(currencies), filepath.Base(file))))
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Currency definitions (.json, .yaml or .yml)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

type currencyFile struct {
	Currencies map[string]sdk.Currency `json:"currencies" yaml:"currencies"`
}

// loadCurrencies reads a currency table from path. The format follows the
// file extension; anything other than .yaml/.yml is read as JSON.
func loadCurrencies(path string) (map[string]sdk.Currency, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is user-supplied by design
	if err != nil {
		return nil, output.ErrUsage(fmt.Sprintf("cannot read currency file: %v", err))
	}

	isYAML := false
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		isYAML = true
	}

	decode := func(v any) error {
		if isYAML {
			return yaml.Unmarshal(data, v)
		}
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		return dec.Decode(v)
	}

	var wrapped currencyFile
	if err := decode(&wrapped); err == nil && len(wrapped.Currencies) > 0 {
		return normalizeCurrencies(wrapped.Currencies)
	}

	var flat map[string]sdk.Currency
	if err := decode(&flat); err != nil {
		return nil, output.ErrUsage(fmt.Sprintf("invalid currency file %s: %v", filepath.Base(path), err))
	}
	return normalizeCurrencies(flat)
}

func normalizeCurrencies(in map[string]sdk.Currency) (map[string]sdk.Currency, error) {
	if len(in) == 0 {
		return nil, output.ErrUsage("currency file defines no currencies")
	}
	out := make(map[string]sdk.Currency, len(in))
	for code, c := range in {
		code = strings.ToLower(strings.TrimSpace(code))
		if code == "" {
			return nil, output.ErrUsage("currency code must not be empty")
		}
		if c.ConversionToUSD <= 0 {
			return nil, output.ErrUsage(fmt.Sprintf("%s: conversionToUSD must be positive", code))
		}
		if c.RoundedTo < 0 {
			return nil, output.ErrUsage(fmt.Sprintf("%s: roundedTo must not be negative", code))
		}
		out[code] = c
	}
	return out, nil
}

// currencyRows flattens the table for display, sorted by code.
func currencyRows(currencies map[string]sdk.Currency) []map[string]any {
	codes := make([]string, 0, len(currencies))
	for code := range currencies {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	rows := make([]map[string]any, 0, len(codes))
	for _, code := range codes {
		c := currencies[code]
		rows = append(rows, map[string]any{
			"code":            code,
			"symbol":          c.Symbol,
			"fullName":        c.FullName,
			"shortName":       c.ShortName,
			"conversionToUSD": c.ConversionToUSD,
			"roundedTo":       c.RoundedTo,
		})
	}
	return rows
}
