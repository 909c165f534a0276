// Package tui provides terminal prompts and the color theme shared by styled output.
package tui

import (
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"charm.land/lipgloss/v2"
)

// Theme is the color palette for styled output. Values are hex strings;
// an empty value means "no color".
type Theme struct {
	Primary    string
	Success    string
	Warning    string
	Error      string
	Muted      string
	Foreground string
}

// DefaultTheme returns the built-in dark-terminal palette.
func DefaultTheme() Theme {
	return Theme{
		Primary:    "#f5a623",
		Success:    "#81c995",
		Warning:    "#fdd663",
		Error:      "#f28b82",
		Muted:      "#6e7681",
		Foreground: "#e8eaed",
	}
}

// NoColorTheme returns a theme with every color empty.
func NoColorTheme() Theme {
	return Theme{}
}

// ResolveTheme loads a theme with the following precedence:
//  1. NO_COLOR set → NoColorTheme
//  2. SAVAGETECH_THEME → path to a colors.toml file
//  3. ~/.config/savagetech/theme/colors.toml
//  4. DefaultTheme
func ResolveTheme() Theme {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return NoColorTheme()
	}

	if path := os.Getenv("SAVAGETECH_THEME"); path != "" {
		if theme, err := LoadThemeFromFile(path); err == nil {
			return theme
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		path := filepath.Join(home, ".config", "savagetech", "theme", "colors.toml")
		if theme, err := LoadThemeFromFile(path); err == nil {
			return theme
		}
	}

	return DefaultTheme()
}

// Color converts a theme value to a lipgloss color.
func Color(hex string) color.Color {
	if hex == "" {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(hex)
}

// LoadThemeFromFile parses a colors.toml file. Missing keys fall back to the
// default palette.
//
//	accent     → Primary
//	foreground → Foreground
//	color1     → Error
//	color2     → Success
//	color3     → Warning
//	color8     → Muted
func LoadThemeFromFile(path string) (Theme, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: user-chosen theme path
	if err != nil {
		return Theme{}, err
	}

	colors := parseColors(data)
	get := func(fallback string, keys ...string) string {
		for _, k := range keys {
			if v, ok := colors[k]; ok {
				return v
			}
		}
		return fallback
	}

	def := DefaultTheme()
	return Theme{
		Primary:    get(def.Primary, "accent", "color4"),
		Success:    get(def.Success, "color2"),
		Warning:    get(def.Warning, "color3"),
		Error:      get(def.Error, "color1"),
		Muted:      get(def.Muted, "color8", "color0"),
		Foreground: get(def.Foreground, "foreground"),
	}, nil
}

// parseColors reads key = "#hex" lines. Anything that is not a hex color is ignored.
func parseColors(data []byte) map[string]string {
	result := make(map[string]string)

	for line := range strings.SplitSeq(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if i := strings.Index(value, " #"); i > 0 {
			value = strings.TrimSpace(value[:i])
		}
		value = strings.Trim(value, `"'`)

		if isValidHexColor(value) {
			result[strings.TrimSpace(key)] = value
		}
	}

	return result
}

// isValidHexColor checks for #RGB or #RRGGBB.
func isValidHexColor(s string) bool {
	hex, ok := strings.CutPrefix(s, "#")
	if !ok || (len(hex) != 3 && len(hex) != 6) {
		return false
	}
	for _, c := range hex {
		isDigit := c >= '0' && c <= '9'
		isLower := c >= 'a' && c <= 'f'
		isUpper := c >= 'A' && c <= 'F'
		if !isDigit && !isLower && !isUpper {
			return false
		}
	}
	return true
}
