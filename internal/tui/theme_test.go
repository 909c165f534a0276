package tui

import (
	"os"
	"path/filepath"
	"testing"

	"charm.land/lipgloss/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseColors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  map[string]string
	}{
		{
			name: "valid colors",
			input: `accent = "#89b4fa"
foreground = "#cdd6f4"`,
			want: map[string]string{"accent": "#89b4fa", "foreground": "#cdd6f4"},
		},
		{
			name: "comments, blanks and single quotes",
			input: `# palette
accent = '#89b4fa'

color1 = "#f38ba8" # red
`,
			want: map[string]string{"accent": "#89b4fa", "color1": "#f38ba8"},
		},
		{
			name: "malformed and non-hex lines skipped",
			input: `no equals here
accent = "blue"
color2 = "#12345"
color3 = "#abc"`,
			want: map[string]string{"color3": "#abc"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseColors([]byte(tt.input)))
		})
	}
}

func TestIsValidHexColor(t *testing.T) {
	assert.True(t, isValidHexColor("#fff"))
	assert.True(t, isValidHexColor("#A1b2C3"))
	assert.False(t, isValidHexColor("fff"))
	assert.False(t, isValidHexColor("#ggg"))
	assert.False(t, isValidHexColor("#1234"))
}

func TestLoadThemeFromFileFallsBackPerKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "colors.toml")
	require.NoError(t, os.WriteFile(path, []byte(`accent = "#112233"
color1 = "#aa0000"`), 0o600))

	theme, err := LoadThemeFromFile(path)
	require.NoError(t, err)

	def := DefaultTheme()
	assert.Equal(t, "#112233", theme.Primary)
	assert.Equal(t, "#aa0000", theme.Error)
	assert.Equal(t, def.Success, theme.Success)
	assert.Equal(t, def.Muted, theme.Muted)
}

func TestLoadThemeFromFileMissing(t *testing.T) {
	_, err := LoadThemeFromFile(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestResolveThemeNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.Equal(t, NoColorTheme(), ResolveTheme())
}

func TestResolveThemeFromEnvPath(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	os.Unsetenv("NO_COLOR")
	path := filepath.Join(t.TempDir(), "colors.toml")
	require.NoError(t, os.WriteFile(path, []byte(`accent = "#010203"`), 0o600))
	t.Setenv("SAVAGETECH_THEME", path)

	assert.Equal(t, "#010203", ResolveTheme().Primary)
}

func TestResolveThemeDefault(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	os.Unsetenv("NO_COLOR")
	t.Setenv("SAVAGETECH_THEME", "")
	t.Setenv("HOME", t.TempDir())

	assert.Equal(t, DefaultTheme(), ResolveTheme())
}

func TestColor(t *testing.T) {
	assert.Equal(t, lipgloss.NoColor{}, Color(""))
	assert.Equal(t, lipgloss.Color("#ffffff"), Color("#ffffff"))
}
