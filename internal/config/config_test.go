package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points every config location at a fresh temp tree and clears
// the SAVAGETECH_* environment.
func isolate(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(root, "config"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(root, "cache"))
	for _, key := range []string{
		"SAVAGETECH_API_URL", "SAVAGETECH_VENDOR_ID", "SAVAGETECH_VENDOR_SECRET",
		"SAVAGETECH_DEFAULT_CURRENCY", "SAVAGETECH_HTTP_TIMEOUT", "SAVAGETECH_HTTP_CONNECT_TIMEOUT",
		"SAVAGETECH_WIDGET_ENABLED", "SAVAGETECH_TOKEN_REFRESH_BEFORE_MINUTES",
		"SAVAGETECH_LISTEN_ADDR", "SAVAGETECH_CACHE_DIR",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	work := filepath.Join(root, "work")
	require.NoError(t, os.MkdirAll(work, 0755))
	t.Chdir(work)
	return root
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "https://func.rc.savagebet.gg", cfg.APIURL)
	assert.Equal(t, "usd", cfg.DefaultCurrency)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout)
	assert.True(t, cfg.WidgetEnabled)
	assert.Equal(t, 10.0, cfg.RefreshBefore)
	assert.Equal(t, 10*time.Minute, cfg.RefreshMargin())
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "/api/savage-tech", cfg.RoutePrefix)
	assert.Equal(t, "auto", cfg.Format)
	assert.NotNil(t, cfg.Sources)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	writeJSON(t, path, map[string]any{
		"api_url":                      "https://func.savagebet.gg",
		"default_currency":             "EUR",
		"http_timeout":                 45,
		"http_connect_timeout":         "5s",
		"widget_enabled":               false,
		"token_refresh_before_minutes": 15,
		"listen_addr":                  "127.0.0.1:9000",
		"route_prefix":                 "widgets/savage/",
		"format":                       "json",
	})

	cfg := Default()
	loadFromFile(cfg, path, SourceGlobal)

	assert.Equal(t, "https://func.savagebet.gg", cfg.APIURL)
	assert.Equal(t, "eur", cfg.DefaultCurrency)
	assert.Equal(t, 45*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 5*time.Second, cfg.ConnectTimeout)
	assert.False(t, cfg.WidgetEnabled)
	assert.Equal(t, 15.0, cfg.RefreshBefore)
	assert.Equal(t, "127.0.0.1:9000", cfg.ListenAddr)
	assert.Equal(t, "/widgets/savage", cfg.RoutePrefix)
	assert.Equal(t, "json", cfg.Format)

	assert.Equal(t, "global", cfg.Sources["api_url"])
	assert.Equal(t, "global", cfg.Sources["token_refresh_before_minutes"])
}

func TestLoadFromFileSkipsInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	cfg := Default()
	loadFromFile(cfg, path, SourceGlobal)

	assert.Equal(t, DefaultAPIURL, cfg.APIURL)
	assert.Empty(t, cfg.Sources)
}

func TestLoadFromFileSkipsMissingFile(t *testing.T) {
	cfg := Default()
	loadFromFile(cfg, "/nonexistent/path/config.json", SourceGlobal)
	assert.Equal(t, DefaultAPIURL, cfg.APIURL)
}

func TestLocalConfigCannotSetAPIURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	writeJSON(t, path, map[string]any{
		"api_url":          "https://evil.example.com",
		"default_currency": "cad",
	})

	cfg := Default()
	loadFromFile(cfg, path, SourceLocal)

	assert.Equal(t, DefaultAPIURL, cfg.APIURL)
	assert.Equal(t, "cad", cfg.DefaultCurrency)
	assert.Equal(t, "local", cfg.Sources["default_currency"])
}

func TestLoadFromEnv(t *testing.T) {
	isolate(t)
	t.Setenv("SAVAGETECH_API_URL", "https://env.savagebet.gg")
	t.Setenv("SAVAGETECH_VENDOR_ID", "vendor-env")
	t.Setenv("SAVAGETECH_VENDOR_SECRET", "secret-env")
	t.Setenv("SAVAGETECH_DEFAULT_CURRENCY", "GBP")
	t.Setenv("SAVAGETECH_HTTP_TIMEOUT", "12")
	t.Setenv("SAVAGETECH_HTTP_CONNECT_TIMEOUT", "2s")
	t.Setenv("SAVAGETECH_WIDGET_ENABLED", "false")
	t.Setenv("SAVAGETECH_TOKEN_REFRESH_BEFORE_MINUTES", "5")
	t.Setenv("SAVAGETECH_LISTEN_ADDR", ":9999")

	cfg := Default()
	LoadFromEnv(cfg)

	assert.Equal(t, "https://env.savagebet.gg", cfg.APIURL)
	assert.Equal(t, "vendor-env", cfg.VendorID)
	assert.Equal(t, "secret-env", cfg.VendorSecret)
	assert.Equal(t, "gbp", cfg.DefaultCurrency)
	assert.Equal(t, 12*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 2*time.Second, cfg.ConnectTimeout)
	assert.False(t, cfg.WidgetEnabled)
	assert.Equal(t, 5.0, cfg.RefreshBefore)
	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, "env", cfg.Sources["vendor_secret"])
}

func TestLoadFromEnvIgnoresGarbage(t *testing.T) {
	isolate(t)
	t.Setenv("SAVAGETECH_HTTP_TIMEOUT", "soon")
	t.Setenv("SAVAGETECH_WIDGET_ENABLED", "maybe")
	t.Setenv("SAVAGETECH_TOKEN_REFRESH_BEFORE_MINUTES", "ten")

	cfg := Default()
	LoadFromEnv(cfg)

	assert.Equal(t, DefaultHTTPTimeout, cfg.HTTPTimeout)
	assert.True(t, cfg.WidgetEnabled)
	assert.Equal(t, DefaultRefreshBefore, cfg.RefreshBefore)
	assert.Empty(t, cfg.Sources)
}

func captureWarnings(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := warnings
	warnings = &buf
	t.Cleanup(func() { warnings = prev })
	return &buf
}

func TestRefreshBeforeAcceptsFractionalMinutes(t *testing.T) {
	isolate(t)
	warn := captureWarnings(t)

	path := filepath.Join(t.TempDir(), "config.json")
	writeJSON(t, path, map[string]any{"token_refresh_before_minutes": 2.5})
	cfg := Default()
	loadFromFile(cfg, path, SourceGlobal)
	assert.Equal(t, 2.5, cfg.RefreshBefore)
	assert.Equal(t, 150*time.Second, cfg.RefreshMargin())

	t.Setenv("SAVAGETECH_TOKEN_REFRESH_BEFORE_MINUTES", "0.5")
	LoadFromEnv(cfg)
	assert.Equal(t, 0.5, cfg.RefreshBefore)
	assert.Equal(t, 30*time.Second, cfg.RefreshMargin())
	assert.Empty(t, warn.String())
}

func TestRefreshBeforeRejectsNegativeWithWarning(t *testing.T) {
	isolate(t)
	warn := captureWarnings(t)

	path := filepath.Join(t.TempDir(), "config.json")
	writeJSON(t, path, map[string]any{"token_refresh_before_minutes": -3})
	cfg := Default()
	loadFromFile(cfg, path, SourceGlobal)
	assert.Equal(t, DefaultRefreshBefore, cfg.RefreshBefore)
	assert.Contains(t, warn.String(), "ignoring token_refresh_before_minutes -3")

	warn.Reset()
	t.Setenv("SAVAGETECH_TOKEN_REFRESH_BEFORE_MINUTES", "soon")
	LoadFromEnv(cfg)
	assert.Equal(t, DefaultRefreshBefore, cfg.RefreshBefore)
	assert.Contains(t, warn.String(), `SAVAGETECH_TOKEN_REFRESH_BEFORE_MINUTES="soon"`)
	assert.NotContains(t, cfg.Sources, "token_refresh_before_minutes")

	_, err := Set(path, "token_refresh_before_minutes", "-1")
	var valErr *InvalidValueError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "non-negative number", valErr.Kind)
}

func TestApplyOverrides(t *testing.T) {
	cfg := Default()
	ApplyOverrides(cfg, FlagOverrides{
		APIURL:   "http://localhost:3000",
		Currency: "JPY",
		Format:   "json",
		Listen:   ":7000",
	})

	assert.Equal(t, "http://localhost:3000", cfg.APIURL)
	assert.Equal(t, "jpy", cfg.DefaultCurrency)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, ":7000", cfg.ListenAddr)
	assert.Equal(t, "flag", cfg.Sources["api_url"])
}

func TestApplyOverridesSkipsEmpty(t *testing.T) {
	cfg := Default()
	ApplyOverrides(cfg, FlagOverrides{})
	assert.Equal(t, DefaultAPIURL, cfg.APIURL)
	assert.Empty(t, cfg.Sources)
}

func TestLoadLayering(t *testing.T) {
	root := isolate(t)

	writeJSON(t, filepath.Join(root, "config", "savagetech", "config.json"), map[string]any{
		"api_url":                      "https://global.savagebet.gg",
		"default_currency":             "eur",
		"token_refresh_before_minutes": 20,
	})
	writeJSON(t, filepath.Join(root, "work", ".savagetech", "config.json"), map[string]any{
		"default_currency": "cad",
	})
	t.Setenv("SAVAGETECH_TOKEN_REFRESH_BEFORE_MINUTES", "3")

	cfg, err := Load(FlagOverrides{Format: "json"})
	require.NoError(t, err)

	assert.Equal(t, "https://global.savagebet.gg", cfg.APIURL)
	assert.Equal(t, "global", cfg.Sources["api_url"])
	assert.Equal(t, "cad", cfg.DefaultCurrency)
	assert.Equal(t, "local", cfg.Sources["default_currency"])
	assert.Equal(t, 3.0, cfg.RefreshBefore)
	assert.Equal(t, "env", cfg.Sources["token_refresh_before_minutes"])
	assert.Equal(t, "json", cfg.Format)
}

func TestLoadReadsDotEnv(t *testing.T) {
	root := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "work", ".env"),
		[]byte("SAVAGETECH_VENDOR_ID=from-dotenv\nSAVAGETECH_DEFAULT_CURRENCY=aud\n"), 0600))
	t.Setenv("SAVAGETECH_DEFAULT_CURRENCY", "nzd")

	cfg, err := Load(FlagOverrides{})
	require.NoError(t, err)

	assert.Equal(t, "from-dotenv", cfg.VendorID)
	// Real environment wins over .env.
	assert.Equal(t, "nzd", cfg.DefaultCurrency)
}

func TestSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "savagetech", "config.json")

	v, err := Set(path, "token_refresh_before_minutes", "15")
	require.NoError(t, err)
	assert.Equal(t, 15.0, v)

	v, err = Set(path, "widget_enabled", "no")
	require.NoError(t, err)
	assert.Equal(t, false, v)

	v, err = Set(path, "http_timeout", "45")
	require.NoError(t, err)
	assert.Equal(t, "45s", v)

	v, err = Set(path, "api_url", "https://func.savagebet.gg/")
	require.NoError(t, err)
	assert.Equal(t, "https://func.savagebet.gg", v)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	cfg := Default()
	loadFromFile(cfg, path, SourceGlobal)
	assert.Equal(t, 15.0, cfg.RefreshBefore)
	assert.False(t, cfg.WidgetEnabled)
	assert.Equal(t, 45*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "https://func.savagebet.gg", cfg.APIURL)
}

func TestSetRejectsBadInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	_, err := Set(path, "vendor_secret", "x")
	var keyErr *InvalidKeyError
	require.ErrorAs(t, err, &keyErr)
	assert.Contains(t, err.Error(), "token_refresh_before_minutes")

	_, err = Set(path, "widget_enabled", "sometimes")
	var valErr *InvalidValueError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "boolean", valErr.Kind)

	_, err = Set(path, "http_timeout", "-3s")
	require.ErrorAs(t, err, &valErr)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestGlobalConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	assert.Equal(t, "/custom/config/savagetech", GlobalConfigDir())
	assert.Equal(t, "/custom/config/savagetech/config.json", GlobalConfigPath())
}

func TestNormalizeAPIURL(t *testing.T) {
	assert.Equal(t, "https://func.savagebet.gg", NormalizeAPIURL("https://func.savagebet.gg/"))
	assert.Equal(t, "https://func.savagebet.gg", NormalizeAPIURL(" https://func.savagebet.gg "))
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"30", 30 * time.Second, true},
		{"1.5", 1500 * time.Millisecond, true},
		{"1m30s", 90 * time.Second, true},
		{"0", 0, false},
		{"-1s", 0, false},
		{"", 0, false},
		{"later", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseDuration(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
