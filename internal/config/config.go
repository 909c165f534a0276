// Package config provides layered configuration loading.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// warnings receives notices about config values that were skipped.
var warnings io.Writer = os.Stderr

// Defaults.
const (
	DefaultAPIURL         = "https://func.rc.savagebet.gg"
	DefaultCurrency       = "usd"
	DefaultHTTPTimeout    = 30 * time.Second
	DefaultConnectTimeout = 10 * time.Second
	DefaultRefreshBefore  = 10.0 // minutes
	DefaultListenAddr     = ":8080"
	DefaultRoutePrefix    = "/api/savage-tech"
)

// Config holds the resolved configuration.
type Config struct {
	// Vendor API settings
	APIURL          string        `json:"api_url"`
	DefaultCurrency string        `json:"default_currency"`
	HTTPTimeout     time.Duration `json:"-"`
	ConnectTimeout  time.Duration `json:"-"`

	// Vendor credentials from the environment. Stored credentials live in
	// the auth package and are never written to config files.
	VendorID     string `json:"-"`
	VendorSecret string `json:"-"`

	// Widget settings
	WidgetEnabled bool `json:"widget_enabled"`
	RefreshBefore float64 `json:"token_refresh_before_minutes"`

	// Server settings
	ListenAddr  string `json:"listen_addr"`
	RoutePrefix string `json:"route_prefix"`

	CacheDir string `json:"cache_dir"`

	// Output settings
	Format string `json:"format"`

	// Sources tracks where each value came from (for debugging).
	Sources map[string]string `json:"-"`
}

// RefreshMargin returns the refresh lead time as a duration.
func (c *Config) RefreshMargin() time.Duration {
	return time.Duration(c.RefreshBefore * float64(time.Minute))
}

// Source indicates where a config value came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceSystem  Source = "system"
	SourceGlobal  Source = "global"
	SourceLocal   Source = "local"
	SourceEnv     Source = "env"
	SourceFlag    Source = "flag"
)

// FlagOverrides holds command-line flag values.
type FlagOverrides struct {
	APIURL   string
	Currency string
	CacheDir string
	Format   string
	Listen   string
}

// Default returns the default configuration.
func Default() *Config {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home, _ := os.UserHomeDir()
		cacheDir = filepath.Join(home, ".cache")
	}

	return &Config{
		APIURL:          DefaultAPIURL,
		DefaultCurrency: DefaultCurrency,
		HTTPTimeout:     DefaultHTTPTimeout,
		ConnectTimeout:  DefaultConnectTimeout,
		WidgetEnabled:   true,
		RefreshBefore:   DefaultRefreshBefore,
		ListenAddr:      DefaultListenAddr,
		RoutePrefix:     DefaultRoutePrefix,
		CacheDir:        filepath.Join(cacheDir, "savagetech"),
		Format:          "auto",
		Sources:         make(map[string]string),
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence: flags > env > .env > local > global > system > defaults
func Load(overrides FlagOverrides) (*Config, error) {
	cfg := Default()

	loadFromFile(cfg, systemConfigPath(), SourceSystem)
	loadFromFile(cfg, GlobalConfigPath(), SourceGlobal)
	loadFromFile(cfg, localConfigPath(), SourceLocal)

	// .env never overrides variables already present in the process.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(warnings, "warning: skipping malformed .env: %v\n", err)
	}

	LoadFromEnv(cfg)
	ApplyOverrides(cfg, overrides)

	return cfg, nil
}

func loadFromFile(cfg *Config, path string, source Source) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: Path is from trusted config locations
	if err != nil {
		return // File doesn't exist, skip
	}

	var fileCfg map[string]any
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		fmt.Fprintf(warnings, "warning: skipping malformed config at %s: %v\n", path, err)
		return
	}

	// api_url decides where vendor secrets are sent. A config file dropped
	// into the working directory must not redirect them.
	if v, ok := fileCfg["api_url"].(string); ok && v != "" {
		if source == SourceLocal {
			fmt.Fprintf(warnings, "warning: ignoring api_url %q from local config at %s (authority keys are not trusted from local config)\n", v, path)
		} else {
			cfg.APIURL = v
			cfg.Sources["api_url"] = string(source)
		}
	}
	if v, ok := fileCfg["default_currency"].(string); ok && v != "" {
		cfg.DefaultCurrency = strings.ToLower(v)
		cfg.Sources["default_currency"] = string(source)
	}
	if v, ok := durationValue(fileCfg["http_timeout"]); ok {
		cfg.HTTPTimeout = v
		cfg.Sources["http_timeout"] = string(source)
	}
	if v, ok := durationValue(fileCfg["http_connect_timeout"]); ok {
		cfg.ConnectTimeout = v
		cfg.Sources["http_connect_timeout"] = string(source)
	}
	if v, ok := fileCfg["widget_enabled"].(bool); ok {
		cfg.WidgetEnabled = v
		cfg.Sources["widget_enabled"] = string(source)
	}
	if raw, present := fileCfg["token_refresh_before_minutes"]; present {
		if v, ok := raw.(float64); ok && v >= 0 {
			cfg.RefreshBefore = v
			cfg.Sources["token_refresh_before_minutes"] = string(source)
		} else {
			fmt.Fprintf(warnings, "warning: ignoring token_refresh_before_minutes %v in %s (want a non-negative number)\n", raw, path)
		}
	}
	if v, ok := fileCfg["listen_addr"].(string); ok && v != "" {
		cfg.ListenAddr = v
		cfg.Sources["listen_addr"] = string(source)
	}
	if v, ok := fileCfg["route_prefix"].(string); ok && v != "" {
		cfg.RoutePrefix = normalizePrefix(v)
		cfg.Sources["route_prefix"] = string(source)
	}
	if v, ok := fileCfg["cache_dir"].(string); ok && v != "" {
		cfg.CacheDir = v
		cfg.Sources["cache_dir"] = string(source)
	}
	if v, ok := fileCfg["format"].(string); ok && v != "" {
		cfg.Format = v
		cfg.Sources["format"] = string(source)
	}
}

// durationValue accepts whole seconds (JSON number) or a Go duration string.
func durationValue(v any) (time.Duration, bool) {
	switch val := v.(type) {
	case float64:
		if val <= 0 {
			return 0, false
		}
		return time.Duration(val * float64(time.Second)), true
	case string:
		return parseDuration(val)
	default:
		return 0, false
	}
}

// parseDuration parses "30", "30s" or "1m30s". Non-positive values are rejected.
func parseDuration(s string) (time.Duration, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		if n <= 0 {
			return 0, false
		}
		return time.Duration(n * float64(time.Second)), true
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("SAVAGETECH_API_URL"); v != "" {
		cfg.APIURL = v
		cfg.Sources["api_url"] = string(SourceEnv)
	}
	if v := os.Getenv("SAVAGETECH_VENDOR_ID"); v != "" {
		cfg.VendorID = v
		cfg.Sources["vendor_id"] = string(SourceEnv)
	}
	if v := os.Getenv("SAVAGETECH_VENDOR_SECRET"); v != "" {
		cfg.VendorSecret = v
		cfg.Sources["vendor_secret"] = string(SourceEnv)
	}
	if v := os.Getenv("SAVAGETECH_DEFAULT_CURRENCY"); v != "" {
		cfg.DefaultCurrency = strings.ToLower(v)
		cfg.Sources["default_currency"] = string(SourceEnv)
	}
	if v := os.Getenv("SAVAGETECH_HTTP_TIMEOUT"); v != "" {
		if d, ok := parseDuration(v); ok {
			cfg.HTTPTimeout = d
			cfg.Sources["http_timeout"] = string(SourceEnv)
		}
	}
	if v := os.Getenv("SAVAGETECH_HTTP_CONNECT_TIMEOUT"); v != "" {
		if d, ok := parseDuration(v); ok {
			cfg.ConnectTimeout = d
			cfg.Sources["http_connect_timeout"] = string(SourceEnv)
		}
	}
	if v := os.Getenv("SAVAGETECH_WIDGET_ENABLED"); v != "" {
		if b, ok := parseEnvBool(v); ok {
			cfg.WidgetEnabled = b
			cfg.Sources["widget_enabled"] = string(SourceEnv)
		}
	}
	if v := os.Getenv("SAVAGETECH_TOKEN_REFRESH_BEFORE_MINUTES"); v != "" {
		if n, ok := parseMinutes(v); ok {
			cfg.RefreshBefore = n
			cfg.Sources["token_refresh_before_minutes"] = string(SourceEnv)
		} else {
			fmt.Fprintf(warnings, "warning: ignoring SAVAGETECH_TOKEN_REFRESH_BEFORE_MINUTES=%q (want a non-negative number)\n", v)
		}
	}
	if v := os.Getenv("SAVAGETECH_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
		cfg.Sources["listen_addr"] = string(SourceEnv)
	}
	if v := os.Getenv("SAVAGETECH_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
		cfg.Sources["cache_dir"] = string(SourceEnv)
	}
}

// parseMinutes accepts a non-negative, finite number of minutes such as
// "10" or "2.5".
func parseMinutes(s string) (float64, bool) {
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || n < 0 || math.IsInf(n, 0) || math.IsNaN(n) {
		return 0, false
	}
	return n, true
}

// parseEnvBool parses a boolean environment variable strictly.
// Unrecognized values are ignored so the previous layer wins.
func parseEnvBool(v string) (bool, bool) {
	switch strings.ToLower(v) {
	case "true", "1", "yes", "on":
		return true, true
	case "false", "0", "no", "off":
		return false, true
	default:
		return false, false
	}
}

// ApplyOverrides applies non-empty flag overrides to cfg.
func ApplyOverrides(cfg *Config, o FlagOverrides) {
	if o.APIURL != "" {
		cfg.APIURL = o.APIURL
		cfg.Sources["api_url"] = string(SourceFlag)
	}
	if o.Currency != "" {
		cfg.DefaultCurrency = strings.ToLower(o.Currency)
		cfg.Sources["default_currency"] = string(SourceFlag)
	}
	if o.CacheDir != "" {
		cfg.CacheDir = o.CacheDir
		cfg.Sources["cache_dir"] = string(SourceFlag)
	}
	if o.Format != "" {
		cfg.Format = o.Format
		cfg.Sources["format"] = string(SourceFlag)
	}
	if o.Listen != "" {
		cfg.ListenAddr = o.Listen
		cfg.Sources["listen_addr"] = string(SourceFlag)
	}
}

func normalizePrefix(p string) string {
	p = "/" + strings.Trim(p, "/")
	if p == "/" {
		return ""
	}
	return p
}

// Settable keys and their value kinds.
var settableKeys = map[string]string{
	"api_url":                      "string",
	"default_currency":             "string",
	"http_timeout":                 "duration",
	"http_connect_timeout":         "duration",
	"widget_enabled":               "bool",
	"token_refresh_before_minutes": "minutes",
	"listen_addr":                  "string",
	"route_prefix":                 "string",
	"cache_dir":                    "string",
	"format":                       "string",
}

// SettableKeys returns the keys accepted by Set, sorted.
func SettableKeys() []string {
	keys := make([]string, 0, len(settableKeys))
	for k := range settableKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// InvalidKeyError reports a key Set does not accept.
type InvalidKeyError struct {
	Key string
}

func (e *InvalidKeyError) Error() string {
	return fmt.Sprintf("invalid config key %q (valid keys: %s)", e.Key, strings.Join(SettableKeys(), ", "))
}

// InvalidValueError reports a value of the wrong kind for its key.
type InvalidValueError struct {
	Key, Value, Kind string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("%s must be a valid %s, got %q", e.Key, e.Kind, e.Value)
}

// Set writes key=value into the config file at path, creating it if needed.
// It returns the value as stored.
func Set(path, key, value string) (any, error) {
	kind, ok := settableKeys[key]
	if !ok {
		return nil, &InvalidKeyError{Key: key}
	}

	var stored any
	switch kind {
	case "bool":
		b, ok := parseEnvBool(value)
		if !ok {
			return nil, &InvalidValueError{Key: key, Value: value, Kind: "boolean"}
		}
		stored = b
	case "minutes":
		n, ok := parseMinutes(value)
		if !ok {
			return nil, &InvalidValueError{Key: key, Value: value, Kind: "non-negative number"}
		}
		stored = n
	case "duration":
		d, ok := parseDuration(value)
		if !ok {
			return nil, &InvalidValueError{Key: key, Value: value, Kind: "duration"}
		}
		stored = d.String()
	default:
		if key == "api_url" {
			value = NormalizeAPIURL(value)
		}
		stored = value
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	configData := make(map[string]any)
	if data, err := os.ReadFile(path); err == nil { //nolint:gosec // G304: Path is from trusted config location
		_ = json.Unmarshal(data, &configData) // start fresh if invalid
	}
	configData[key] = stored

	data, err := json.MarshalIndent(configData, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := AtomicWriteFile(path, append(data, '\n')); err != nil {
		return nil, fmt.Errorf("failed to write config: %w", err)
	}
	return stored, nil
}

// AtomicWriteFile writes data to a file atomically using temp+rename.
// Files are always created with 0600 permissions (owner read/write only).
func AtomicWriteFile(path string, data []byte) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Chmod(0600); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	// Windows rename fails when the destination exists.
	if err := os.Rename(tmpPath, path); err != nil && runtime.GOOS == "windows" {
		_ = os.Remove(path)
		return os.Rename(tmpPath, path)
	} else { //nolint:revive // two-branch rename
		return err
	}
}

// Path helpers

func systemConfigPath() string {
	return "/etc/savagetech/config.json"
}

// GlobalConfigDir returns the global config directory path.
func GlobalConfigDir() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "savagetech")
}

// GlobalConfigPath returns the global config file path.
func GlobalConfigPath() string {
	return filepath.Join(GlobalConfigDir(), "config.json")
}

func localConfigPath() string {
	return filepath.Join(".savagetech", "config.json")
}

// LocalConfigPath returns the working-directory config file path.
func LocalConfigPath() string {
	return localConfigPath()
}

// NormalizeAPIURL ensures consistent URL format (no trailing slash).
func NormalizeAPIURL(url string) string {
	return strings.TrimSuffix(strings.TrimSpace(url), "/")
}
