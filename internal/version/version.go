// Package version provides build-time version information.
// These variables are set via ldflags at build time.
package version

import "runtime"

var (
	// Version is the semantic version (e.g., "1.0.0")
	Version = "dev"

	// Commit is the git commit SHA
	Commit = "none"

	// Date is the build date in RFC3339 format
	Date = "unknown"
)

// IsDev reports whether this is a source build without release metadata.
func IsDev() bool {
	return Version == "dev"
}

// Full returns the full version string for display.
func Full() string {
	if IsDev() {
		return "savagetech version dev (built from source)"
	}
	return "savagetech version " + Version
}

// Info returns version metadata as a map for JSON output.
func Info() map[string]string {
	return map[string]string{
		"version": Version,
		"commit":  Commit,
		"date":    Date,
		"go":      runtime.Version(),
	}
}

// UserAgent returns the user agent string for vendor API requests.
func UserAgent() string {
	return "savagetech-go/" + Version + " (https://github.com/lucifergaming/savagetech)"
}
