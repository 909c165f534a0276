// Package hostutil normalizes and vets vendor API base URLs.
package hostutil

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Normalize turns a host or URL given on the command line into a base URL
// without a trailing slash. Bare hosts get https:// unless they are
// loopback, which get http://.
func Normalize(host string) string {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	switch {
	case host == "":
		return ""
	case strings.Contains(host, "://"):
		return host
	case IsLocalhost(host):
		return "http://" + host
	default:
		return "https://" + host
	}
}

// RequireSecureURL rejects http:// base URLs that leave the machine. The
// vendor secret is sent as a header on every call.
func RequireSecureURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid API URL %q: %w", raw, err)
	}
	if strings.EqualFold(u.Scheme, "http") && !IsLocalhost(u.Host) {
		return fmt.Errorf("refusing plain http API URL %q (use https:// or a loopback address)", raw)
	}
	return nil
}

// IsLocalhost reports whether host, with or without a port, names the
// local machine: localhost, *.localhost, or a loopback IP.
func IsLocalhost(host string) bool {
	name := host
	if h, _, err := net.SplitHostPort(host); err == nil {
		name = h
	}
	name = strings.ToLower(strings.TrimSuffix(strings.TrimPrefix(name, "["), "]"))

	if name == "localhost" || strings.HasSuffix(name, ".localhost") {
		return true
	}
	ip := net.ParseIP(name)
	return ip != nil && ip.IsLoopback()
}
