// Package output renders command results as JSON envelopes or styled text
// and maps failures onto stable error codes and exit statuses.
package output

// Exit codes.
const (
	ExitOK        = 0 // Success
	ExitUsage     = 1 // Invalid arguments or flags
	ExitNotFound  = 2 // Resource not found
	ExitAuth      = 3 // Missing or rejected vendor credentials
	ExitForbidden = 4 // Access denied
	ExitRateLimit = 5 // Rate limited (429)
	ExitNetwork   = 6 // Connection/DNS/timeout error
	ExitAPI       = 7 // Unclassified failure
	ExitUpstream  = 9 // Vendor API returned an error status
)

// Error codes carried in the envelope's "code" field.
const (
	CodeUsage     = "usage"
	CodeNotFound  = "not_found"
	CodeAuth      = "auth_required"
	CodeForbidden = "forbidden"
	CodeRateLimit = "rate_limit"
	CodeNetwork   = "network"
	CodeAPI       = "api_error"
	CodeUpstream  = "upstream"
)

var exitCodes = map[string]int{
	CodeUsage:     ExitUsage,
	CodeNotFound:  ExitNotFound,
	CodeAuth:      ExitAuth,
	CodeForbidden: ExitForbidden,
	CodeRateLimit: ExitRateLimit,
	CodeNetwork:   ExitNetwork,
	CodeUpstream:  ExitUpstream,
}

// ExitCodeFor maps an envelope error code to the process exit code.
// Unknown codes exit with ExitAPI.
func ExitCodeFor(code string) int {
	if exit, ok := exitCodes[code]; ok {
		return exit
	}
	return ExitAPI
}
