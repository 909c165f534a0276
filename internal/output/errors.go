package output

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lucifergaming/savagetech/internal/sdk"
)

// Error is a structured error with code, message, and optional hint.
type Error struct {
	Code       string
	Message    string
	Hint       string
	HTTPStatus int
	Retryable  bool
	Details    any
	Cause      error
}

func (e *Error) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Hint)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// ExitCode returns the appropriate exit code for this error.
func (e *Error) ExitCode() int {
	return ExitCodeFor(e.Code)
}

// Error constructors for common cases.

func ErrUsage(msg string) *Error {
	return &Error{Code: CodeUsage, Message: msg}
}

func ErrUsageHint(msg, hint string) *Error {
	return &Error{Code: CodeUsage, Message: msg, Hint: hint}
}

func ErrNotFound(resource, identifier string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found: %s", resource, identifier),
	}
}

func ErrAuth(msg string) *Error {
	return &Error{
		Code:    CodeAuth,
		Message: msg,
		Hint:    "Run: savagetech auth login",
	}
}

func ErrForbidden(msg string) *Error {
	return &Error{
		Code:       CodeForbidden,
		Message:    msg,
		HTTPStatus: http.StatusForbidden,
	}
}

func ErrRateLimit(retryAfter int) *Error {
	hint := "Try again later"
	if retryAfter > 0 {
		hint = fmt.Sprintf("Try again in %d seconds", retryAfter)
	}
	return &Error{
		Code:       CodeRateLimit,
		Message:    "Rate limited",
		Hint:       hint,
		HTTPStatus: http.StatusTooManyRequests,
		Retryable:  true,
	}
}

func ErrNetwork(cause error) *Error {
	return &Error{
		Code:      CodeNetwork,
		Message:   "Network error",
		Hint:      cause.Error(),
		Retryable: true,
		Cause:     cause,
	}
}

func ErrAPI(status int, msg string) *Error {
	return &Error{
		Code:       CodeAPI,
		Message:    msg,
		HTTPStatus: status,
	}
}

// ErrUpstream wraps a vendor API failure, keeping the vendor's status and body.
func ErrUpstream(e *sdk.UpstreamError) *Error {
	return &Error{
		Code:       CodeUpstream,
		Message:    e.Error(),
		HTTPStatus: e.Status(),
		Retryable:  e.StatusCode >= http.StatusInternalServerError,
		Details:    e.Details(),
		Cause:      e,
	}
}

// AsError attempts to convert an error to an *Error.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	if errors.Is(err, sdk.ErrMissingUserID) {
		return &Error{Code: CodeUsage, Message: err.Error(), Hint: "Pass a user id", Cause: err}
	}

	var rej *sdk.RejectedError
	if errors.As(err, &rej) {
		return fromRejected(rej)
	}

	var up *sdk.UpstreamError
	if errors.As(err, &up) {
		return fromUpstream(up)
	}

	return &Error{
		Code:    CodeAPI,
		Message: err.Error(),
		Cause:   err,
	}
}

func fromRejected(rej *sdk.RejectedError) *Error {
	secs := int(rej.RetryIn.Round(time.Second).Seconds())
	if errors.Is(rej, sdk.ErrRateLimited) {
		e := ErrRateLimit(secs)
		e.Cause = rej
		return e
	}
	hint := "Vendor API failing, try again later"
	if secs > 0 {
		hint = fmt.Sprintf("Vendor API failing, try again in %d seconds", secs)
	}
	return &Error{
		Code:       CodeUpstream,
		Message:    "Vendor API unavailable",
		Hint:       hint,
		HTTPStatus: http.StatusServiceUnavailable,
		Retryable:  true,
		Cause:      rej,
	}
}

func fromUpstream(up *sdk.UpstreamError) *Error {
	if up.IsTransport() {
		return ErrNetwork(up)
	}

	var e *Error
	switch up.StatusCode {
	case http.StatusUnauthorized:
		e = ErrAuth("Vendor credentials rejected")
	case http.StatusForbidden:
		e = ErrForbidden("Vendor denied access: " + up.Message)
	case http.StatusNotFound:
		e = &Error{Code: CodeNotFound, Message: up.Error()}
	case http.StatusTooManyRequests:
		e = ErrRateLimit(int(up.RetryAfter.Seconds()))
	default:
		return ErrUpstream(up)
	}
	e.HTTPStatus = up.Status()
	e.Details = up.Details()
	e.Cause = up
	return e
}
