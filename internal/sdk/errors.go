package sdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrMissingUserID is returned before any network activity when a call
// needs a user ID and none was given.
var ErrMissingUserID = errors.New("user id is required")

// Gate rejection reasons.
var (
	ErrCircuitOpen = errors.New("vendor API circuit open")
	ErrRateLimited = errors.New("vendor API rate limited")
)

// RejectedError is returned when a Gate refuses a request. Reason is one of
// ErrCircuitOpen or ErrRateLimited.
type RejectedError struct {
	Operation string
	Reason    error
	RetryIn   time.Duration
}

func (e *RejectedError) Error() string {
	if e.RetryIn > 0 {
		return fmt.Sprintf("%s: %v, retry in %s", e.Operation, e.Reason, e.RetryIn.Round(time.Second))
	}
	return fmt.Sprintf("%s: %v", e.Operation, e.Reason)
}

func (e *RejectedError) Unwrap() error {
	return e.Reason
}

// UpstreamError indicates the vendor API call failed: a non-2xx status,
// a body that is not JSON, or a transport error (StatusCode 0).
type UpstreamError struct {
	Operation  string
	StatusCode int
	Body       []byte
	Message    string
	Cause      error

	// RetryAfter is parsed from the response's Retry-After header.
	RetryAfter time.Duration
}

func (e *UpstreamError) Error() string {
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.Operation != "" {
		return fmt.Sprintf("%s: %s", e.Operation, msg)
	}
	return msg
}

func (e *UpstreamError) Unwrap() error {
	return e.Cause
}

// Status returns the HTTP status to report for this error.
// Transport failures have no vendor status and report 500.
func (e *UpstreamError) Status() int {
	if e.StatusCode == 0 {
		return http.StatusInternalServerError
	}
	return e.StatusCode
}

// IsTransport reports whether the request never got a response.
func (e *UpstreamError) IsTransport() bool {
	return e.StatusCode == 0 && e.Cause != nil
}

// Details returns the decoded error body, or nil when it was not JSON.
func (e *UpstreamError) Details() any {
	if len(e.Body) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(e.Body, &v); err != nil {
		return nil
	}
	return v
}

// newStatusError builds an UpstreamError from a non-2xx response body,
// preferring the vendor's "message" field.
func newStatusError(op string, status int, body []byte) *UpstreamError {
	e := &UpstreamError{
		Operation:  op,
		StatusCode: status,
		Body:       body,
		Message:    fmt.Sprintf("vendor API returned %d", status),
	}
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Message != "" {
		e.Message = payload.Message
	}
	return e
}

// maxRetryAfterSeconds bounds Retry-After so the duration cannot overflow.
const maxRetryAfterSeconds = 24 * 60 * 60

// parseRetryAfter reads a Retry-After value given in seconds or as an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	// Out-of-range integers come back as MaxInt64 or MinInt64.
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil || errors.Is(err, strconv.ErrRange) {
		if secs <= 0 {
			return 0
		}
		return time.Duration(min(secs, maxRetryAfterSeconds)) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}
