package sdk

import (
	"context"
	"time"
)

// RequestInfo describes an outgoing vendor API request.
type RequestInfo struct {
	Operation string // e.g., "AccessToken", "DepositMade"
	Method    string
	URL       string
}

// RequestResult describes the outcome of a vendor API request.
type RequestResult struct {
	StatusCode int
	Duration   time.Duration
	Err        error

	// RetryAfter is the vendor's Retry-After hint, zero when absent.
	RetryAfter time.Duration
}

// Hooks observes vendor API traffic. Implementations must be safe for concurrent use.
type Hooks interface {
	OnRequestStart(ctx context.Context, info RequestInfo) context.Context
	OnRequestEnd(ctx context.Context, info RequestInfo, result RequestResult)
}

// NoopHooks discards all events.
type NoopHooks struct{}

func (NoopHooks) OnRequestStart(ctx context.Context, _ RequestInfo) context.Context { return ctx }

func (NoopHooks) OnRequestEnd(context.Context, RequestInfo, RequestResult) {}

// Gate admits vendor requests before they are sent and observes their
// outcome. A non-nil error from Admit rejects the request without network
// activity; Done is only called for admitted requests.
type Gate interface {
	Admit(ctx context.Context, info RequestInfo) error
	Done(ctx context.Context, info RequestInfo, result RequestResult)
}
