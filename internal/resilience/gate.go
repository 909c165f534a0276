package resilience

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/lucifergaming/savagetech/internal/sdk"
)

var _ sdk.Gate = (*Gate)(nil)

// Gate admits vendor requests through the backoff and the breaker.
type Gate struct {
	store   *Store
	breaker *Breaker
	backoff *Backoff
	logger  *slog.Logger
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithLogger sets the logger used for circuit transitions.
func WithLogger(l *slog.Logger) GateOption {
	return func(g *Gate) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGate builds a gate over store.
func NewGate(store *Store, cfg Config, opts ...GateOption) *Gate {
	g := &Gate{
		store:   store,
		breaker: NewBreaker(store, cfg.Breaker),
		backoff: NewBackoff(store, cfg.Backoff),
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Admit rejects the request while a backoff is running or the circuit is open.
// The backoff is checked first because the breaker may reserve a probe.
func (g *Gate) Admit(_ context.Context, info sdk.RequestInfo) error {
	wait, err := g.backoff.Remaining()
	if err != nil {
		g.logger.Debug("backoff state unavailable", "error", err)
	}
	if wait > 0 {
		return &sdk.RejectedError{Operation: info.Operation, Reason: sdk.ErrRateLimited, RetryIn: wait}
	}

	allowed, wait, err := g.breaker.Admit()
	if err != nil {
		g.logger.Debug("breaker state unavailable", "error", err)
	}
	if !allowed {
		return &sdk.RejectedError{Operation: info.Operation, Reason: sdk.ErrCircuitOpen, RetryIn: wait}
	}
	return nil
}

// Done records the outcome of an admitted request.
func (g *Gate) Done(_ context.Context, info sdk.RequestInfo, result sdk.RequestResult) {
	if result.StatusCode == http.StatusTooManyRequests {
		if err := g.backoff.Pause(result.RetryAfter); err != nil {
			g.logger.Debug("backoff state unavailable", "error", err)
		}
		g.logger.Warn("vendor rate limited", "operation", info.Operation, "retry_after", result.RetryAfter)
	}

	reason := ""
	if result.Err != nil {
		reason = result.Err.Error()
	}
	from, to, err := g.breaker.Record(Classify(result), reason)
	if err != nil {
		g.logger.Debug("breaker state unavailable", "error", err)
		return
	}
	if from != to {
		g.logger.Warn("vendor circuit changed", "from", from, "to", to, "operation", info.Operation)
	}
}

// Status is a point-in-time view of the gate.
type Status struct {
	Circuit   string        `json:"circuit"`
	Failures  int           `json:"failures"`
	OpenedAt  *time.Time    `json:"opened_at,omitempty"`
	LastError string        `json:"last_error,omitempty"`
	PausedFor time.Duration `json:"-"`
	Path      string        `json:"path"`
}

// Status reports the current gate state.
func (g *Gate) Status() (Status, error) {
	br, err := g.breaker.State()
	if err != nil {
		return Status{}, err
	}
	wait, err := g.backoff.Remaining()
	if err != nil {
		return Status{}, err
	}
	st := Status{
		Circuit:   br.State,
		Failures:  br.Failures,
		LastError: br.LastError,
		PausedFor: wait,
		Path:      g.store.Path(),
	}
	if !br.OpenedAt.IsZero() && br.State != CircuitClosed {
		at := br.OpenedAt
		st.OpenedAt = &at
	}
	return st, nil
}

// Reset closes the circuit and lifts any backoff.
func (g *Gate) Reset() error {
	return g.store.Clear()
}

// Classify maps a request result to a breaker outcome. Only transport
// errors and 5xx responses count against the vendor.
func Classify(result sdk.RequestResult) Outcome {
	switch {
	case result.Err == nil:
		return OutcomeSuccess
	case errors.Is(result.Err, context.Canceled):
		return OutcomeNeutral
	case result.StatusCode == 0, result.StatusCode >= http.StatusInternalServerError:
		return OutcomeFailure
	case result.StatusCode == http.StatusTooManyRequests:
		return OutcomeNeutral
	default:
		return OutcomeSuccess
	}
}
