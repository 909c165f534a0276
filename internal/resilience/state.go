package resilience

import "time"

// StateVersion is the on-disk schema version.
const StateVersion = 1

// Circuit states.
const (
	CircuitClosed   = "closed"
	CircuitOpen     = "open"
	CircuitHalfOpen = "half_open"
)

// State is the gate state shared by every process talking to one vendor origin.
type State struct {
	Version   int          `json:"version"`
	Breaker   BreakerState `json:"breaker"`
	Backoff   BackoffState `json:"backoff"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// BreakerState is the persisted circuit breaker.
type BreakerState struct {
	State    string    `json:"state"`
	Failures int       `json:"failures"`
	OpenedAt time.Time `json:"opened_at"`

	// ProbeAt is set while a half-open probe is in flight.
	ProbeAt time.Time `json:"probe_at"`

	LastError string `json:"last_error,omitempty"`
}

// Current returns the state name, treating the zero value as closed.
func (b BreakerState) Current() string {
	if b.State == "" {
		return CircuitClosed
	}
	return b.State
}

// BackoffState records a vendor-requested pause.
type BackoffState struct {
	Until time.Time `json:"until"`
}

// Remaining returns how long the pause still has to run at now.
func (b BackoffState) Remaining(now time.Time) time.Duration {
	if b.Until.IsZero() || !now.Before(b.Until) {
		return 0
	}
	return b.Until.Sub(now)
}

// NewState returns a closed, unpaused state.
func NewState() *State {
	return &State{
		Version: StateVersion,
		Breaker: BreakerState{State: CircuitClosed},
	}
}
