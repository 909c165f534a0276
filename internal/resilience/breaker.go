package resilience

import "time"

// Outcome classifies a finished request for the breaker.
type Outcome int

const (
	// OutcomeSuccess means the vendor answered.
	OutcomeSuccess Outcome = iota
	// OutcomeFailure means a transport error or a 5xx.
	OutcomeFailure
	// OutcomeNeutral says nothing about vendor health, e.g. a cancelled call.
	OutcomeNeutral
)

// Breaker is a circuit breaker persisted in a Store.
type Breaker struct {
	cfg   BreakerConfig
	store *Store
	now   func() time.Time
}

// NewBreaker returns a breaker over store. Zero config fields take defaults.
func NewBreaker(store *Store, cfg BreakerConfig) *Breaker {
	return &Breaker{cfg: cfg.withDefaults(), store: store, now: time.Now}
}

// Admit reports whether a request may proceed. When it may not, wait is how
// long until the circuit lets a probe through, or zero if a probe is
// already in flight. State errors admit the request.
func (b *Breaker) Admit() (allowed bool, wait time.Duration, err error) {
	state, err := b.store.Load()
	if err != nil {
		return true, 0, err
	}
	if state.Breaker.Current() == CircuitClosed {
		return true, 0, nil
	}

	now := b.now()
	err = b.store.Update(func(s *State) error {
		br := &s.Breaker
		switch br.Current() {
		case CircuitClosed:
			allowed = true
		case CircuitOpen:
			if elapsed := now.Sub(br.OpenedAt); elapsed < b.cfg.OpenTimeout {
				wait = b.cfg.OpenTimeout - elapsed
				return nil
			}
			br.State = CircuitHalfOpen
			br.ProbeAt = now
			s.UpdatedAt = now
			allowed = true
		case CircuitHalfOpen:
			if !br.ProbeAt.IsZero() && now.Sub(br.ProbeAt) < b.cfg.ProbeTimeout {
				return nil
			}
			br.ProbeAt = now
			s.UpdatedAt = now
			allowed = true
		}
		return nil
	})
	if err != nil {
		return true, 0, err
	}
	return allowed, wait, nil
}

// Record applies a request outcome and returns the circuit state before and
// after. reason is kept as the last error when the circuit opens.
func (b *Breaker) Record(o Outcome, reason string) (from, to string, err error) {
	state, err := b.store.Load()
	if err != nil {
		return CircuitClosed, CircuitClosed, err
	}
	br := state.Breaker
	if br.Current() == CircuitClosed && br.Failures == 0 && o != OutcomeFailure {
		return CircuitClosed, CircuitClosed, nil
	}

	now := b.now()
	err = b.store.Update(func(s *State) error {
		br := &s.Breaker
		from = br.Current()
		switch from {
		case CircuitClosed:
			switch o {
			case OutcomeSuccess:
				br.Failures = 0
			case OutcomeFailure:
				br.Failures++
				if br.Failures >= b.cfg.FailureThreshold {
					b.open(br, now, reason)
				}
			}
		case CircuitHalfOpen:
			switch o {
			case OutcomeSuccess:
				*br = BreakerState{State: CircuitClosed}
			case OutcomeFailure:
				b.open(br, now, reason)
			case OutcomeNeutral:
				br.ProbeAt = time.Time{}
			}
		}
		// Stragglers admitted before the circuit opened do not move it.
		to = br.Current()
		s.UpdatedAt = now
		return nil
	})
	return from, to, err
}

func (b *Breaker) open(br *BreakerState, now time.Time, reason string) {
	br.State = CircuitOpen
	br.OpenedAt = now
	br.ProbeAt = time.Time{}
	br.LastError = reason
}

// State returns the effective circuit state. An open circuit past its
// timeout reports half-open.
func (b *Breaker) State() (BreakerState, error) {
	state, err := b.store.Load()
	if err != nil {
		return BreakerState{State: CircuitClosed}, err
	}
	br := state.Breaker
	br.State = br.Current()
	if br.State == CircuitOpen && b.now().Sub(br.OpenedAt) >= b.cfg.OpenTimeout {
		br.State = CircuitHalfOpen
	}
	return br, nil
}
