package resilience

import "time"

// Backoff pauses all traffic after the vendor rate-limits us.
type Backoff struct {
	cfg   BackoffConfig
	store *Store
	now   func() time.Time
}

// NewBackoff returns a backoff over store. Zero config fields take defaults.
func NewBackoff(store *Store, cfg BackoffConfig) *Backoff {
	return &Backoff{cfg: cfg.withDefaults(), store: store, now: time.Now}
}

// Remaining returns how long traffic stays paused.
func (b *Backoff) Remaining() (time.Duration, error) {
	state, err := b.store.Load()
	if err != nil {
		return 0, err
	}
	return state.Backoff.Remaining(b.now()), nil
}

// Pause blocks traffic for d, or the configured default when d is zero.
// d is capped at the configured maximum and never shortens a longer pause.
func (b *Backoff) Pause(d time.Duration) error {
	if d <= 0 {
		d = b.cfg.Default
	}
	d = min(d, b.cfg.Max)
	now := b.now()
	until := now.Add(d)
	return b.store.Update(func(s *State) error {
		if until.After(s.Backoff.Until) {
			s.Backoff.Until = until
			s.UpdatedAt = now
		}
		return nil
	})
}
