package resilience

import "time"

// Config holds the gate's tuning knobs.
type Config struct {
	Breaker BreakerConfig
	Backoff BackoffConfig
}

// BreakerConfig configures the circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the
	// circuit. Default: 5
	FailureThreshold int

	// OpenTimeout is how long an open circuit rejects requests before a
	// single probe is let through. Default: 30s
	OpenTimeout time.Duration

	// ProbeTimeout releases a half-open probe whose process never reported
	// back. Default: 2m
	ProbeTimeout time.Duration
}

// BackoffConfig configures how 429 responses pause traffic.
type BackoffConfig struct {
	// Default applies when a 429 carries no Retry-After. Default: 60s
	Default time.Duration

	// Max caps any Retry-After the vendor sends. Default: 10m
	Max time.Duration
}

// DefaultConfig returns the defaults used by the CLI.
func DefaultConfig() Config {
	return Config{
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			OpenTimeout:      30 * time.Second,
			ProbeTimeout:     2 * time.Minute,
		},
		Backoff: BackoffConfig{
			Default: 60 * time.Second,
			Max:     10 * time.Minute,
		},
	}
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	d := DefaultConfig().Breaker
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = d.OpenTimeout
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = d.ProbeTimeout
	}
	return c
}

func (c BackoffConfig) withDefaults() BackoffConfig {
	d := DefaultConfig().Backoff
	if c.Default <= 0 {
		c.Default = d.Default
	}
	if c.Max <= 0 {
		c.Max = d.Max
	}
	return c
}
