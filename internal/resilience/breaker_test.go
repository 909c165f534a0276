package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(t *testing.T, cfg BreakerConfig) (*Breaker, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	b := NewBreaker(NewStore(t.TempDir()), cfg)
	b.now = clock.now
	return b, clock
}

func TestBreakerDefaults(t *testing.T) {
	b := NewBreaker(NewStore(t.TempDir()), BreakerConfig{})
	assert.Equal(t, DefaultConfig().Breaker, b.cfg)
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(t, BreakerConfig{FailureThreshold: 3, OpenTimeout: time.Minute})

	for i := range 2 {
		from, to, err := b.Record(OutcomeFailure, "boom")
		require.NoError(t, err)
		assert.Equal(t, CircuitClosed, from, "failure %d", i)
		assert.Equal(t, CircuitClosed, to)
	}

	from, to, err := b.Record(OutcomeFailure, "AccessToken: network error")
	require.NoError(t, err)
	assert.Equal(t, CircuitClosed, from)
	assert.Equal(t, CircuitOpen, to)

	allowed, wait, err := b.Admit()
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, time.Minute, wait)

	st, err := b.State()
	require.NoError(t, err)
	assert.Equal(t, CircuitOpen, st.State)
	assert.Equal(t, "AccessToken: network error", st.LastError)
}

func TestBreakerSuccessResetsFailures(t *testing.T) {
	b, _ := newTestBreaker(t, BreakerConfig{FailureThreshold: 2})

	_, _, err := b.Record(OutcomeFailure, "")
	require.NoError(t, err)
	_, _, err = b.Record(OutcomeSuccess, "")
	require.NoError(t, err)
	_, to, err := b.Record(OutcomeFailure, "")
	require.NoError(t, err)

	assert.Equal(t, CircuitClosed, to)
}

func TestBreakerNeutralDoesNotCount(t *testing.T) {
	b, _ := newTestBreaker(t, BreakerConfig{FailureThreshold: 1})

	_, to, err := b.Record(OutcomeNeutral, "")
	require.NoError(t, err)
	assert.Equal(t, CircuitClosed, to)

	allowed, _, err := b.Admit()
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	b, clock := newTestBreaker(t, BreakerConfig{FailureThreshold: 1, OpenTimeout: 30 * time.Second, ProbeTimeout: time.Minute})

	_, _, err := b.Record(OutcomeFailure, "down")
	require.NoError(t, err)

	clock.advance(10 * time.Second)
	allowed, wait, err := b.Admit()
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 20*time.Second, wait)

	clock.advance(20 * time.Second)
	st, err := b.State()
	require.NoError(t, err)
	assert.Equal(t, CircuitHalfOpen, st.State)

	allowed, _, err = b.Admit()
	require.NoError(t, err)
	assert.True(t, allowed, "first request after the timeout probes")

	allowed, wait, err = b.Admit()
	require.NoError(t, err)
	assert.False(t, allowed, "only one probe at a time")
	assert.Zero(t, wait)

	from, to, err := b.Record(OutcomeSuccess, "")
	require.NoError(t, err)
	assert.Equal(t, CircuitHalfOpen, from)
	assert.Equal(t, CircuitClosed, to)

	allowed, _, err = b.Admit()
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b, clock := newTestBreaker(t, BreakerConfig{FailureThreshold: 1, OpenTimeout: 30 * time.Second})

	_, _, err := b.Record(OutcomeFailure, "down")
	require.NoError(t, err)
	clock.advance(30 * time.Second)

	allowed, _, err := b.Admit()
	require.NoError(t, err)
	require.True(t, allowed)

	from, to, err := b.Record(OutcomeFailure, "still down")
	require.NoError(t, err)
	assert.Equal(t, CircuitHalfOpen, from)
	assert.Equal(t, CircuitOpen, to)

	allowed, wait, err := b.Admit()
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 30*time.Second, wait, "the open timeout restarts")
}

func TestBreakerNeutralProbeReleasesSlot(t *testing.T) {
	b, clock := newTestBreaker(t, BreakerConfig{FailureThreshold: 1, OpenTimeout: time.Second})

	_, _, err := b.Record(OutcomeFailure, "")
	require.NoError(t, err)
	clock.advance(time.Second)

	allowed, _, err := b.Admit()
	require.NoError(t, err)
	require.True(t, allowed)

	_, to, err := b.Record(OutcomeNeutral, "")
	require.NoError(t, err)
	assert.Equal(t, CircuitHalfOpen, to)

	allowed, _, err = b.Admit()
	require.NoError(t, err)
	assert.True(t, allowed, "a cancelled probe frees the slot")
}

func TestBreakerStaleProbeExpires(t *testing.T) {
	b, clock := newTestBreaker(t, BreakerConfig{FailureThreshold: 1, OpenTimeout: time.Second, ProbeTimeout: time.Minute})

	_, _, err := b.Record(OutcomeFailure, "")
	require.NoError(t, err)
	clock.advance(time.Second)

	allowed, _, err := b.Admit()
	require.NoError(t, err)
	require.True(t, allowed)

	clock.advance(time.Minute)
	allowed, _, err = b.Admit()
	require.NoError(t, err)
	assert.True(t, allowed, "a probe that never reported back is released")
}

func TestBreakerStragglersDoNotMoveOpenCircuit(t *testing.T) {
	b, _ := newTestBreaker(t, BreakerConfig{FailureThreshold: 1, OpenTimeout: time.Minute})

	_, _, err := b.Record(OutcomeFailure, "")
	require.NoError(t, err)

	from, to, err := b.Record(OutcomeSuccess, "")
	require.NoError(t, err)
	assert.Equal(t, CircuitOpen, from)
	assert.Equal(t, CircuitOpen, to)
}
