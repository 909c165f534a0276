package refresh

import (
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/lucifergaming/savagetech/internal/sdk"
)

var testNow = time.Unix(1_700_000_000, 0)

func testClock() time.Time { return testNow }

// signedJWT builds an HS256 token with the given claims.
func signedJWT(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func tokenExpiringIn(t *testing.T, d time.Duration) sdk.Token {
	t.Helper()
	return sdk.Token{
		JWT:    signedJWT(t, jwt.MapClaims{"sub": "user-1", "exp": testNow.Add(d).Unix()}),
		Pubsub: "pubsub-" + d.String(),
	}
}

type fakeTimer struct {
	owner   *fakeTimers
	delay   time.Duration
	fn      func()
	stopped bool
}

func (ft *fakeTimer) Stop() bool {
	ft.owner.mu.Lock()
	defer ft.owner.mu.Unlock()
	was := !ft.stopped
	ft.stopped = true
	return was
}

// Fire runs the callback the way a real timer goroutine would, regardless
// of whether Stop was called.
func (ft *fakeTimer) Fire() {
	ft.fn()
}

func (ft *fakeTimer) Stopped() bool {
	ft.owner.mu.Lock()
	defer ft.owner.mu.Unlock()
	return ft.stopped
}

type fakeTimers struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (f *fakeTimers) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	ft := &fakeTimer{owner: f, delay: d, fn: fn}
	f.timers = append(f.timers, ft)
	return ft
}

func (f *fakeTimers) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.timers)
}

func (f *fakeTimers) Last() *fakeTimer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.timers) == 0 {
		return nil
	}
	return f.timers[len(f.timers)-1]
}

func (f *fakeTimers) At(i int) *fakeTimer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.timers[i]
}

func newTestScheduler() (*Scheduler, *fakeTimers) {
	timers := &fakeTimers{}
	return NewScheduler(WithClock(testClock), WithAfterFunc(timers.AfterFunc)), timers
}

// counter is a goroutine-safe call counter.
type counter struct {
	mu sync.Mutex
	n  int
}

func (c *counter) Inc() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
}

func (c *counter) Get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}
