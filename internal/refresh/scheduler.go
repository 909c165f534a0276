package refresh

import (
	"log/slog"
	"sync"
	"time"

	"github.com/lucifergaming/savagetech/internal/sdk"
)

// DefaultMargin is how long before expiry a refresh is scheduled.
const DefaultMargin = 10 * time.Minute

// ArmResult reports what Arm did with a token.
type ArmResult int

const (
	// ArmSkipped means the token carried no usable expiry. Nothing is pending.
	ArmSkipped ArmResult = iota
	// ArmScheduled means a timer is pending.
	ArmScheduled
	// ArmFiredImmediately means the refresh point had passed and onFire already ran.
	ArmFiredImmediately
)

func (r ArmResult) String() string {
	switch r {
	case ArmSkipped:
		return "skipped"
	case ArmScheduled:
		return "scheduled"
	case ArmFiredImmediately:
		return "fired"
	default:
		return "unknown"
	}
}

// Timer is a pending single-shot callback.
type Timer interface {
	Stop() bool
}

// AfterFunc starts a Timer that calls f once after d.
type AfterFunc func(d time.Duration, f func()) Timer

func stdAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Scheduler holds at most one pending refresh timer.
//
// Arm and Cancel may be called from any goroutine, including from inside the
// onFire callback. A timer superseded by a later Arm or Cancel never calls
// its callback, even if it was already running when superseded.
type Scheduler struct {
	now       func() time.Time
	afterFunc AfterFunc
	logger    *slog.Logger

	mu     sync.Mutex
	gen    uint64
	timer  Timer
	fireAt time.Time
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithClock sets the time source.
func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithAfterFunc sets the timer factory.
func WithAfterFunc(fn AfterFunc) SchedulerOption {
	return func(s *Scheduler) {
		if fn != nil {
			s.afterFunc = fn
		}
	}
}

// WithLogger sets the logger for scheduling decisions.
func WithLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewScheduler creates an idle Scheduler.
func NewScheduler(opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		now:       time.Now,
		afterFunc: stdAfterFunc,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Arm replaces any pending refresh with one derived from token.
//
// The refresh point is the token's expiry minus margin. If it lies in the
// future a timer is started; otherwise onFire runs synchronously before Arm
// returns. A token without a decodable expiry leaves nothing pending.
func (s *Scheduler) Arm(token sdk.Token, margin time.Duration, onFire func()) ArmResult {
	if onFire == nil {
		onFire = func() {}
	}

	s.mu.Lock()
	s.cancelLocked()

	expiry, ok := ExpiryFromJWT(token.JWT)
	if !ok {
		s.mu.Unlock()
		s.logger.Debug("token has no usable expiry, refresh not scheduled")
		return ArmSkipped
	}

	fireAt := expiry.Add(-margin)
	delay := fireAt.Sub(s.now())
	if delay <= 0 {
		s.mu.Unlock()
		s.logger.Debug("token refresh due now", "expires", expiry, "margin", margin)
		onFire()
		return ArmFiredImmediately
	}

	gen := s.gen
	s.timer = s.afterFunc(delay, func() { s.fire(gen, onFire) })
	s.fireAt = fireAt
	s.mu.Unlock()

	s.logger.Debug("token refresh scheduled", "in", delay, "at", fireAt)
	return ArmScheduled
}

// Cancel stops any pending refresh. Safe to call repeatedly.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
}

// Pending reports whether a refresh timer is outstanding.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// NextFire returns when the pending refresh will run.
func (s *Scheduler) NextFire() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer == nil {
		return time.Time{}, false
	}
	return s.fireAt, true
}

// cancelLocked invalidates the current generation. Callers hold s.mu.
func (s *Scheduler) cancelLocked() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.fireAt = time.Time{}
}

func (s *Scheduler) fire(gen uint64, onFire func()) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.gen++
	s.timer = nil
	s.fireAt = time.Time{}
	s.mu.Unlock()

	onFire()
}
