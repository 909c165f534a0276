package refresh

import (
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucifergaming/savagetech/internal/sdk"
)

func TestArmSchedulesAheadOfExpiry(t *testing.T) {
	sched, timers := newTestScheduler()
	var fired counter

	res := sched.Arm(tokenExpiringIn(t, time.Hour), 10*time.Minute, fired.Inc)

	assert.Equal(t, ArmScheduled, res)
	require.Equal(t, 1, timers.Count())
	assert.Equal(t, 3000*time.Second, timers.Last().delay)
	assert.Equal(t, 0, fired.Get())
	assert.True(t, sched.Pending())

	at, ok := sched.NextFire()
	require.True(t, ok)
	assert.Equal(t, testNow.Add(50*time.Minute).Unix(), at.Unix())

	timers.Last().Fire()
	assert.Equal(t, 1, fired.Get())
	assert.False(t, sched.Pending())
}

func TestArmFiresImmediatelyInsideMargin(t *testing.T) {
	sched, timers := newTestScheduler()
	var fired counter

	res := sched.Arm(tokenExpiringIn(t, time.Minute), 10*time.Minute, fired.Inc)

	assert.Equal(t, ArmFiredImmediately, res)
	assert.Equal(t, 1, fired.Get())
	assert.Equal(t, 0, timers.Count())
	assert.False(t, sched.Pending())
}

func TestArmFiresImmediatelyForExpiredToken(t *testing.T) {
	sched, timers := newTestScheduler()
	var fired counter

	res := sched.Arm(tokenExpiringIn(t, -time.Hour), 0, fired.Inc)

	assert.Equal(t, ArmFiredImmediately, res)
	assert.Equal(t, 1, fired.Get())
	assert.Equal(t, 0, timers.Count())
}

func TestArmExactlyAtRefreshPointFires(t *testing.T) {
	sched, timers := newTestScheduler()
	var fired counter

	res := sched.Arm(tokenExpiringIn(t, 10*time.Minute), 10*time.Minute, fired.Inc)

	assert.Equal(t, ArmFiredImmediately, res)
	assert.Equal(t, 1, fired.Get())
	assert.Equal(t, 0, timers.Count())
}

func TestArmMalformedTokenDoesNothing(t *testing.T) {
	for _, jwtValue := range []string{"", "not-a-jwt", "a.b", "a.b.c"} {
		t.Run(jwtValue, func(t *testing.T) {
			sched, timers := newTestScheduler()
			var fired counter

			res := sched.Arm(sdk.Token{JWT: jwtValue}, DefaultMargin, fired.Inc)

			assert.Equal(t, ArmSkipped, res)
			assert.Equal(t, 0, fired.Get())
			assert.Equal(t, 0, timers.Count())
			assert.False(t, sched.Pending())
		})
	}
}

func TestArmMalformedTokenCancelsPending(t *testing.T) {
	sched, timers := newTestScheduler()
	var first counter

	sched.Arm(tokenExpiringIn(t, time.Hour), DefaultMargin, first.Inc)
	require.True(t, sched.Pending())

	res := sched.Arm(sdk.Token{JWT: "garbage"}, DefaultMargin, func() {})
	assert.Equal(t, ArmSkipped, res)
	assert.False(t, sched.Pending())
	assert.True(t, timers.At(0).Stopped())

	timers.At(0).Fire()
	assert.Equal(t, 0, first.Get())
}

func TestArmTwiceOnlySecondFires(t *testing.T) {
	sched, timers := newTestScheduler()
	var first, second counter

	sched.Arm(tokenExpiringIn(t, time.Hour), DefaultMargin, first.Inc)
	sched.Arm(tokenExpiringIn(t, 2*time.Hour), DefaultMargin, second.Inc)

	require.Equal(t, 2, timers.Count())
	assert.True(t, timers.At(0).Stopped())
	assert.False(t, timers.At(1).Stopped())

	// The superseded timer may already be running when it is stopped.
	timers.At(0).Fire()
	timers.At(1).Fire()

	assert.Equal(t, 0, first.Get())
	assert.Equal(t, 1, second.Get())
}

func TestArmImmediateSupersedesPending(t *testing.T) {
	sched, timers := newTestScheduler()
	var first, second counter

	sched.Arm(tokenExpiringIn(t, time.Hour), DefaultMargin, first.Inc)
	res := sched.Arm(tokenExpiringIn(t, time.Minute), DefaultMargin, second.Inc)

	assert.Equal(t, ArmFiredImmediately, res)
	assert.Equal(t, 1, second.Get())
	assert.False(t, sched.Pending())

	timers.At(0).Fire()
	assert.Equal(t, 0, first.Get())
}

func TestCancelPreventsFire(t *testing.T) {
	sched, timers := newTestScheduler()
	var fired counter

	sched.Arm(tokenExpiringIn(t, time.Hour), DefaultMargin, fired.Inc)
	sched.Cancel()
	sched.Cancel()

	assert.False(t, sched.Pending())
	assert.True(t, timers.Last().Stopped())
	timers.Last().Fire()
	assert.Equal(t, 0, fired.Get())

	_, ok := sched.NextFire()
	assert.False(t, ok)
}

func TestCancelOnIdleScheduler(t *testing.T) {
	sched, _ := newTestScheduler()
	assert.NotPanics(t, sched.Cancel)
	assert.False(t, sched.Pending())
}

func TestTimerFiresOnlyOnce(t *testing.T) {
	sched, timers := newTestScheduler()
	var fired counter

	sched.Arm(tokenExpiringIn(t, time.Hour), DefaultMargin, fired.Inc)
	timers.Last().Fire()
	timers.Last().Fire()

	assert.Equal(t, 1, fired.Get())
}

func TestNegativeMarginSchedulesAfterExpiry(t *testing.T) {
	sched, timers := newTestScheduler()

	res := sched.Arm(tokenExpiringIn(t, time.Hour), -5*time.Minute, func() {})

	assert.Equal(t, ArmScheduled, res)
	assert.Equal(t, 65*time.Minute, timers.Last().delay)
}

func TestMarginLongerThanLifetimeFires(t *testing.T) {
	sched, timers := newTestScheduler()
	var fired counter

	res := sched.Arm(tokenExpiringIn(t, time.Hour), 2*time.Hour, fired.Inc)

	assert.Equal(t, ArmFiredImmediately, res)
	assert.Equal(t, 1, fired.Get())
	assert.Equal(t, 0, timers.Count())
}

func TestOnFireMayRearm(t *testing.T) {
	sched, timers := newTestScheduler()
	var fired counter

	var rearm func()
	rearm = func() {
		fired.Inc()
		if fired.Get() < 3 {
			sched.Arm(tokenExpiringIn(t, time.Hour), DefaultMargin, rearm)
		}
	}

	sched.Arm(tokenExpiringIn(t, time.Hour), DefaultMargin, rearm)
	timers.Last().Fire()
	timers.Last().Fire()
	assert.True(t, sched.Pending())

	timers.Last().Fire()
	assert.Equal(t, 3, fired.Get())
	assert.Equal(t, 3, timers.Count())
	assert.False(t, sched.Pending())
}

func TestNilOnFire(t *testing.T) {
	sched, _ := newTestScheduler()
	assert.NotPanics(t, func() {
		sched.Arm(tokenExpiringIn(t, time.Minute), DefaultMargin, nil)
	})
}

func TestConcurrentArmLeavesOneTimer(t *testing.T) {
	sched, timers := newTestScheduler()
	var fired counter

	tok := tokenExpiringIn(t, time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sched.Arm(tok, DefaultMargin, fired.Inc)
		}()
	}
	wg.Wait()

	live := 0
	for i := 0; i < timers.Count(); i++ {
		if !timers.At(i).Stopped() {
			live++
		}
		timers.At(i).Fire()
	}
	assert.Equal(t, 1, live)
	assert.Equal(t, 1, fired.Get())
}

func TestSchedulerWithRealTimer(t *testing.T) {
	sched := NewScheduler()
	done := make(chan struct{})

	// exp has second precision, so it lands somewhere in the third second.
	tok := sdk.Token{JWT: signedJWT(t, jwt.MapClaims{"exp": time.Now().Add(3 * time.Second).Unix()})}
	res := sched.Arm(tok, 2*time.Second, func() { close(done) })
	require.Equal(t, ArmScheduled, res)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestArmResultString(t *testing.T) {
	assert.Equal(t, "skipped", ArmSkipped.String())
	assert.Equal(t, "scheduled", ArmScheduled.String())
	assert.Equal(t, "fired", ArmFiredImmediately.String())
	assert.Equal(t, "unknown", ArmResult(42).String())
}
