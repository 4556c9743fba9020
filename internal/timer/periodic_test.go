package timer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually-advanced Clock for deterministic timer tests.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	pending []*fakeTimer
}

type fakeTimer struct {
	c        *fakeClock
	deadline time.Time
	f        func()
	stopped  bool
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	ft := &fakeTimer{c: c, deadline: c.now.Add(d), f: f}
	c.pending = append(c.pending, ft)
	return ft
}

func (ft *fakeTimer) Stop() bool {
	ft.c.mu.Lock()
	defer ft.c.mu.Unlock()
	wasStopped := ft.stopped
	ft.stopped = true
	return !wasStopped
}

func (ft *fakeTimer) Reset(d time.Duration) bool {
	ft.c.mu.Lock()
	defer ft.c.mu.Unlock()
	ft.deadline = ft.c.now.Add(d)
	was := ft.stopped
	ft.stopped = false
	return !was
}

// Advance moves the clock forward and synchronously fires any timer whose
// deadline has passed, in deadline order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	due := make([]*fakeTimer, 0)
	remaining := c.pending[:0]
	for _, ft := range c.pending {
		if !ft.stopped && !ft.deadline.After(c.now) {
			due = append(due, ft)
		} else {
			remaining = append(remaining, ft)
		}
	}
	c.pending = remaining
	c.mu.Unlock()

	for _, ft := range due {
		ft.f()
	}
}

func TestPeriodicTimerFixedInterval(t *testing.T) {
	clock := newFakeClock(time.Unix(0, 0))
	var calls int
	pt := NewWithClock(clock, time.Second, func() time.Time {
		calls++
		return time.Time{}
	})
	pt.Start(time.Time{})

	clock.Advance(999 * time.Millisecond)
	assert.Equal(t, 0, calls, "should not fire before interval elapses")

	clock.Advance(2 * time.Millisecond)
	assert.Equal(t, 1, calls, "should fire once interval elapses")

	clock.Advance(time.Second)
	assert.Equal(t, 2, calls, "should re-arm for another interval")
}

func TestPeriodicTimerSlidesForwardOnReschedule(t *testing.T) {
	clock := newFakeClock(time.Unix(0, 0))
	var calls int
	var deadline time.Time

	pt := NewWithClock(clock, time.Second, func() time.Time {
		calls++
		if !deadline.IsZero() && clock.Now().Before(deadline) {
			return deadline
		}
		return time.Time{}
	})
	pt.Start(time.Time{})

	// Simulate outbound traffic pushing the deadline out to +2.1s shortly
	// before the first firing at +1s.
	clock.Advance(900 * time.Millisecond)
	deadline = clock.Now().Add(1200 * time.Millisecond)

	clock.Advance(150 * time.Millisecond) // now at 1.05s, fires, callback sees now < deadline(2.1s)
	require.Equal(t, 1, calls)

	clock.Advance(900 * time.Millisecond) // now at 1.95s, still < deadline
	assert.Equal(t, 1, calls, "should not fire again until deadline reached")

	clock.Advance(200 * time.Millisecond) // now past deadline
	assert.Equal(t, 2, calls)
}

func TestPeriodicTimerStopPreventsFiring(t *testing.T) {
	clock := newFakeClock(time.Unix(0, 0))
	var calls int
	pt := NewWithClock(clock, time.Second, func() time.Time {
		calls++
		return time.Time{}
	})
	pt.Start(time.Time{})
	pt.Stop()

	clock.Advance(5 * time.Second)
	assert.Equal(t, 0, calls, "stopped timer must not fire")
}

func TestPeriodicTimerCallbackPanicIsSwallowed(t *testing.T) {
	clock := newFakeClock(time.Unix(0, 0))
	var calls int
	pt := NewWithClock(clock, time.Second, func() time.Time {
		calls++
		if calls == 1 {
			panic("boom")
		}
		return time.Time{}
	})
	pt.Start(time.Time{})

	clock.Advance(time.Second)
	assert.Equal(t, 1, calls)

	// Timer must keep running after a panicking callback.
	clock.Advance(time.Second)
	assert.Equal(t, 2, calls)
}
