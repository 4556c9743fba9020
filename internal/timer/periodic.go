// Package timer implements a sliding-window one-shot timer: the callback may
// return an absolute time to reschedule against instead of a fixed period,
// which lets heartbeat sends coalesce when outbound traffic slides the
// deadline forward.
package timer

import (
	"sync"
	"time"

	"github.com/sio6/gateway/internal/log"
)

// Clock abstracts wall-clock access so tests can control time deterministically.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is the subset of time.Timer that Clock implementations must provide.
type Timer interface {
	Stop() bool
	Reset(d time.Duration) bool
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// RealClock is the production Clock backed by the time package.
var RealClock Clock = realClock{}

// Callback returns an absolute time.Time to push the next firing out to, or
// the zero Value to accept the default interval on the next run.
type Callback func() time.Time

// PeriodicTimer is a sliding-window one-shot timer. Start arms it; each
// firing invokes Callback, then rearms at the time Callback returns (or
// after the configured interval if it returns the zero Value). Errors are
// not possible by signature — callbacks that can fail should log internally
// and return a reschedule time regardless, matching the swallow-and-continue
// behavior required of heartbeat timers.
type PeriodicTimer struct {
	mu       sync.Mutex
	clock    Clock
	interval time.Duration
	callback Callback
	timer    Timer
	running  bool
}

// New creates a PeriodicTimer with the given interval and callback, using
// the real wall clock.
func New(interval time.Duration, callback Callback) *PeriodicTimer {
	return NewWithClock(RealClock, interval, callback)
}

// NewWithClock creates a PeriodicTimer against an injected Clock, for tests.
func NewWithClock(clock Clock, interval time.Duration, callback Callback) *PeriodicTimer {
	return &PeriodicTimer{clock: clock, interval: interval, callback: callback}
}

// Start arms the timer. If at is the zero Value, the first firing is
// scheduled after the configured interval; otherwise at the given absolute
// time.
func (t *PeriodicTimer) Start(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = true
	t.armLocked(at)
}

func (t *PeriodicTimer) armLocked(at time.Time) {
	if at.IsZero() {
		at = t.clock.Now().Add(t.interval)
	}
	d := at.Sub(t.clock.Now())
	if d < 0 {
		d = 0
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = t.clock.AfterFunc(d, t.run)
}

// Stop halts the timer. A subsequent Start re-arms it.
func (t *PeriodicTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *PeriodicTimer) run() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	next := t.invoke()

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	t.armLocked(next)
}

func (t *PeriodicTimer) invoke() (next time.Time) {
	defer func() {
		if r := recover(); r != nil {
			log.WithComponent("timer").Error().
				Interface("panic", r).
				Msg("periodic callback panicked")
		}
	}()
	return t.callback()
}
