package checkout

import (
	"sync"
	"time"
)

// Remaining is the countdown value for a hold deadline, clamped to zero.
// It is computed fresh from the clock on every tick rather than
// decremented, so a suspended process wakes up to the true remainder
// instead of a drifted one.
func Remaining(now, expiresAt time.Time) time.Duration {
	d := expiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Timer counts down to a session's hold deadline and fires a callback
// exactly once when it passes.  A tick callback, when set, receives the
// remaining duration every second for display.
type Timer struct {
	mu      sync.Mutex
	stop    chan struct{}
	stopped bool
	fired   bool
	now     func() time.Time
}

// NewTimer returns an unstarted Timer.
func NewTimer() *Timer {
	return &Timer{now: time.Now}
}

// Start begins ticking toward expiresAt.  onExpire runs once, from the
// timer's goroutine, when the deadline passes; onTick, when non-nil, runs
// every second with the clamped remainder.  Starting an already started
// timer restarts it against the new deadline.
func (t *Timer) Start(expiresAt time.Time, onExpire func(), onTick func(time.Duration)) {
	t.mu.Lock()
	if t.stop != nil && !t.stopped {
		close(t.stop)
	}
	stop := make(chan struct{})
	t.stop = stop
	t.stopped = false
	t.fired = false
	t.mu.Unlock()

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				rem := Remaining(t.now(), expiresAt)
				if onTick != nil {
					onTick(rem)
				}
				if rem == 0 {
					t.mu.Lock()
					already := t.fired
					t.fired = true
					t.mu.Unlock()
					if !already {
						onExpire()
					}
					return
				}
			}
		}
	}()
}

// Stop halts the countdown.  It is idempotent and must be called when the
// attempt reaches a terminal state or is torn down, so a leaked tick can
// never cancel a session that no longer belongs to this attempt.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil && !t.stopped {
		close(t.stop)
		t.stopped = true
	}
}
