package auth

import (
	"fmt"
	"sync"
	"time"
)

// LockoutTimer is a pure countdown seeded from the backend's
// remaining-seconds value when a login attempt is rejected for rate
// limiting. It decrements once per interval, never goes negative, and a new
// lockout value always replaces the running count.
type LockoutTimer struct {
	interval time.Duration
	onExpire func()

	mu        sync.Mutex
	remaining int
	stop      chan struct{}
}

// NewLockoutTimer creates a stopped timer. onExpire (optional) runs once
// when the countdown reaches zero; callers use it to clear the lockout
// error text.
func NewLockoutTimer(interval time.Duration, onExpire func()) *LockoutTimer {
	if interval <= 0 {
		interval = time.Second
	}
	return &LockoutTimer{interval: interval, onExpire: onExpire}
}

// Set starts (or restarts) the countdown from the given number of seconds.
func (t *LockoutTimer) Set(seconds int) {
	t.mu.Lock()
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
	if seconds <= 0 {
		t.remaining = 0
		t.mu.Unlock()
		return
	}
	t.remaining = seconds
	stop := make(chan struct{})
	t.stop = stop
	t.mu.Unlock()

	go t.run(stop)
}

// Remaining returns the seconds left, zero when no lockout is active.
func (t *LockoutTimer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// String formats the countdown as zero-padded minutes:seconds, e.g. "0:42".
func (t *LockoutTimer) String() string {
	remaining := t.Remaining()
	return fmt.Sprintf("%d:%02d", remaining/60, remaining%60)
}

// Stop cancels the countdown without firing onExpire. Called on teardown so
// no ticking goroutine outlives the owner.
func (t *LockoutTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
	t.remaining = 0
}

func (t *LockoutTimer) run(stop chan struct{}) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			t.mu.Lock()
			if t.stop != stop {
				// Superseded by a newer lockout value.
				t.mu.Unlock()
				return
			}
			t.remaining--
			if t.remaining <= 0 {
				t.remaining = 0
				t.stop = nil
				t.mu.Unlock()
				if t.onExpire != nil {
					t.onExpire()
				}
				return
			}
			t.mu.Unlock()
		}
	}
}
