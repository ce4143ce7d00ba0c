package admission

import (
	"sync"
	"time"
)

// attackTracker detects attacks by counting new admissions
// per second against a threshold.
type attackTracker struct {
	threshold int

	mu        sync.Mutex
	window    time.Time // start of the current one second window
	count     int       // admissions in the current window
	peak      int
	active    bool
	startedAt time.Time

	onStart func()
	onEnd   func(duration time.Duration, peak int)
}

func newAttackTracker(threshold int, onStart func(), onEnd func(time.Duration, int)) *attackTracker {
	return &attackTracker{
		threshold: threshold,
		onStart:   onStart,
		onEnd:     onEnd,
	}
}

// Admitted counts one new admission at time now.
func (a *attackTracker) Admitted(now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.roll(now)
	a.count++
	if a.count > a.peak {
		a.peak = a.count
	}
	if !a.active && a.count > a.threshold {
		a.active = true
		a.startedAt = now
		if a.onStart != nil {
			a.onStart()
		}
	}
}

// Tick re-evaluates the attack state, ending an attack once
// a full window passed below the threshold.
func (a *attackTracker) Tick(now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.roll(now)
}

// Active reports whether an attack is ongoing.
func (a *attackTracker) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

func (a *attackTracker) roll(now time.Time) {
	if now.Sub(a.window) < time.Second {
		return
	}
	ending := a.active && a.count <= a.threshold
	if ending {
		a.active = false
		if a.onEnd != nil {
			a.onEnd(now.Sub(a.startedAt), a.peak)
		}
		a.peak = 0
	}
	a.window = now
	a.count = 0
}
