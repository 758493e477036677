// Package debounce provides the cancel-and-rearm timer primitive used for
// coalescing bursts of input events into a single trailing execution.
package debounce

import (
	"sync"
	"time"
)

// Debouncer delays execution of the most recent function until input activity
// has paused for the configured interval. Each Trigger discards the pending
// execution and re-arms the timer.
type Debouncer struct {
	delay time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

// New creates a Debouncer with the given trailing delay.
func New(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Trigger schedules fn to run after the delay, cancelling any previously
// scheduled function that has not yet fired.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, fn)
}

// Stop cancels any pending execution. It does not wait for a function that
// has already started running.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
