package socketio

import (
	"sync"
	"time"
)

// pushDebouncer collapses rapid MPD subsystem events into one batched push.
// A track change fires player, mixer, and sometimes playlist within a few
// milliseconds; clients should see a single update.
type pushDebouncer struct {
	window time.Duration
	flush  func(state, queue bool)

	mu           sync.Mutex
	pendingState bool
	pendingQueue bool
	timer        *time.Timer
	stopped      bool
}

func newPushDebouncer(window time.Duration, flush func(state, queue bool)) *pushDebouncer {
	return &pushDebouncer{
		window: window,
		flush:  flush,
	}
}

// Trigger records a subsystem change. The flush callback runs once the
// window elapses without further triggers.
func (d *pushDebouncer) Trigger(subsystem string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	switch subsystem {
	case "player", "mixer", "options":
		d.pendingState = true
	case "playlist":
		// Queue changes shift positions, so the state view updates too.
		d.pendingState = true
		d.pendingQueue = true
	default:
		return
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.fire)
}

func (d *pushDebouncer) fire() {
	d.mu.Lock()
	state := d.pendingState
	queue := d.pendingQueue
	d.pendingState = false
	d.pendingQueue = false
	stopped := d.stopped
	d.mu.Unlock()

	if stopped || (!state && !queue) {
		return
	}
	d.flush(state, queue)
}

// Stop discards pending pushes and prevents further ones.
func (d *pushDebouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pendingState = false
	d.pendingQueue = false
}
