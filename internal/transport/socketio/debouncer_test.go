package socketio

import (
	"sync"
	"testing"
	"time"
)

type flushRecorder struct {
	mu    sync.Mutex
	calls []struct{ state, queue bool }
}

func (r *flushRecorder) flush(state, queue bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, struct{ state, queue bool }{state, queue})
}

func (r *flushRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *flushRecorder) last() (bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.calls[len(r.calls)-1]
	return c.state, c.queue
}

func TestPushDebouncer_CollapsesBurst(t *testing.T) {
	rec := &flushRecorder{}
	d := newPushDebouncer(20*time.Millisecond, rec.flush)
	defer d.Stop()

	d.Trigger("player")
	d.Trigger("mixer")
	d.Trigger("player")

	time.Sleep(100 * time.Millisecond)

	if got := rec.count(); got != 1 {
		t.Fatalf("flush calls = %d, want 1", got)
	}
	state, queue := rec.last()
	if !state || queue {
		t.Errorf("flush(state=%v, queue=%v), want state only", state, queue)
	}
}

func TestPushDebouncer_PlaylistSetsBothFlags(t *testing.T) {
	rec := &flushRecorder{}
	d := newPushDebouncer(10*time.Millisecond, rec.flush)
	defer d.Stop()

	d.Trigger("playlist")

	time.Sleep(80 * time.Millisecond)

	if got := rec.count(); got != 1 {
		t.Fatalf("flush calls = %d, want 1", got)
	}
	state, queue := rec.last()
	if !state || !queue {
		t.Errorf("flush(state=%v, queue=%v), want both", state, queue)
	}
}

func TestPushDebouncer_IgnoresUnknownSubsystem(t *testing.T) {
	rec := &flushRecorder{}
	d := newPushDebouncer(10*time.Millisecond, rec.flush)
	defer d.Stop()

	d.Trigger("sticker")

	time.Sleep(60 * time.Millisecond)

	if got := rec.count(); got != 0 {
		t.Errorf("flush calls = %d, want 0", got)
	}
}

func TestPushDebouncer_StopDropsPending(t *testing.T) {
	rec := &flushRecorder{}
	d := newPushDebouncer(30*time.Millisecond, rec.flush)

	d.Trigger("player")
	d.Stop()

	time.Sleep(100 * time.Millisecond)

	if got := rec.count(); got != 0 {
		t.Errorf("flush calls = %d after Stop, want 0", got)
	}
}
