package connectivity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// probeFunc is a switchable probe with call counting.
type probeFunc struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (p *probeFunc) fn(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.err
}

func (p *probeFunc) set(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// drainCounter counts drain invocations.
type drainCounter struct {
	mu    sync.Mutex
	calls int
}

func (d *drainCounter) fn(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	return nil
}

func (d *drainCounter) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func TestWatcherDrainsWhenReachable(t *testing.T) {
	probe := &probeFunc{}
	drain := &drainCounter{}

	w := NewWatcher(probe.fn, drain.fn)
	w.Interval = time.Hour // only the eager check runs

	stop := w.Start(context.Background())
	defer stop()

	waitFor(t, func() bool { return drain.count() >= 1 })
	if !w.Online() {
		t.Error("watcher should report online")
	}
}

func TestWatcherDrainsOnEveryReachableProbe(t *testing.T) {
	probe := &probeFunc{}
	drain := &drainCounter{}

	w := NewWatcher(probe.fn, drain.fn)
	w.Interval = time.Hour

	stop := w.Start(context.Background())
	defer stop()

	waitFor(t, func() bool { return drain.count() >= 1 })

	// Already online: another probe must still drain, so entries queued
	// by other processes between ticks get picked up.
	w.TriggerNow()
	waitFor(t, func() bool { return drain.count() >= 2 })
}

func TestWatcherSkipsDrainWhileOffline(t *testing.T) {
	probe := &probeFunc{err: errors.New("unreachable")}
	drain := &drainCounter{}

	w := NewWatcher(probe.fn, drain.fn)
	w.Interval = time.Hour

	stop := w.Start(context.Background())
	defer stop()

	// The eager check must complete (probe retries, then gives up).
	waitFor(t, func() bool {
		probe.mu.Lock()
		defer probe.mu.Unlock()
		return probe.calls >= 1
	})
	time.Sleep(50 * time.Millisecond)

	if drain.count() != 0 {
		t.Errorf("drained %d times while offline", drain.count())
	}
	if w.Online() {
		t.Error("watcher should report offline")
	}
}

func TestWatcherDrainsOnReconnect(t *testing.T) {
	probe := &probeFunc{err: errors.New("unreachable")}
	drain := &drainCounter{}

	w := NewWatcher(probe.fn, drain.fn)
	w.Interval = time.Hour

	stop := w.Start(context.Background())
	defer stop()

	waitFor(t, func() bool {
		probe.mu.Lock()
		defer probe.mu.Unlock()
		return probe.calls >= 1
	})

	// Server comes back; a manual trigger stands in for the next tick.
	probe.set(nil)
	w.TriggerNow()

	waitFor(t, func() bool { return drain.count() >= 1 })
	if !w.Online() {
		t.Error("watcher should report online after reconnect")
	}
}

func TestWatcherStopTerminatesLoop(t *testing.T) {
	probe := &probeFunc{}
	drain := &drainCounter{}

	w := NewWatcher(probe.fn, drain.fn)
	w.Interval = 10 * time.Millisecond

	stop := w.Start(context.Background())
	waitFor(t, func() bool { return drain.count() >= 1 })
	stop()

	settled := drain.count()
	time.Sleep(50 * time.Millisecond)
	if drain.count() != settled {
		t.Error("watcher kept draining after stop")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
