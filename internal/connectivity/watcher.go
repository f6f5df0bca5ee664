// Package connectivity watches server reachability and triggers a sync pass
// on the transition back to online.
package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
)

const defaultInterval = 15 * time.Second

// Watcher probes the server on an interval and invokes the drain func when
// connectivity returns. Drain failures are logged, never propagated, so a
// failed background sync cannot take the process down.
type Watcher struct {
	probe    func(ctx context.Context) error
	drain    func(ctx context.Context) error
	Interval time.Duration

	mu      sync.Mutex
	online  bool
	cancel  context.CancelFunc
	trigger chan struct{}
	done    chan struct{}
}

// NewWatcher creates a Watcher. probe reports reachability (typically a
// /healthz round trip); drain runs one sync pass.
func NewWatcher(probe, drain func(ctx context.Context) error) *Watcher {
	return &Watcher{
		probe:    probe,
		drain:    drain,
		Interval: defaultInterval,
		trigger:  make(chan struct{}, 1),
	}
}

// Online reports the last observed connectivity state.
func (w *Watcher) Online() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.online
}

// Start begins watching. One eager probe-and-drain runs immediately to catch
// mutations queued while the process was offline. The returned func stops
// the watcher and waits for the loop to exit.
func (w *Watcher) Start(ctx context.Context) func() {
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})

	go w.run(ctx)

	return func() {
		cancel()
		<-w.done
	}
}

// TriggerNow requests an immediate probe-and-drain, coalescing with any
// already-pending trigger.
func (w *Watcher) TriggerNow() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("connectivity: watcher panic", "panic", r)
		}
	}()

	w.check(ctx)

	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.check(ctx)
		case <-w.trigger:
			w.check(ctx)
		}
	}
}

// check probes the server and drains whenever it is reachable. Draining on
// every reachable probe, not just the offline-to-online transition, picks up
// entries queued by other processes between ticks.
func (w *Watcher) check(ctx context.Context) {
	reachable := w.probeOnce(ctx) == nil

	w.mu.Lock()
	wasOnline := w.online
	w.online = reachable
	w.mu.Unlock()

	if !reachable {
		if wasOnline {
			slog.Info("connectivity: offline")
		}
		return
	}
	if !wasOnline {
		slog.Info("connectivity: online")
	}

	if err := w.drain(ctx); err != nil && ctx.Err() == nil {
		slog.Warn("connectivity: background sync", "err", err)
	}
}

// probeOnce retries the probe briefly before declaring the server offline,
// smoothing over one-off transport hiccups.
func (w *Watcher) probeOnce(ctx context.Context) error {
	b := retry.WithMaxRetries(2, retry.NewConstant(500*time.Millisecond))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		if err := w.probe(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}
