package telemetry

import (
	"sync/atomic"
	"time"
)

// Watchdog defaults.
const (
	DefaultWatchdogTimeout  = 10 * time.Second
	DefaultWatchdogInterval = 1 * time.Second
)

// IsStale reports whether telemetry has gone silent: no effective batch for
// longer than the timeout. The zero-guard prevents false staleness before
// the first message ever arrives.
func IsStale(lastHeartbeat, now time.Time, timeout time.Duration) bool {
	if lastHeartbeat.IsZero() {
		return false
	}
	return now.Sub(lastHeartbeat) > timeout
}

// Watchdog periodically derives a staleness boolean from the store's
// heartbeat. It has no side effects beyond recomputation.
type Watchdog struct {
	store    *Store
	timeout  time.Duration
	interval time.Duration
	stale    atomic.Bool
	stop     chan struct{}
	done     chan struct{}
}

// NewWatchdog creates a watchdog over the store. Zero durations fall back to
// the defaults.
func NewWatchdog(store *Store, timeout, interval time.Duration) *Watchdog {
	if timeout <= 0 {
		timeout = DefaultWatchdogTimeout
	}
	if interval <= 0 {
		interval = DefaultWatchdogInterval
	}
	return &Watchdog{
		store:    store,
		timeout:  timeout,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the periodic check. Call Stop to release the ticker.
func (w *Watchdog) Start() {
	go func() {
		defer close(w.done)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				w.stale.Store(IsStale(w.store.LastHeartbeat(), time.Now(), w.timeout))
			case <-w.stop:
				return
			}
		}
	}()
}

// Stop terminates the periodic check and waits for the goroutine to exit.
// Safe to call once.
func (w *Watchdog) Stop() {
	close(w.stop)
	<-w.done
}

// Stale returns the last derived staleness value.
func (w *Watchdog) Stale() bool {
	return w.stale.Load()
}
