package governor

import "sync"

// enableGate is the per-core analogue of the original enable_gate rwsem:
// the load-sampler timer takes it with a non-blocking read (TryRLock) so
// a core mid-STOP never blocks a timer callback, while START/STOP
// take it as a blocking write so they never race a sample tick flipping
// enabled out from under them.
type enableGate struct {
	mu      sync.RWMutex
	enabled bool
}

// TryAcquire takes the read side without blocking. ok is false if a
// writer currently holds the gate, in which case the caller must skip
// this tick entirely (spec §4.1's "a core under start/stop is not
// sampled").
func (g *enableGate) TryAcquire() (enabled bool, ok bool) {
	if !g.mu.TryRLock() {
		return false, false
	}
	enabled = g.enabled
	g.mu.RUnlock()
	return enabled, true
}

// Set takes the gate as a blocking writer and flips enabled.
func (g *enableGate) Set(enabled bool) {
	g.mu.Lock()
	g.enabled = enabled
	g.mu.Unlock()
}

// Enabled reads the current state under a blocking read lock. Used by
// paths (hot-plug decider, HTTP status) that can tolerate waiting out a
// START/STOP in flight.
func (g *enableGate) Enabled() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.enabled
}
