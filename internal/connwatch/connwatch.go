// Package connwatch implements the single-slot "host connected" watch
// carried from the TCP adapter to the CAN adapter (spec.md §5): an SPMC
// cell with exactly one writer (the TCP adapter) and one reader (the CAN
// adapter's Router-facing wrapper).
package connwatch

import "sync/atomic"

// Watch holds the latest known connection state. It always holds a
// value, so a late reader sees the current state rather than blocking
// for an update — the defining property of a "watch" over a plain
// channel.
type Watch struct {
	connected atomic.Bool
}

// New returns a Watch starting in the disconnected state.
func New() *Watch {
	return &Watch{}
}

// Set records the latest connection state.
func (w *Watch) Set(connected bool) {
	w.connected.Store(connected)
}

// Connected reports the latest recorded state.
func (w *Watch) Connected() bool {
	return w.connected.Load()
}
