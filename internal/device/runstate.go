// Package device owns the hardware side of the pipeline: the run/stop state
// machine that drives the sensor and the supervising retry that reopens the
// port after hard faults.
package device

import "sync/atomic"

// RunState is the desired on/off state of the sensor. It is the only mutable
// state shared between the control path and the acquisition loop: the command
// listener is its sole writer, the controller its sole reader. Relaxed
// semantics are fine; the loop tolerates one iteration of staleness.
type RunState struct {
	on atomic.Bool
}

// NewRunState returns a RunState with the given initial desire.
func NewRunState(initial bool) *RunState {
	rs := &RunState{}
	rs.on.Store(initial)
	return rs
}

// Set records the desired state.
func (r *RunState) Set(on bool) {
	r.on.Store(on)
}

// Get reads the desired state.
func (r *RunState) Get() bool {
	return r.on.Load()
}
