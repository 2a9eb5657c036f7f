// File: internal/agent/runstate.go
package agent

import "sync/atomic"

// RunState is the per-run mutable state. Only the cancel flag may be touched
// from outside the loop.
type RunState struct {
	traceID         string
	stepCount       atomic.Int64
	cancelRequested atomic.Bool
}

func newRunState(traceID string) *RunState {
	return &RunState{traceID: traceID}
}

func (s *RunState) TraceID() string { return s.traceID }

// StepCount is the number of completed plan/act steps.
func (s *RunState) StepCount() int { return int(s.stepCount.Load()) }

// RequestCancel asks the loop to stop at its next iteration boundary.
func (s *RunState) RequestCancel() { s.cancelRequested.Store(true) }

func (s *RunState) CancelRequested() bool { return s.cancelRequested.Load() }
