package schemas

import "time"

// TerminalReason explains why a run ended.
type TerminalReason string

const (
	ReasonDone               TerminalReason = "done"
	ReasonModelOutputInvalid TerminalReason = "model_output_invalid"
	ReasonMaxStepsReached    TerminalReason = "max_steps_reached"
	ReasonStagnation         TerminalReason = "stagnation"
	ReasonCancelled          TerminalReason = "cancelled"
	ReasonError              TerminalReason = "error"
)

// RunStatus is the coarse lifecycle status reported to observers.
type RunStatus string

const (
	StatusInitializing RunStatus = "initializing"
	StatusRunning      RunStatus = "running"
	StatusStopping     RunStatus = "stopping"
	StatusIdle         RunStatus = "idle"
)

// StatusLevel mirrors log severities for status records.
type StatusLevel string

const (
	LevelDebug StatusLevel = "debug"
	LevelInfo  StatusLevel = "info"
	LevelWarn  StatusLevel = "warn"
	LevelError StatusLevel = "error"
)

// StatusRecord is a one-way status or log emission.
type StatusRecord struct {
	Level   StatusLevel `json:"level"`
	Message string      `json:"message"`
	Time    time.Time   `json:"time"`
	TraceID string      `json:"trace_id,omitempty"`
	Status  RunStatus   `json:"status,omitempty"`
}

// RunResult summarizes a finished run.
type RunResult struct {
	TraceID     string         `json:"trace_id"`
	Reason      TerminalReason `json:"reason"`
	Steps       int            `json:"steps"`
	OracleCalls int            `json:"oracle_calls"`
	History     []HistoryEntry `json:"history"`
	Err         error          `json:"-"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at"`
}
