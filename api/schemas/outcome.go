package schemas

// OutcomeStatus is the coarse result of executing one action.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailed  OutcomeStatus = "failed"
)

// ErrorCode classifies a failure for history, logs, and tests.
type ErrorCode string

const (
	ErrCodeSnapshot           ErrorCode = "SnapshotError"
	ErrCodeSessionBusy        ErrorCode = "SessionBusyError"
	ErrCodeModelOutputInvalid ErrorCode = "ModelOutputInvalid"
	ErrCodeNodeResolution     ErrorCode = "NodeResolutionError"
	ErrCodeActionUnsupported  ErrorCode = "ActionUnsupported"
	ErrCodeNavigationTimeout  ErrorCode = "NavigationTimeout"
	ErrCodeNoActiveTarget     ErrorCode = "NoActiveTargetError"
	ErrCodeInvalidParameters  ErrorCode = "InvalidParameters"
	ErrCodeExecutionFailure   ErrorCode = "ExecutionFailure"
	ErrCodeNoHistoryEntry     ErrorCode = "NoHistoryEntry"
)

// Signal tells the orchestrator how to continue after an action.
type Signal string

const (
	// SignalNone continues with the next action of the batch.
	SignalNone Signal = ""
	// SignalEndBatch discards the rest of the batch; the page document changed.
	SignalEndBatch Signal = "end_batch"
	// SignalStopRun ends the run.
	SignalStopRun Signal = "stop_run"
)

// ActionOutcome is produced exactly once per executed action and is treated as
// immutable afterwards.
type ActionOutcome struct {
	Status     OutcomeStatus `json:"status"`
	Error      ErrorCode     `json:"error,omitempty"`
	Message    string        `json:"message,omitempty"`
	URLChanged bool          `json:"urlChanged"`
	Detail     string        `json:"detail,omitempty"`
	Signal     Signal        `json:"-"`
}

// Succeeded reports whether the action completed.
func (o ActionOutcome) Succeeded() bool { return o.Status == OutcomeSuccess }

// Success builds a successful outcome.
func Success(urlChanged bool, detail string) ActionOutcome {
	return ActionOutcome{Status: OutcomeSuccess, URLChanged: urlChanged, Detail: detail}
}

// Failure builds a failed outcome.
func Failure(code ErrorCode, msg string) ActionOutcome {
	return ActionOutcome{Status: OutcomeFailed, Error: code, Message: msg}
}

// HistoryEntry records one executed action. Entries are appended in execution
// order and never removed during a run.
type HistoryEntry struct {
	StepIndex int           `json:"stepIndex"`
	Action    Action        `json:"action"`
	Outcome   ActionOutcome `json:"outcome"`
}
