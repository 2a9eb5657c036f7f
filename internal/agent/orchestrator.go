// File: internal/agent/orchestrator.go
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/axpilot/api/schemas"
	"github.com/xkilldash9x/axpilot/internal/browser"
	"github.com/xkilldash9x/axpilot/internal/config"
	"github.com/xkilldash9x/axpilot/internal/llmutil"
	"github.com/xkilldash9x/axpilot/internal/observability"
)

// -- Collaborators --

// SnapshotCapturer captures the accessibility snapshot of a target.
type SnapshotCapturer interface {
	Capture(ctx context.Context, target browser.Target) (*schemas.Snapshot, error)
}

// ActionExecutor runs one action against the page and never fails the caller.
type ActionExecutor interface {
	Execute(ctx context.Context, act schemas.Action, snap *schemas.Snapshot) schemas.ActionOutcome
}

// Stabilizer blocks until the page settles and reports whether it did.
type Stabilizer interface {
	Wait(ctx context.Context) bool
}

// NoteReader lists persisted notes for the prompt.
type NoteReader interface {
	List(ctx context.Context) ([]schemas.Note, error)
}

// Options bound the loop.
type Options struct {
	MaxSteps            int
	StagnationWindow    int
	StagnationThreshold int
	ActionRetries       int
	HistoryTail         int
	Generation          schemas.GenerationOptions
}

// OptionsFromConfig maps the agent and LLM sections onto loop options.
func OptionsFromConfig(agentCfg config.AgentConfig, llmCfg config.LLMConfig) Options {
	return Options{
		MaxSteps:            agentCfg.MaxSteps,
		StagnationWindow:    agentCfg.StagnationWindow,
		StagnationThreshold: agentCfg.StagnationThreshold,
		ActionRetries:       agentCfg.ActionRetries,
		HistoryTail:         agentCfg.HistoryTail,
		Generation: schemas.GenerationOptions{
			Temperature:     llmCfg.Temperature,
			MaxTokens:       llmCfg.MaxTokens,
			ForceJSONFormat: true,
		},
	}
}

// Deps are the orchestrator's collaborators.
type Deps struct {
	Resolver   browser.TargetResolver
	Snapshots  SnapshotCapturer
	Oracle     schemas.LLMClient
	Engine     ActionExecutor
	Stabilizer Stabilizer
	Notes      NoteReader
	Status     observability.StatusSink
}

var errModelOutputInvalid = errors.New("model output invalid")

// Orchestrator drives the plan/act loop for one goal at a time.
type Orchestrator struct {
	deps    Deps
	opts    Options
	prompts PromptBuilder
	logger  *zap.Logger
	now     func() time.Time
	newID   func() string

	current atomic.Pointer[RunState]
}

// New creates an orchestrator. Zero bounds take the defaults.
func New(deps Deps, opts Options, logger *zap.Logger) *Orchestrator {
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = 15
	}
	if opts.StagnationWindow <= 0 {
		opts.StagnationWindow = 6
	}
	if opts.StagnationThreshold <= 0 {
		opts.StagnationThreshold = 2
	}
	if opts.ActionRetries < 0 {
		opts.ActionRetries = 0
	}
	if deps.Status == nil {
		deps.Status = observability.NopSink{}
	}
	return &Orchestrator{
		deps:    deps,
		opts:    opts,
		prompts: PromptBuilder{HistoryTail: opts.HistoryTail, Options: opts.Generation},
		logger:  logger.Named("orchestrator"),
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Cancel requests cooperative cancellation of the current run. It returns
// false when no run is active.
func (o *Orchestrator) Cancel() bool {
	s := o.current.Load()
	if s == nil {
		return false
	}
	s.RequestCancel()
	return true
}

// Run executes the loop for goal until a terminal condition. It never panics
// and never returns without a terminal reason.
func (o *Orchestrator) Run(ctx context.Context, goal string) (res schemas.RunResult) {
	state := newRunState(o.newID())
	o.current.Store(state)
	defer o.current.CompareAndSwap(state, nil)

	log := observability.WithTrace(o.logger, state.TraceID())
	res = schemas.RunResult{TraceID: state.TraceID(), StartedAt: o.now()}
	o.status(state, schemas.LevelInfo, "Initializing run.", schemas.StatusInitializing)
	log.Info("Run started.", zap.String("goal", goal), zap.Time("started_at", res.StartedAt))

	var history []schemas.HistoryEntry
	finish := func(reason schemas.TerminalReason, err error) schemas.RunResult {
		res.Reason = reason
		res.Err = err
		res.Steps = state.StepCount()
		res.History = history
		res.FinishedAt = o.now()
		o.status(state, schemas.LevelInfo, "Stopping run.", schemas.StatusStopping)
		fields := []zap.Field{
			zap.String("reason", string(reason)),
			zap.Int("steps", res.Steps),
			zap.Int("oracle_calls", res.OracleCalls),
			zap.Time("finished_at", res.FinishedAt),
		}
		level := schemas.LevelInfo
		if err != nil {
			fields = append(fields, zap.Error(err))
			level = schemas.LevelError
			log.Error("Run finished with error.", fields...)
		} else {
			log.Info("Run finished.", fields...)
		}
		o.status(state, level, "Run ended: "+string(reason), schemas.StatusIdle)
		return res
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("Recovered from panic in run loop.", zap.Any("panic", r), zap.Stack("stack"))
			res = finish(schemas.ReasonError, fmt.Errorf("panic: %v", r))
		}
	}()

	o.status(state, schemas.LevelInfo, "Running.", schemas.StatusRunning)
	for {
		if state.CancelRequested() || ctx.Err() != nil {
			return finish(schemas.ReasonCancelled, nil)
		}
		if Stagnated(history, o.opts.StagnationWindow, o.opts.StagnationThreshold) {
			log.Warn("Stagnation detected.", zap.Int("window", o.opts.StagnationWindow))
			return finish(schemas.ReasonStagnation, nil)
		}

		step := state.StepCount()
		stepLog := log.With(zap.Int("step", step))

		actions, snap, err := o.plan(ctx, goal, history, &res, stepLog)
		if err != nil {
			switch {
			case errors.Is(err, errModelOutputInvalid):
				return finish(schemas.ReasonModelOutputInvalid, err)
			case ctx.Err() != nil:
				return finish(schemas.ReasonCancelled, nil)
			default:
				return finish(schemas.ReasonError, err)
			}
		}

		stopped := o.act(ctx, state, step, actions, snap, &history, stepLog)
		state.stepCount.Add(1)
		if stopped {
			return finish(schemas.ReasonDone, nil)
		}
		if state.StepCount() >= o.opts.MaxSteps {
			return finish(schemas.ReasonMaxStepsReached, nil)
		}
	}
}

// plan captures the snapshot, reads notes, consults the oracle and interprets
// its answer.
func (o *Orchestrator) plan(ctx context.Context, goal string, history []schemas.HistoryEntry, res *schemas.RunResult, log *zap.Logger) ([]schemas.Action, *schemas.Snapshot, error) {
	target, err := o.deps.Resolver.ActiveTarget(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving target: %w", err)
	}
	snap, err := o.deps.Snapshots.Capture(ctx, target)
	if err != nil {
		return nil, nil, fmt.Errorf("capturing snapshot: %w", err)
	}
	log.Debug("Snapshot captured.", zap.String("url", snap.URL), zap.Int("elements", snap.Len()), zap.Bool("truncated", snap.Truncated))

	var notes []schemas.Note
	if o.deps.Notes != nil {
		notes, err = o.deps.Notes.List(ctx)
		if err != nil {
			// Notes are advisory; plan without them.
			log.Warn("Failed to read notes.", zap.Error(err))
			notes = nil
		}
	}

	req := o.prompts.Build(goal, snap, history, notes)
	res.OracleCalls++
	raw, err := o.deps.Oracle.Generate(ctx, req)
	if err != nil {
		return nil, nil, fmt.Errorf("oracle generation failed: %w", err)
	}

	actions, perr := interpretRaw(raw)
	if actions == nil {
		log.Warn("Oracle output could not be interpreted.",
			zap.String("raw_response", llmutil.Truncate(raw, 2000)), zap.Error(perr))
		return nil, nil, fmt.Errorf("%w: %v", errModelOutputInvalid, perr)
	}
	log.Info("Oracle planned actions.", zap.Int("count", len(actions)))
	return actions, snap, nil
}

// act executes the batch in order. It reports true when a stop action ended
// the run.
func (o *Orchestrator) act(ctx context.Context, state *RunState, step int, actions []schemas.Action, snap *schemas.Snapshot, history *[]schemas.HistoryEntry, log *zap.Logger) bool {
	for i, act := range actions {
		out := o.executeWithRetry(ctx, act, snap, log)
		*history = append(*history, schemas.HistoryEntry{StepIndex: step, Action: act, Outcome: out})

		o.reportOutcome(state, act, out, log)

		// A stop ends the run even when the engine could not acknowledge it.
		if act.Kind() == schemas.ActionStop || out.Signal == schemas.SignalStopRun {
			if rest := len(actions) - i - 1; rest > 0 {
				log.Info("Discarding actions after stop.", zap.Int("discarded", rest))
			}
			return true
		}
		if act.Kind() != schemas.ActionNavigate && o.deps.Stabilizer != nil {
			o.deps.Stabilizer.Wait(ctx)
		}
		if out.Signal == schemas.SignalEndBatch {
			if rest := len(actions) - i - 1; rest > 0 {
				log.Info("Page changed; discarding rest of batch.", zap.Int("discarded", rest))
			}
			break
		}
	}
	return false
}

// executeWithRetry retries transient execution failures, waiting for the page
// to settle between attempts.
func (o *Orchestrator) executeWithRetry(ctx context.Context, act schemas.Action, snap *schemas.Snapshot, log *zap.Logger) schemas.ActionOutcome {
	out := o.deps.Engine.Execute(ctx, act, snap)
	for attempt := 1; attempt <= o.opts.ActionRetries && retryable(out); attempt++ {
		if ctx.Err() != nil {
			break
		}
		log.Debug("Retrying action.", zap.Stringer("action", act), zap.Int("attempt", attempt), zap.String("error", out.Message))
		if o.deps.Stabilizer != nil {
			o.deps.Stabilizer.Wait(ctx)
		}
		out = o.deps.Engine.Execute(ctx, act, snap)
	}
	return out
}

func retryable(out schemas.ActionOutcome) bool {
	return !out.Succeeded() && out.Error == schemas.ErrCodeExecutionFailure
}

func (o *Orchestrator) reportOutcome(state *RunState, act schemas.Action, out schemas.ActionOutcome, log *zap.Logger) {
	fields := []zap.Field{
		zap.Stringer("action", act),
		zap.String("purpose", act.Purpose),
		zap.String("status", string(out.Status)),
		zap.Bool("url_changed", out.URLChanged),
	}
	if out.Succeeded() {
		log.Info("Action executed.", fields...)
		o.status(state, schemas.LevelInfo, fmt.Sprintf("%s: success", act), "")
		return
	}
	fields = append(fields, zap.String("error", string(out.Error)), zap.String("message", out.Message))
	log.Warn("Action failed.", fields...)
	o.status(state, schemas.LevelWarn, fmt.Sprintf("%s: %s %s", act, out.Error, out.Message), "")
}

func (o *Orchestrator) status(state *RunState, level schemas.StatusLevel, msg string, st schemas.RunStatus) {
	o.deps.Status.Emit(schemas.StatusRecord{
		Level:   level,
		Message: msg,
		Time:    o.now(),
		TraceID: state.TraceID(),
		Status:  st,
	})
}
