// internal/browser/interactor/engine.go
package interactor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/axpilot/api/schemas"
	"github.com/xkilldash9x/axpilot/internal/browser"
)

const detachTimeout = 5 * time.Second

// NoteWriter is the part of the notes store the engine writes to.
type NoteWriter interface {
	Append(ctx context.Context, title, content string) (schemas.Note, error)
}

// Options tunes the engine.
type Options struct {
	// ActionTimeout bounds one Execute call, session attach to detach.
	ActionTimeout time.Duration
	// HistoryBackTimeout is how long history_back waits for the navigation signal.
	HistoryBackTimeout time.Duration
	// TrustedInput sends clicks as protocol mouse events at the element center.
	TrustedInput bool
}

// Engine executes planned actions against the active page. It never returns an
// error: every failure becomes a failed ActionOutcome.
type Engine struct {
	resolver browser.TargetResolver
	notes    NoteWriter
	opts     Options
	logger   *zap.Logger
	now      func() time.Time
}

// New creates an engine. notes may be nil, in which case write_memory fails.
func New(resolver browser.TargetResolver, notes NoteWriter, opts Options, logger *zap.Logger) *Engine {
	if opts.ActionTimeout <= 0 {
		opts.ActionTimeout = 20 * time.Second
	}
	if opts.HistoryBackTimeout <= 0 {
		opts.HistoryBackTimeout = 1500 * time.Millisecond
	}
	return &Engine{
		resolver: resolver,
		notes:    notes,
		opts:     opts,
		logger:   logger.Named("interactor"),
		now:      time.Now,
	}
}

// Execute runs one action. snap is the snapshot the action was planned from;
// element ids absent from it are rejected before any page interaction.
func (e *Engine) Execute(ctx context.Context, act schemas.Action, snap *schemas.Snapshot) (out schemas.ActionOutcome) {
	log := e.logger.With(zap.Stringer("action", act), zap.String("purpose", act.Purpose))
	start := e.now()
	defer func() {
		log.Debug("Action finished.",
			zap.String("status", string(out.Status)),
			zap.String("error", string(out.Error)),
			zap.Bool("url_changed", out.URLChanged),
			zap.String("detail", out.Detail),
			zap.Duration("took", e.now().Sub(start)))
	}()

	ctx, cancel := context.WithTimeout(ctx, e.opts.ActionTimeout)
	defer cancel()

	target, err := e.resolver.ActiveTarget(ctx)
	if err != nil {
		return schemas.Failure(schemas.ErrCodeNoActiveTarget, err.Error())
	}
	session, err := target.Attach(ctx)
	if err != nil {
		return schemas.Failure(browser.ClassifyError(err), fmt.Sprintf("attaching to target %s: %v", target.ID(), err))
	}

	c := &call{engine: e, session: session, log: log}
	defer c.detach(ctx)
	defer func() {
		if r := recover(); r != nil {
			log.Error("Recovered from panic during action.", zap.Any("panic", r))
			out = schemas.Failure(schemas.ErrCodeExecutionFailure, fmt.Sprintf("panic: %v", r))
		}
	}()

	if rejected, ok := validate(act, snap); !ok {
		return rejected
	}
	return c.dispatch(ctx, act)
}

// validate rejects malformed parameters and stale element ids.
func validate(act schemas.Action, snap *schemas.Snapshot) (schemas.ActionOutcome, bool) {
	switch p := act.Params.(type) {
	case schemas.NavigateParams:
		if err := checkNavigable(p.URL); err != nil {
			return schemas.Failure(schemas.ErrCodeInvalidParameters, err.Error()), false
		}
	case schemas.WriteMemoryParams:
		if strings.TrimSpace(p.Text) == "" {
			return schemas.Failure(schemas.ErrCodeInvalidParameters, "write_memory requires text"), false
		}
	}

	if id, ok := act.TargetID(); ok {
		if id <= 0 {
			return schemas.Failure(schemas.ErrCodeInvalidParameters, fmt.Sprintf("%s requires an element id", act.Kind())), false
		}
		if snap != nil && !snap.Contains(id) {
			return schemas.Failure(schemas.ErrCodeNodeResolution,
				fmt.Sprintf("element %d is not in the current snapshot", id)), false
		}
	}
	return schemas.ActionOutcome{}, true
}

func checkNavigable(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return errors.New("navigate requires a url")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", raw, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		if u.Host == "" {
			return fmt.Errorf("url %q has no host", raw)
		}
	case "about", "file":
	default:
		return fmt.Errorf("url scheme %q is not navigable", u.Scheme)
	}
	return nil
}

// call holds the state of one Execute invocation.
type call struct {
	engine   *Engine
	session  browser.Session
	log      *zap.Logger
	detached bool
}

// detach releases the session once, even when ctx is already done.
func (c *call) detach(ctx context.Context) {
	if c.detached {
		return
	}
	c.detached = true
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), detachTimeout)
	defer cancel()
	if err := c.session.Detach(dctx); err != nil {
		c.log.Warn("Failed to detach session.", zap.Error(err))
	}
}

func (c *call) dispatch(ctx context.Context, act schemas.Action) schemas.ActionOutcome {
	switch p := act.Params.(type) {
	case schemas.ClickParams:
		return c.withURLCheck(ctx, func() schemas.ActionOutcome { return c.click(ctx, p) })
	case schemas.InputParams:
		return c.withURLCheck(ctx, func() schemas.ActionOutcome { return c.input(ctx, p) })
	case schemas.SubmitParams:
		return c.withURLCheck(ctx, func() schemas.ActionOutcome { return c.submit(ctx, p) })
	case schemas.HistoryBackParams:
		return c.historyBack(ctx)
	case schemas.NavigateParams:
		return c.navigate(ctx, p)
	case schemas.WriteMemoryParams:
		return c.writeMemory(ctx, p)
	case schemas.StopParams:
		out := schemas.Success(false, "stop requested")
		out.Signal = schemas.SignalStopRun
		return out
	default:
		c.log.Warn("Unsupported action kind; skipping.", zap.String("kind", string(act.Kind())))
		return schemas.Failure(schemas.ErrCodeActionUnsupported, fmt.Sprintf("unsupported action kind %q", act.Kind()))
	}
}

// withURLCheck runs op and records whether the document URL moved. A moved URL
// ends the batch: queued ids belong to the old document.
func (c *call) withURLCheck(ctx context.Context, op func() schemas.ActionOutcome) schemas.ActionOutcome {
	before, err := c.session.URL(ctx)
	if err != nil {
		c.log.Debug("Could not read URL before action.", zap.Error(err))
	}
	out := op()
	if !out.Succeeded() {
		return out
	}
	if !out.URLChanged && before != "" {
		after, err := c.session.URL(ctx)
		switch {
		case err != nil:
			out.URLChanged = browser.IsContextDestroyed(err)
		default:
			out.URLChanged = after != before
		}
	}
	if out.URLChanged {
		out.Signal = schemas.SignalEndBatch
	}
	return out
}

// failure converts a host error into a failed outcome. An execution context
// destroyed mid-call means the action navigated the page, which is success.
func (c *call) failure(op string, err error) schemas.ActionOutcome {
	if browser.IsContextDestroyed(err) {
		return schemas.Success(true, "navigated")
	}
	return schemas.Failure(browser.ClassifyError(err), fmt.Sprintf("%s: %v", op, err))
}

type clickResult struct {
	Clicked bool    `json:"clicked"`
	Via     string  `json:"via"`
	Tag     string  `json:"tag"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
}

func (c *call) click(ctx context.Context, p schemas.ClickParams) schemas.ActionOutcome {
	h, err := c.session.ResolveNode(ctx, p.ID)
	if err != nil {
		return schemas.Failure(browser.ClassifyError(err), err.Error())
	}

	trusted := c.engine.opts.TrustedInput
	var res clickResult
	if err := c.callInto(ctx, h, clickJS, []any{trusted}, &res); err != nil {
		return c.failure("click", err)
	}
	if res.Via == "none" {
		return schemas.Failure(schemas.ErrCodeExecutionFailure, fmt.Sprintf("element %d has no clickable element", p.ID))
	}

	if !res.Clicked {
		// Trusted mode with a visible box: click where a user would.
		if err := c.session.DispatchClick(ctx, res.X, res.Y); err != nil {
			c.log.Debug("Trusted click failed; synthesizing in page.", zap.Error(err))
			if err := c.callInto(ctx, h, clickJS, []any{false}, &res); err != nil {
				return c.failure("click", err)
			}
		}
	}
	return schemas.Success(false, "via:"+res.Via+" tag:"+strings.ToLower(res.Tag))
}

type inputResult struct {
	Status string `json:"status"`
	Tag    string `json:"tag"`
}

func (c *call) input(ctx context.Context, p schemas.InputParams) schemas.ActionOutcome {
	h, err := c.session.ResolveNode(ctx, p.ID)
	if err != nil {
		return schemas.Failure(browser.ClassifyError(err), err.Error())
	}
	var res inputResult
	if err := c.callInto(ctx, h, fillInputJS, []any{p.Text}, &res); err != nil {
		return c.failure("input", err)
	}
	switch res.Status {
	case "ok":
		return schemas.Success(false, "tag:"+strings.ToLower(res.Tag))
	case "readonly":
		return schemas.Success(false, "skipped: disabled or read-only")
	default:
		return schemas.Failure(schemas.ErrCodeExecutionFailure, fmt.Sprintf("element %d has no text-entry surface", p.ID))
	}
}

type submitResult struct {
	Strategy string `json:"strategy"`
}

func (c *call) submit(ctx context.Context, p schemas.SubmitParams) schemas.ActionOutcome {
	h, err := c.session.ResolveNode(ctx, p.ID)
	if err != nil {
		return schemas.Failure(browser.ClassifyError(err), err.Error())
	}
	var res submitResult
	if err := c.callInto(ctx, h, submitJS, nil, &res); err != nil {
		return c.failure("submit", err)
	}
	if res.Strategy == "noForm" || res.Strategy == "" {
		out := schemas.Failure(schemas.ErrCodeExecutionFailure, fmt.Sprintf("element %d is not inside a form", p.ID))
		out.Detail = "noForm"
		return out
	}
	return schemas.Success(false, res.Strategy)
}

func (c *call) historyBack(ctx context.Context) schemas.ActionOutcome {
	before, _ := c.session.URL(ctx)

	// The in-page timer normally settles the promise; this bound covers a
	// document that is torn down without reporting.
	wait := c.engine.opts.HistoryBackTimeout
	evalCtx, cancel := context.WithTimeout(ctx, wait+2*time.Second)
	defer cancel()

	raw, err := c.session.Evaluate(evalCtx, historyBackJS(wait))
	if err != nil {
		if browser.IsContextDestroyed(err) {
			out := schemas.Success(true, "navigated")
			out.Signal = schemas.SignalEndBatch
			return out
		}
		if evalCtx.Err() != nil && ctx.Err() == nil {
			if c.urlMoved(ctx, before) {
				out := schemas.Success(true, "navigated")
				out.Signal = schemas.SignalEndBatch
				return out
			}
			return schemas.Failure(schemas.ErrCodeNavigationTimeout,
				fmt.Sprintf("history_back: page unresponsive after %s", wait+2*time.Second))
		}
		return schemas.Failure(browser.ClassifyError(err), fmt.Sprintf("history_back: %v", err))
	}

	var result string
	if err := json.Unmarshal(raw, &result); err != nil {
		return schemas.Failure(schemas.ErrCodeExecutionFailure, fmt.Sprintf("history_back: unexpected result %s", raw))
	}

	changed := c.urlMoved(ctx, before)
	switch {
	case result == "noHistory":
		out := schemas.Failure(schemas.ErrCodeNoHistoryEntry, "no previous history entry")
		out.Detail = result
		return out
	case result == "popstate" || changed:
		out := schemas.Success(changed, result)
		if changed {
			out.Signal = schemas.SignalEndBatch
		}
		return out
	default:
		out := schemas.Failure(schemas.ErrCodeNavigationTimeout,
			fmt.Sprintf("no navigation within %s", wait))
		out.Detail = result
		return out
	}
}

func (c *call) urlMoved(ctx context.Context, before string) bool {
	if before == "" {
		return false
	}
	after, err := c.session.URL(ctx)
	if err != nil {
		return browser.IsContextDestroyed(err)
	}
	return after != before
}

func (c *call) navigate(ctx context.Context, p schemas.NavigateParams) schemas.ActionOutcome {
	before, _ := c.session.URL(ctx)
	if err := c.session.UpdateLocation(ctx, p.URL); err != nil {
		return schemas.Failure(browser.ClassifyError(err), err.Error())
	}
	// Calls against the replaced document are no longer valid.
	c.detach(ctx)

	out := schemas.Success(before != p.URL, p.URL)
	out.Signal = schemas.SignalEndBatch
	return out
}

func (c *call) writeMemory(ctx context.Context, p schemas.WriteMemoryParams) schemas.ActionOutcome {
	if c.engine.notes == nil {
		return schemas.Failure(schemas.ErrCodeExecutionFailure, "no memory store configured")
	}
	title := "Memory_" + strconv.FormatInt(c.engine.now().UnixMilli(), 10)
	note, err := c.engine.notes.Append(ctx, title, p.Text)
	if err != nil {
		return schemas.Failure(schemas.ErrCodeExecutionFailure, fmt.Sprintf("write_memory: %v", err))
	}
	return schemas.Success(false, note.ID)
}

// callInto runs fn on the handle and decodes its JSON result into v.
func (c *call) callInto(ctx context.Context, h browser.RemoteHandle, fn string, args []any, v any) error {
	raw, err := c.session.CallFunctionOn(ctx, h, fn, args)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decoding page result %s: %w", raw, err)
	}
	return nil
}
