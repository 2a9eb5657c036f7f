// internal/browser/cdp/session.go
package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/accessibility"
	cdpproto "github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/axpilot/internal/browser"
)

const releaseTimeout = 3 * time.Second

// session is the chromedp implementation of browser.Session. Remote objects it
// resolves live in its own object group, released on Detach.
type session struct {
	tab      *Tab
	group    string
	logger   *zap.Logger
	detached atomic.Bool
}

var _ browser.Session = (*session)(nil)

// exec runs actions against the tab, bounded by the caller's context.
func (s *session) exec(ctx context.Context, actions ...chromedp.Action) error {
	if s.detached.Load() {
		return browser.ErrSessionDetached
	}
	runCtx, cancel := CombineContext(s.tab.ctx, ctx)
	defer cancel()
	return s.tab.run(runCtx, actions...)
}

func (s *session) AccessibilityTree(ctx context.Context) ([]browser.AXNode, error) {
	var raw []*accessibility.Node
	err := s.exec(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		raw, err = accessibility.GetFullAXTree().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("fetching accessibility tree: %w", err)
	}

	nodes := make([]browser.AXNode, 0, len(raw))
	for _, n := range raw {
		if n == nil {
			continue
		}
		nodes = append(nodes, browser.AXNode{
			NodeID:    string(n.NodeID),
			BackendID: int64(n.BackendDOMNodeID),
			Role:      axValueString(n.Role),
			Name:      axValueString(n.Name),
			Ignored:   n.Ignored,
		})
	}
	return nodes, nil
}

// axValueString flattens an accessibility value to text. Non-string values are
// rendered as their JSON source.
func axValueString(v *accessibility.Value) string {
	if v == nil || len(v.Value) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal([]byte(v.Value), &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(v.Value))
}

func (s *session) ResolveNode(ctx context.Context, backendID int64) (browser.RemoteHandle, error) {
	var obj *runtime.RemoteObject
	err := s.exec(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		obj, err = dom.ResolveNode().
			WithBackendNodeID(cdpproto.BackendNodeID(backendID)).
			WithObjectGroup(s.group).
			Do(ctx)
		return err
	}))
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, browser.ErrSessionDetached) {
			return browser.RemoteHandle{}, err
		}
		return browser.RemoteHandle{}, fmt.Errorf("%w: backend id %d: %v", browser.ErrNodeResolution, backendID, err)
	}
	if obj == nil || obj.ObjectID == "" {
		return browser.RemoteHandle{}, fmt.Errorf("%w: backend id %d resolved to no object", browser.ErrNodeResolution, backendID)
	}
	return browser.RemoteHandle{ObjectID: string(obj.ObjectID), BackendID: backendID}, nil
}

func (s *session) CallFunctionOn(ctx context.Context, h browser.RemoteHandle, fn string, args []any) (json.RawMessage, error) {
	callArgs := make([]*runtime.CallArgument, 0, len(args))
	for i, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("encoding argument %d: %w", i, err)
		}
		callArgs = append(callArgs, &runtime.CallArgument{Value: b})
	}

	var res *runtime.RemoteObject
	var exc *runtime.ExceptionDetails
	err := s.exec(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		res, exc, err = runtime.CallFunctionOn(fn).
			WithObjectID(runtime.RemoteObjectID(h.ObjectID)).
			WithArguments(callArgs).
			WithReturnByValue(true).
			WithAwaitPromise(true).
			WithUserGesture(true).
			Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}
	return remoteValue(res, exc)
}

func (s *session) Evaluate(ctx context.Context, expr string) (json.RawMessage, error) {
	var res *runtime.RemoteObject
	var exc *runtime.ExceptionDetails
	err := s.exec(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		res, exc, err = runtime.Evaluate(expr).
			WithReturnByValue(true).
			WithAwaitPromise(true).
			WithObjectGroup(s.group).
			Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}
	return remoteValue(res, exc)
}

func remoteValue(res *runtime.RemoteObject, exc *runtime.ExceptionDetails) (json.RawMessage, error) {
	if exc != nil {
		msg := exc.Text
		if exc.Exception != nil && exc.Exception.Description != "" {
			msg = exc.Exception.Description
		}
		return nil, fmt.Errorf("page exception: %s", msg)
	}
	if res == nil || len(res.Value) == 0 {
		return json.RawMessage("null"), nil
	}
	return json.RawMessage(res.Value), nil
}

func (s *session) DispatchClick(ctx context.Context, x, y float64) error {
	err := s.exec(ctx,
		input.DispatchMouseEvent(input.MouseMoved, x, y),
		input.DispatchMouseEvent(input.MousePressed, x, y).WithButton(input.Left).WithButtons(1).WithClickCount(1),
		input.DispatchMouseEvent(input.MouseReleased, x, y).WithButton(input.Left).WithClickCount(1),
	)
	if err != nil {
		return fmt.Errorf("dispatching click at (%.1f, %.1f): %w", x, y, err)
	}
	return nil
}

// UpdateLocation navigates the tab. A load event that never arrives within the
// navigation timeout is logged, not returned: the location already changed.
func (s *session) UpdateLocation(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, s.tab.navTimeout)
	defer cancel()

	err := s.exec(navCtx, chromedp.Navigate(url))
	if err == nil {
		return nil
	}
	if ctx.Err() == nil && errors.Is(navCtx.Err(), context.DeadlineExceeded) {
		s.logger.Warn("Navigation issued but load did not complete in time.",
			zap.String("url", url), zap.Duration("timeout", s.tab.navTimeout))
		return nil
	}
	return fmt.Errorf("navigating to %s: %w", url, err)
}

func (s *session) URL(ctx context.Context) (string, error) {
	var loc string
	if err := s.exec(ctx, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

// Detach releases the session's remote objects and returns the lease. It is
// safe to call more than once; only the first call has effect.
func (s *session) Detach(ctx context.Context) error {
	if !s.detached.CompareAndSwap(false, true) {
		return nil
	}
	defer s.tab.release()

	relCtx, cancel := context.WithTimeout(Detach(s.tab.ctx), releaseTimeout)
	defer cancel()
	if s.tab.ctx.Err() != nil {
		return nil
	}
	err := s.tab.run(relCtx, runtime.ReleaseObjectGroup(s.group))
	s.logger.Debug("Session detached.", zap.Error(err))
	if err != nil {
		return fmt.Errorf("releasing object group %s: %w", s.group, err)
	}
	return nil
}
