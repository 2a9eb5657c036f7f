// internal/browser/browser.go
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/xkilldash9x/axpilot/api/schemas"
)

var (
	// ErrSessionBusy is returned by Target.Attach while another caller holds the
	// target's debugging session. Attach never queues.
	ErrSessionBusy = errors.New("debugging session already attached")
	// ErrNoActiveTarget means there is no page to operate on.
	ErrNoActiveTarget = errors.New("no active page target")
	// ErrNodeResolution means a backend node id no longer maps to a live node.
	ErrNodeResolution = errors.New("node could not be resolved")
	// ErrSessionDetached is returned by Session calls made after Detach.
	ErrSessionDetached = errors.New("session already detached")
)

// AXNode is the raw accessibility node as reported by the host, before
// filtering. Role and Name are empty when the host reports none.
type AXNode struct {
	NodeID    string
	BackendID int64
	Role      string
	Name      string
	Ignored   bool
}

// RemoteHandle references a live node inside the page for the lifetime of the
// session that resolved it.
type RemoteHandle struct {
	ObjectID  string
	BackendID int64
}

// Session is an exclusive, short-lived lease on a target's debugging channel.
// Callers must call Detach on every exit path.
type Session interface {
	AccessibilityTree(ctx context.Context) ([]AXNode, error)
	// ResolveNode wraps ErrNodeResolution when the id is stale.
	ResolveNode(ctx context.Context, backendID int64) (RemoteHandle, error)
	// CallFunctionOn runs fn with `this` bound to the handle. Arguments are
	// JSON encoded; the JSON result is returned by value and awaited if it is a
	// promise.
	CallFunctionOn(ctx context.Context, h RemoteHandle, fn string, args []any) (json.RawMessage, error)
	// Evaluate runs expr in the page's main world, awaiting promises.
	Evaluate(ctx context.Context, expr string) (json.RawMessage, error)
	// DispatchClick sends trusted pointer press and release events at viewport
	// coordinates.
	DispatchClick(ctx context.Context, x, y float64) error
	UpdateLocation(ctx context.Context, url string) error
	URL(ctx context.Context) (string, error)
	Detach(ctx context.Context) error
}

// Target is one addressable page.
type Target interface {
	ID() string
	// Attach acquires the target's session, failing fast with ErrSessionBusy.
	Attach(ctx context.Context) (Session, error)
}

// TargetResolver yields the page a run operates on.
type TargetResolver interface {
	ActiveTarget(ctx context.Context) (Target, error)
}

// StaticResolver always resolves to the same target.
type StaticResolver struct{ T Target }

func (r StaticResolver) ActiveTarget(context.Context) (Target, error) {
	if r.T == nil {
		return nil, ErrNoActiveTarget
	}
	return r.T, nil
}

// ClassifyError maps a host error onto the outcome taxonomy. Sentinel errors are
// matched first; protocol messages are matched heuristically.
func ClassifyError(err error) schemas.ErrorCode {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNodeResolution):
		return schemas.ErrCodeNodeResolution
	case errors.Is(err, ErrSessionBusy):
		return schemas.ErrCodeSessionBusy
	case errors.Is(err, ErrNoActiveTarget):
		return schemas.ErrCodeNoActiveTarget
	case errors.Is(err, context.DeadlineExceeded):
		return schemas.ErrCodeNavigationTimeout
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "no node with given id"),
		strings.Contains(msg, "could not find node"),
		strings.Contains(msg, "node is detached"):
		return schemas.ErrCodeNodeResolution
	case strings.Contains(msg, "net::err"):
		return schemas.ErrCodeNavigationTimeout
	}
	return schemas.ErrCodeExecutionFailure
}

// IsContextDestroyed reports whether err says the page's execution context went
// away mid-call, which happens when the document navigates.
func IsContextDestroyed(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "execution context was destroyed") ||
		strings.Contains(msg, "cannot find context with specified id") ||
		strings.Contains(msg, "inspected target navigated or closed")
}
