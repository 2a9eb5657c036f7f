// internal/browser/snapshot/snapshot.go
package snapshot

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/axpilot/api/schemas"
	"github.com/xkilldash9x/axpilot/internal/browser"
)

// DefaultCap bounds the snapshot when no cap is configured.
const DefaultCap = 250

// Error reports a failed capture. Cause is ErrSessionBusy when the target's
// session was already held.
type Error struct {
	Cause error
}

func (e *Error) Error() string { return "snapshot capture failed: " + e.Cause.Error() }
func (e *Error) Unwrap() error { return e.Cause }

// Code maps the failure onto the outcome taxonomy.
func (e *Error) Code() schemas.ErrorCode {
	if errors.Is(e.Cause, browser.ErrSessionBusy) {
		return schemas.ErrCodeSessionBusy
	}
	return schemas.ErrCodeSnapshot
}

// Provider captures bounded accessibility snapshots.
type Provider struct {
	logger *zap.Logger
	limit  int
	now    func() time.Time
}

// NewProvider creates a provider keeping at most limit elements per snapshot.
func NewProvider(logger *zap.Logger, limit int) *Provider {
	if limit <= 0 {
		limit = DefaultCap
	}
	return &Provider{logger: logger.Named("snapshot"), limit: limit, now: time.Now}
}

// Capture attaches to target, reads its accessibility tree and reduces it. The
// session is detached on every path; a detach failure after a successful read
// is only logged.
func (p *Provider) Capture(ctx context.Context, target browser.Target) (snap *schemas.Snapshot, err error) {
	session, err := target.Attach(ctx)
	if err != nil {
		return nil, &Error{Cause: err}
	}
	defer func() {
		if derr := session.Detach(ctx); derr != nil {
			p.logger.Warn("Failed to detach after snapshot.", zap.Error(derr))
			if snap == nil && err == nil {
				err = &Error{Cause: derr}
			}
		}
	}()

	nodes, err := session.AccessibilityTree(ctx)
	if err != nil {
		return nil, &Error{Cause: err}
	}

	url, uerr := session.URL(ctx)
	if uerr != nil {
		p.logger.Debug("Could not read page URL for snapshot.", zap.Error(uerr))
	}

	elements, truncated := Reduce(nodes, p.limit)
	snap = &schemas.Snapshot{
		URL:        url,
		Elements:   elements,
		Truncated:  truncated,
		CapturedAt: p.now(),
	}
	p.logger.Debug("Snapshot captured.",
		zap.Int("raw_nodes", len(nodes)),
		zap.Int("elements", len(elements)),
		zap.Bool("truncated", truncated),
		zap.String("url", url))
	return snap, nil
}

// Reduce filters and bounds raw accessibility nodes in tree order. Nodes with
// neither role nor name are noise; nodes without a DOM backing cannot be acted
// on; duplicate backend ids keep their first occurrence. A non-positive limit
// means DefaultCap.
func Reduce(nodes []browser.AXNode, limit int) ([]schemas.Element, bool) {
	if limit <= 0 {
		limit = DefaultCap
	}
	elements := make([]schemas.Element, 0, min(len(nodes), limit))
	seen := make(map[int64]struct{}, len(nodes))
	for _, n := range nodes {
		if n.Role == "" && n.Name == "" {
			continue
		}
		if n.BackendID <= 0 {
			continue
		}
		if _, dup := seen[n.BackendID]; dup {
			continue
		}
		if len(elements) == limit {
			return elements, true
		}
		seen[n.BackendID] = struct{}{}
		elements = append(elements, schemas.Element{
			ID:      n.BackendID,
			Role:    n.Role,
			Name:    n.Name,
			Ignored: n.Ignored,
		})
	}
	return elements, false
}
