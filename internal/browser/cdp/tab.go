// internal/browser/cdp/tab.go
package cdp

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/axpilot/internal/browser"
)

// runActionsFunc executes chromedp actions; chromedp.Run in production.
type runActionsFunc func(ctx context.Context, actions ...chromedp.Action) error

// Tab is a single chromedp page target. Its debugging channel is leased to at
// most one Session at a time.
type Tab struct {
	id         string
	ctx        context.Context // chromedp tab context; carries the target
	logger     *zap.Logger
	run        runActionsFunc
	navTimeout time.Duration

	lease sync.Mutex
	seq   atomic.Uint64
}

var _ browser.Target = (*Tab)(nil)

// NewTab wraps an already allocated chromedp context.
func NewTab(tabCtx context.Context, id string, navTimeout time.Duration, logger *zap.Logger) *Tab {
	if navTimeout <= 0 {
		navTimeout = 45 * time.Second
	}
	return &Tab{
		id:         id,
		ctx:        tabCtx,
		logger:     logger.Named("tab").With(zap.String("target_id", id)),
		run:        chromedp.Run,
		navTimeout: navTimeout,
	}
}

func (t *Tab) ID() string { return t.id }

// Attach leases the tab's session. It never waits for a current holder.
func (t *Tab) Attach(ctx context.Context) (browser.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t.ctx.Err() != nil {
		return nil, browser.ErrNoActiveTarget
	}
	if !t.lease.TryLock() {
		return nil, browser.ErrSessionBusy
	}

	s := &session{
		tab:   t,
		group: fmt.Sprintf("axpilot-%d", t.seq.Add(1)),
	}
	s.logger = t.logger.With(zap.String("object_group", s.group))
	s.logger.Debug("Session attached.")
	return s, nil
}

// release returns the lease. Only the owning session calls it.
func (t *Tab) release() {
	t.lease.Unlock()
}
