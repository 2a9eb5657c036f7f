// internal/browser/cdp/context.go
package cdp

import (
	"context"
	"time"
)

// CombineContext returns a context that carries ctx1's values (the chromedp
// target) and is canceled when either ctx1 or ctx2 is done. ctx2 typically
// carries the caller's deadline. Canceling the result never closes the tab.
func CombineContext(ctx1, ctx2 context.Context) (context.Context, context.CancelFunc) {
	combinedCtx, cancel := context.WithCancel(ctx1)
	if ctx2.Done() == nil {
		return combinedCtx, cancel
	}
	go func() {
		select {
		case <-ctx2.Done():
			cancel()
		case <-combinedCtx.Done():
		}
	}()
	return combinedCtx, cancel
}

// valueOnlyContext keeps the parent's values but drops its deadline and
// cancellation.
type valueOnlyContext struct{ context.Context }

func (valueOnlyContext) Deadline() (time.Time, bool) { return time.Time{}, false }
func (valueOnlyContext) Done() <-chan struct{}       { return nil }
func (valueOnlyContext) Err() error                  { return nil }

// Detach returns a context for cleanup calls that must run after the caller's
// context is already canceled.
func Detach(ctx context.Context) context.Context {
	return valueOnlyContext{ctx}
}
