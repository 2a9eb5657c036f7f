// internal/browser/stabilizer/stabilizer.go
package stabilizer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/axpilot/internal/browser"
)

// Options controls how long a wait may take and what counts as quiet.
type Options struct {
	Timeout time.Duration
	Quiet   time.Duration
	Poll    time.Duration
	// Grace is added to Timeout for the hard bound enforced outside the page.
	Grace time.Duration
}

// DefaultOptions mirrors the agent.settle defaults.
func DefaultOptions() Options {
	return Options{
		Timeout: 5 * time.Second,
		Quiet:   800 * time.Millisecond,
		Poll:    100 * time.Millisecond,
		Grace:   2 * time.Second,
	}
}

// Detector waits for the document to stop mutating.
type Detector struct {
	resolver browser.TargetResolver
	opts     Options
	logger   *zap.Logger
}

// New creates a detector; zero fields in opts take their defaults.
func New(resolver browser.TargetResolver, opts Options, logger *zap.Logger) *Detector {
	def := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.Quiet <= 0 {
		opts.Quiet = def.Quiet
	}
	if opts.Poll <= 0 {
		opts.Poll = def.Poll
	}
	if opts.Grace <= 0 {
		opts.Grace = def.Grace
	}
	return &Detector{resolver: resolver, opts: opts, logger: logger.Named("stabilizer")}
}

// Wait blocks with the configured timeout and quiet period.
func (d *Detector) Wait(ctx context.Context) bool {
	return d.AwaitStable(ctx, d.opts.Timeout, d.opts.Quiet)
}

// AwaitStable returns once no mutation has been observed for quiet, or timeout
// has elapsed since observation began. It reports whether quiet was reached and
// never fails the caller: attach or evaluation errors are logged and yield false.
func (d *Detector) AwaitStable(ctx context.Context, timeout, quiet time.Duration) bool {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, timeout+d.opts.Grace)
	defer cancel()

	target, err := d.resolver.ActiveTarget(ctx)
	if err != nil {
		d.logger.Debug("No target to observe.", zap.Error(err))
		return false
	}
	session, err := target.Attach(ctx)
	if err != nil {
		d.logger.Debug("Could not attach to observe mutations.", zap.Error(err))
		return false
	}
	defer func() {
		dctx, dcancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
		defer dcancel()
		if err := session.Detach(dctx); err != nil {
			d.logger.Warn("Failed to detach after settle wait.", zap.Error(err))
		}
	}()

	raw, err := session.Evaluate(ctx, observeJS(timeout, quiet, d.opts.Poll))
	if err != nil {
		if browser.IsContextDestroyed(err) {
			d.logger.Debug("Document replaced while waiting to settle.")
		} else {
			d.logger.Debug("Settle wait ended without a result.", zap.Error(err))
		}
		return false
	}

	var res struct {
		Stable    bool `json:"stable"`
		Mutations int  `json:"mutations"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		d.logger.Debug("Unexpected settle result.", zap.ByteString("raw", raw))
		return false
	}
	d.logger.Debug("Settle wait finished.",
		zap.Bool("stable", res.Stable),
		zap.Int("mutations", res.Mutations),
		zap.Duration("took", time.Since(start)))
	return res.Stable
}

// observeJS watches the document subtree and resolves {stable, mutations}.
// A missing document resolves as stable immediately.
func observeJS(timeout, quiet, poll time.Duration) string {
	return fmt.Sprintf(`new Promise((resolve) => {
	const root = document.documentElement;
	if (!root || typeof MutationObserver === 'undefined') {
		resolve({ stable: true, mutations: 0 });
		return;
	}
	const started = Date.now();
	let last = started;
	let mutations = 0;
	const observer = new MutationObserver((records) => {
		mutations += records.length;
		last = Date.now();
	});
	observer.observe(root, { childList: true, subtree: true, attributes: true, characterData: true });
	const timer = setInterval(() => {
		const now = Date.now();
		const quiet = now - last >= %d;
		if (quiet || now - started >= %d) {
			clearInterval(timer);
			observer.disconnect();
			resolve({ stable: quiet, mutations });
		}
	}, %d);
})`, quiet.Milliseconds(), timeout.Milliseconds(), poll.Milliseconds())
}
