// internal/browser/cdp/manager.go
package cdp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/axpilot/internal/browser"
	"github.com/xkilldash9x/axpilot/internal/config"
)

// Manager owns the browser process (or the remote connection) and the single
// page a run drives.
type Manager struct {
	logger *zap.Logger
	cfg    config.BrowserConfig

	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc
	tabCtx          context.Context
	tabCancel       context.CancelFunc

	tab       *Tab
	closeOnce sync.Once
}

var _ browser.TargetResolver = (*Manager)(nil)

// NewManager launches a local browser, or connects to cfg.RemoteURL, and opens
// one tab at cfg.StartURL.
func NewManager(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Manager, error) {
	m := &Manager{
		logger: logger.Named("browser_manager"),
		cfg:    cfg,
	}

	if cfg.RemoteURL != "" {
		m.logger.Info("Connecting to running browser.", zap.String("remote_url", cfg.RemoteURL))
		m.allocatorCtx, m.allocatorCancel = chromedp.NewRemoteAllocator(ctx, cfg.RemoteURL)
	} else {
		m.logger.Info("Launching browser.", zap.Bool("headless", cfg.Headless))
		m.allocatorCtx, m.allocatorCancel = chromedp.NewExecAllocator(ctx, BuildAllocatorOptions(cfg)...)
	}

	contextOpts := []chromedp.ContextOption{}
	if cfg.Debug {
		sugar := m.logger.Named("chromedp").Sugar()
		contextOpts = append(contextOpts, chromedp.WithLogf(sugar.Debugf), chromedp.WithErrorf(sugar.Debugf))
	}
	m.tabCtx, m.tabCancel = chromedp.NewContext(m.allocatorCtx, contextOpts...)

	if err := m.start(); err != nil {
		m.Close()
		return nil, err
	}
	return m, nil
}

// start allocates the tab. The first Run must receive the tab context itself;
// a derived context would tie the browser's lifetime to it.
func (m *Manager) start() error {
	timeout := m.cfg.LaunchTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	errCh := make(chan error, 1)
	go func() { errCh <- chromedp.Run(m.tabCtx) }()
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("browser failed to start or respond: %w", err)
		}
	case <-time.After(timeout):
		return fmt.Errorf("browser did not start within %s", timeout)
	}

	c := chromedp.FromContext(m.tabCtx)
	if c == nil || c.Target == nil {
		return fmt.Errorf("browser started without a page target")
	}
	m.tab = NewTab(m.tabCtx, string(c.Target.TargetID), m.cfg.NavTimeout, m.logger)

	if m.cfg.StartURL != "" {
		navCtx, cancel := context.WithTimeout(m.tabCtx, timeout)
		defer cancel()
		if err := chromedp.Run(navCtx, chromedp.Navigate(m.cfg.StartURL)); err != nil {
			return fmt.Errorf("opening start url %s: %w", m.cfg.StartURL, err)
		}
	}
	m.logger.Info("Browser ready.", zap.String("target_id", m.tab.ID()), zap.String("start_url", m.cfg.StartURL))
	return nil
}

// ActiveTarget returns the managed tab while it is alive.
func (m *Manager) ActiveTarget(ctx context.Context) (browser.Target, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.tab == nil || m.tabCtx.Err() != nil {
		return nil, browser.ErrNoActiveTarget
	}
	return m.tab, nil
}

// Close shuts the tab and the browser (or the remote connection).
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		if m.tabCancel != nil {
			m.tabCancel()
		}
		if m.allocatorCancel != nil {
			m.allocatorCancel()
		}
		m.logger.Info("Browser closed.")
	})
}
