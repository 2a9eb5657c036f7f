// internal/browser/cdp/options_test.go
package cdp

import (
	"testing"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/axpilot/internal/config"
)

func TestLaunchFlags(t *testing.T) {
	cfg := config.BrowserConfig{
		Headless:        true,
		IgnoreTLSErrors: true,
		Args:            []string{"--lang=de-DE", "--mute-audio", "--headless=false", "--"},
	}
	flags := launchFlags(cfg)

	assert.Equal(t, true, flags["ignore-certificate-errors"])
	assert.Equal(t, true, flags["force-renderer-accessibility"])
	assert.Equal(t, "de-DE", flags["lang"])
	assert.Equal(t, true, flags["mute-audio"])
	assert.Equal(t, "false", flags["headless"], "user args override computed flags")
	assert.NotContains(t, flags, "")
}

func TestBuildAllocatorOptions(t *testing.T) {
	base := len(chromedp.DefaultExecAllocatorOptions)
	cfg := config.BrowserConfig{Headless: true}

	opts := BuildAllocatorOptions(cfg)
	assert.Equal(t, base+len(launchFlags(cfg)), len(opts))

	cfg.Viewport = map[string]int{"width": 800, "height": 600}
	cfg.ExecPath = "/usr/bin/chromium"
	assert.Equal(t, base+len(launchFlags(cfg))+2, len(BuildAllocatorOptions(cfg)))
}
