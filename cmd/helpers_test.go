// File: cmd/helpers_test.go
package cmd

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/xkilldash9x/axpilot/api/schemas"
	"github.com/xkilldash9x/axpilot/internal/browser"
	"github.com/xkilldash9x/axpilot/internal/config"
	"github.com/xkilldash9x/axpilot/internal/mocks"
)

// setupTestEnv isolates a test from config files, .env files and the user's
// home directory, and quiets the logger.
func setupTestEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv("AXPILOT_LOGGER_LEVEL", "error")
	t.Setenv("AXPILOT_MEMORY_BACKEND", "sqlite")
	t.Setenv("AXPILOT_MEMORY_SQLITE_PATH", filepath.Join(dir, "notes.db"))
	return dir
}

// executeCommand runs a fresh command tree and captures its combined output.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

// stubComponents replaces the browser, oracle and notes constructors for the
// duration of the test.
func stubComponents(t *testing.T, resolver browser.TargetResolver, llm schemas.LLMClient, notes schemas.NoteStore) *bool {
	t.Helper()
	origResolver, origLLM, origNotes := newTargetResolver, newLLMClient, newNoteStore
	t.Cleanup(func() {
		newTargetResolver, newLLMClient, newNoteStore = origResolver, origLLM, origNotes
	})

	browserClosed := new(bool)
	newTargetResolver = func(context.Context, config.BrowserConfig, *zap.Logger) (browser.TargetResolver, func(), error) {
		if resolver == nil {
			return nil, nil, errors.New("no browser available")
		}
		return resolver, func() { *browserClosed = true }, nil
	}
	newLLMClient = func(context.Context, config.LLMConfig, *zap.Logger) (schemas.LLMClient, error) {
		if llm == nil {
			return nil, errors.New("no oracle configured")
		}
		return llm, nil
	}
	newNoteStore = func(context.Context, config.MemoryConfig, *zap.Logger) (schemas.NoteStore, error) {
		if notes == nil {
			return nil, errors.New("store unavailable")
		}
		return notes, nil
	}
	return browserClosed
}

// fakePage returns a target whose sessions expose a two-element page.
func fakePage() (*mocks.MockTarget, *mocks.MockSession) {
	session := new(mocks.MockSession)
	session.On("AccessibilityTree", mock.Anything).Return([]browser.AXNode{
		{NodeID: "1", BackendID: 3, Role: "textbox", Name: "Search"},
		{NodeID: "2", BackendID: 4, Role: "button", Name: "Go"},
	}, nil)
	session.On("URL", mock.Anything).Return("https://example.com/", nil)
	session.On("Detach", mock.Anything).Return(nil)

	target := new(mocks.MockTarget)
	target.On("ID").Return("T1").Maybe()
	target.On("Attach", mock.Anything).Return(session, nil)
	return target, session
}

func staticResolver(target browser.Target) browser.TargetResolver {
	return browser.StaticResolver{T: target}
}
