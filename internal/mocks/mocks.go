// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/axpilot/api/schemas"
	"github.com/xkilldash9x/axpilot/internal/browser"
	"github.com/xkilldash9x/axpilot/internal/config"
)

// -- Config Mock --

// MockConfig mocks the config.Interface.
type MockConfig struct {
	mock.Mock
}

var _ config.Interface = (*MockConfig)(nil)

func (m *MockConfig) Logger() config.LoggerConfig {
	return m.Called().Get(0).(config.LoggerConfig)
}

func (m *MockConfig) Browser() config.BrowserConfig {
	return m.Called().Get(0).(config.BrowserConfig)
}

func (m *MockConfig) Agent() config.AgentConfig {
	return m.Called().Get(0).(config.AgentConfig)
}

func (m *MockConfig) LLM() config.LLMConfig {
	return m.Called().Get(0).(config.LLMConfig)
}

func (m *MockConfig) Memory() config.MemoryConfig {
	return m.Called().Get(0).(config.MemoryConfig)
}

func (m *MockConfig) SetAgentMaxSteps(n int)      { m.Called(n) }
func (m *MockConfig) SetBrowserStartURL(u string) { m.Called(u) }
func (m *MockConfig) SetBrowserHeadless(b bool)   { m.Called(b) }

// -- Browser Mocks --

// MockSession mocks browser.Session.
type MockSession struct {
	mock.Mock
}

var _ browser.Session = (*MockSession)(nil)

func (m *MockSession) AccessibilityTree(ctx context.Context) ([]browser.AXNode, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]browser.AXNode), args.Error(1)
}

func (m *MockSession) ResolveNode(ctx context.Context, backendID int64) (browser.RemoteHandle, error) {
	args := m.Called(ctx, backendID)
	return args.Get(0).(browser.RemoteHandle), args.Error(1)
}

// CallFunctionOn accepts the result as a string, []byte or json.RawMessage.
func (m *MockSession) CallFunctionOn(ctx context.Context, h browser.RemoteHandle, fn string, callArgs []any) (json.RawMessage, error) {
	args := m.Called(ctx, h, fn, callArgs)
	return rawResult(args.Get(0)), args.Error(1)
}

func (m *MockSession) Evaluate(ctx context.Context, expr string) (json.RawMessage, error) {
	args := m.Called(ctx, expr)
	return rawResult(args.Get(0)), args.Error(1)
}

func (m *MockSession) DispatchClick(ctx context.Context, x, y float64) error {
	return m.Called(ctx, x, y).Error(0)
}

func (m *MockSession) UpdateLocation(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *MockSession) URL(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockSession) Detach(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func rawResult(v interface{}) json.RawMessage {
	switch r := v.(type) {
	case nil:
		return nil
	case json.RawMessage:
		return r
	case []byte:
		return json.RawMessage(r)
	case string:
		return json.RawMessage(r)
	default:
		b, _ := json.Marshal(r)
		return b
	}
}

// MockTarget mocks browser.Target.
type MockTarget struct {
	mock.Mock
}

var _ browser.Target = (*MockTarget)(nil)

func (m *MockTarget) ID() string {
	return m.Called().String(0)
}

func (m *MockTarget) Attach(ctx context.Context) (browser.Session, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(browser.Session), args.Error(1)
}

// MockTargetResolver mocks browser.TargetResolver.
type MockTargetResolver struct {
	mock.Mock
}

var _ browser.TargetResolver = (*MockTargetResolver)(nil)

func (m *MockTargetResolver) ActiveTarget(ctx context.Context) (browser.Target, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(browser.Target), args.Error(1)
}

// -- LLM Client Mock --

// MockLLMClient mocks schemas.LLMClient.
type MockLLMClient struct {
	mock.Mock
}

var _ schemas.LLMClient = (*MockLLMClient)(nil)

// Generate honors cancellation before consulting expectations.
func (m *MockLLMClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockLLMClient) Close() error {
	return m.Called().Error(0)
}

// -- Note Store Mock --

// MockNoteStore mocks schemas.NoteStore.
type MockNoteStore struct {
	mock.Mock
}

var _ schemas.NoteStore = (*MockNoteStore)(nil)

func (m *MockNoteStore) Append(ctx context.Context, title, content string) (schemas.Note, error) {
	args := m.Called(ctx, title, content)
	return args.Get(0).(schemas.Note), args.Error(1)
}

func (m *MockNoteStore) List(ctx context.Context) ([]schemas.Note, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]schemas.Note), args.Error(1)
}

func (m *MockNoteStore) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockNoteStore) Close() error {
	return m.Called().Error(0)
}
