// internal/browser/snapshot/snapshot_test.go
package snapshot_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/axpilot/api/schemas"
	"github.com/xkilldash9x/axpilot/internal/browser"
	"github.com/xkilldash9x/axpilot/internal/browser/snapshot"
	"github.com/xkilldash9x/axpilot/internal/mocks"
)

func TestReduce(t *testing.T) {
	nodes := []browser.AXNode{
		{BackendID: 1, Role: "RootWebArea", Name: "Shop"},
		{BackendID: 2}, // no role, no name
		{BackendID: 0, Role: "StaticText", Name: "x"}, // no DOM backing
		{BackendID: 3, Role: "button", Name: "Buy"},
		{BackendID: 3, Role: "StaticText", Name: "Buy"}, // duplicate id
		{BackendID: 4, Name: "unnamed role"},
		{BackendID: 5, Role: "generic", Ignored: true},
	}

	elements, truncated := snapshot.Reduce(nodes, 10)
	assert.False(t, truncated)
	assert.Equal(t, []schemas.Element{
		{ID: 1, Role: "RootWebArea", Name: "Shop"},
		{ID: 3, Role: "button", Name: "Buy"},
		{ID: 4, Name: "unnamed role"},
		{ID: 5, Role: "generic", Ignored: true},
	}, elements)

	elements, truncated = snapshot.Reduce(nodes, 2)
	assert.True(t, truncated)
	assert.Len(t, elements, 2)
	assert.Equal(t, int64(3), elements[1].ID, "truncation keeps tree order")

	elements, truncated = snapshot.Reduce(nodes[:2], 1)
	assert.False(t, truncated, "exactly at the cap is not truncation")
	assert.Len(t, elements, 1)
}

func TestReduce_NonPositiveLimitUsesDefaultCap(t *testing.T) {
	nodes := make([]browser.AXNode, snapshot.DefaultCap+5)
	for i := range nodes {
		nodes[i] = browser.AXNode{BackendID: int64(i + 1), Role: "button"}
	}
	for _, limit := range []int{0, -1} {
		elements, truncated := snapshot.Reduce(nodes, limit)
		assert.True(t, truncated, "limit %d", limit)
		assert.Len(t, elements, snapshot.DefaultCap, "limit %d", limit)
	}
}

func FuzzReduceInvariants(f *testing.F) {
	f.Add([]byte("seed"), 5)
	f.Fuzz(func(t *testing.T, data []byte, limit int) {
		if limit <= 0 || limit > 500 {
			return
		}
		consumer := fuzz.NewConsumer(data)
		var nodes []browser.AXNode
		if err := consumer.CreateSlice(&nodes); err != nil {
			return
		}
		elements, _ := snapshot.Reduce(nodes, limit)
		require.LessOrEqual(t, len(elements), limit)
		seen := map[int64]bool{}
		for _, el := range elements {
			require.False(t, seen[el.ID], "duplicate id %d", el.ID)
			seen[el.ID] = true
			require.True(t, el.Role != "" || el.Name != "")
		}
	})
}

func TestCapture(t *testing.T) {
	ctx := context.Background()

	t.Run("CapturesAndDetaches", func(t *testing.T) {
		session := new(mocks.MockSession)
		target := new(mocks.MockTarget)
		target.On("Attach", ctx).Return(session, nil)

		var nodes []browser.AXNode
		for i := 1; i <= 30; i++ {
			nodes = append(nodes, browser.AXNode{BackendID: int64(i), Role: "link", Name: fmt.Sprintf("item %d", i)})
		}
		session.On("AccessibilityTree", ctx).Return(nodes, nil)
		session.On("URL", ctx).Return("https://shop.test/", nil)
		session.On("Detach", ctx).Return(nil).Once()

		p := snapshot.NewProvider(zaptest.NewLogger(t), 25)
		snap, err := p.Capture(ctx, target)
		require.NoError(t, err)
		assert.Equal(t, 25, snap.Len())
		assert.True(t, snap.Truncated)
		assert.Equal(t, "https://shop.test/", snap.URL)
		assert.False(t, snap.CapturedAt.IsZero())
		session.AssertExpectations(t)
	})

	t.Run("SessionBusy", func(t *testing.T) {
		target := new(mocks.MockTarget)
		target.On("Attach", ctx).Return(nil, browser.ErrSessionBusy)

		_, err := snapshot.NewProvider(zaptest.NewLogger(t), 0).Capture(ctx, target)
		require.Error(t, err)
		var snapErr *snapshot.Error
		require.ErrorAs(t, err, &snapErr)
		assert.Equal(t, schemas.ErrCodeSessionBusy, snapErr.Code())
		assert.ErrorIs(t, err, browser.ErrSessionBusy)
	})

	t.Run("TreeFailureStillDetaches", func(t *testing.T) {
		session := new(mocks.MockSession)
		target := new(mocks.MockTarget)
		target.On("Attach", ctx).Return(session, nil)
		session.On("AccessibilityTree", ctx).Return(nil, errors.New("target crashed"))
		session.On("Detach", ctx).Return(nil).Once()

		_, err := snapshot.NewProvider(zaptest.NewLogger(t), 0).Capture(ctx, target)
		var snapErr *snapshot.Error
		require.ErrorAs(t, err, &snapErr)
		assert.Equal(t, schemas.ErrCodeSnapshot, snapErr.Code())
		session.AssertCalled(t, "Detach", ctx)
		session.AssertNotCalled(t, "URL", mock.Anything)
	})

	t.Run("DetachFailureAfterReadIsTolerated", func(t *testing.T) {
		session := new(mocks.MockSession)
		target := new(mocks.MockTarget)
		target.On("Attach", ctx).Return(session, nil)
		session.On("AccessibilityTree", ctx).Return([]browser.AXNode{{BackendID: 9, Role: "button"}}, nil)
		session.On("URL", ctx).Return("", errors.New("no frame"))
		session.On("Detach", ctx).Return(errors.New("websocket closed"))

		snap, err := snapshot.NewProvider(zaptest.NewLogger(t), 0).Capture(ctx, target)
		require.NoError(t, err)
		assert.True(t, snap.Contains(9))
		assert.Empty(t, snap.URL)
	})
}
