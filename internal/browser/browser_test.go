// internal/browser/browser_test.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/axpilot/api/schemas"
)

func TestClassifyError(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected schemas.ErrorCode
	}{
		{"Nil", nil, ""},
		{"WrappedNodeResolution", fmt.Errorf("resolve 7: %w", ErrNodeResolution), schemas.ErrCodeNodeResolution},
		{"ProtocolNodeMissing", errors.New("No node with given id found (-32000)"), schemas.ErrCodeNodeResolution},
		{"Busy", fmt.Errorf("attach: %w", ErrSessionBusy), schemas.ErrCodeSessionBusy},
		{"NoTarget", ErrNoActiveTarget, schemas.ErrCodeNoActiveTarget},
		{"Deadline", fmt.Errorf("navigate: %w", context.DeadlineExceeded), schemas.ErrCodeNavigationTimeout},
		{"NetError", errors.New("page load error net::ERR_NAME_NOT_RESOLVED"), schemas.ErrCodeNavigationTimeout},
		{"Other", errors.New("websocket closed"), schemas.ErrCodeExecutionFailure},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ClassifyError(tc.err))
		})
	}
}

func TestIsContextDestroyed(t *testing.T) {
	assert.True(t, IsContextDestroyed(errors.New("Execution context was destroyed. (-32000)")))
	assert.True(t, IsContextDestroyed(errors.New("Cannot find context with specified id")))
	assert.False(t, IsContextDestroyed(errors.New("timeout")))
	assert.False(t, IsContextDestroyed(nil))
}

type stubTarget struct{}

func (stubTarget) ID() string                              { return "tab-1" }
func (stubTarget) Attach(context.Context) (Session, error) { return nil, ErrSessionBusy }

func TestStaticResolver(t *testing.T) {
	_, err := StaticResolver{}.ActiveTarget(context.Background())
	assert.ErrorIs(t, err, ErrNoActiveTarget)

	tgt, err := StaticResolver{T: stubTarget{}}.ActiveTarget(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tab-1", tgt.ID())
}
