// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/pilot-cli/api/schemas"
	"github.com/xkilldash9x/pilot-cli/internal/actions"
	"github.com/xkilldash9x/pilot-cli/internal/safety"
)

// -- Model Client Mock --

// MockModelClient mocks schemas.ModelClient.
type MockModelClient struct {
	mock.Mock
}

// NewMockModelClient returns a ready-to-program model client mock.
func NewMockModelClient() *MockModelClient { return new(MockModelClient) }

func (m *MockModelClient) Send(ctx context.Context, conversation []schemas.Turn) (schemas.Turn, error) {
	args := m.Called(ctx, conversation)
	turn, _ := args.Get(0).(schemas.Turn)
	return turn, args.Error(1)
}

var _ schemas.ModelClient = (*MockModelClient)(nil)

// -- Action Executor Mock --

// MockActionExecutor mocks schemas.ActionExecutor.
type MockActionExecutor struct {
	mock.Mock
}

// NewMockActionExecutor returns a ready-to-program executor mock.
func NewMockActionExecutor() *MockActionExecutor { return new(MockActionExecutor) }

func (m *MockActionExecutor) Initialize(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockActionExecutor) Navigate(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *MockActionExecutor) CaptureObservation(ctx context.Context) (*schemas.Observation, error) {
	args := m.Called(ctx)
	obs, _ := args.Get(0).(*schemas.Observation)
	return obs, args.Error(1)
}

func (m *MockActionExecutor) Invoke(ctx context.Context, name string, params map[string]any) (map[string]any, error) {
	args := m.Called(ctx, name, params)
	out, _ := args.Get(0).(map[string]any)
	return out, args.Error(1)
}

func (m *MockActionExecutor) Settle(ctx context.Context, timeout time.Duration) bool {
	return m.Called(ctx, timeout).Bool(0)
}

func (m *MockActionExecutor) Release(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

var _ schemas.ActionExecutor = (*MockActionExecutor)(nil)

// -- Surface Mock --

// MockSurface mocks actions.Surface. Viewport is fixed at construction so
// tests do not need to program it.
type MockSurface struct {
	mock.Mock
	Width, Height int
}

// NewMockSurface creates a surface mock with the given viewport.
func NewMockSurface(width, height int) *MockSurface {
	return &MockSurface{Width: width, Height: height}
}

func (m *MockSurface) Viewport() (int, int) { return m.Width, m.Height }

func (m *MockSurface) Navigate(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *MockSurface) GoBack(ctx context.Context) error { return m.Called(ctx).Error(0) }

func (m *MockSurface) GoForward(ctx context.Context) error { return m.Called(ctx).Error(0) }

func (m *MockSurface) MouseMove(ctx context.Context, x, y float64) error {
	return m.Called(ctx, x, y).Error(0)
}

func (m *MockSurface) MouseClick(ctx context.Context, x, y float64) error {
	return m.Called(ctx, x, y).Error(0)
}

func (m *MockSurface) MouseDown(ctx context.Context, x, y float64) error {
	return m.Called(ctx, x, y).Error(0)
}

func (m *MockSurface) MouseUp(ctx context.Context, x, y float64) error {
	return m.Called(ctx, x, y).Error(0)
}

func (m *MockSurface) MouseWheel(ctx context.Context, x, y, dx, dy float64) error {
	return m.Called(ctx, x, y, dx, dy).Error(0)
}

func (m *MockSurface) TypeText(ctx context.Context, text string) error {
	return m.Called(ctx, text).Error(0)
}

func (m *MockSurface) PressKeys(ctx context.Context, combo string) error {
	return m.Called(ctx, combo).Error(0)
}

func (m *MockSurface) ScrollBy(ctx context.Context, dx, dy int) error {
	return m.Called(ctx, dx, dy).Error(0)
}

func (m *MockSurface) Highlight(ctx context.Context, x, y float64) error {
	return m.Called(ctx, x, y).Error(0)
}

var _ actions.Surface = (*MockSurface)(nil)

// -- Safety Policy Mock --

// MockPolicy mocks safety.Policy.
type MockPolicy struct {
	mock.Mock
}

func (m *MockPolicy) Decide(ctx context.Context, p safety.Prompt) (safety.Decision, error) {
	args := m.Called(ctx, p)
	d, _ := args.Get(0).(safety.Decision)
	return d, args.Error(1)
}

var _ safety.Policy = (*MockPolicy)(nil)
