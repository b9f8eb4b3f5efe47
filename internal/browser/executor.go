// internal/browser/executor.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot-cli/api/schemas"
	"github.com/xkilldash9x/pilot-cli/internal/actions"
)

// Driver is a browser tab the executor can steer: the action surface plus
// capture and lifecycle operations. Session is the CDP implementation.
type Driver interface {
	actions.Surface
	Start(ctx context.Context) error
	Screenshot(ctx context.Context) ([]byte, error)
	URL(ctx context.Context) (string, error)
	WaitStable(ctx context.Context) error
	Close(ctx context.Context) error
}

// ExecutorOptions tunes the executor.
type ExecutorOptions struct {
	// PostSettleDelay is slept after every settle wait.
	PostSettleDelay time.Duration
}

// Executor adapts a Driver and an action registry to schemas.ActionExecutor.
type Executor struct {
	driver   Driver
	registry *actions.Registry
	opts     ExecutorOptions
	logger   *zap.Logger

	mu       sync.Mutex
	started  bool
	released bool
	now      func() time.Time
}

var _ schemas.ActionExecutor = (*Executor)(nil)

// NewExecutor wires a driver to the action vocabulary.
func NewExecutor(driver Driver, registry *actions.Registry, opts ExecutorOptions, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		driver:   driver,
		registry: registry,
		opts:     opts,
		logger:   logger.Named("executor"),
		now:      time.Now,
	}
}

// Initialize starts the browser.
func (e *Executor) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.released {
		return errors.New("executor already released")
	}
	if e.started {
		return nil
	}
	if err := e.driver.Start(ctx); err != nil {
		return err
	}
	e.started = true
	return nil
}

// Navigate loads url in the tab.
func (e *Executor) Navigate(ctx context.Context, url string) error {
	return e.driver.Navigate(ctx, url)
}

// CaptureObservation takes a viewport screenshot and reads the current URL.
func (e *Executor) CaptureObservation(ctx context.Context) (*schemas.Observation, error) {
	png, err := e.driver.Screenshot(ctx)
	if err != nil {
		return nil, err
	}
	url, err := e.driver.URL(ctx)
	if err != nil {
		return nil, err
	}
	return &schemas.Observation{Screenshot: png, URL: url, CapturedAt: e.now()}, nil
}

// Invoke runs a named action. Names outside the registry are a no-op so the
// dispatcher's vocabulary decides what is "not implemented".
func (e *Executor) Invoke(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	h, ok := e.registry.Lookup(name)
	if !ok {
		e.logger.Debug("Ignoring action outside the registry.", zap.String("action", name))
		return nil, nil
	}
	out, err := h.Invoke(ctx, e.driver, actions.Args(args))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// Settle waits up to timeout for the page to stabilize, then sleeps the
// post-settle delay. A timeout is reported, never returned.
func (e *Executor) Settle(ctx context.Context, timeout time.Duration) bool {
	stable := true
	if timeout > 0 {
		waitCtx, cancel := context.WithTimeout(ctx, timeout)
		err := e.driver.WaitStable(waitCtx)
		cancel()
		if err != nil {
			stable = false
			e.logger.Debug("Page did not settle before timeout.", zap.Duration("timeout", timeout), zap.Error(err))
		}
	}

	if e.opts.PostSettleDelay > 0 {
		timer := time.NewTimer(e.opts.PostSettleDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return false
		}
	}
	return stable
}

// Release closes the browser. Repeated calls are no-ops.
func (e *Executor) Release(ctx context.Context) error {
	e.mu.Lock()
	if e.released {
		e.mu.Unlock()
		return nil
	}
	e.released = true
	e.mu.Unlock()

	if err := e.driver.Close(ctx); err != nil {
		e.logger.Warn("Failed to close browser cleanly.", zap.Error(err))
		return err
	}
	return nil
}
