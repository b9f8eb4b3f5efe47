// internal/browser/context.go
package browser

import (
	"context"
	"time"
)

// CombineContext creates a new context derived from ctx1 (the session context,
// which carries the CDP target) that is also canceled when ctx2 (the
// operational context) is done. Values come from ctx1 only.
func CombineContext(ctx1, ctx2 context.Context) (context.Context, context.CancelFunc) {
	combinedCtx, cancel := context.WithCancel(ctx1)

	go func() {
		select {
		case <-ctx2.Done():
			cancel()
		case <-combinedCtx.Done():
		}
	}()

	return combinedCtx, cancel
}

// valueOnlyContext inherits values from its parent but ignores the parent's
// deadline and cancellation.
type valueOnlyContext struct {
	context.Context
}

func (valueOnlyContext) Deadline() (deadline time.Time, ok bool) { return }
func (valueOnlyContext) Done() <-chan struct{}                   { return nil }
func (valueOnlyContext) Err() error                              { return nil }

// Detach returns a context that keeps ctx's values but is not canceled with
// it. Cleanup that must outlive a canceled run uses this.
func Detach(ctx context.Context) context.Context {
	return valueOnlyContext{ctx}
}
