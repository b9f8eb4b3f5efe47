// internal/browser/context_test.go
package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type ctxKey struct{}

func TestCombineContext(t *testing.T) {
	t.Run("secondary cancellation propagates", func(t *testing.T) {
		primary := context.WithValue(context.Background(), ctxKey{}, "cdp")
		secondary, cancelSecondary := context.WithCancel(context.Background())

		combined, cancel := CombineContext(primary, secondary)
		defer cancel()
		assert.Equal(t, "cdp", combined.Value(ctxKey{}))

		cancelSecondary()
		select {
		case <-combined.Done():
		case <-time.After(time.Second):
			t.Fatal("combined context was not canceled")
		}
	})

	t.Run("primary cancellation propagates", func(t *testing.T) {
		primary, cancelPrimary := context.WithCancel(context.Background())
		combined, cancel := CombineContext(primary, context.Background())
		defer cancel()

		cancelPrimary()
		<-combined.Done()
		assert.ErrorIs(t, combined.Err(), context.Canceled)
	})
}

func TestDetach(t *testing.T) {
	parent, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "v"))
	detached := Detach(parent)
	cancel()

	assert.NoError(t, detached.Err())
	assert.Nil(t, detached.Done())
	assert.Equal(t, "v", detached.Value(ctxKey{}))
	_, ok := detached.Deadline()
	assert.False(t, ok)
}
