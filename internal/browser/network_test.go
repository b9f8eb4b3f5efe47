// internal/browser/network_test.go
package browser

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeClock is a manually advanced clock for the tracker.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestTracker() (*networkTracker, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	tr := newNetworkTracker(context.Background(), zap.NewNop())
	tr.now = clock.Now
	tr.lastActivity = clock.Now()
	return tr, clock
}

func TestNetworkTracker_Inflight(t *testing.T) {
	tr, _ := newTestTracker()

	tr.handleEvent(&network.EventRequestWillBeSent{RequestID: "1"})
	tr.handleEvent(&network.EventRequestWillBeSent{RequestID: "2"})
	// A redirect reuses the request ID.
	tr.handleEvent(&network.EventRequestWillBeSent{RequestID: "2"})
	assert.Equal(t, 2, tr.Inflight())

	tr.handleEvent(&network.EventLoadingFinished{RequestID: "1"})
	tr.handleEvent(&network.EventLoadingFailed{RequestID: "2"})
	assert.Equal(t, 0, tr.Inflight())

	// Unrelated events are ignored.
	tr.handleEvent(&network.EventResponseReceived{RequestID: "3"})
	assert.Equal(t, 0, tr.Inflight())
}

func TestNetworkTracker_IdleFor(t *testing.T) {
	tr, clock := newTestTracker()
	quiet := 500 * time.Millisecond

	tr.handleEvent(&network.EventRequestWillBeSent{RequestID: "1"})
	clock.Advance(time.Second)
	assert.False(t, tr.idleFor(quiet), "pending request blocks idleness")

	tr.handleEvent(&network.EventLoadingFinished{RequestID: "1"})
	assert.False(t, tr.idleFor(quiet), "quiet period restarts on completion")

	clock.Advance(quiet)
	assert.True(t, tr.idleFor(quiet))

	tr.handleEvent(&page.EventFrameStartedLoading{})
	assert.False(t, tr.idleFor(quiet), "navigation counts as activity")
}

func TestNetworkTracker_WaitNetworkIdle(t *testing.T) {
	t.Run("returns once idle", func(t *testing.T) {
		tr, clock := newTestTracker()
		clock.Advance(time.Second)
		require.NoError(t, tr.WaitNetworkIdle(context.Background(), 500*time.Millisecond))
	})

	t.Run("respects context deadline", func(t *testing.T) {
		tr, _ := newTestTracker()
		tr.handleEvent(&network.EventRequestWillBeSent{RequestID: "long-poll"})

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()
		err := tr.WaitNetworkIdle(ctx, 10*time.Millisecond)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
