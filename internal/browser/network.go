// internal/browser/network.go
package browser

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// networkTracker listens to CDP events on a tab and keeps the set of
// in-flight requests so callers can wait for the network to go quiet.
type networkTracker struct {
	logger *zap.Logger

	sessionCtx     context.Context
	listenerCtx    context.Context
	cancelListener context.CancelFunc

	mu           sync.RWMutex
	inflight     map[network.RequestID]struct{}
	lastActivity time.Time
	started      bool
	now          func() time.Time
}

func newNetworkTracker(sessionCtx context.Context, logger *zap.Logger) *networkTracker {
	return &networkTracker{
		logger:       logger.Named("network"),
		sessionCtx:   sessionCtx,
		inflight:     make(map[network.RequestID]struct{}),
		lastActivity: time.Now(),
		now:          time.Now,
	}
}

// Start enables the network and page domains and begins listening.
func (t *networkTracker) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return nil
	}
	t.listenerCtx, t.cancelListener = context.WithCancel(t.sessionCtx)
	t.started = true
	t.mu.Unlock()

	chromedp.ListenTarget(t.listenerCtx, t.handleEvent)

	runCtx, cancel := CombineContext(t.sessionCtx, ctx)
	defer cancel()
	if err := chromedp.Run(runCtx, network.Enable(), page.Enable()); err != nil {
		t.Stop()
		return err
	}
	t.logger.Debug("Network tracker started.")
	return nil
}

// Stop detaches the listener.
func (t *networkTracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelListener != nil {
		t.cancelListener()
		t.cancelListener = nil
	}
	t.started = false
}

func (t *networkTracker) handleEvent(ev interface{}) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		t.requestStarted(e.RequestID)
	case *network.EventLoadingFinished:
		t.requestDone(e.RequestID)
	case *network.EventLoadingFailed:
		t.requestDone(e.RequestID)
	case *page.EventFrameStartedLoading, *page.EventLoadEventFired:
		t.touch()
	}
}

func (t *networkTracker) requestStarted(id network.RequestID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inflight[id] = struct{}{}
	t.lastActivity = t.now()
}

func (t *networkTracker) requestDone(id network.RequestID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.inflight, id)
	t.lastActivity = t.now()
}

func (t *networkTracker) touch() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastActivity = t.now()
}

// Inflight reports the number of requests still pending.
func (t *networkTracker) Inflight() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.inflight)
}

// idleFor reports whether nothing has been in flight for at least quiet.
func (t *networkTracker) idleFor(quiet time.Duration) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.inflight) == 0 && t.now().Sub(t.lastActivity) >= quiet
}

// WaitNetworkIdle polls until there have been no in-flight requests for
// quietPeriod or ctx is done.
func (t *networkTracker) WaitNetworkIdle(ctx context.Context, quietPeriod time.Duration) error {
	interval := quietPeriod / 2
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if t.idleFor(quietPeriod) {
			return nil
		}
		select {
		case <-ctx.Done():
			t.logger.Debug("WaitNetworkIdle aborted.", zap.Int("inflight_requests", t.Inflight()), zap.Error(ctx.Err()))
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
