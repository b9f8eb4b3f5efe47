// File: internal/server/bus.go
package server

import (
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot-cli/internal/agent"
)

// EventBus fans run events out to websocket subscribers. It keeps each run's
// history so a subscriber that connects late still sees the whole run.
// Publishing never blocks the run: a subscriber whose buffer is full misses
// the event.
type EventBus struct {
	logger     *zap.Logger
	bufferSize int

	mu          sync.Mutex
	history     map[string][]agent.Event
	subscribers map[string][]chan agent.Event
	closed      map[string]bool
	isShutdown  bool
}

// NewEventBus initializes the bus.
func NewEventBus(logger *zap.Logger, bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &EventBus{
		logger:      logger.Named("event_bus"),
		bufferSize:  bufferSize,
		history:     make(map[string][]agent.Event),
		subscribers: make(map[string][]chan agent.Event),
		closed:      make(map[string]bool),
	}
}

// Observer returns an agent.Observer that publishes onto the bus.
func (b *EventBus) Observer() agent.Observer {
	return agent.ObserverFunc(b.Publish)
}

// Publish records the event and delivers it to the run's subscribers. A
// run_finished event closes the run's stream.
func (b *EventBus) Publish(e agent.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.isShutdown || b.closed[e.RunID] {
		return
	}

	b.history[e.RunID] = append(b.history[e.RunID], e)
	for _, ch := range b.subscribers[e.RunID] {
		select {
		case ch <- e:
		default:
			b.logger.Warn("Subscriber buffer full, dropping event.",
				zap.String("run_id", e.RunID), zap.String("type", string(e.Type)))
		}
	}

	if e.Type == agent.EventRunFinished {
		b.closeRunLocked(e.RunID)
	}
}

// Subscribe returns the events published so far and a channel for the rest.
// The channel is closed when the run finishes, when unsubscribe is called, or
// when the bus shuts down. For a finished run it is already closed.
func (b *EventBus) Subscribe(runID string) ([]agent.Event, <-chan agent.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	past := append([]agent.Event(nil), b.history[runID]...)
	ch := make(chan agent.Event, b.bufferSize)
	if b.isShutdown || b.closed[runID] {
		close(ch)
		return past, ch, func() {}
	}
	b.subscribers[runID] = append(b.subscribers[runID], ch)

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			subs := b.subscribers[runID]
			for i, subscriberCh := range subs {
				if subscriberCh == ch {
					b.subscribers[runID] = append(subs[:i], subs[i+1:]...)
					close(ch)
					break
				}
			}
			if len(b.subscribers[runID]) == 0 {
				delete(b.subscribers, runID)
			}
		})
	}
	return past, ch, unsubscribe
}

// Close ends a run's stream without a run_finished event, for runs that
// failed before the agent started.
func (b *EventBus) Close(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeRunLocked(runID)
}

// Forget drops everything the bus holds for a run.
func (b *EventBus) Forget(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeRunLocked(runID)
	delete(b.history, runID)
	delete(b.closed, runID)
}

// Shutdown closes every open stream. Later publishes are ignored.
func (b *EventBus) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.isShutdown {
		return
	}
	b.isShutdown = true
	for runID := range b.subscribers {
		b.closeRunLocked(runID)
	}
}

func (b *EventBus) closeRunLocked(runID string) {
	for _, ch := range b.subscribers[runID] {
		close(ch)
	}
	delete(b.subscribers, runID)
	b.closed[runID] = true
}
