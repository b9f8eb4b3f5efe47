// internal/agent/events.go
package agent

import (
	"time"

	"github.com/xkilldash9x/pilot-cli/api/schemas"
)

// EventType identifies what happened during a run.
type EventType string

const (
	EventRunStarted       EventType = "run_started"
	EventStateChanged     EventType = "state_changed"
	EventModelTurn        EventType = "model_turn"
	EventActionDispatched EventType = "action_dispatched"
	EventObservation      EventType = "observation"
	EventRunFinished      EventType = "run_finished"
)

// Event is a progress notification. Only the fields relevant to Type are set.
type Event struct {
	RunID     string    `json:"run_id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Turn      int       `json:"turn"`

	Goal      string                  `json:"goal,omitempty"`
	From      State                   `json:"from,omitempty"`
	To        State                   `json:"to,omitempty"`
	Text      string                  `json:"text,omitempty"`
	Requests  []schemas.ActionRequest `json:"requests,omitempty"`
	Record    *schemas.ActionRecord   `json:"record,omitempty"`
	URL       string                  `json:"url,omitempty"`
	Result    *schemas.AgentRunResult `json:"result,omitempty"`
	ErrorCode ErrorCode               `json:"error_code,omitempty"`
}

// Observer receives run events synchronously on the run goroutine. Slow
// observers slow the run down.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

func (f ObserverFunc) OnEvent(e Event) { f(e) }

// MultiObserver fans each event out to every member in order.
type MultiObserver []Observer

func (m MultiObserver) OnEvent(e Event) {
	for _, o := range m {
		if o != nil {
			o.OnEvent(e)
		}
	}
}

type nopObserver struct{}

func (nopObserver) OnEvent(Event) {}
