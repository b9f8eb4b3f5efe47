// internal/agent/state.go
package agent

import "github.com/xkilldash9x/pilot-cli/api/schemas"

// State is a node of the run state machine.
type State string

const (
	StateInit               State = "INIT"
	StateAwaitingModel      State = "AWAITING_MODEL"
	StateDispatchingActions State = "DISPATCHING_ACTIONS"
	StateCompleted          State = "COMPLETED"
	StateMaxTurnsExceeded   State = "MAX_TURNS_EXCEEDED"
	StateError              State = "ERROR"
)

// IsTerminal reports whether no further transitions leave the state.
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateMaxTurnsExceeded, StateError:
		return true
	}
	return false
}

// transitions lists the legal edges of the state machine.
var transitions = map[State][]State{
	StateInit:               {StateAwaitingModel, StateMaxTurnsExceeded, StateError},
	StateAwaitingModel:      {StateDispatchingActions, StateCompleted, StateError},
	StateDispatchingActions: {StateAwaitingModel, StateMaxTurnsExceeded, StateCompleted, StateError},
}

// CanTransition reports whether moving from s to next is a legal edge.
func (s State) CanTransition(next State) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// TerminationReason maps a terminal state to the reason reported in the
// run result. Non-terminal states map to the empty reason.
func (s State) TerminationReason() schemas.TerminationReason {
	switch s {
	case StateCompleted:
		return schemas.TerminationCompleted
	case StateMaxTurnsExceeded:
		return schemas.TerminationMaxTurnsExceeded
	case StateError:
		return schemas.TerminationError
	}
	return ""
}
