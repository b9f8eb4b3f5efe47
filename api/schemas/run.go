package schemas

import "time"

// TerminationReason explains why a run ended.
type TerminationReason string

const (
	TerminationCompleted        TerminationReason = "COMPLETED"
	TerminationMaxTurnsExceeded TerminationReason = "MAX_TURNS_EXCEEDED"
	TerminationError            TerminationReason = "ERROR"
)

// Observation is a snapshot of the surface: a PNG screenshot plus the
// current location.
type Observation struct {
	Screenshot []byte    `json:"-"`
	URL        string    `json:"url"`
	CapturedAt time.Time `json:"captured_at"`
}

// ConfiguredMaxTurns asks the agent to use its configured turn bound.
const ConfiguredMaxTurns = -1

// RunRequest is the input to a single agent run.
type RunRequest struct {
	// ID names the run. Empty generates one.
	ID         string `json:"id,omitempty"`
	Goal       string `json:"goal"`
	InitialURL string `json:"url,omitempty"`
	// MaxTurns bounds the number of model calls. Zero is a valid bound;
	// a negative value selects the configured default.
	MaxTurns int `json:"max_turns"`
}

// AgentRunResult is returned for every run, whatever the outcome.
type AgentRunResult struct {
	RunID             string            `json:"run_id"`
	Goal              string            `json:"goal"`
	FinalMessage      string            `json:"final_message"`
	ActionHistory     []ActionRecord    `json:"action_history"`
	TerminationReason TerminationReason `json:"termination_reason"`
	// SafetyStopped marks a COMPLETED run that ended because a flagged
	// action was refused.
	SafetyStopped    bool          `json:"safety_stopped,omitempty"`
	FinalObservation *Observation  `json:"final_observation,omitempty"`
	Turns            int           `json:"turns"`
	StartedAt        time.Time     `json:"started_at"`
	Duration         time.Duration `json:"duration"`
}

// Succeeded reports whether the run reached a final answer from the model.
func (r *AgentRunResult) Succeeded() bool {
	return r != nil && r.TerminationReason == TerminationCompleted && !r.SafetyStopped
}
