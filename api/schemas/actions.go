package schemas

// SafetyDecisionKey is the reserved argument the model attaches to an action
// that needs explicit confirmation before it runs.
const SafetyDecisionKey = "safety_decision"

// Reserved keys of the action result wire mapping.
const (
	ResultKeyError              = "error"
	ResultKeyWarning            = "warning"
	ResultKeySafetyAcknowledged = "safety_acknowledgement"
	ResultKeyURL                = "url"
)

// ActionRequest is a named, argument-carrying instruction emitted by the model.
type ActionRequest struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// SafetyDecision is the payload of the reserved safety_decision argument.
type SafetyDecision struct {
	Decision    string `json:"decision,omitempty"`
	Explanation string `json:"explanation"`
}

// SafetyDecision extracts the reserved safety argument, if the model set one.
func (r ActionRequest) SafetyDecision() (*SafetyDecision, bool) {
	raw, ok := r.Args[SafetyDecisionKey]
	if !ok || raw == nil {
		return nil, false
	}
	sd := &SafetyDecision{}
	switch v := raw.(type) {
	case map[string]any:
		if s, ok := v["explanation"].(string); ok {
			sd.Explanation = s
		}
		if s, ok := v["decision"].(string); ok {
			sd.Decision = s
		}
	case string:
		sd.Explanation = v
	case SafetyDecision:
		*sd = v
	case *SafetyDecision:
		*sd = *v
	}
	return sd, true
}

// InvocationArgs returns a copy of the arguments with reserved keys removed,
// which is what the executor receives.
func (r ActionRequest) InvocationArgs() map[string]any {
	out := make(map[string]any, len(r.Args))
	for k, v := range r.Args {
		if k == SafetyDecisionKey {
			continue
		}
		out[k] = v
	}
	return out
}

// ActionResult is the outcome of a single dispatched action. It is always
// present, though Data may be empty.
type ActionResult struct {
	Data               map[string]any `json:"data,omitempty"`
	Error              string         `json:"error,omitempty"`
	Warning            string         `json:"warning,omitempty"`
	SafetyAcknowledged bool           `json:"safety_acknowledged,omitempty"`
}

// Failed reports whether the action produced an error result.
func (r ActionResult) Failed() bool { return r.Error != "" }

// Payload renders the result as the mapping sent back to the model.
func (r ActionResult) Payload() map[string]any {
	out := make(map[string]any, len(r.Data)+3)
	for k, v := range r.Data {
		out[k] = v
	}
	if r.Error != "" {
		out[ResultKeyError] = r.Error
	}
	if r.Warning != "" {
		out[ResultKeyWarning] = r.Warning
	}
	if r.SafetyAcknowledged {
		out[ResultKeySafetyAcknowledged] = "true"
	}
	return out
}

// ActionResponse pairs a dispatched request with its result and the location
// of the surface after the batch completed.
type ActionResponse struct {
	ID     string       `json:"id,omitempty"`
	Name   string       `json:"name"`
	Result ActionResult `json:"result"`
	URL    string       `json:"url"`
}

// Payload is the full mapping returned to the model for this response.
func (r ActionResponse) Payload() map[string]any {
	out := r.Result.Payload()
	out[ResultKeyURL] = r.URL
	return out
}

// ActionRecord is one entry of a run's action history.
type ActionRecord struct {
	Turn   int            `json:"turn"`
	Name   string         `json:"action_name"`
	Args   map[string]any `json:"action_args"`
	Result ActionResult   `json:"result"`
}
