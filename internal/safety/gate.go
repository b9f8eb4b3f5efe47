// Package safety intercepts actions that the model flagged as needing an
// explicit approve/refuse decision before they run.
package safety

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot-cli/api/schemas"
)

// Decision is the outcome of a safety review.
type Decision string

const (
	DecisionContinue  Decision = "CONTINUE"
	DecisionTerminate Decision = "TERMINATE"
)

// Prompt is what a Policy is asked to decide on.
type Prompt struct {
	ActionName  string
	Args        map[string]any
	Explanation string
}

// Policy obtains a decision for a flagged action. Implementations must honour
// ctx cancellation.
type Policy interface {
	Decide(ctx context.Context, p Prompt) (Decision, error)
}

// PolicyFunc adapts a function to the Policy interface.
type PolicyFunc func(ctx context.Context, p Prompt) (Decision, error)

// Decide calls f.
func (f PolicyFunc) Decide(ctx context.Context, p Prompt) (Decision, error) { return f(ctx, p) }

// Verdict is the gate's answer for one action request.
type Verdict struct {
	// Flagged is true when the request carried a safety decision.
	Flagged  bool
	Decision Decision
	// Explanation is the model-supplied reason for the confirmation.
	Explanation string
}

// Acknowledged reports whether a flagged action was approved.
func (v Verdict) Acknowledged() bool { return v.Flagged && v.Decision == DecisionContinue }

// Terminated reports whether the run must stop before this action.
func (v Verdict) Terminated() bool { return v.Flagged && v.Decision == DecisionTerminate }

// Gate consults its injected Policy for flagged requests. Unflagged requests
// pass without consulting the policy.
type Gate struct {
	policy Policy
	logger *zap.Logger
}

// NewGate builds a gate around the given policy. A nil policy refuses every
// flagged action.
func NewGate(policy Policy, logger *zap.Logger) *Gate {
	if policy == nil {
		policy = DenyPolicy{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{policy: policy, logger: logger.Named("safety_gate")}
}

// Review inspects a request for the reserved safety argument and, if present,
// obtains a decision. A policy failure is treated as TERMINATE.
func (g *Gate) Review(ctx context.Context, req schemas.ActionRequest) Verdict {
	sd, flagged := req.SafetyDecision()
	if !flagged {
		return Verdict{Decision: DecisionContinue}
	}

	g.logger.Info("Safety service requires explicit confirmation.",
		zap.String("action", req.Name),
		zap.String("explanation", sd.Explanation),
	)

	decision, err := g.policy.Decide(ctx, Prompt{
		ActionName:  req.Name,
		Args:        req.InvocationArgs(),
		Explanation: sd.Explanation,
	})
	if err != nil {
		g.logger.Warn("Safety policy failed to decide, refusing action.",
			zap.String("action", req.Name), zap.Error(err))
		decision = DecisionTerminate
	}
	if decision != DecisionContinue {
		decision = DecisionTerminate
	}

	if decision == DecisionTerminate {
		g.logger.Warn("Flagged action refused.", zap.String("action", req.Name))
	}
	return Verdict{Flagged: true, Decision: decision, Explanation: sd.Explanation}
}
