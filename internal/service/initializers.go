// File: internal/service/initializers.go
package service

import (
	"io"

	"github.com/xkilldash9x/pilot-cli/internal/agent"
	"github.com/xkilldash9x/pilot-cli/internal/config"
	"github.com/xkilldash9x/pilot-cli/internal/safety"
)

// SystemInstruction returns the configured override or the built-in prompt.
func SystemInstruction(cfg config.LLMConfig) string {
	if cfg.SystemInstruction != "" {
		return cfg.SystemInstruction
	}
	return agent.DefaultSystemInstruction
}

// PolicyFromConfig picks the safety policy for an attended run: auto-approve
// when configured, otherwise ask on in/out. A nil in means nobody can answer,
// so flagged actions are refused.
func PolicyFromConfig(cfg config.AgentConfig, in io.Reader, out io.Writer) safety.Policy {
	switch {
	case cfg.AutoApproveSafety:
		return safety.AutoApprovePolicy{}
	case in == nil:
		return safety.DenyPolicy{}
	default:
		if out == nil {
			out = io.Discard
		}
		return safety.NewPromptPolicy(in, out)
	}
}
