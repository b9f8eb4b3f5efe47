// internal/llmclient/factory.go
package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot-cli/api/schemas"
	"github.com/xkilldash9x/pilot-cli/internal/config"
)

// NewClient is a factory function that creates a ModelClient based on the configuration.
func NewClient(ctx context.Context, cfg config.LLMConfig, opts Options, logger *zap.Logger) (schemas.ModelClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGeminiClient(ctx, cfg, opts, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s]", cfg.Provider, config.ProviderGemini)
	}
}
