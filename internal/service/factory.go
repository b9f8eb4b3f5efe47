// File: internal/service/factory.go
package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot-cli/api/schemas"
	"github.com/xkilldash9x/pilot-cli/internal/actions"
	"github.com/xkilldash9x/pilot-cli/internal/agent"
	"github.com/xkilldash9x/pilot-cli/internal/browser"
	"github.com/xkilldash9x/pilot-cli/internal/config"
	"github.com/xkilldash9x/pilot-cli/internal/llmclient"
	"github.com/xkilldash9x/pilot-cli/internal/safety"
)

// Options are the per-run choices the caller makes rather than the config.
type Options struct {
	// Policy decides flagged actions. Nil refuses them.
	Policy safety.Policy
	// Observer receives the run's events. May be nil.
	Observer agent.Observer
}

// ComponentFactory defines the interface for creating the set of components
// needed for an agent run. Commands and the server depend on this so they
// can be tested without a browser or an API key.
type ComponentFactory interface {
	Create(ctx context.Context, cfg config.Interface, opts Options, logger *zap.Logger) (*Components, error)
}

// modelConstructor matches llmclient.NewClient.
type modelConstructor func(ctx context.Context, cfg config.LLMConfig, opts llmclient.Options, logger *zap.Logger) (schemas.ModelClient, error)

// concreteFactory is the production implementation of the ComponentFactory.
type concreteFactory struct {
	newModel modelConstructor
}

// NewComponentFactory creates a new production-ready component factory.
func NewComponentFactory() ComponentFactory {
	return &concreteFactory{newModel: llmclient.NewClient}
}

// NewRegistry builds the action vocabulary from the browser settings.
func NewRegistry(cfg config.BrowserConfig) *actions.Registry {
	opts := actions.DefaultStandardOptions()
	if cfg.SearchURL != "" {
		opts.SearchURL = cfg.SearchURL
	}
	opts.HighlightPointer = cfg.HighlightMouse
	return actions.NewStandardRegistry(opts)
}

// Create wires the registry, browser, model client, safety gate and agent.
// No browser process is launched here; the agent starts it when a run begins.
func (f *concreteFactory) Create(ctx context.Context, cfg config.Interface, opts Options, logger *zap.Logger) (*Components, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	components := &Components{}

	// Ensure cleanup happens if initialization fails midway.
	var initializationErr error
	defer func() {
		if initializationErr != nil {
			logger.Warn("Initialization failed, shutting down partially created components.", zap.Error(initializationErr))
			components.Shutdown()
		}
	}()

	// 1. Action vocabulary
	components.Registry = NewRegistry(cfg.Browser())
	logger.Debug("Action registry initialized.", zap.Strings("actions", components.Registry.Names()))

	// 2. Browser session and executor
	components.Session = browser.NewSession(cfg.Browser(), logger)
	components.Executor = browser.NewExecutor(components.Session, components.Registry,
		browser.ExecutorOptions{PostSettleDelay: cfg.Browser().PostSettleDelay}, logger)
	logger.Debug("Browser executor initialized.", zap.String("session_id", components.Session.ID()))

	// 3. Model client
	model, err := f.newModel(ctx, cfg.LLM(), llmclient.Options{
		Tools:             components.Registry.Set(),
		SystemInstruction: SystemInstruction(cfg.LLM()),
	}, logger)
	if err != nil {
		initializationErr = fmt.Errorf("failed to initialize LLM client: %w", err)
		return nil, initializationErr
	}
	components.Model = model
	logger.Debug("LLM client initialized.", zap.String("model", cfg.LLM().Model))

	// 4. Safety gate
	policy := opts.Policy
	if policy == nil {
		policy = safety.DenyPolicy{}
	}
	components.Gate = safety.NewGate(policy, logger)

	// 5. Agent
	ag, err := agent.New(cfg, agent.Dependencies{
		Model:    components.Model,
		Executor: components.Executor,
		Tools:    components.Registry.Set(),
		Gate:     components.Gate,
		Observer: opts.Observer,
	}, logger)
	if err != nil {
		initializationErr = fmt.Errorf("failed to create agent: %w", err)
		return nil, initializationErr
	}
	components.Agent = ag

	logger.Debug("All run components initialized successfully.")
	return components, nil
}
