// File: internal/service/components.go
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot-cli/api/schemas"
	"github.com/xkilldash9x/pilot-cli/internal/actions"
	"github.com/xkilldash9x/pilot-cli/internal/agent"
	"github.com/xkilldash9x/pilot-cli/internal/browser"
	"github.com/xkilldash9x/pilot-cli/internal/observability"
	"github.com/xkilldash9x/pilot-cli/internal/safety"
)

// shutdownTimeout bounds browser teardown when the caller's context is gone.
const shutdownTimeout = 30 * time.Second

// Components holds everything one agent run needs. Each Components owns a
// single browser session, so it serves one goal at a time.
type Components struct {
	Registry *actions.Registry
	Session  *browser.Session
	Executor schemas.ActionExecutor
	Model    schemas.ModelClient
	Gate     *safety.Gate
	Agent    *agent.Agent
}

// Shutdown releases the browser. The agent releases it at the end of every
// run already, so this only matters when a run never happened or was
// abandoned. Safe to call more than once.
func (c *Components) Shutdown() {
	logger := observability.GetLogger()
	logger.Debug("Beginning components shutdown sequence.")

	if c.Executor != nil {
		// A fresh context so teardown completes even after the caller's
		// context was canceled.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := c.Executor.Release(shutdownCtx); err != nil {
			logger.Warn("Error during browser shutdown.", zap.Error(err))
		} else {
			logger.Debug("Browser released.")
		}
	}

	logger.Debug("All run components shut down.")
}
