// internal/agent/dispatcher.go
package agent

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot-cli/api/schemas"
	"github.com/xkilldash9x/pilot-cli/internal/toolschema"
)

// Dispatcher routes a single action request to the executor and normalizes
// the outcome into an ActionResult. It never returns an error: every failure
// is folded into the result the model sees.
type Dispatcher struct {
	tools         *toolschema.Set
	validator     *toolschema.Validator
	executor      schemas.ActionExecutor
	settleTimeout time.Duration
	logger        *zap.Logger
}

// NewDispatcher creates a dispatcher over the registered declarations.
func NewDispatcher(tools *toolschema.Set, executor schemas.ActionExecutor, settleTimeout time.Duration, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		tools:         tools,
		validator:     toolschema.NewValidator(tools),
		executor:      executor,
		settleTimeout: settleTimeout,
		logger:        logger.Named("dispatcher"),
	}
}

// Dispatch runs one request. Unknown names produce a warning and touch
// nothing. Every known name is followed by a settle wait, whether it was
// rejected, failed, or succeeded.
func (d *Dispatcher) Dispatch(ctx context.Context, req schemas.ActionRequest) schemas.ActionResult {
	if _, ok := d.tools.Lookup(req.Name); !ok {
		d.logger.Warn("Model requested an unregistered action.",
			zap.String("action", req.Name), zap.String("code", string(ErrCodeUnknownAction)))
		return schemas.ActionResult{Warning: fmt.Sprintf("Action '%s' was not implemented", req.Name)}
	}

	result := d.validateAndInvoke(ctx, req)
	d.settle(ctx, req.Name)
	return result
}

func (d *Dispatcher) validateAndInvoke(ctx context.Context, req schemas.ActionRequest) schemas.ActionResult {
	args := req.InvocationArgs()
	if err := d.validator.Validate(req.Name, args); err != nil {
		d.logger.Debug("Action arguments rejected.",
			zap.String("action", req.Name), zap.String("code", string(ErrCodeInvalidParameters)), zap.Error(err))
		return schemas.ActionResult{Error: err.Error()}
	}
	return d.invoke(ctx, req.Name, args)
}

func (d *Dispatcher) invoke(ctx context.Context, name string, args map[string]any) (result schemas.ActionResult) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Executor panicked while handling action.",
				zap.String("action", name),
				zap.String("code", string(ErrCodeExecutorPanic)),
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())),
			)
			result = schemas.ActionResult{Error: fmt.Sprintf("%s: executor panic: %v", name, r)}
		}
	}()

	out, err := d.executor.Invoke(ctx, name, args)
	if err != nil {
		d.logger.Info("Action failed.",
			zap.String("action", name), zap.String("code", string(ErrCodeExecutionFailure)), zap.Error(err))
		return schemas.ActionResult{Error: err.Error()}
	}

	data := make(map[string]any, len(out))
	for k, v := range out {
		data[k] = v
	}
	return schemas.ActionResult{Data: data}
}

func (d *Dispatcher) settle(ctx context.Context, name string) {
	if d.executor.Settle(ctx, d.settleTimeout) {
		return
	}
	d.logger.Debug("Surface did not settle before timeout, continuing.",
		zap.String("action", name), zap.Duration("timeout", d.settleTimeout))
}
