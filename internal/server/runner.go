// File: internal/server/runner.go
package server

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/xkilldash9x/pilot-cli/api/schemas"
	"github.com/xkilldash9x/pilot-cli/internal/browser"
	"github.com/xkilldash9x/pilot-cli/internal/config"
	"github.com/xkilldash9x/pilot-cli/internal/observability"
	"github.com/xkilldash9x/pilot-cli/internal/safety"
	"github.com/xkilldash9x/pilot-cli/internal/service"
)

// ErrShuttingDown is returned for submissions after Shutdown began.
var ErrShuttingDown = errors.New("server is shutting down")

// Runner executes agent runs for the HTTP layer. Every run gets its own
// components and browser; a semaphore bounds how many run at once.
type Runner struct {
	cfg     config.Interface
	factory service.ComponentFactory
	policy  safety.Policy
	store   *RunStore
	bus     *EventBus
	sem     *semaphore.Weighted
	logger  *zap.Logger

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu           sync.Mutex
	shuttingDown bool
	newID        func() string
}

// NewRunner wires the run machinery. Nobody can answer a safety prompt over
// HTTP, so flagged actions are approved only when the server is configured
// to, and refused otherwise.
func NewRunner(cfg config.Interface, factory service.ComponentFactory, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("runner")

	var policy safety.Policy = safety.DenyPolicy{}
	if cfg.Server().ApproveFlaggedActions {
		policy = safety.AutoApprovePolicy{}
	}
	slots := int64(cfg.Server().MaxConcurrentRuns)
	if slots <= 0 {
		slots = 1
	}

	bus := NewEventBus(logger, 0)
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		cfg:     cfg,
		factory: factory,
		policy:  policy,
		store:   NewRunStore(0, bus.Forget),
		bus:     bus,
		sem:     semaphore.NewWeighted(slots),
		logger:  logger,
		baseCtx: ctx,
		cancel:  cancel,
		newID:   func() string { return uuid.New().String() },
	}
}

// Bus exposes the event stream.
func (r *Runner) Bus() *EventBus { return r.bus }

// Get returns a run's record.
func (r *Runner) Get(id string) (RunRecord, bool) { return r.store.Get(id) }

// RunSync runs a goal and blocks until it ends or ctx is done. It waits for a
// free slot first.
func (r *Runner) RunSync(ctx context.Context, req schemas.RunRequest) (RunRecord, error) {
	id, err := r.submit(&req)
	if err != nil {
		return RunRecord{}, err
	}
	defer r.wg.Done()

	runCtx, cancel := browser.CombineContext(r.baseCtx, ctx)
	defer cancel()
	if err := r.sem.Acquire(runCtx, 1); err != nil {
		err = fmt.Errorf("waiting for a free run slot: %w", err)
		r.bus.Close(id)
		return r.store.Finish(id, nil, err), err
	}
	defer r.sem.Release(1)

	rec := r.execute(runCtx, req)
	if rec.Result == nil {
		return rec, errors.New(rec.Error)
	}
	return rec, nil
}

// StartAsync queues a goal and returns at once with the queued record.
func (r *Runner) StartAsync(req schemas.RunRequest) (RunRecord, error) {
	id, err := r.submit(&req)
	if err != nil {
		return RunRecord{}, err
	}
	rec, _ := r.store.Get(id)

	go func() {
		defer r.wg.Done()
		if err := r.sem.Acquire(r.baseCtx, 1); err != nil {
			r.bus.Close(id)
			r.store.Finish(id, nil, fmt.Errorf("waiting for a free run slot: %w", err))
			return
		}
		defer r.sem.Release(1)
		r.execute(r.baseCtx, req)
	}()
	return rec, nil
}

// submit assigns the run ID and registers the run. The caller owns one
// count on the wait group when err is nil.
func (r *Runner) submit(req *schemas.RunRequest) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.shuttingDown {
		return "", ErrShuttingDown
	}
	if req.ID == "" {
		req.ID = r.newID()
	}
	r.store.Add(req.ID, req.Goal)
	r.wg.Add(1)
	return req.ID, nil
}

// execute builds fresh components, runs the agent and records the outcome.
func (r *Runner) execute(ctx context.Context, req schemas.RunRequest) RunRecord {
	logger := observability.WithRun(r.logger, req.ID)
	if timeout := r.cfg.Server().RequestTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	r.store.MarkRunning(req.ID)
	defer r.bus.Close(req.ID)

	components, err := r.factory.Create(ctx, r.cfg, service.Options{
		Policy:   r.policy,
		Observer: r.bus.Observer(),
	}, logger)
	if err != nil {
		logger.Error("Failed to set up run.", zap.Error(err))
		return r.store.Finish(req.ID, nil, err)
	}
	defer components.Shutdown()

	result, err := components.Agent.Run(ctx, req)
	if err != nil {
		logger.Error("Agent run failed to start.", zap.Error(err))
	}
	return r.store.Finish(req.ID, result, err)
}

// Shutdown stops accepting runs, cancels those in flight and waits for them
// to release their browsers, or for ctx to end.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.shuttingDown = true
	r.mu.Unlock()

	r.cancel()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	defer r.bus.Shutdown()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("runs still active at shutdown: %w", ctx.Err())
	}
}
