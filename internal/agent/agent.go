// internal/agent/agent.go
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot-cli/api/schemas"
	"github.com/xkilldash9x/pilot-cli/internal/config"
	"github.com/xkilldash9x/pilot-cli/internal/observability"
	"github.com/xkilldash9x/pilot-cli/internal/safety"
	"github.com/xkilldash9x/pilot-cli/internal/toolschema"
)

// Final messages for runs that end without an answer from the model.
const (
	MaxTurnsMessage    = "Goal not completed within the maximum turn limit."
	errorMessagePrefix = "Agent terminated due to error: "
)

// finalizeTimeout bounds the closing observation and release, which run on
// a context detached from the caller's so they survive cancellation.
const finalizeTimeout = 15 * time.Second

// Dependencies are the collaborators an Agent drives.
type Dependencies struct {
	Model    schemas.ModelClient
	Executor schemas.ActionExecutor
	// Tools are the declarations the executor understands. The same set is
	// handed to the model client.
	Tools *toolschema.Set
	// Gate reviews flagged actions. Nil refuses every flagged action.
	Gate     *safety.Gate
	Observer Observer
}

// Agent runs the observe-think-act loop against one executor. An Agent
// owns its executor for the duration of a run, so it runs one goal at a time.
type Agent struct {
	cfg      config.Interface
	model    schemas.ModelClient
	executor schemas.ActionExecutor
	tools    *toolschema.Set
	gate     *safety.Gate
	observer Observer
	logger   *zap.Logger

	running atomic.Bool
	now     func() time.Time
	newID   func() string
}

// New builds an agent. The config is read at the start of every run, so
// setter changes made between runs take effect.
func New(cfg config.Interface, deps Dependencies, logger *zap.Logger) (*Agent, error) {
	if cfg == nil {
		return nil, errors.New("agent requires a configuration")
	}
	if deps.Model == nil {
		return nil, errors.New("agent requires a model client")
	}
	if deps.Executor == nil {
		return nil, errors.New("agent requires an action executor")
	}
	if deps.Tools == nil {
		return nil, errors.New("agent requires tool declarations")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("agent")

	gate := deps.Gate
	if gate == nil {
		gate = safety.NewGate(safety.DenyPolicy{}, logger)
	}
	var observer Observer = nopObserver{}
	if deps.Observer != nil {
		observer = deps.Observer
	}

	return &Agent{
		cfg:      cfg,
		model:    deps.Model,
		executor: deps.Executor,
		tools:    deps.Tools,
		gate:     gate,
		observer: observer,
		logger:   logger,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}, nil
}

// Run drives a goal to a terminal state and blocks until it gets there. The
// returned error is non-nil only when the observation surface could not be
// acquired; every other failure is reported through the result.
func (a *Agent) Run(ctx context.Context, req schemas.RunRequest) (*schemas.AgentRunResult, error) {
	if !a.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer a.running.Store(false)
	return a.newRun(req).execute(ctx)
}

// Start launches the run on its own goroutine and returns immediately. The
// run stops at its next suspension point when ctx is canceled or the handle
// is canceled.
func (a *Agent) Start(ctx context.Context, req schemas.RunRequest) *RunHandle {
	r := a.newRun(req)
	runCtx, cancel := context.WithCancel(ctx)
	h := &RunHandle{id: r.id, done: make(chan struct{}), cancel: cancel}

	if !a.running.CompareAndSwap(false, true) {
		cancel()
		h.finish(nil, ErrRunInProgress)
		return h
	}

	go func() {
		defer cancel()
		result, err := r.execute(runCtx)
		// Free the agent before Done closes so a waiter can start the next run.
		a.running.Store(false)
		h.finish(result, err)
	}()
	return h
}

// RunHandle tracks a run started with Start.
type RunHandle struct {
	id     string
	done   chan struct{}
	cancel context.CancelFunc

	result *schemas.AgentRunResult
	err    error
}

// ErrRunPending is returned by Result while the run is still going.
var ErrRunPending = errors.New("run has not finished")

func (h *RunHandle) finish(result *schemas.AgentRunResult, err error) {
	h.result, h.err = result, err
	close(h.done)
}

// ID is the run identifier, also reported in events and the result.
func (h *RunHandle) ID() string { return h.id }

// Done is closed once the run reaches a terminal state and has released
// its surface.
func (h *RunHandle) Done() <-chan struct{} { return h.done }

// Cancel asks the run to stop. The run still finalizes and reports ERROR.
func (h *RunHandle) Cancel() { h.cancel() }

// Wait blocks until the run finishes or ctx ends. Abandoning the wait does
// not stop the run.
func (h *RunHandle) Wait(ctx context.Context) (*schemas.AgentRunResult, error) {
	select {
	case <-h.done:
		return h.result, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the outcome without blocking, or ErrRunPending.
func (h *RunHandle) Result() (*schemas.AgentRunResult, error) {
	select {
	case <-h.done:
		return h.result, h.err
	default:
		return nil, ErrRunPending
	}
}

// -- Run State --

// run holds the state of a single execution. It is confined to one goroutine.
type run struct {
	a          *Agent
	id         string
	req        schemas.RunRequest
	maxTurns   int
	dispatcher *Dispatcher
	logger     *zap.Logger

	state        State
	conversation *schemas.Conversation
	history      []schemas.ActionRecord
	turns        int
	started      time.Time

	finalMessage  string
	safetyStopped bool
	errCode       ErrorCode
}

func (a *Agent) newRun(req schemas.RunRequest) *run {
	id := req.ID
	if id == "" {
		id = a.newID()
	}
	maxTurns := req.MaxTurns
	if maxTurns < 0 {
		maxTurns = a.cfg.Agent().MaxTurns
	}
	logger := observability.WithRun(a.logger, id)
	return &run{
		a:          a,
		id:         id,
		req:        req,
		maxTurns:   maxTurns,
		dispatcher: NewDispatcher(a.tools, a.executor, a.cfg.Agent().SettleTimeout, logger),
		logger:     logger,
		state:      StateInit,
		history:    []schemas.ActionRecord{},
	}
}

func (r *run) execute(ctx context.Context) (*schemas.AgentRunResult, error) {
	r.started = r.a.now()
	done := observability.Timed(r.logger, "agent.run", zap.String("goal", r.req.Goal))
	r.emit(Event{Type: EventRunStarted, Goal: r.req.Goal})
	r.logger.Info("Agent run starting.", zap.String("goal", r.req.Goal), zap.Int("max_turns", r.maxTurns))

	if err := r.a.executor.Initialize(ctx); err != nil {
		err = fmt.Errorf("%w: %v", ErrSurfaceAcquisition, err)
		r.logger.Error("Could not start the run.", zap.Error(err))
		r.release()
		r.emit(Event{Type: EventRunFinished, ErrorCode: ErrCodeSurfaceAcquisition})
		done()
		return nil, err
	}

	r.loop(ctx)

	final := r.finalObservation()
	r.release()

	result := &schemas.AgentRunResult{
		RunID:             r.id,
		Goal:              r.req.Goal,
		FinalMessage:      r.finalMessage,
		ActionHistory:     r.history,
		TerminationReason: r.state.TerminationReason(),
		SafetyStopped:     r.safetyStopped,
		FinalObservation:  final,
		Turns:             r.turns,
		StartedAt:         r.started,
		Duration:          r.a.now().Sub(r.started),
	}
	done(zap.String("termination_reason", string(result.TerminationReason)), zap.Int("turns", r.turns))
	r.logger.Info("Agent run finished.",
		zap.String("termination_reason", string(result.TerminationReason)),
		zap.Bool("safety_stopped", result.SafetyStopped),
		zap.Int("actions", len(result.ActionHistory)),
	)
	r.emit(Event{Type: EventRunFinished, Result: result, ErrorCode: r.errCode})
	return result, nil
}

// loop advances the state machine until it reaches a terminal state.
func (r *run) loop(ctx context.Context) {
	obs, err := r.initialObservation(ctx)
	if err != nil {
		r.fail(err)
		return
	}
	r.conversation = schemas.NewConversation(schemas.Turn{
		Role: schemas.RoleUser,
		Parts: []schemas.Part{
			schemas.TextPart(r.req.Goal),
			schemas.ImagePart(schemas.MIMETypePNG, obs.Screenshot),
		},
	})

	for {
		if r.turns >= r.maxTurns {
			r.finalMessage = MaxTurnsMessage
			r.transition(StateMaxTurnsExceeded)
			return
		}
		if err := ctx.Err(); err != nil {
			r.fail(err)
			return
		}

		r.transition(StateAwaitingModel)
		turn, err := r.callModel(ctx)
		if err != nil {
			r.fail(err)
			return
		}

		requests := turn.ActionRequests()
		if len(requests) == 0 {
			r.finalMessage = turn.Text()
			r.transition(StateCompleted)
			return
		}

		r.transition(StateDispatchingActions)
		responses, err := r.dispatchBatch(ctx, requests)
		if err != nil {
			r.fail(err)
			return
		}
		if r.safetyStopped {
			r.transition(StateCompleted)
			return
		}

		obs, err := r.observe(ctx)
		if err != nil {
			r.fail(err)
			return
		}
		parts := make([]schemas.Part, 0, len(responses)+1)
		for _, resp := range responses {
			resp.URL = obs.URL
			parts = append(parts, schemas.ResponsePart(resp))
		}
		parts = append(parts, schemas.ImagePart(schemas.MIMETypePNG, obs.Screenshot))
		r.conversation.Append(schemas.Turn{Role: schemas.RoleUser, Parts: parts})
	}
}

func (r *run) initialObservation(ctx context.Context) (*schemas.Observation, error) {
	target := r.req.InitialURL
	if target == "" {
		target = r.a.cfg.Agent().InitialURL
	}
	if target == "" {
		target = r.a.cfg.Browser().SearchURL
	}
	if target != "" {
		if err := r.a.executor.Navigate(ctx, target); err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", target, err)
		}
		r.a.executor.Settle(ctx, r.a.cfg.Agent().SettleTimeout)
	}
	return r.observe(ctx)
}

func (r *run) callModel(ctx context.Context) (schemas.Turn, error) {
	r.turns++
	done := observability.Timed(r.logger, "model.send", zap.Int("turn", r.turns))
	turn, err := r.a.model.Send(ctx, r.conversation.Turns())
	done()
	if err != nil {
		return schemas.Turn{}, fmt.Errorf("%w: %v", ErrModelCommunication, err)
	}

	r.conversation.Append(turn)
	requests := turn.ActionRequests()
	r.logger.Debug("Model turn received.", zap.Int("turn", r.turns), zap.Int("actions", len(requests)))
	r.emit(Event{Type: EventModelTurn, Text: turn.Text(), Requests: requests})
	return turn, nil
}

// dispatchBatch runs the requests of one model turn in emitted order. A
// refused safety decision abandons the rest of the batch, including the
// flagged action itself.
func (r *run) dispatchBatch(ctx context.Context, requests []schemas.ActionRequest) ([]schemas.ActionResponse, error) {
	responses := make([]schemas.ActionResponse, 0, len(requests))
	for _, req := range requests {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		verdict := r.a.gate.Review(ctx, req)
		if verdict.Terminated() {
			r.safetyStopped = true
			r.finalMessage = fmt.Sprintf("Agent stopped: confirmation for '%s' was declined.", req.Name)
			if verdict.Explanation != "" {
				r.finalMessage += " " + verdict.Explanation
			}
			return responses, nil
		}

		result := r.dispatcher.Dispatch(ctx, req)
		if verdict.Acknowledged() {
			result.SafetyAcknowledged = true
		}

		record := schemas.ActionRecord{
			Turn:   r.turns,
			Name:   req.Name,
			Args:   req.InvocationArgs(),
			Result: result,
		}
		r.history = append(r.history, record)
		r.emit(Event{Type: EventActionDispatched, Record: &record})

		responses = append(responses, schemas.ActionResponse{ID: req.ID, Name: req.Name, Result: result})
	}
	return responses, nil
}

func (r *run) observe(ctx context.Context) (*schemas.Observation, error) {
	obs, err := r.a.executor.CaptureObservation(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrObservationCapture, err)
	}
	r.emit(Event{Type: EventObservation, URL: obs.URL})
	return obs, nil
}

// fail moves the run to ERROR with the standard message.
func (r *run) fail(err error) {
	r.errCode = CodeOf(err)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		r.errCode = ErrCodeCanceled
	}
	r.finalMessage = errorMessagePrefix + err.Error()
	r.logger.Error("Agent run failed.", zap.Error(err), zap.String("code", string(r.errCode)))
	r.transition(StateError)
}

func (r *run) transition(next State) {
	if !r.state.CanTransition(next) {
		r.logger.DPanic("Illegal state transition.", zap.String("from", string(r.state)), zap.String("to", string(next)))
	}
	prev := r.state
	r.state = next
	r.logger.Debug("State changed.", zap.String("from", string(prev)), zap.String("to", string(next)))
	r.emit(Event{Type: EventStateChanged, From: prev, To: next})
}

// finalObservation is best effort; failures are logged and yield nil.
func (r *run) finalObservation() *schemas.Observation {
	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()
	obs, err := r.a.executor.CaptureObservation(ctx)
	if err != nil {
		r.logger.Warn("Could not capture final observation.", zap.Error(err))
		return nil
	}
	return obs
}

func (r *run) release() {
	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()
	if err := r.a.executor.Release(ctx); err != nil {
		r.logger.Warn("Failed to release executor.", zap.Error(err))
	}
}

func (r *run) emit(e Event) {
	e.RunID = r.id
	e.Turn = r.turns
	if e.Timestamp.IsZero() {
		e.Timestamp = r.a.now()
	}
	r.a.observer.OnEvent(e)
}
