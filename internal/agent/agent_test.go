// internal/agent/agent_test.go
package agent_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/pilot-cli/api/schemas"
	"github.com/xkilldash9x/pilot-cli/internal/actions"
	"github.com/xkilldash9x/pilot-cli/internal/agent"
	"github.com/xkilldash9x/pilot-cli/internal/config"
	"github.com/xkilldash9x/pilot-cli/internal/mocks"
	"github.com/xkilldash9x/pilot-cli/internal/safety"
)

var testPNG = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}

// harness wires an agent to mocks with permissive lifecycle expectations.
type harness struct {
	cfg    *config.Config
	model  *mocks.MockModelClient
	exec   *mocks.MockActionExecutor
	policy safety.Policy

	mu     sync.Mutex
	events []agent.Event
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := config.NewDefaultConfig()
	cfg.AgentCfg.SettleTimeout = testSettle
	return &harness{
		cfg:    cfg,
		model:  mocks.NewMockModelClient(),
		exec:   mocks.NewMockActionExecutor(),
		policy: safety.DenyPolicy{},
	}
}

// expectLifecycle registers the executor calls every successful run makes.
// Call it after any test-specific expectations so those match first.
func (h *harness) expectLifecycle() {
	h.exec.On("Initialize", mock.Anything).Return(nil).Maybe()
	h.exec.On("Navigate", mock.Anything, mock.Anything).Return(nil).Maybe()
	h.exec.On("Settle", mock.Anything, mock.Anything).Return(true).Maybe()
	h.exec.On("CaptureObservation", mock.Anything).Return(&schemas.Observation{
		Screenshot: testPNG,
		URL:        "https://www.google.com/",
	}, nil).Maybe()
	h.exec.On("Release", mock.Anything).Return(nil).Maybe()
}

func (h *harness) build(t *testing.T) *agent.Agent {
	t.Helper()
	logger := zaptest.NewLogger(t)
	a, err := agent.New(h.cfg, agent.Dependencies{
		Model:    h.model,
		Executor: h.exec,
		Tools:    actions.NewStandardRegistry(actions.DefaultStandardOptions()).Set(),
		Gate:     safety.NewGate(h.policy, logger),
		Observer: agent.ObserverFunc(func(e agent.Event) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.events = append(h.events, e)
		}),
	}, logger)
	require.NoError(t, err)
	return a
}

func (h *harness) eventTypes() []agent.EventType {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]agent.EventType, 0, len(h.events))
	for _, e := range h.events {
		out = append(out, e.Type)
	}
	return out
}

func (h *harness) sentConversation(call int) []schemas.Turn {
	return h.model.Calls[call].Arguments.Get(1).([]schemas.Turn)
}

func textTurn(text string) schemas.Turn {
	return schemas.Turn{Role: schemas.RoleModel, Parts: []schemas.Part{schemas.TextPart(text)}}
}

func actionTurn(reqs ...schemas.ActionRequest) schemas.Turn {
	parts := make([]schemas.Part, 0, len(reqs))
	for _, r := range reqs {
		parts = append(parts, schemas.RequestPart(r))
	}
	return schemas.Turn{Role: schemas.RoleModel, Parts: parts}
}

func click(x, y int) schemas.ActionRequest {
	return schemas.ActionRequest{Name: actions.ClickAt, Args: map[string]any{"x": x, "y": y}}
}

func request(goal string, maxTurns int) schemas.RunRequest {
	return schemas.RunRequest{Goal: goal, MaxTurns: maxTurns}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	tools := actions.NewStandardRegistry(actions.DefaultStandardOptions()).Set()
	cfg := config.NewDefaultConfig()

	_, err := agent.New(cfg, agent.Dependencies{Executor: mocks.NewMockActionExecutor(), Tools: tools}, nil)
	assert.Error(t, err)
	_, err = agent.New(cfg, agent.Dependencies{Model: mocks.NewMockModelClient(), Tools: tools}, nil)
	assert.Error(t, err)
	_, err = agent.New(cfg, agent.Dependencies{Model: mocks.NewMockModelClient(), Executor: mocks.NewMockActionExecutor()}, nil)
	assert.Error(t, err)
	_, err = agent.New(nil, agent.Dependencies{}, nil)
	assert.Error(t, err)
}

func TestRun_ImmediateAnswer(t *testing.T) {
	h := newHarness(t)
	h.model.On("Send", mock.Anything, mock.Anything).Return(textTurn("The page is already open."), nil).Once()
	h.expectLifecycle()

	result, err := h.build(t).Run(context.Background(), request("open the page", 20))
	require.NoError(t, err)

	assert.Equal(t, schemas.TerminationCompleted, result.TerminationReason)
	assert.Equal(t, "The page is already open.", result.FinalMessage)
	assert.Empty(t, result.ActionHistory)
	assert.Equal(t, 1, result.Turns)
	assert.True(t, result.Succeeded())
	require.NotNil(t, result.FinalObservation)
	assert.Equal(t, "https://www.google.com/", result.FinalObservation.URL)
	assert.NotEmpty(t, result.RunID)

	first := h.sentConversation(0)
	require.Len(t, first, 1)
	assert.Equal(t, schemas.RoleUser, first[0].Role)
	assert.Equal(t, "open the page", first[0].Text())
	require.Len(t, first[0].Parts, 2)
	assert.Equal(t, testPNG, first[0].Parts[1].Image.Data)

	h.exec.AssertCalled(t, "Navigate", mock.Anything, "https://www.google.com/")
	h.exec.AssertNumberOfCalls(t, "Release", 1)
	h.model.AssertExpectations(t)
}

func TestRun_ZeroTurnBudget(t *testing.T) {
	h := newHarness(t)
	h.expectLifecycle()

	result, err := h.build(t).Run(context.Background(), request("anything", 0))
	require.NoError(t, err)

	assert.Equal(t, schemas.TerminationMaxTurnsExceeded, result.TerminationReason)
	assert.Equal(t, agent.MaxTurnsMessage, result.FinalMessage)
	assert.Empty(t, result.ActionHistory)
	assert.Zero(t, result.Turns)
	h.model.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	h.exec.AssertNumberOfCalls(t, "Release", 1)
}

func TestRun_ActionThenAnswer(t *testing.T) {
	h := newHarness(t)
	nav := schemas.ActionRequest{ID: "call-1", Name: actions.Navigate, Args: map[string]any{"url": "https://example.com"}}
	h.model.On("Send", mock.Anything, mock.Anything).Return(actionTurn(nav), nil).Once()
	h.model.On("Send", mock.Anything, mock.Anything).Return(textTurn("done"), nil).Once()
	h.exec.On("Invoke", mock.Anything, actions.Navigate, map[string]any{"url": "https://example.com"}).Return(nil, nil).Once()
	h.exec.On("CaptureObservation", mock.Anything).Return(&schemas.Observation{Screenshot: testPNG, URL: "https://www.google.com/"}, nil).Once()
	h.exec.On("CaptureObservation", mock.Anything).Return(&schemas.Observation{Screenshot: testPNG, URL: "https://example.com/"}, nil)
	h.expectLifecycle()

	result, err := h.build(t).Run(context.Background(), schemas.RunRequest{
		Goal:       "go to example.com",
		InitialURL: "https://start.example",
		MaxTurns:   5,
	})
	require.NoError(t, err)

	assert.Equal(t, schemas.TerminationCompleted, result.TerminationReason)
	assert.Equal(t, "done", result.FinalMessage)
	require.Len(t, result.ActionHistory, 1)
	assert.Equal(t, schemas.ActionRecord{
		Turn:   1,
		Name:   actions.Navigate,
		Args:   map[string]any{"url": "https://example.com"},
		Result: schemas.ActionResult{Data: map[string]any{}},
	}, result.ActionHistory[0])
	h.model.AssertNumberOfCalls(t, "Send", 2)
	h.exec.AssertCalled(t, "Navigate", mock.Anything, "https://start.example")

	// The transcript only grows: the first snapshot is untouched and the
	// second carries the model turn plus one response turn.
	assert.Len(t, h.sentConversation(0), 1)
	second := h.sentConversation(1)
	require.Len(t, second, 3)
	assert.Equal(t, schemas.RoleModel, second[1].Role)
	assert.Equal(t, []schemas.ActionRequest{nav}, second[1].ActionRequests())

	feedback := second[2]
	assert.Equal(t, schemas.RoleUser, feedback.Role)
	require.Len(t, feedback.Parts, 2)
	resp := feedback.Parts[0].Response
	require.NotNil(t, resp)
	assert.Equal(t, "call-1", resp.ID)
	assert.Equal(t, actions.Navigate, resp.Name)
	assert.Equal(t, map[string]any{"url": "https://example.com/"}, resp.Payload())
	assert.Equal(t, schemas.PartImage, feedback.Parts[1].Kind)
}

func TestRun_ActionErrorIsRecordedAndLoopContinues(t *testing.T) {
	h := newHarness(t)
	h.model.On("Send", mock.Anything, mock.Anything).Return(actionTurn(click(500, 500)), nil).Once()
	h.model.On("Send", mock.Anything, mock.Anything).Return(textTurn("gave up on the button"), nil).Once()
	h.exec.On("Invoke", mock.Anything, actions.ClickAt, mock.Anything).Return(nil, errors.New("click_at: node is detached")).Once()
	h.expectLifecycle()

	result, err := h.build(t).Run(context.Background(), request("press the button", 5))
	require.NoError(t, err)

	assert.Equal(t, schemas.TerminationCompleted, result.TerminationReason)
	require.Len(t, result.ActionHistory, 1)
	assert.Equal(t, "click_at: node is detached", result.ActionHistory[0].Result.Error)

	feedback := h.sentConversation(1)[2]
	assert.Equal(t, "click_at: node is detached", feedback.Parts[0].Response.Payload()["error"])
	h.exec.AssertCalled(t, "Settle", mock.Anything, testSettle)
}

func TestRun_ModelFailureEndsInError(t *testing.T) {
	h := newHarness(t)
	h.model.On("Send", mock.Anything, mock.Anything).Return(actionTurn(click(1, 1)), nil).Twice()
	h.model.On("Send", mock.Anything, mock.Anything).Return(schemas.Turn{}, errors.New("503 service unavailable")).Once()
	h.exec.On("Invoke", mock.Anything, actions.ClickAt, mock.Anything).Return(nil, nil)
	h.expectLifecycle()

	result, err := h.build(t).Run(context.Background(), request("loop", 10))
	require.NoError(t, err)

	assert.Equal(t, schemas.TerminationError, result.TerminationReason)
	assert.Equal(t, "Agent terminated due to error: model communication failed: 503 service unavailable", result.FinalMessage)
	assert.Len(t, result.ActionHistory, 2)
	assert.Equal(t, 3, result.Turns)
	assert.NotNil(t, result.FinalObservation, "final observation is still attempted")
	h.exec.AssertNumberOfCalls(t, "Release", 1)
}

func TestRun_MaxTurnsExceeded(t *testing.T) {
	h := newHarness(t)
	h.model.On("Send", mock.Anything, mock.Anything).Return(actionTurn(click(10, 10)), nil)
	h.exec.On("Invoke", mock.Anything, actions.ClickAt, mock.Anything).Return(nil, nil)
	h.expectLifecycle()

	result, err := h.build(t).Run(context.Background(), request("never ends", 3))
	require.NoError(t, err)

	assert.Equal(t, schemas.TerminationMaxTurnsExceeded, result.TerminationReason)
	assert.Equal(t, agent.MaxTurnsMessage, result.FinalMessage)
	assert.Len(t, result.ActionHistory, 3)
	h.model.AssertNumberOfCalls(t, "Send", 3)
}

func TestRun_NegativeBudgetUsesConfiguredLimit(t *testing.T) {
	h := newHarness(t)
	h.cfg.SetAgentMaxTurns(2)
	h.model.On("Send", mock.Anything, mock.Anything).Return(actionTurn(click(10, 10)), nil)
	h.exec.On("Invoke", mock.Anything, actions.ClickAt, mock.Anything).Return(nil, nil)
	h.expectLifecycle()

	result, err := h.build(t).Run(context.Background(), request("never ends", schemas.ConfiguredMaxTurns))
	require.NoError(t, err)

	assert.Equal(t, schemas.TerminationMaxTurnsExceeded, result.TerminationReason)
	h.model.AssertNumberOfCalls(t, "Send", 2)
}

func TestRun_UnknownActionWarns(t *testing.T) {
	h := newHarness(t)
	h.model.On("Send", mock.Anything, mock.Anything).Return(actionTurn(schemas.ActionRequest{Name: "summon_dragon"}), nil).Once()
	h.model.On("Send", mock.Anything, mock.Anything).Return(textTurn("ok"), nil).Once()
	h.expectLifecycle()

	result, err := h.build(t).Run(context.Background(), request("summon", 5))
	require.NoError(t, err)

	require.Len(t, result.ActionHistory, 1)
	assert.Equal(t, "Action 'summon_dragon' was not implemented", result.ActionHistory[0].Result.Warning)
	assert.Equal(t, schemas.TerminationCompleted, result.TerminationReason)
	h.exec.AssertNotCalled(t, "Invoke", mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_RefusedSafetyDecisionStopsBatch(t *testing.T) {
	h := newHarness(t)
	flagged := schemas.ActionRequest{Name: actions.ClickAt, Args: map[string]any{
		"x": 400, "y": 400,
		schemas.SafetyDecisionKey: map[string]any{"decision": "require_confirmation", "explanation": "Accepts cookie terms."},
	}}
	h.model.On("Send", mock.Anything, mock.Anything).Return(actionTurn(click(1, 1), flagged, click(2, 2)), nil).Once()
	h.exec.On("Invoke", mock.Anything, actions.ClickAt, map[string]any{"x": 1, "y": 1}).Return(nil, nil).Once()
	h.expectLifecycle()

	result, err := h.build(t).Run(context.Background(), request("accept cookies", 5))
	require.NoError(t, err)

	assert.Equal(t, schemas.TerminationCompleted, result.TerminationReason)
	assert.True(t, result.SafetyStopped)
	assert.False(t, result.Succeeded())
	assert.Contains(t, result.FinalMessage, "click_at")
	assert.Contains(t, result.FinalMessage, "Accepts cookie terms.")
	require.Len(t, result.ActionHistory, 1, "the flagged action and everything after it are skipped")
	h.model.AssertNumberOfCalls(t, "Send", 1)
	h.exec.AssertNumberOfCalls(t, "Invoke", 1)
	h.exec.AssertNumberOfCalls(t, "Release", 1)
}

func TestRun_AcknowledgedSafetyDecision(t *testing.T) {
	h := newHarness(t)
	h.policy = safety.AutoApprovePolicy{}
	flagged := schemas.ActionRequest{Name: actions.Navigate, Args: map[string]any{
		"url":                     "https://checkout.example",
		schemas.SafetyDecisionKey: map[string]any{"explanation": "Opens a payment page."},
	}}
	h.model.On("Send", mock.Anything, mock.Anything).Return(actionTurn(flagged), nil).Once()
	h.model.On("Send", mock.Anything, mock.Anything).Return(textTurn("paid"), nil).Once()
	h.exec.On("Invoke", mock.Anything, actions.Navigate, map[string]any{"url": "https://checkout.example"}).Return(nil, nil).Once()
	h.expectLifecycle()

	result, err := h.build(t).Run(context.Background(), request("checkout", 5))
	require.NoError(t, err)

	require.Len(t, result.ActionHistory, 1)
	assert.True(t, result.ActionHistory[0].Result.SafetyAcknowledged)
	assert.NotContains(t, result.ActionHistory[0].Args, schemas.SafetyDecisionKey)
	payload := h.sentConversation(1)[2].Parts[0].Response.Payload()
	assert.Equal(t, "true", payload[schemas.ResultKeySafetyAcknowledged])
	assert.False(t, result.SafetyStopped)
}

func TestRun_InitializeFailure(t *testing.T) {
	h := newHarness(t)
	h.exec.On("Initialize", mock.Anything).Return(errors.New("chrome not found")).Once()
	h.expectLifecycle()

	result, err := h.build(t).Run(context.Background(), request("anything", 5))
	assert.Nil(t, result)
	require.ErrorIs(t, err, agent.ErrSurfaceAcquisition)
	assert.Contains(t, err.Error(), "chrome not found")
	h.exec.AssertNumberOfCalls(t, "Release", 1)
	h.model.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	assert.Equal(t, []agent.EventType{agent.EventRunStarted, agent.EventRunFinished}, h.eventTypes())
}

func TestRun_NavigationFailureIsALoopFault(t *testing.T) {
	h := newHarness(t)
	h.exec.On("Navigate", mock.Anything, mock.Anything).Return(errors.New("net::ERR_NAME_NOT_RESOLVED")).Once()
	h.expectLifecycle()

	result, err := h.build(t).Run(context.Background(), schemas.RunRequest{Goal: "x", InitialURL: "https://nowhere.invalid", MaxTurns: 5})
	require.NoError(t, err)

	assert.Equal(t, schemas.TerminationError, result.TerminationReason)
	assert.Contains(t, result.FinalMessage, "net::ERR_NAME_NOT_RESOLVED")
	h.model.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestRun_ObservationFailure(t *testing.T) {
	h := newHarness(t)
	h.model.On("Send", mock.Anything, mock.Anything).Return(actionTurn(click(5, 5)), nil).Once()
	h.exec.On("Invoke", mock.Anything, actions.ClickAt, mock.Anything).Return(nil, nil)
	h.exec.On("CaptureObservation", mock.Anything).Return(&schemas.Observation{Screenshot: testPNG}, nil).Once()
	h.exec.On("CaptureObservation", mock.Anything).Return(nil, errors.New("target closed"))
	h.expectLifecycle()

	result, err := h.build(t).Run(context.Background(), request("click", 5))
	require.NoError(t, err)

	assert.Equal(t, schemas.TerminationError, result.TerminationReason)
	assert.Equal(t, "Agent terminated due to error: observation capture failed: target closed", result.FinalMessage)
	assert.Len(t, result.ActionHistory, 1)
	assert.Nil(t, result.FinalObservation, "a failed final capture is not fatal")
	h.exec.AssertNumberOfCalls(t, "Release", 1)
}

func TestRun_ReleaseFailureIsNotRaised(t *testing.T) {
	h := newHarness(t)
	h.model.On("Send", mock.Anything, mock.Anything).Return(textTurn("done"), nil)
	h.exec.On("Release", mock.Anything).Return(errors.New("browser already gone"))
	h.expectLifecycle()

	result, err := h.build(t).Run(context.Background(), request("x", 1))
	require.NoError(t, err)
	assert.Equal(t, schemas.TerminationCompleted, result.TerminationReason)
}

func TestRun_EventSequence(t *testing.T) {
	h := newHarness(t)
	h.model.On("Send", mock.Anything, mock.Anything).Return(actionTurn(click(5, 5)), nil).Once()
	h.model.On("Send", mock.Anything, mock.Anything).Return(textTurn("done"), nil).Once()
	h.exec.On("Invoke", mock.Anything, actions.ClickAt, mock.Anything).Return(nil, nil)
	h.expectLifecycle()

	result, err := h.build(t).Run(context.Background(), request("click", 5))
	require.NoError(t, err)

	assert.Equal(t, []agent.EventType{
		agent.EventRunStarted,
		agent.EventObservation,
		agent.EventStateChanged, // INIT -> AWAITING_MODEL
		agent.EventModelTurn,
		agent.EventStateChanged, // AWAITING_MODEL -> DISPATCHING_ACTIONS
		agent.EventActionDispatched,
		agent.EventObservation,
		agent.EventStateChanged, // DISPATCHING_ACTIONS -> AWAITING_MODEL
		agent.EventModelTurn,
		agent.EventStateChanged, // AWAITING_MODEL -> COMPLETED
		agent.EventRunFinished,
	}, h.eventTypes())

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, e := range h.events {
		assert.Equal(t, result.RunID, e.RunID)
	}
	last := h.events[len(h.events)-1]
	assert.Same(t, result, last.Result)
	assert.Equal(t, agent.StateAwaitingModel, h.events[9].From)
	assert.Equal(t, agent.StateCompleted, h.events[9].To)
}

func TestStart_CompletesInBackground(t *testing.T) {
	h := newHarness(t)
	h.model.On("Send", mock.Anything, mock.Anything).Return(textTurn("done"), nil)
	h.expectLifecycle()

	handle := h.build(t).Start(context.Background(), request("x", 5))
	require.NotEmpty(t, handle.ID())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := handle.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, handle.ID(), result.RunID)
	assert.Equal(t, schemas.TerminationCompleted, result.TerminationReason)

	again, err := handle.Result()
	require.NoError(t, err)
	assert.Same(t, result, again)
}

func TestStart_CancellationEndsInError(t *testing.T) {
	h := newHarness(t)
	inModel := make(chan struct{})
	h.model.On("Send", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		close(inModel)
		<-args.Get(0).(context.Context).Done()
	}).Return(schemas.Turn{}, context.Canceled)
	h.expectLifecycle()

	a := h.build(t)
	handle := a.Start(context.Background(), request("slow", 5))
	<-inModel

	_, err := handle.Result()
	assert.ErrorIs(t, err, agent.ErrRunPending)

	_, err = a.Run(context.Background(), request("second", 5))
	assert.ErrorIs(t, err, agent.ErrRunInProgress, "one executor serves one run at a time")

	handle.Cancel()
	select {
	case <-handle.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after cancellation")
	}

	result, err := handle.Result()
	require.NoError(t, err)
	assert.Equal(t, schemas.TerminationError, result.TerminationReason)
	assert.Contains(t, result.FinalMessage, "context canceled")
	h.exec.AssertNumberOfCalls(t, "Release", 1)
}

func TestStart_WhileRunning(t *testing.T) {
	h := newHarness(t)
	release := make(chan struct{})
	h.model.On("Send", mock.Anything, mock.Anything).Run(func(mock.Arguments) { <-release }).Return(textTurn("done"), nil)
	h.expectLifecycle()

	a := h.build(t)
	first := a.Start(context.Background(), request("first", 5))
	second := a.Start(context.Background(), request("second", 5))

	<-second.Done()
	_, err := second.Result()
	assert.ErrorIs(t, err, agent.ErrRunInProgress)

	close(release)
	<-first.Done()
	result, err := first.Result()
	require.NoError(t, err)
	assert.Equal(t, schemas.TerminationCompleted, result.TerminationReason)
}

func TestStart_SequentialRunsReuseAgent(t *testing.T) {
	h := newHarness(t)
	h.model.On("Send", mock.Anything, mock.Anything).Return(textTurn("done"), nil)
	h.expectLifecycle()

	a := h.build(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := 0; i < 20; i++ {
		result, err := a.Start(ctx, request("again", 5)).Wait(ctx)
		require.NoError(t, err, "start %d", i)
		assert.Equal(t, schemas.TerminationCompleted, result.TerminationReason)

		result, err = a.Run(ctx, request("sync", 5))
		require.NoError(t, err, "run %d", i)
		assert.Equal(t, schemas.TerminationCompleted, result.TerminationReason)
	}
	h.exec.AssertNumberOfCalls(t, "Release", 40)
}

func TestRun_CallerSuppliedID(t *testing.T) {
	h := newHarness(t)
	h.model.On("Send", mock.Anything, mock.Anything).Return(textTurn("done"), nil)
	h.expectLifecycle()

	req := request("x", 5)
	req.ID = "run-42"
	handle := h.build(t).Start(context.Background(), req)
	assert.Equal(t, "run-42", handle.ID())

	result, err := handle.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "run-42", result.RunID)
	for _, e := range h.events {
		assert.Equal(t, "run-42", e.RunID)
	}
}
