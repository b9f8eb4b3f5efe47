package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/pilot-cli/api/schemas"
	"github.com/xkilldash9x/pilot-cli/internal/actions"
	"github.com/xkilldash9x/pilot-cli/internal/agent"
	"github.com/xkilldash9x/pilot-cli/internal/mocks"
	"github.com/xkilldash9x/pilot-cli/internal/safety"
)

func TestHealthz(t *testing.T) {
	s := newTestServer(t, testConfig(), &fakeFactory{script: answers("ok")})

	rec := get(s.Handler(), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Process-Time"))
}

func TestRunAgentSync_Answer(t *testing.T) {
	f := &fakeFactory{script: answers("The featured article is about owls.")}
	s := newTestServer(t, testConfig(), f)

	rec := postJSON(t, s.Handler(), "/api/v1/run_agent_sync", map[string]any{
		"goal": "What is today's featured article about?",
		"url":  "https://en.wikipedia.org/wiki/Main_Page",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Process-Time"))

	resp := decode[RunAgentResponse](t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, "The featured article is about owls.", resp.Message)
	assert.Equal(t, schemas.TerminationCompleted, resp.TerminationReason)
	assert.NotEmpty(t, resp.RunID)
	assert.Empty(t, resp.Actions)

	f.executors[0].AssertCalled(t, "Navigate", mock.Anything, "https://en.wikipedia.org/wiki/Main_Page")

	stored := decode[RunRecord](t, get(s.Handler(), "/api/v1/runs/"+resp.RunID))
	assert.Equal(t, RunFinished, stored.Status)
	require.NotNil(t, stored.Result)
	assert.Equal(t, resp.RunID, stored.Result.RunID)
}

func TestRunAgentSync_ActionsAndDefaults(t *testing.T) {
	cfg := testConfig()
	cfg.AgentCfg.MaxTurns = 2

	f := &fakeFactory{script: func(m *mocks.MockModelClient) {
		m.On("Send", mock.Anything, mock.Anything).Return(actionTurn(clickAt(100, 200)), nil)
	}}
	s := newTestServer(t, cfg, f)

	rec := postJSON(t, s.Handler(), "/api/v1/run_agent_sync", map[string]any{"goal": "keep clicking"})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[RunAgentResponse](t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, schemas.TerminationMaxTurnsExceeded, resp.TerminationReason)
	assert.Equal(t, agent.MaxTurnsMessage, resp.Message)
	require.Len(t, resp.Actions, 2, "an omitted max_turns uses the configured bound")
	assert.Equal(t, actions.ClickAt, resp.Actions[0].Name)
}

func TestRunAgentSync_ZeroTurns(t *testing.T) {
	f := &fakeFactory{script: answers("unused")}
	s := newTestServer(t, testConfig(), f)

	rec := postJSON(t, s.Handler(), "/api/v1/run_agent_sync", `{"goal":"x","max_turns":0}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[RunAgentResponse](t, rec)
	assert.Equal(t, schemas.TerminationMaxTurnsExceeded, resp.TerminationReason)
}

func TestRunAgentSync_BadRequests(t *testing.T) {
	s := newTestServer(t, testConfig(), &fakeFactory{script: answers("ok")})

	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed json", `{"goal":`, "Invalid request body"},
		{"missing goal", `{"url":"https://example.com"}`, "goal is required"},
		{"blank goal", `{"goal":"   "}`, "goal is required"},
		{"negative max turns", `{"goal":"x","max_turns":-3}`, "max_turns must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, s.Handler(), "/api/v1/run_agent_sync", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, decode[ErrorResponse](t, rec).Detail, tt.want)
		})
	}
}

func TestRunAgentSync_SetupFailure(t *testing.T) {
	f := &fakeFactory{err: errors.New("Gemini API key is required")}
	s := newTestServer(t, testConfig(), f)

	rec := postJSON(t, s.Handler(), "/api/v1/run_agent_sync", map[string]any{"goal": "x"})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Contains(t, resp.Detail, "Gemini API key is required")
	require.NotEmpty(t, resp.RunID)

	stored := decode[RunRecord](t, get(s.Handler(), "/api/v1/runs/"+resp.RunID))
	assert.Equal(t, RunFailed, stored.Status)
	assert.Nil(t, stored.Result)
}

func TestRunAgentSync_SafetyPolicyFollowsConfig(t *testing.T) {
	flagged := clickAt(10, 10)
	flagged.Args[schemas.SafetyDecisionKey] = map[string]any{
		"decision":    "require_confirmation",
		"explanation": "Cookie banner.",
	}
	script := func(m *mocks.MockModelClient) {
		m.On("Send", mock.Anything, mock.Anything).Return(actionTurn(flagged), nil).Once()
		m.On("Send", mock.Anything, mock.Anything).Return(textTurn("done"), nil)
	}

	t.Run("refused by default", func(t *testing.T) {
		f := &fakeFactory{script: script}
		s := newTestServer(t, testConfig(), f)

		resp := decode[RunAgentResponse](t, postJSON(t, s.Handler(), "/api/v1/run_agent_sync", map[string]any{"goal": "x"}))
		assert.True(t, resp.SafetyStopped)
		assert.False(t, resp.Success)
		assert.Equal(t, schemas.TerminationCompleted, resp.TerminationReason)
		assert.IsType(t, safety.DenyPolicy{}, f.policies[0])
	})

	t.Run("approved when configured", func(t *testing.T) {
		cfg := testConfig()
		cfg.ServerCfg.ApproveFlaggedActions = true
		f := &fakeFactory{script: script}
		s := newTestServer(t, cfg, f)

		resp := decode[RunAgentResponse](t, postJSON(t, s.Handler(), "/api/v1/run_agent_sync", map[string]any{"goal": "x"}))
		assert.True(t, resp.Success)
		require.Len(t, resp.Actions, 1)
		assert.True(t, resp.Actions[0].Result.SafetyAcknowledged)
		assert.IsType(t, safety.AutoApprovePolicy{}, f.policies[0])
	})
}

func TestRunAgentAsync(t *testing.T) {
	s := newTestServer(t, testConfig(), &fakeFactory{script: answers("done later")})

	rec := postJSON(t, s.Handler(), "/api/v1/run_agent_async", map[string]any{"goal": "x"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	accepted := decode[AcceptedResponse](t, rec)
	require.NotEmpty(t, accepted.RunID)
	assert.Equal(t, "/api/v1/runs/"+accepted.RunID, accepted.StatusURL)
	assert.Equal(t, "/api/v1/runs/"+accepted.RunID+"/events", accepted.EventsURL)

	stored := waitForStatus(t, s.Handler(), accepted.RunID, RunFinished)
	require.NotNil(t, stored.Result)
	assert.Equal(t, "done later", stored.Result.FinalMessage)
	assert.NotNil(t, stored.StartedAt)
	assert.NotNil(t, stored.FinishedAt)
}

func TestRunAgentAsync_ConcurrencyIsBounded(t *testing.T) {
	cfg := testConfig()
	cfg.ServerCfg.MaxConcurrentRuns = 1

	release := make(chan struct{})
	f := &fakeFactory{script: func(m *mocks.MockModelClient) {
		m.On("Send", mock.Anything, mock.Anything).Run(func(mock.Arguments) { <-release }).Return(textTurn("done"), nil)
	}}
	s := newTestServer(t, cfg, f)

	first := decode[AcceptedResponse](t, postJSON(t, s.Handler(), "/api/v1/run_agent_async", map[string]any{"goal": "first"}))
	waitForStatus(t, s.Handler(), first.RunID, RunRunning)

	second := decode[AcceptedResponse](t, postJSON(t, s.Handler(), "/api/v1/run_agent_async", map[string]any{"goal": "second"}))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, RunQueued, decode[RunRecord](t, get(s.Handler(), "/api/v1/runs/"+second.RunID)).Status)

	close(release)
	waitForStatus(t, s.Handler(), first.RunID, RunFinished)
	waitForStatus(t, s.Handler(), second.RunID, RunFinished)
}

func TestGetRun_NotFound(t *testing.T) {
	s := newTestServer(t, testConfig(), &fakeFactory{script: answers("ok")})
	rec := get(s.Handler(), "/api/v1/runs/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListTools(t *testing.T) {
	s := newTestServer(t, testConfig(), &fakeFactory{script: answers("ok")})

	rec := get(s.Handler(), "/api/v1/tools")
	require.Equal(t, http.StatusOK, rec.Code)
	decls := decode[[]map[string]any](t, rec)

	names := make([]string, 0, len(decls))
	for _, d := range decls {
		names = append(names, d["name"].(string))
	}
	assert.Contains(t, names, actions.ClickAt)
	assert.NotContains(t, names, actions.OpenWebBrowser, "excluded functions are not advertised")
}

func TestRunEvents_WebSocket(t *testing.T) {
	s := newTestServer(t, testConfig(), &fakeFactory{script: func(m *mocks.MockModelClient) {
		m.On("Send", mock.Anything, mock.Anything).Return(actionTurn(clickAt(1, 1)), nil).Once()
		m.On("Send", mock.Anything, mock.Anything).Return(textTurn("done"), nil)
	}})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	accepted := decode[AcceptedResponse](t, postJSON(t, s.Handler(), "/api/v1/run_agent_async", map[string]any{"goal": "x"}))

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + accepted.EventsURL
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var events []agent.Event
	for {
		var e agent.Event
		if err := conn.ReadJSON(&e); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "stream ends with a normal close: %v", err)
			break
		}
		events = append(events, e)
	}

	require.NotEmpty(t, events)
	assert.Equal(t, agent.EventRunStarted, events[0].Type)
	last := events[len(events)-1]
	assert.Equal(t, agent.EventRunFinished, last.Type)
	require.NotNil(t, last.Result)
	assert.Equal(t, "done", last.Result.FinalMessage)
	for _, e := range events {
		assert.Equal(t, accepted.RunID, e.RunID)
	}

	var dispatched int
	for _, e := range events {
		if e.Type == agent.EventActionDispatched {
			dispatched++
		}
	}
	assert.Equal(t, 1, dispatched)
}

func TestRunEvents_UnknownRun(t *testing.T) {
	s := newTestServer(t, testConfig(), &fakeFactory{script: answers("ok")})
	rec := get(s.Handler(), "/api/v1/runs/nope/events")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServe_GracefulShutdown(t *testing.T) {
	inModel := make(chan struct{})
	f := &fakeFactory{script: func(m *mocks.MockModelClient) {
		m.On("Send", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			close(inModel)
			<-args.Get(0).(context.Context).Done()
		}).Return(schemas.Turn{}, context.Canceled)
	}}
	s := New(testConfig(), f, zaptest.NewLogger(t))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- s.Serve(ctx, ln) }()

	accepted := decode[AcceptedResponse](t, postJSON(t, s.Handler(), "/api/v1/run_agent_async", map[string]any{"goal": "slow"}))
	<-inModel

	cancel()
	select {
	case err := <-served:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}

	stored := decode[RunRecord](t, get(s.Handler(), "/api/v1/runs/"+accepted.RunID))
	assert.Equal(t, RunFinished, stored.Status)
	require.NotNil(t, stored.Result)
	assert.Equal(t, schemas.TerminationError, stored.Result.TerminationReason)
	f.executors[0].AssertCalled(t, "Release", mock.Anything)

	rec := postJSON(t, s.Handler(), "/api/v1/run_agent_async", map[string]any{"goal": "late"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
