// File: internal/server/handlers.go
package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot-cli/api/schemas"
	"github.com/xkilldash9x/pilot-cli/internal/toolschema"
)

// defaultRunMessage is reported when a run ends without any final text.
const defaultRunMessage = "Agent run completed successfully."

// maxRequestBody caps run submissions.
const maxRequestBody = 1 << 20

// RunAgentRequest is the body of both run endpoints. MaxTurns is a pointer
// so an omitted bound can fall back to the configured one.
type RunAgentRequest struct {
	Goal     string `json:"goal"`
	URL      string `json:"url,omitempty"`
	MaxTurns *int   `json:"max_turns,omitempty"`
}

// RunAgentResponse is returned by the blocking endpoint.
type RunAgentResponse struct {
	Success           bool                      `json:"success"`
	Message           string                    `json:"message"`
	RunID             string                    `json:"run_id"`
	TerminationReason schemas.TerminationReason `json:"termination_reason,omitempty"`
	SafetyStopped     bool                      `json:"safety_stopped,omitempty"`
	Actions           []schemas.ActionRecord    `json:"actions"`
}

// AcceptedResponse is returned when a run is queued.
type AcceptedResponse struct {
	RunID     string    `json:"run_id"`
	Status    RunStatus `json:"status"`
	StatusURL string    `json:"status_url"`
	EventsURL string    `json:"events_url"`
}

// ErrorResponse carries a failure description.
type ErrorResponse struct {
	Detail string `json:"detail"`
	RunID  string `json:"run_id,omitempty"`
}

// Handlers manages the HTTP request handling for the server.
type Handlers struct {
	log    *zap.Logger
	runner *Runner
	tools  *toolschema.Set
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(logger *zap.Logger, runner *Runner, tools *toolschema.Set) *Handlers {
	return &Handlers{
		log:    logger.Named("handlers"),
		runner: runner,
		tools:  tools,
	}
}

// RegisterRoutes sets up the routing.
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.HandleHealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/run_agent_sync", h.HandleRunSync)
		r.Post("/run_agent_async", h.HandleRunAsync)
		r.Get("/runs/{runID}", h.HandleGetRun)
		r.Get("/tools", h.HandleListTools)
	})
}

// HandleHealthCheck confirms the server is responsive.
func (h *Handlers) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// HandleRunSync runs a goal to completion within the request.
func (h *Handlers) HandleRunSync(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRunRequest(w, r)
	if !ok {
		return
	}
	h.log.Info("Received blocking run request.", zap.String("goal", req.Goal))

	rec, err := h.runner.RunSync(r.Context(), req)
	if err != nil {
		h.log.Error("Agent execution failed.", zap.Error(err), zap.String("run_id", rec.ID))
		status := http.StatusInternalServerError
		if errors.Is(err, ErrShuttingDown) {
			status = http.StatusServiceUnavailable
		}
		h.respond(w, status, ErrorResponse{Detail: err.Error(), RunID: rec.ID})
		return
	}

	result := rec.Result
	message := result.FinalMessage
	if message == "" {
		message = defaultRunMessage
	}
	h.respond(w, http.StatusOK, RunAgentResponse{
		Success:           result.Succeeded(),
		Message:           message,
		RunID:             rec.ID,
		TerminationReason: result.TerminationReason,
		SafetyStopped:     result.SafetyStopped,
		Actions:           result.ActionHistory,
	})
}

// HandleRunAsync queues a goal and answers 202 with where to follow it.
func (h *Handlers) HandleRunAsync(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRunRequest(w, r)
	if !ok {
		return
	}

	rec, err := h.runner.StartAsync(req)
	if err != nil {
		h.respond(w, http.StatusServiceUnavailable, ErrorResponse{Detail: err.Error()})
		return
	}
	h.log.Info("Queued run.", zap.String("run_id", rec.ID), zap.String("goal", req.Goal))

	h.respond(w, http.StatusAccepted, AcceptedResponse{
		RunID:     rec.ID,
		Status:    rec.Status,
		StatusURL: fmt.Sprintf("/api/v1/runs/%s", rec.ID),
		EventsURL: fmt.Sprintf("/api/v1/runs/%s/events", rec.ID),
	})
}

// HandleGetRun reports a run's status and, once finished, its result.
func (h *Handlers) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	rec, ok := h.runner.Get(runID)
	if !ok {
		h.respond(w, http.StatusNotFound, ErrorResponse{Detail: "Run ID not found.", RunID: runID})
		return
	}
	h.respond(w, http.StatusOK, rec)
}

// HandleListTools returns the declarations offered to the model.
func (h *Handlers) HandleListTools(w http.ResponseWriter, r *http.Request) {
	h.respond(w, http.StatusOK, h.tools.All())
}

func (h *Handlers) decodeRunRequest(w http.ResponseWriter, r *http.Request) (schemas.RunRequest, bool) {
	var body RunAgentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&body); err != nil {
		h.respond(w, http.StatusBadRequest, ErrorResponse{Detail: fmt.Sprintf("Invalid request body: %v", err)})
		return schemas.RunRequest{}, false
	}
	if strings.TrimSpace(body.Goal) == "" {
		h.respond(w, http.StatusBadRequest, ErrorResponse{Detail: "goal is required."})
		return schemas.RunRequest{}, false
	}

	req := schemas.RunRequest{Goal: body.Goal, InitialURL: body.URL, MaxTurns: schemas.ConfiguredMaxTurns}
	if body.MaxTurns != nil {
		if *body.MaxTurns < 0 {
			h.respond(w, http.StatusBadRequest, ErrorResponse{Detail: "max_turns must not be negative."})
			return schemas.RunRequest{}, false
		}
		req.MaxTurns = *body.MaxTurns
	}
	return req, true
}

// respond sends a JSON response.
func (h *Handlers) respond(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error("Failed to encode response", zap.Error(err))
	}
}
