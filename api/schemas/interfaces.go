package schemas

import (
	"context"
	"time"
)

// -- Collaborator Interfaces --

// ActionExecutor is the stateful, side-effecting device the agent drives. One
// executor belongs to exactly one run at a time.
//
//go:generate mockery --name ActionExecutor --output ../../internal/mocks --outpkg mocks
type ActionExecutor interface {
	// Initialize acquires the observation surface.
	Initialize(ctx context.Context) error
	// Navigate loads the given location on the surface.
	Navigate(ctx context.Context, url string) error
	// CaptureObservation snapshots the surface.
	CaptureObservation(ctx context.Context) (*Observation, error)
	// Invoke performs a named action. Names outside the executor's
	// vocabulary are a no-op. The returned map carries optional outputs.
	Invoke(ctx context.Context, name string, args map[string]any) (map[string]any, error)
	// Settle waits for the surface to quiesce. It reports false on timeout
	// and never fails.
	Settle(ctx context.Context, timeout time.Duration) bool
	// Release frees the surface. Safe to call more than once.
	Release(ctx context.Context) error
}

// ModelClient sends the full conversation to a generative model and returns
// its next turn.
//
//go:generate mockery --name ModelClient --output ../../internal/mocks --outpkg mocks
type ModelClient interface {
	Send(ctx context.Context, conversation []Turn) (Turn, error)
}
