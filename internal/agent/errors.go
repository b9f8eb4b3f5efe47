// internal/agent/errors.go
package agent

import "errors"

// Sentinel errors for the loop-level faults. They are wrapped with the
// underlying cause and can be matched with errors.Is.
var (
	// ErrSurfaceAcquisition means the executor could not acquire its surface.
	// This is the only failure Run returns as an error.
	ErrSurfaceAcquisition = errors.New("failed to acquire observation surface")
	// ErrModelCommunication is any failure of the model client.
	ErrModelCommunication = errors.New("model communication failed")
	// ErrObservationCapture is a failure to snapshot the surface mid-run.
	ErrObservationCapture = errors.New("observation capture failed")
	// ErrRunInProgress is returned when an agent is asked to run twice at once.
	ErrRunInProgress = errors.New("agent is already running")
)

// ErrorCode is a string type used for structured error reporting to
// observers and API clients.
type ErrorCode string

const (
	// -- Loop Errors --
	ErrCodeSurfaceAcquisition ErrorCode = "SURFACE_ACQUISITION_FAILED"
	ErrCodeModelCommunication ErrorCode = "MODEL_COMMUNICATION_FAILED"
	ErrCodeObservationCapture ErrorCode = "OBSERVATION_CAPTURE_FAILED"
	ErrCodeCanceled           ErrorCode = "CANCELED"
	ErrCodeExecutionFailure   ErrorCode = "EXECUTION_FAILURE"

	// -- Action Errors --
	ErrCodeUnknownAction     ErrorCode = "UNKNOWN_ACTION_TYPE"
	ErrCodeInvalidParameters ErrorCode = "INVALID_PARAMETERS"
	ErrCodeExecutorPanic     ErrorCode = "EXECUTOR_PANIC"
)

// CodeOf classifies a loop-level error.
func CodeOf(err error) ErrorCode {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSurfaceAcquisition):
		return ErrCodeSurfaceAcquisition
	case errors.Is(err, ErrModelCommunication):
		return ErrCodeModelCommunication
	case errors.Is(err, ErrObservationCapture):
		return ErrCodeObservationCapture
	default:
		return ErrCodeExecutionFailure
	}
}
