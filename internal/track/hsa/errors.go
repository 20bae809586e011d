package hsa

import (
	"errors"
	"fmt"
)

// Status is a runtime status code.
type Status int

const (
	// StatusSuccess indicates the call succeeded.
	StatusSuccess Status = iota
	// StatusFailure is an unspecified failure.
	StatusFailure
	// StatusInvalidArgument indicates a bad argument.
	StatusInvalidArgument
	// StatusInvalidSignal indicates an unknown or destroyed signal.
	StatusInvalidSignal
	// StatusInvalidAgent indicates an unknown agent.
	StatusInvalidAgent
	// StatusOutOfResources indicates resource exhaustion.
	StatusOutOfResources
)

// String returns the string representation of a Status.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "HSA_STATUS_SUCCESS"
	case StatusFailure:
		return "HSA_STATUS_ERROR"
	case StatusInvalidArgument:
		return "HSA_STATUS_ERROR_INVALID_ARGUMENT"
	case StatusInvalidSignal:
		return "HSA_STATUS_ERROR_INVALID_SIGNAL"
	case StatusInvalidAgent:
		return "HSA_STATUS_ERROR_INVALID_AGENT"
	case StatusOutOfResources:
		return "HSA_STATUS_ERROR_OUT_OF_RESOURCES"
	default:
		return fmt.Sprintf("HSA_STATUS(%d)", int(s))
	}
}

// StatusError reports a failed runtime call.
//
// Fields:
//   - Op: Name of the runtime call that failed (e.g. "hsa_signal_create")
//   - Status: Status code returned by the runtime
//
// Thread Safety: Immutable after creation, safe for concurrent use.
type StatusError struct {
	Op     string
	Status Status
}

// Error implements the error interface.
//
// Format: op: status
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Status)
}

// NewStatusError creates a StatusError for op.
func NewStatusError(op string, status Status) *StatusError {
	return &StatusError{Op: op, Status: status}
}

// StatusOf extracts the Status carried by err, or StatusFailure if err does
// not wrap a *StatusError. A nil error yields StatusSuccess.
func StatusOf(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return StatusFailure
}
