package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while driving validators.
//
// Runtime errors include:
//   - Out of order: a line did not advance past the previous one
//   - Checkpoint mismatch: a checkpoint does not cover the selected validators
//   - State rejected: a validator refused its checkpoint blob
//
// RuntimeError includes structured fields for diagnostics.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// RunID identifies the affected run, when known.
	RunID string

	// Validator names the validator involved, when one is.
	Validator string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeOutOfOrder indicates a line at or below the last processed line.
	ErrCodeOutOfOrder RuntimeErrorCode = "OUT_OF_ORDER"

	// ErrCodeCheckpointMismatch indicates a checkpoint whose validator set
	// differs from the checker's.
	ErrCodeCheckpointMismatch RuntimeErrorCode = "CHECKPOINT_MISMATCH"

	// ErrCodeStateRejected indicates a validator failed to load its blob.
	ErrCodeStateRejected RuntimeErrorCode = "STATE_REJECTED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.RunID != "" && e.Validator != "" {
		msg = fmt.Sprintf("%s (run=%s, validator=%s)", msg, e.RunID, e.Validator)
	} else if e.RunID != "" {
		msg = fmt.Sprintf("%s (run=%s)", msg, e.RunID)
	} else if e.Validator != "" {
		msg = fmt.Sprintf("%s (validator=%s)", msg, e.Validator)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsOutOfOrderError returns true if the error is an out-of-order line error.
// Uses errors.As to handle wrapped errors.
func IsOutOfOrderError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeOutOfOrder
	}
	return false
}

// IsCheckpointError returns true if the error came from restoring a
// checkpoint, whether the set mismatched or a blob was rejected.
func IsCheckpointError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeCheckpointMismatch || re.Code == ErrCodeStateRejected
	}
	return false
}

// NewOutOfOrderError creates a RuntimeError for a non-increasing line.
func NewOutOfOrderError(line, last uint64) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeOutOfOrder,
		Message: fmt.Sprintf("line %d does not follow line %d", line, last),
		Details: map[string]string{
			"line": fmt.Sprintf("%d", line),
			"last": fmt.Sprintf("%d", last),
		},
	}
}

// NewCheckpointMismatchError creates a RuntimeError for a checkpoint that
// lacks or carries extra validator state.
func NewCheckpointMismatchError(runID, validator, reason string) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeCheckpointMismatch,
		Message:   reason,
		RunID:     runID,
		Validator: validator,
	}
}

// NewStateRejectedError creates a RuntimeError wrapping a LoadState failure.
func NewStateRejectedError(runID, validator string, err error) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeStateRejected,
		Message:   "validator rejected checkpoint state",
		RunID:     runID,
		Validator: validator,
		Err:       err,
	}
}
