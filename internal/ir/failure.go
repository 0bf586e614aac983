package ir

import "fmt"

// Failure codes. Codes are stable identifiers; drivers and stored reports
// key on them.
const (
	CodeKeyReassigned             = "key-reassigned"
	CodeDifferentReads            = "different-reads"
	CodeWriteReadDifferent        = "write-read-different"
	CodeDifferentWrites           = "different-writes"
	CodeReadWriteDifferent        = "read-write-different"
	CodeReadNeverWritten          = "read-never-written"
	CodeWriteNeverRead            = "write-never-read"
	CodeNonIdempotentMessageRead  = "non-idempotent-message-read"
	CodeNonIdempotentMessageWrite = "non-idempotent-message-written"
	CodeNonMonotonic              = "non-monotonic"

	// CodeInternalInconsistency flags validator state that cannot arise
	// from any event sequence. It indicates a bug in the checker, not in
	// the system under test.
	CodeInternalInconsistency = "internal-inconsistency"
)

// ValidationFailure is a single detected violation.
type ValidationFailure struct {
	Line    uint64 `json:"line"`  // Line of the event the failure is attributed to
	Code    string `json:"code"`  // Machine-readable failure code
	Message string `json:"error"` // Human-readable description
}

// Error implements the error interface.
func (f ValidationFailure) Error() string {
	return fmt.Sprintf("line %d: %s: %s", f.Line, f.Code, f.Message)
}

// Finding is a failure labeled with the validator that detected it.
type Finding struct {
	Validator string `json:"validator"`
	ValidationFailure
}
