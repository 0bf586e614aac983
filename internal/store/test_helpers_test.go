package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/brokercheck/internal/ir"
)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun registers a run with the given id.
func createTestRun(t *testing.T, s *Store, id string) ir.Run {
	t.Helper()
	run := ir.Run{
		ID:         id,
		Source:     "testdata/" + id + ".jsonl",
		Validators: []string{"producer-message-ordering", "message-integrity"},
	}
	if err := s.CreateRun(context.Background(), run); err != nil {
		t.Fatalf("CreateRun() failed: %v", err)
	}
	return run
}

// createTestFinding creates a finding with minimal required fields.
func createTestFinding(line uint64, validator, code string) ir.Finding {
	return ir.Finding{
		Validator: validator,
		ValidationFailure: ir.ValidationFailure{
			Line:    line,
			Code:    code,
			Message: "test failure",
		},
	}
}
