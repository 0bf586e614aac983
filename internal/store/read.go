package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/brokercheck/internal/ir"
)

// GetRun returns a run by id.
// Returns sql.ErrNoRows if not found.
func (s *Store) GetRun(ctx context.Context, id string) (ir.Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source, validators FROM runs WHERE id = ?
	`, id)
	return scanRun(row)
}

// ListRuns returns every run, oldest first (UUIDv7 ids sort by time).
//
// Returns an empty slice (not nil) if no runs exist.
func (s *Store) ListRuns(ctx context.Context) ([]ir.Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, validators FROM runs
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []ir.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (ir.Run, error) {
	var run ir.Run
	var validators string
	if err := row.Scan(&run.ID, &run.Source, &validators); err != nil {
		if err == sql.ErrNoRows {
			return ir.Run{}, err
		}
		return ir.Run{}, fmt.Errorf("scan run: %w", err)
	}
	if err := json.Unmarshal([]byte(validators), &run.Validators); err != nil {
		return ir.Run{}, fmt.Errorf("decode validators of run %s: %w", run.ID, err)
	}
	return run, nil
}

// LoadCheckpoint returns the run's latest checkpoint, or nil if it has none.
func (s *Store) LoadCheckpoint(ctx context.Context, runID string) (*ir.Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT validator, line, state FROM checkpoints
		WHERE run_id = ?
		ORDER BY validator COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query checkpoint: %w", err)
	}
	defer rows.Close()

	var cp *ir.Checkpoint
	for rows.Next() {
		var validator, state string
		var line int64
		if err := rows.Scan(&validator, &line, &state); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		if cp == nil {
			cp = &ir.Checkpoint{RunID: runID, Line: uint64(line), States: make(map[string]string)}
		} else if uint64(line) != cp.Line {
			return nil, fmt.Errorf("checkpoint of run %s mixes lines %d and %d", runID, cp.Line, line)
		}
		cp.States[validator] = state
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoint: %w", err)
	}
	return cp, nil
}

// ReadFindings returns the run's findings ordered by line, then append order.
//
// Returns an empty slice (not nil) if the run has no findings.
func (s *Store) ReadFindings(ctx context.Context, runID string) ([]ir.Finding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT line, validator, code, message FROM findings
		WHERE run_id = ?
		ORDER BY line ASC, seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query findings: %w", err)
	}
	defer rows.Close()

	findings := []ir.Finding{}
	for rows.Next() {
		var f ir.Finding
		var line int64
		if err := rows.Scan(&line, &f.Validator, &f.Code, &f.Message); err != nil {
			return nil, fmt.Errorf("scan finding: %w", err)
		}
		f.Line = uint64(line)
		findings = append(findings, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate findings: %w", err)
	}
	return findings, nil
}
