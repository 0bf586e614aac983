package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/brokercheck/internal/ir"
)

// CreateRun inserts a run record.
// Uses ON CONFLICT(id) DO NOTHING so resuming a run re-registers it
// harmlessly; the stored source and validators are kept.
func (s *Store) CreateRun(ctx context.Context, run ir.Run) error {
	validators, err := json.Marshal(run.Validators)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, source, validators)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, run.ID, run.Source, string(validators))
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// SaveCheckpoint replaces the run's checkpoint in a single transaction.
// Readers see either the previous checkpoint or the new one, never a mix.
//
// Note: The run must exist (foreign key constraint).
func (s *Store) SaveCheckpoint(ctx context.Context, cp ir.Checkpoint) error {
	return s.inTx(ctx, "save checkpoint", func(tx *sql.Tx) error {
		return replaceCheckpoint(ctx, tx, cp)
	})
}

// WriteFindings appends findings to the run, continuing its seq numbering.
func (s *Store) WriteFindings(ctx context.Context, runID string, findings []ir.Finding) error {
	if len(findings) == 0 {
		return nil
	}
	return s.inTx(ctx, "write findings", func(tx *sql.Tx) error {
		return appendFindings(ctx, tx, runID, findings)
	})
}

// CommitCheckpoint appends findings and replaces the checkpoint in one
// transaction, so the stored findings always end at the checkpoint line.
func (s *Store) CommitCheckpoint(ctx context.Context, cp ir.Checkpoint, findings []ir.Finding) error {
	return s.inTx(ctx, "commit checkpoint", func(tx *sql.Tx) error {
		if err := appendFindings(ctx, tx, cp.RunID, findings); err != nil {
			return err
		}
		return replaceCheckpoint(ctx, tx, cp)
	})
}

func (s *Store) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}

func replaceCheckpoint(ctx context.Context, tx *sql.Tx, cp ir.Checkpoint) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM checkpoints WHERE run_id = ?`, cp.RunID); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	for validator, state := range cp.States {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO checkpoints (run_id, validator, line, state)
			VALUES (?, ?, ?, ?)
		`, cp.RunID, validator, int64(cp.Line), state)
		if err != nil {
			return fmt.Errorf("%s: %w", validator, err)
		}
	}
	return nil
}

func appendFindings(ctx context.Context, tx *sql.Tx, runID string, findings []ir.Finding) error {
	if len(findings) == 0 {
		return nil
	}
	var seq int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM findings WHERE run_id = ?`, runID,
	).Scan(&seq); err != nil {
		return fmt.Errorf("next seq: %w", err)
	}

	for _, f := range findings {
		seq++
		_, err := tx.ExecContext(ctx, `
			INSERT INTO findings (run_id, seq, line, validator, code, message)
			VALUES (?, ?, ?, ?, ?, ?)
		`, runID, seq, int64(f.Line), f.Validator, f.Code, f.Message)
		if err != nil {
			return fmt.Errorf("line %d: %w", f.Line, err)
		}
	}
	return nil
}
