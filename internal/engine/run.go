package engine

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/brokercheck/internal/ir"
)

// DefaultCheckpointEvery is the default number of lines between checkpoints.
const DefaultCheckpointEvery = 1000

// Source yields log lines in order. Next returns io.EOF after the last line.
type Source interface {
	Next(ctx context.Context) (ir.TestLogLine, error)
}

// CheckpointStore persists checkpoints. Implemented by store.Store and
// pebblestore.Store.
type CheckpointStore interface {
	SaveCheckpoint(ctx context.Context, cp ir.Checkpoint) error
	// LoadCheckpoint returns nil when the run has no checkpoint.
	LoadCheckpoint(ctx context.Context, runID string) (*ir.Checkpoint, error)
}

// FindingSink receives findings as they are produced.
type FindingSink interface {
	WriteFindings(ctx context.Context, runID string, findings []ir.Finding) error
}

// CheckpointCommitter stores findings and a checkpoint atomically.
// Implemented by store.Store.
type CheckpointCommitter interface {
	CommitCheckpoint(ctx context.Context, cp ir.Checkpoint, findings []ir.Finding) error
}

// RunOptions configures Checker.Run.
type RunOptions struct {
	// RunID labels checkpoints and findings. Required when Checkpoints or
	// Sink is set.
	RunID string

	// CheckpointEvery is the number of processed lines between
	// checkpoints. Zero means DefaultCheckpointEvery.
	CheckpointEvery int

	// Checkpoints, when set, is consulted for a checkpoint to resume from
	// and receives new ones. Nil disables checkpointing.
	Checkpoints CheckpointStore

	// Sink, when set, receives findings. Findings are flushed before each
	// checkpoint, so a resumed run never loses any. When Sink and
	// Checkpoints are the same CheckpointCommitter both are written in one
	// commit and a resumed run repeats none either; otherwise findings
	// written just before an interrupted checkpoint are written again.
	Sink FindingSink
}

// Report summarizes one call to Run.
type Report struct {
	RunID          string       `json:"run_id"`
	ResumedFrom    uint64       `json:"resumed_from,omitempty"` // Checkpoint line, 0 for a fresh run
	LinesProcessed int          `json:"lines_processed"`
	LinesSkipped   int          `json:"lines_skipped"` // At or below the resumed checkpoint
	LastLine       uint64       `json:"last_line"`
	Findings       []ir.Finding `json:"findings"`
}

// Run drains src through the checker.
//
// When a checkpoint exists for opts.RunID it is restored first, and lines
// at or below its line are skipped. Context cancellation is honored
// between lines; the partial report is returned with the context error.
func (c *Checker) Run(ctx context.Context, src Source, opts RunOptions) (*Report, error) {
	if (opts.Checkpoints != nil || opts.Sink != nil) && opts.RunID == "" {
		return nil, fmt.Errorf("run id required for checkpoints or finding sink")
	}
	every := opts.CheckpointEvery
	if every <= 0 {
		every = DefaultCheckpointEvery
	}

	report := &Report{RunID: opts.RunID, Findings: []ir.Finding{}}

	if opts.Checkpoints != nil {
		cp, err := opts.Checkpoints.LoadCheckpoint(ctx, opts.RunID)
		if err != nil {
			return nil, fmt.Errorf("load checkpoint: %w", err)
		}
		if cp != nil {
			if err := c.Restore(*cp); err != nil {
				return nil, err
			}
			report.ResumedFrom = cp.Line
		}
	}

	c.logger.Info("check starting",
		"run_id", opts.RunID,
		"resumed_from", report.ResumedFrom,
	)

	var committer CheckpointCommitter
	if cc, ok := opts.Checkpoints.(CheckpointCommitter); ok && opts.Sink != nil && any(opts.Sink) == any(opts.Checkpoints) {
		committer = cc
	}

	var pending []ir.Finding
	sinceCheckpoint := 0

	flush := func() error {
		if committer != nil {
			cp, err := c.Checkpoint(opts.RunID)
			if err != nil {
				return err
			}
			if err := committer.CommitCheckpoint(ctx, cp, pending); err != nil {
				return fmt.Errorf("commit checkpoint at line %d: %w", cp.Line, err)
			}
			pending = nil
			sinceCheckpoint = 0
			c.logger.Debug("checkpoint committed", "run_id", opts.RunID, "line", cp.Line)
			return nil
		}

		if opts.Sink != nil && len(pending) > 0 {
			if err := opts.Sink.WriteFindings(ctx, opts.RunID, pending); err != nil {
				return fmt.Errorf("write findings: %w", err)
			}
		}
		pending = nil
		sinceCheckpoint = 0
		if opts.Checkpoints == nil {
			return nil
		}
		cp, err := c.Checkpoint(opts.RunID)
		if err != nil {
			return err
		}
		if err := opts.Checkpoints.SaveCheckpoint(ctx, cp); err != nil {
			return fmt.Errorf("save checkpoint at line %d: %w", cp.Line, err)
		}
		c.logger.Debug("checkpoint saved", "run_id", opts.RunID, "line", cp.Line)
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		log, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return report, fmt.Errorf("read source: %w", err)
		}

		if log.Line <= report.ResumedFrom {
			report.LinesSkipped++
			continue
		}

		findings, err := c.Process(log)
		if err != nil {
			return report, err
		}
		report.LinesProcessed++
		report.LastLine = log.Line
		report.Findings = append(report.Findings, findings...)
		pending = append(pending, findings...)

		sinceCheckpoint++
		if sinceCheckpoint >= every {
			if err := flush(); err != nil {
				return report, err
			}
		}
	}

	if err := flush(); err != nil {
		return report, err
	}

	c.logger.Info("check finished",
		"run_id", opts.RunID,
		"lines", report.LinesProcessed,
		"skipped", report.LinesSkipped,
		"findings", len(report.Findings),
	)
	return report, nil
}
