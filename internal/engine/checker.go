package engine

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/roach88/brokercheck/internal/ir"
	"github.com/roach88/brokercheck/internal/validation"
)

// Checker feeds log lines to an ordered set of validators.
//
// CRITICAL: Process, Checkpoint and Restore are serialized by a mutex, so
// every validator sees lines in the order they were accepted. Within one
// line the validators run concurrently; they share no state.
//
// INVARIANTS:
//   - validator order NEVER changes after construction
//   - accepted lines strictly increase
//   - a failed Restore leaves the checker exactly as it was
type Checker struct {
	mu         sync.Mutex
	validators []validation.Validator
	lastLine   uint64

	logger  *slog.Logger
	metrics *Metrics
}

// CheckerOption allows configuration of checker parameters.
type CheckerOption func(*Checker)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) CheckerOption {
	return func(c *Checker) {
		c.logger = l
	}
}

// WithMetrics sets the metrics sink. Default: none.
func WithMetrics(m *Metrics) CheckerOption {
	return func(c *Checker) {
		c.metrics = m
	}
}

// NewChecker creates a Checker over validators, in reporting order.
//
// The slice is copied to prevent external mutation from breaking the
// reporting order.
func NewChecker(validators []validation.Validator, opts ...CheckerOption) *Checker {
	c := &Checker{
		validators: slices.Clone(validators),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Names returns the validator names in reporting order.
func (c *Checker) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, len(c.validators))
	for i, v := range c.validators {
		names[i] = v.Name()
	}
	return names
}

// LastLine returns the last accepted line, or 0 before the first.
func (c *Checker) LastLine() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastLine
}

// Process feeds one line to every validator and returns their findings
// ordered by line, then by validator order.
//
// Lines start at 1 and must strictly increase. An out-of-order line is
// rejected before any validator sees it.
func (c *Checker) Process(log ir.TestLogLine) ([]ir.Finding, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if log.Line <= c.lastLine {
		return nil, NewOutOfOrderError(log.Line, c.lastLine)
	}
	c.lastLine = log.Line

	results := make([][]ir.ValidationFailure, len(c.validators))
	var wg sync.WaitGroup
	for i, v := range c.validators {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = v.ValidateEvent(log)
		}()
	}
	wg.Wait()

	var findings []ir.Finding
	for i, failures := range results {
		name := c.validators[i].Name()
		for _, f := range failures {
			findings = append(findings, ir.Finding{Validator: name, ValidationFailure: f})
		}
	}
	// Stable: equal lines keep validator order, then emission order.
	slices.SortStableFunc(findings, func(a, b ir.Finding) int {
		return cmp.Compare(a.Line, b.Line)
	})

	for _, f := range findings {
		c.logger.Debug("validation failure",
			"line", f.Line,
			"validator", f.Validator,
			"code", f.Code,
		)
	}
	c.metrics.recordLine(findings)

	return findings, nil
}

// Checkpoint snapshots every validator.
func (c *Checker) Checkpoint(runID string) (ir.Checkpoint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cp := ir.Checkpoint{
		RunID:  runID,
		Line:   c.lastLine,
		States: make(map[string]string, len(c.validators)),
	}
	for _, v := range c.validators {
		state, err := v.SaveState()
		if err != nil {
			return ir.Checkpoint{}, fmt.Errorf("checkpoint %s: %w", v.Name(), err)
		}
		cp.States[v.Name()] = state
	}
	c.metrics.recordCheckpoint()
	return cp, nil
}

// Restore replaces every validator's state with the checkpoint's.
//
// The checkpoint must hold exactly one blob per selected validator.
// Fresh validators are loaded first and swapped in only when every load
// succeeds, so a failed restore changes nothing.
func (c *Checker) Restore(cp ir.Checkpoint) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	selected := make(map[string]bool, len(c.validators))
	restored := make([]validation.Validator, len(c.validators))
	for i, v := range c.validators {
		name := v.Name()
		selected[name] = true

		blob, ok := cp.States[name]
		if !ok {
			return NewCheckpointMismatchError(cp.RunID, name, "checkpoint has no state for validator")
		}
		fresh, err := validation.New(name)
		if err != nil {
			return err
		}
		if err := fresh.LoadState(blob); err != nil {
			return NewStateRejectedError(cp.RunID, name, err)
		}
		restored[i] = fresh
	}
	for name := range cp.States {
		if !selected[name] {
			return NewCheckpointMismatchError(cp.RunID, name, "checkpoint has state for unselected validator")
		}
	}

	c.validators = restored
	c.lastLine = cp.Line

	c.logger.Info("checkpoint restored",
		"run_id", cp.RunID,
		"line", cp.Line,
		"validators", len(restored),
	)
	return nil
}
