package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/brokercheck/internal/engine"
	"github.com/roach88/brokercheck/internal/ir"
	"github.com/roach88/brokercheck/internal/store"
	"github.com/roach88/brokercheck/internal/testutil"
	"github.com/roach88/brokercheck/internal/validation"
)

// Harness runs scenarios against a fresh store with deterministic run ids.
type Harness struct {
	store  *store.Store
	runIDs engine.RunIDGenerator
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database. Findings are read back
// from the store, so a scenario exercises the same checkpoint and
// finding persistence as the check command.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:  st,
		runIDs: testutil.NewFixedRunIDGenerator("scenario-" + scenario.Name),
		logger: slog.New(slog.DiscardHandler),
	}
	return h.run(context.Background(), scenario)
}

func (h *Harness) run(ctx context.Context, scenario *Scenario) (*Result, error) {
	log, err := scenario.Log()
	if err != nil {
		return nil, err
	}

	checker, err := h.newChecker(scenario)
	if err != nil {
		return nil, err
	}

	runID := h.runIDs.Generate()
	if err := h.store.CreateRun(ctx, ir.Run{
		ID:         runID,
		Source:     "scenario:" + scenario.Name,
		Validators: checker.Names(),
	}); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	opts := engine.RunOptions{
		RunID:       runID,
		Checkpoints: h.store,
		Sink:        h.store,
	}

	result := NewResult()
	result.Validators = checker.Names()

	if scenario.CheckpointAt > 0 {
		var head []ir.TestLogLine
		for _, l := range log {
			if l.Line <= scenario.CheckpointAt {
				head = append(head, l)
			}
		}
		if _, err := checker.Run(ctx, &lineSource{lines: head}, opts); err != nil {
			return nil, fmt.Errorf("check up to line %d: %w", scenario.CheckpointAt, err)
		}

		// A new checker stands in for a restarted process.
		checker, err = h.newChecker(scenario)
		if err != nil {
			return nil, err
		}
	}

	report, err := checker.Run(ctx, &lineSource{lines: log}, opts)
	if err != nil {
		return nil, fmt.Errorf("check: %w", err)
	}
	result.ResumedFrom = report.ResumedFrom

	findings, err := h.store.ReadFindings(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to read findings: %w", err)
	}
	result.Findings = findings

	for _, msg := range MatchExpectations(findings, scenario.Expect) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) newChecker(scenario *Scenario) (*engine.Checker, error) {
	validators, err := validation.NewSet(scenario.Validators)
	if err != nil {
		return nil, err
	}
	return engine.NewChecker(validators, engine.WithLogger(h.logger)), nil
}

// lineSource serves a prepared log.
type lineSource struct {
	lines []ir.TestLogLine
	idx   int
}

func (s *lineSource) Next(context.Context) (ir.TestLogLine, error) {
	if s.idx >= len(s.lines) {
		return ir.TestLogLine{}, io.EOF
	}
	l := s.lines[s.idx]
	s.idx++
	return l, nil
}
