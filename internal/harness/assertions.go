package harness

import (
	"fmt"

	"github.com/roach88/brokercheck/internal/ir"
)

// MatchExpectations pairs every expectation with a distinct finding on the
// same line with the same code (and validator, when given). It returns one
// message per unmatched expectation, then one per unexpected finding.
func MatchExpectations(findings []ir.Finding, expect []Expectation) []string {
	used := make([]bool, len(findings))
	var errs []string

	for _, e := range expect {
		matched := false
		for i, f := range findings {
			if used[i] || !e.matches(f) {
				continue
			}
			used[i] = true
			matched = true
			break
		}
		if !matched {
			errs = append(errs, fmt.Sprintf("expected finding not reported: %s", e))
		}
	}

	for i, f := range findings {
		if !used[i] {
			errs = append(errs, fmt.Sprintf("unexpected finding: %s", FormatFinding(f)))
		}
	}
	return errs
}

func (e Expectation) matches(f ir.Finding) bool {
	if e.Line != f.Line || e.Code != f.Code {
		return false
	}
	return e.Validator == "" || e.Validator == f.Validator
}

// FormatFinding renders a finding the way reports print it.
func FormatFinding(f ir.Finding) string {
	return fmt.Sprintf("line %d [%s] %s: %s", f.Line, f.Code, f.Validator, f.Message)
}
