package harness

import "github.com/roach88/brokercheck/internal/ir"

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if the findings match the expectations exactly.
	Pass bool `json:"pass"`

	// Validators lists the validators that ran, in reporting order.
	Validators []string `json:"validators"`

	// ResumedFrom is the checkpoint line the second half of an
	// interrupted check resumed from. Zero when not interrupted.
	ResumedFrom uint64 `json:"resumed_from,omitempty"`

	// Findings are the stored findings ordered by line.
	Findings []ir.Finding `json:"findings"`

	// Errors contains expectation mismatches.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Findings: []ir.Finding{},
		Errors:   []string{},
	}
}

// AddError adds a mismatch and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
