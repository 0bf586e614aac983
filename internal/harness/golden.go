package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// RenderReport renders a scenario result as plain text. The output is
// deterministic and is what golden files store.
func RenderReport(scenario *Scenario, result *Result) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "scenario: %s\n", scenario.Name)
	fmt.Fprintf(&b, "validators: %s\n", strings.Join(result.Validators, ", "))
	if scenario.CheckpointAt > 0 {
		fmt.Fprintf(&b, "resumed from: line %d\n", result.ResumedFrom)
	}

	fmt.Fprintf(&b, "findings: %d\n", len(result.Findings))
	for _, f := range result.Findings {
		fmt.Fprintf(&b, "  %s\n", FormatFinding(f))
	}

	if result.Pass {
		b.WriteString("result: pass\n")
	} else {
		b.WriteString("result: FAIL\n")
		for _, e := range result.Errors {
			fmt.Fprintf(&b, "  %s\n", e)
		}
	}
	return []byte(b.String())
}

// RunWithGolden executes a scenario and compares its report against a
// golden file. The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can assert on Pass as well.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, RenderReport(scenario, result))

	return result, nil
}
