package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/brokercheck/internal/ir"
	"github.com/roach88/brokercheck/internal/validation"
)

func mustParse(t *testing.T, src string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(src))
	require.NoError(t, err)
	return s
}

func TestRun_PassingLog(t *testing.T) {
	result, err := Run(mustParse(t, `
name: clean
description: every write is read back unchanged
events:
  - start: true
  - write: {producer: p1, topic: t, partition: 0, offset: 0, key: k, payload: a}
  - read: {consumer: c1, topic: t, partition: 0, offset: 0, key: k, payload: a}
  - end: true
expect: []
`))
	require.NoError(t, err)

	assert.True(t, result.Pass)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Findings)
	assert.Equal(t, validation.Names(), result.Validators)
}

func TestRun_UnexpectedFinding(t *testing.T) {
	result, err := Run(mustParse(t, `
name: unexpected
description: a lost write nobody expected
validators: [message-integrity]
events:
  - write: {producer: p1, topic: t, partition: 0, offset: 0, payload: a}
  - end: true
`))
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Findings, 1)
	assert.Equal(t, ir.CodeWriteNeverRead, result.Findings[0].Code)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "unexpected finding: line 1 [write-never-read] message-integrity")
}

func TestRun_MissingFinding(t *testing.T) {
	result, err := Run(mustParse(t, `
name: missing
description: expects a regression that is not there
validators: [producer-message-ordering]
events:
  - write: {producer: p1, topic: t, partition: 0, offset: 1, payload: a}
  - write: {producer: p1, topic: t, partition: 0, offset: 2, payload: b}
expect:
  - {line: 2, code: non-monotonic}
`))
	require.NoError(t, err)

	assert.False(t, result.Pass)
	assert.Equal(t, []string{"expected finding not reported: line 2 [non-monotonic]"}, result.Errors)
}

func TestRun_CheckpointMatchesStraightRun(t *testing.T) {
	src := `
name: split
description: split at every line
events:
  - write: {producer: p1, topic: t, partition: 0, offset: 5, key: k, payload: X}
  - read: {consumer: c1, topic: t, partition: 0, offset: 5, key: k, payload: X}
  - write: {producer: p1, topic: t, partition: 0, offset: 4, key: k, payload: Y}
  - read: {consumer: c1, topic: t, partition: 1, offset: 4, key: k, payload: Y}
  - end: true
`
	straight, err := Run(mustParse(t, src))
	require.NoError(t, err)
	require.NotEmpty(t, straight.Findings)

	for at := uint64(1); at <= 5; at++ {
		s := mustParse(t, src)
		s.CheckpointAt = at

		resumed, err := Run(s)
		require.NoError(t, err)
		assert.Equal(t, at, resumed.ResumedFrom)
		assert.ElementsMatch(t, straight.Findings, resumed.Findings, "checkpoint at %d", at)
	}
}

func TestRun_ScenarioFiles(t *testing.T) {
	paths, err := FindScenarios(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		scenario, err := LoadScenario(path)
		require.NoError(t, err, path)

		t.Run(scenario.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}
