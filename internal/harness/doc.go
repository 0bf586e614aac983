// Package harness runs scenario files through the checker.
//
// A scenario is a YAML document holding a short synthetic test log and
// the findings it must produce:
//
//	name: ordering_regression
//	description: A producer's offsets go backwards on one partition.
//	validators: [producer-message-ordering]
//	events:
//	  - write: {producer: p1, topic: t, partition: 0, offset: 2, payload: a}
//	  - write: {producer: p1, topic: t, partition: 0, offset: 1, payload: b}
//	expect:
//	  - {line: 2, code: non-monotonic}
//
// Unknown fields are rejected. Each scenario runs against a fresh
// in-memory store through engine.Checker.Run, so checkpointing and finding
// persistence are exercised too. Setting checkpoint_at splits the check
// at that line: the first half saves a checkpoint, and a new checker
// resumes from it for the rest of the log.
//
// RunWithGolden compares the rendered report with
// testdata/golden/<name>.golden.
package harness
