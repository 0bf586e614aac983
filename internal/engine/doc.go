// Package engine drives validators over a test log.
//
// The Checker owns an ordered set of validators and feeds them log lines.
// It is the only place where lines enter validator state, which keeps the
// per-validator ordering requirement in one spot.
//
// ARCHITECTURE:
//
// Single-Writer Checker:
// Process, Checkpoint and Restore are serialized by one mutex. A line is
// accepted only if it is greater than the last accepted line; once
// accepted it is dispatched to every validator in parallel (validators
// share no state) and the findings are merged back by line, then by
// validator order. The merged output is therefore identical to running
// the validators one after another.
//
// Run Loop:
// 1. Checker.Run loads the run's checkpoint, if any, and restores it
// 2. Lines at or below the checkpoint line are skipped
// 3. Every line goes through Process; findings are buffered
// 4. Every CheckpointEvery lines, buffered findings are flushed to the
//    sink and a checkpoint is saved, in one commit when the sink is also
//    the checkpoint store (CheckpointCommitter)
// 5. At end of source, a final flush and checkpoint
//
// Restore is all-or-nothing: fresh validators load the blobs and replace
// the current set only if every load succeeds.
package engine
