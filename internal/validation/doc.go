// Package validation implements the incremental validators that check a
// broker's test log for distributed-systems invariants.
//
// ARCHITECTURE:
//
// Every validator implements the Validator contract: it is fed each log
// line once, in increasing line order, mutates its private state, and
// returns the failures the line exposes. Validators share no state, so a
// driver may feed one line to several validators concurrently. A single
// validator instance is not safe for concurrent use.
//
// Validators:
//   - application-message-partitioning: a key always maps to one partition
//   - message-integrity: reads match writes; every write is read and every
//     read was written (reconciled at WorkloadEnded)
//   - producer-idempotence: a payload always resolves to one position
//   - producer-message-ordering: a producer's offsets on a partition never
//     regress
//
// CHECKPOINTS:
//
// SaveState renders the full state as a JSON envelope tagged with the
// validator name. LoadState accepts only envelopes carrying its own name,
// decodes into a fresh state, and swaps it in only on success. A failed
// load leaves the validator untouched.
//
// Memory grows by one entry per distinct key (topic/key, offset slot,
// payload, producer partition). Validators never evict.
package validation
