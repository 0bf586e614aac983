package validation

import (
	"fmt"

	"github.com/roach88/brokercheck/internal/ir"
)

// IdempotenceValidator verifies that a message payload resolves to exactly
// one topic/partition/offset.
//
// Reads and writes share one namespace keyed by the raw payload text, so a
// retried write that lands at a second offset, or a read that returns the
// payload from a different position, are both reported. Distinct messages
// that happen to carry identical payloads are indistinguishable here.
type IdempotenceValidator struct {
	state idempotenceState
}

type idempotenceState struct {
	// payload -> position of its first occurrence
	Messages map[string]ir.Location[ir.MessageMetadata] `json:"messages"`
}

// NewIdempotence creates an empty IdempotenceValidator.
func NewIdempotence() *IdempotenceValidator {
	return &IdempotenceValidator{state: newIdempotenceState()}
}

func newIdempotenceState() idempotenceState {
	return idempotenceState{Messages: make(map[string]ir.Location[ir.MessageMetadata])}
}

// Name implements Validator.
func (v *IdempotenceValidator) Name() string {
	return NameIdempotence
}

// ValidateEvent implements Validator.
func (v *IdempotenceValidator) ValidateEvent(log ir.TestLogLine) []ir.ValidationFailure {
	switch ev := log.Data.Fields.(type) {
	case ir.MessageReadSucceeded:
		return v.check(log, ev.Message, ev.Consumer.String(), ir.CodeNonIdempotentMessageRead)
	case ir.MessageWriteSucceeded:
		return v.check(log, ev.Message, ev.Producer.String(), ir.CodeNonIdempotentMessageWrite)
	default:
		return nil
	}
}

// check compares msg against the first occurrence of its payload. party is
// the rendered consumer or producer that triggered the check.
func (v *IdempotenceValidator) check(log ir.TestLogLine, msg ir.Message, party, code string) []ir.ValidationFailure {
	first, ok := v.state.Messages[msg.Data.Payload]
	if !ok {
		v.state.Messages[msg.Data.Payload] = ir.Capture(log, msg.Metadata)
		return nil
	}
	if first.Data == msg.Metadata {
		return nil
	}
	return []ir.ValidationFailure{{
		Line: log.Line,
		Code: code,
		Message: fmt.Sprintf("%s, %s: identical message previously seen at %s (%s)",
			party, msg, first.Location(), first.Data),
	}}
}

// SaveState implements Validator.
func (v *IdempotenceValidator) SaveState() (string, error) {
	return encodeState(NameIdempotence, v.state)
}

// LoadState implements Validator.
func (v *IdempotenceValidator) LoadState(data string) error {
	loaded := newIdempotenceState()
	if err := decodeState(NameIdempotence, data, &loaded); err != nil {
		return err
	}
	if loaded.Messages == nil {
		loaded.Messages = make(map[string]ir.Location[ir.MessageMetadata])
	}
	v.state = loaded
	return nil
}
