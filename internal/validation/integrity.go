package validation

import (
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/brokercheck/internal/ir"
)

// IntegrityValidator verifies that message content is not modified between
// write and read, and that at the end of the workload every write was read
// and every read was written.
//
// Content is tracked as hashes per (topic, partition, offset) slot, so
// payloads are never retained.
type IntegrityValidator struct {
	state integrityState
}

// integritySlot holds the first read and first write observed at an offset.
// At least one side is always set.
type integritySlot struct {
	Read  *ir.Location[ir.ContentHash] `json:"read,omitempty"`
	Write *ir.Location[ir.ContentHash] `json:"write,omitempty"`
}

type integrityState struct {
	// topic -> partition -> offset -> slot
	Messages map[ir.TopicName]map[ir.TopicPartitionIndex]map[ir.TopicPartitionOffset]*integritySlot `json:"messages"`
}

// NewIntegrity creates an empty IntegrityValidator.
func NewIntegrity() *IntegrityValidator {
	return &IntegrityValidator{state: newIntegrityState()}
}

func newIntegrityState() integrityState {
	return integrityState{
		Messages: make(map[ir.TopicName]map[ir.TopicPartitionIndex]map[ir.TopicPartitionOffset]*integritySlot),
	}
}

// Name implements Validator.
func (v *IntegrityValidator) Name() string {
	return NameIntegrity
}

// ValidateEvent implements Validator.
func (v *IntegrityValidator) ValidateEvent(log ir.TestLogLine) []ir.ValidationFailure {
	switch ev := log.Data.Fields.(type) {
	case ir.MessageReadSucceeded:
		return v.validateRead(log, ev)
	case ir.MessageWriteSucceeded:
		return v.validateWrite(log, ev)
	case ir.WorkloadEnded:
		return v.reconcile(log)
	default:
		return nil
	}
}

func (v *IntegrityValidator) validateRead(log ir.TestLogLine, ev ir.MessageReadSucceeded) []ir.ValidationFailure {
	hash := ir.HashMessageData(ev.Message.Data)
	slot := v.slot(ev.Message.Metadata)

	if slot.Read != nil {
		if slot.Read.Data != hash {
			return []ir.ValidationFailure{{
				Line: log.Line,
				Code: ir.CodeDifferentReads,
				Message: fmt.Sprintf("%s, %s: message data differs from previous read at %s",
					ev.Consumer, ev.Message, slot.Read.Location()),
			}}
		}
	} else {
		read := ir.Capture(log, hash)
		slot.Read = &read
	}

	if slot.Write != nil && slot.Read.Data != slot.Write.Data {
		return []ir.ValidationFailure{{
			Line: log.Line,
			Code: ir.CodeWriteReadDifferent,
			Message: fmt.Sprintf("%s, %s: message data differs from previous write by the producer at %s",
				ev.Consumer, ev.Message, slot.Write.Location()),
		}}
	}
	return nil
}

func (v *IntegrityValidator) validateWrite(log ir.TestLogLine, ev ir.MessageWriteSucceeded) []ir.ValidationFailure {
	hash := ir.HashMessageData(ev.Message.Data)
	slot := v.slot(ev.Message.Metadata)

	if slot.Write != nil {
		if slot.Write.Data != hash {
			return []ir.ValidationFailure{{
				Line: log.Line,
				Code: ir.CodeDifferentWrites,
				Message: fmt.Sprintf("%s, %s: message data differs from previous write at %s",
					ev.Producer, ev.Message, slot.Write.Location()),
			}}
		}
	} else {
		write := ir.Capture(log, hash)
		slot.Write = &write
	}

	if slot.Read != nil && slot.Read.Data != slot.Write.Data {
		return []ir.ValidationFailure{{
			Line: log.Line,
			Code: ir.CodeReadWriteDifferent,
			Message: fmt.Sprintf("%s, %s: message data differs from previous read by the consumer at %s",
				ev.Producer, ev.Message, slot.Read.Location()),
		}}
	}
	return nil
}

// slot returns the slot for meta, creating empty intermediate levels.
// Callers must set at least one side of a newly created slot.
func (v *IntegrityValidator) slot(meta ir.MessageMetadata) *integritySlot {
	partitions := v.state.Messages[meta.TopicName]
	if partitions == nil {
		partitions = make(map[ir.TopicPartitionIndex]map[ir.TopicPartitionOffset]*integritySlot)
		v.state.Messages[meta.TopicName] = partitions
	}
	offsets := partitions[meta.TopicPartition]
	if offsets == nil {
		offsets = make(map[ir.TopicPartitionOffset]*integritySlot)
		partitions[meta.TopicPartition] = offsets
	}
	s := offsets[meta.TopicPartitionOffset]
	if s == nil {
		s = &integritySlot{}
		offsets[meta.TopicPartitionOffset] = s
	}
	return s
}

// reconcile sweeps every slot in topic, partition, offset order and reports
// the offsets that only one side ever saw. Slots with both sides were
// already compared incrementally.
func (v *IntegrityValidator) reconcile(log ir.TestLogLine) []ir.ValidationFailure {
	var failures []ir.ValidationFailure

	for _, topic := range slices.Sorted(maps.Keys(v.state.Messages)) {
		partitions := v.state.Messages[topic]
		for _, partition := range slices.Sorted(maps.Keys(partitions)) {
			offsets := partitions[partition]
			for _, offset := range slices.Sorted(maps.Keys(offsets)) {
				slot := offsets[offset]
				meta := ir.MessageMetadata{TopicName: topic, TopicPartition: partition, TopicPartitionOffset: offset}

				switch {
				case slot != nil && slot.Read != nil && slot.Write != nil:
					// compared incrementally
				case slot != nil && slot.Read != nil:
					failures = append(failures, ir.ValidationFailure{
						Line: slot.Read.Line,
						Code: ir.CodeReadNeverWritten,
						Message: fmt.Sprintf("%s: message read at %s was never written",
							meta, slot.Read.Location()),
					})
				case slot != nil && slot.Write != nil:
					failures = append(failures, ir.ValidationFailure{
						Line: slot.Write.Line,
						Code: ir.CodeWriteNeverRead,
						Message: fmt.Sprintf("%s: message write at %s was never read by any consumer, it may be lost",
							meta, slot.Write.Location()),
					})
				default:
					failures = append(failures, ir.ValidationFailure{
						Line:    log.Line,
						Code:    ir.CodeInternalInconsistency,
						Message: fmt.Sprintf("%s: offset is tracked but neither read nor written", meta),
					})
				}
			}
		}
	}

	return failures
}

// SaveState implements Validator.
func (v *IntegrityValidator) SaveState() (string, error) {
	return encodeState(NameIntegrity, v.state)
}

// LoadState implements Validator.
func (v *IntegrityValidator) LoadState(data string) error {
	loaded := newIntegrityState()
	if err := decodeState(NameIntegrity, data, &loaded); err != nil {
		return err
	}
	if loaded.Messages == nil {
		loaded.Messages = make(map[ir.TopicName]map[ir.TopicPartitionIndex]map[ir.TopicPartitionOffset]*integritySlot)
	}

	for topic, partitions := range loaded.Messages {
		for partition, offsets := range partitions {
			for offset, slot := range offsets {
				if slot == nil || (slot.Read == nil && slot.Write == nil) {
					return &DeserializationError{
						Validator: NameIntegrity,
						Err: fmt.Errorf("empty slot at topic %q partition %d offset %d",
							topic, partition, offset),
					}
				}
			}
		}
	}

	v.state = loaded
	return nil
}
