package validation

import (
	"fmt"

	"github.com/roach88/brokercheck/internal/ir"
)

// PartitioningValidator verifies that a message key is always assigned to
// the same partition within a topic.
//
// Only consumer-observed reads are inspected; the first read of a key
// fixes its partition for the rest of the log.
type PartitioningValidator struct {
	state partitioningState
}

type partitioningState struct {
	// topic -> message key -> first observed partition
	ApplicationTopicKeys map[ir.TopicName]map[string]ir.Location[ir.TopicPartitionIndex] `json:"application_topic_keys"`
}

// NewPartitioning creates an empty PartitioningValidator.
func NewPartitioning() *PartitioningValidator {
	return &PartitioningValidator{state: newPartitioningState()}
}

func newPartitioningState() partitioningState {
	return partitioningState{
		ApplicationTopicKeys: make(map[ir.TopicName]map[string]ir.Location[ir.TopicPartitionIndex]),
	}
}

// Name implements Validator.
func (v *PartitioningValidator) Name() string {
	return NamePartitioning
}

// ValidateEvent implements Validator.
func (v *PartitioningValidator) ValidateEvent(log ir.TestLogLine) []ir.ValidationFailure {
	ev, ok := log.Data.Fields.(ir.MessageReadSucceeded)
	if !ok || !ev.Message.Data.HasKey() {
		return nil
	}

	meta := ev.Message.Metadata
	topicKeys := v.state.ApplicationTopicKeys[meta.TopicName]
	if topicKeys == nil {
		topicKeys = make(map[string]ir.Location[ir.TopicPartitionIndex])
		v.state.ApplicationTopicKeys[meta.TopicName] = topicKeys
	}

	key := *ev.Message.Data.Key
	assigned, ok := topicKeys[key]
	if !ok {
		topicKeys[key] = ir.Capture(log, meta.TopicPartition)
		return nil
	}

	// The first assignment stays authoritative.
	if assigned.Data != meta.TopicPartition {
		return []ir.ValidationFailure{{
			Line: log.Line,
			Code: ir.CodeKeyReassigned,
			Message: fmt.Sprintf("%s, %s: message key was previously assigned to partition %d at %s",
				ev.Consumer, ev.Message, assigned.Data, assigned.Location()),
		}}
	}
	return nil
}

// SaveState implements Validator.
func (v *PartitioningValidator) SaveState() (string, error) {
	return encodeState(NamePartitioning, v.state)
}

// LoadState implements Validator.
func (v *PartitioningValidator) LoadState(data string) error {
	loaded := newPartitioningState()
	if err := decodeState(NamePartitioning, data, &loaded); err != nil {
		return err
	}
	if loaded.ApplicationTopicKeys == nil {
		loaded.ApplicationTopicKeys = make(map[ir.TopicName]map[string]ir.Location[ir.TopicPartitionIndex])
	}
	v.state = loaded
	return nil
}
