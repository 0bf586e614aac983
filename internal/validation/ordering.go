package validation

import (
	"fmt"

	"github.com/roach88/brokercheck/internal/ir"
)

// OrderingValidator verifies that a producer's acknowledged writes to a
// partition never land on a lower offset than its previous write there.
//
// This holds for an idempotent producer with acks=all and infinite
// retries. Equal offsets are accepted; duplicate detection belongs to the
// integrity and idempotence validators.
type OrderingValidator struct {
	state orderingState
}

type orderingState struct {
	// producer -> topic -> partition -> most recent offset
	ProducerTopicPartitionOffsets map[string]map[ir.TopicName]map[ir.TopicPartitionIndex]ir.Location[ir.TopicPartitionOffset] `json:"producer_topic_partition_offsets"`
}

// NewOrdering creates an empty OrderingValidator.
func NewOrdering() *OrderingValidator {
	return &OrderingValidator{state: newOrderingState()}
}

func newOrderingState() orderingState {
	return orderingState{
		ProducerTopicPartitionOffsets: make(map[string]map[ir.TopicName]map[ir.TopicPartitionIndex]ir.Location[ir.TopicPartitionOffset]),
	}
}

// Name implements Validator.
func (v *OrderingValidator) Name() string {
	return NameOrdering
}

// ValidateEvent implements Validator.
func (v *OrderingValidator) ValidateEvent(log ir.TestLogLine) []ir.ValidationFailure {
	ev, ok := log.Data.Fields.(ir.MessageWriteSucceeded)
	if !ok {
		return nil
	}

	meta := ev.Message.Metadata
	partitions := v.partitions(ev.Producer.ID, meta.TopicName)

	last, seen := partitions[meta.TopicPartition]
	// The cursor follows the latest write, including a regressed one.
	partitions[meta.TopicPartition] = ir.Capture(log, meta.TopicPartitionOffset)

	if seen && last.Data > meta.TopicPartitionOffset {
		return []ir.ValidationFailure{{
			Line: log.Line,
			Code: ir.CodeNonMonotonic,
			Message: fmt.Sprintf("%s, %s: message offset is not greater than the previous offset %d at %s",
				ev.Producer, ev.Message, last.Data, last.Location()),
		}}
	}
	return nil
}

func (v *OrderingValidator) partitions(producer string, topic ir.TopicName) map[ir.TopicPartitionIndex]ir.Location[ir.TopicPartitionOffset] {
	topics := v.state.ProducerTopicPartitionOffsets[producer]
	if topics == nil {
		topics = make(map[ir.TopicName]map[ir.TopicPartitionIndex]ir.Location[ir.TopicPartitionOffset])
		v.state.ProducerTopicPartitionOffsets[producer] = topics
	}
	partitions := topics[topic]
	if partitions == nil {
		partitions = make(map[ir.TopicPartitionIndex]ir.Location[ir.TopicPartitionOffset])
		topics[topic] = partitions
	}
	return partitions
}

// SaveState implements Validator.
func (v *OrderingValidator) SaveState() (string, error) {
	return encodeState(NameOrdering, v.state)
}

// LoadState implements Validator.
func (v *OrderingValidator) LoadState(data string) error {
	loaded := newOrderingState()
	if err := decodeState(NameOrdering, data, &loaded); err != nil {
		return err
	}
	if loaded.ProducerTopicPartitionOffsets == nil {
		loaded.ProducerTopicPartitionOffsets = make(map[string]map[ir.TopicName]map[ir.TopicPartitionIndex]ir.Location[ir.TopicPartitionOffset])
	}
	v.state = loaded
	return nil
}
