package ir

import (
	"fmt"
	"strings"
)

// TopicName identifies a topic.
type TopicName string

// TopicPartitionIndex identifies a partition within a topic.
type TopicPartitionIndex int32

// TopicPartitionOffset is a position within a single partition.
type TopicPartitionOffset int64

// MessageMetadata identifies where a message lives in the broker log.
// Equality is structural, so values can be compared with ==.
type MessageMetadata struct {
	TopicName            TopicName            `json:"topic_name"`
	TopicPartition       TopicPartitionIndex  `json:"topic_partition"`
	TopicPartitionOffset TopicPartitionOffset `json:"topic_partition_offset"`
}

func (m MessageMetadata) String() string {
	return fmt.Sprintf("topic = '%s', partition = %d, offset = %d",
		m.TopicName, m.TopicPartition, m.TopicPartitionOffset)
}

// MessageData is the content of a message. Key is nil for keyless messages.
type MessageData struct {
	Key     *string `json:"key,omitempty"`
	Payload string  `json:"payload"`
}

// HasKey reports whether the message carries a key.
func (d MessageData) HasKey() bool {
	return d.Key != nil
}

// Message pairs a message's position with its content.
type Message struct {
	Metadata MessageMetadata `json:"metadata"`
	Data     MessageData     `json:"data"`
}

func (m Message) String() string {
	var b strings.Builder
	b.WriteString(m.Metadata.String())
	if m.Data.Key != nil {
		fmt.Fprintf(&b, ", key = '%s'", *m.Data.Key)
	}
	return b.String()
}

// Producer is a writing party.
type Producer struct {
	ID string `json:"id"`
}

func (p Producer) String() string {
	return fmt.Sprintf("producer = '%s'", p.ID)
}

// Consumer is a reading party.
type Consumer struct {
	ID string `json:"id"`
}

func (c Consumer) String() string {
	return fmt.Sprintf("consumer = '%s'", c.ID)
}

// TestLogLine is one parsed record of a test log.
type TestLogLine struct {
	Line uint64  `json:"line"` // Log ordinal, reported verbatim in failures
	Data LogData `json:"data"`
}

// LogData holds the structured fields of a log record.
type LogData struct {
	Fields    TestEvent `json:"fields"`
	Timestamp string    `json:"timestamp,omitempty"`
	Level     string    `json:"level,omitempty"`
	Target    string    `json:"target,omitempty"`
}

// Key returns a pointer to k, for building MessageData literals.
func Key(k string) *string {
	return &k
}
