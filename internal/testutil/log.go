package testutil

import (
	"bufio"
	"fmt"
	"io"

	"github.com/roach88/brokercheck/internal/ir"
)

// LogBuilder produces TestLogLines with consecutive ordinals.
//
// Example:
//
//	b := testutil.NewLogBuilder()
//	b.Write("p1", "t", 0, 5, nil, "X")  // line 1
//	b.At(5).Read("c1", "t", 0, 5, nil, "X") // line 5
//	b.End()                              // line 6
type LogBuilder struct {
	clock *LineClock
}

// NewLogBuilder creates a builder starting at line 1.
func NewLogBuilder() *LogBuilder {
	return &LogBuilder{clock: NewLineClock()}
}

// At makes the next built line use the given ordinal.
func (b *LogBuilder) At(line uint64) *LogBuilder {
	b.clock.Jump(line)
	return b
}

// Line returns the ordinal of the last built line.
func (b *LogBuilder) Line() uint64 {
	return b.clock.Current()
}

// Event wraps an arbitrary event in the next line.
func (b *LogBuilder) Event(ev ir.TestEvent) ir.TestLogLine {
	return ir.TestLogLine{
		Line: b.clock.Next(),
		Data: ir.LogData{Fields: ev, Level: "INFO"},
	}
}

// Read builds a MessageReadSucceeded line.
func (b *LogBuilder) Read(consumer string, topic ir.TopicName, partition ir.TopicPartitionIndex, offset ir.TopicPartitionOffset, key *string, payload string) ir.TestLogLine {
	return b.Event(ir.MessageReadSucceeded{
		Consumer: ir.Consumer{ID: consumer},
		Message:  NewMessage(topic, partition, offset, key, payload),
	})
}

// Write builds a MessageWriteSucceeded line.
func (b *LogBuilder) Write(producer string, topic ir.TopicName, partition ir.TopicPartitionIndex, offset ir.TopicPartitionOffset, key *string, payload string) ir.TestLogLine {
	return b.Event(ir.MessageWriteSucceeded{
		Producer: ir.Producer{ID: producer},
		Message:  NewMessage(topic, partition, offset, key, payload),
	})
}

// Start builds a WorkloadStarted line.
func (b *LogBuilder) Start() ir.TestLogLine {
	return b.Event(ir.WorkloadStarted{})
}

// End builds a WorkloadEnded line.
func (b *LogBuilder) End() ir.TestLogLine {
	return b.Event(ir.WorkloadEnded{})
}

// NewMessage assembles a Message from its parts.
func NewMessage(topic ir.TopicName, partition ir.TopicPartitionIndex, offset ir.TopicPartitionOffset, key *string, payload string) ir.Message {
	return ir.Message{
		Metadata: ir.MessageMetadata{
			TopicName:            topic,
			TopicPartition:       partition,
			TopicPartitionOffset: offset,
		},
		Data: ir.MessageData{Key: key, Payload: payload},
	}
}

// WriteLog renders lines as JSON-lines to w, placing each record on its
// ordinal's line. Gaps between ordinals become blank lines.
func WriteLog(w io.Writer, lines []ir.TestLogLine) error {
	bw := bufio.NewWriter(w)
	var at uint64
	for _, log := range lines {
		if log.Line <= at {
			return fmt.Errorf("line %d does not follow line %d", log.Line, at)
		}
		for at+1 < log.Line {
			if err := bw.WriteByte('\n'); err != nil {
				return err
			}
			at++
		}
		raw, err := ir.EncodeLogLine(log)
		if err != nil {
			return fmt.Errorf("encode line %d: %w", log.Line, err)
		}
		if _, err := bw.Write(raw); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
		at = log.Line
	}
	return bw.Flush()
}
