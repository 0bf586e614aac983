package ir

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Event type tags as they appear in the "type" field of a log record.
const (
	TypeWorkloadStarted       = "WorkloadStarted"
	TypeWorkloadEnded         = "WorkloadEnded"
	TypeMessageReadSucceeded  = "MessageReadSucceeded"
	TypeMessageReadFailed     = "MessageReadFailed"
	TypeMessageWriteSucceeded = "MessageWriteSucceeded"
	TypeMessageWriteFailed    = "MessageWriteFailed"
)

// TestEvent is a sealed interface over the events a test log can carry.
// Only types in this package implement it.
//
// The union is open at the wire level: records with a type tag this build
// does not know decode to UnknownEvent, so validators can ignore them.
type TestEvent interface {
	EventType() string
	testEvent()
}

// WorkloadStarted marks the beginning of a workload.
type WorkloadStarted struct{}

func (WorkloadStarted) EventType() string { return TypeWorkloadStarted }
func (WorkloadStarted) testEvent()        {}

// WorkloadEnded marks the end of the stream. No further reads or writes
// are expected after it.
type WorkloadEnded struct{}

func (WorkloadEnded) EventType() string { return TypeWorkloadEnded }
func (WorkloadEnded) testEvent()        {}

// MessageReadSucceeded records a consumer receiving a message.
type MessageReadSucceeded struct {
	Consumer Consumer `json:"consumer"`
	Message  Message  `json:"message"`
}

func (MessageReadSucceeded) EventType() string { return TypeMessageReadSucceeded }
func (MessageReadSucceeded) testEvent()        {}

// MessageReadFailed records a failed consumer poll.
type MessageReadFailed struct {
	Consumer Consumer `json:"consumer"`
	Error    string   `json:"error"`
}

func (MessageReadFailed) EventType() string { return TypeMessageReadFailed }
func (MessageReadFailed) testEvent()        {}

// MessageWriteSucceeded records a producer write acknowledged by the broker.
type MessageWriteSucceeded struct {
	Producer Producer `json:"producer"`
	Message  Message  `json:"message"`
}

func (MessageWriteSucceeded) EventType() string { return TypeMessageWriteSucceeded }
func (MessageWriteSucceeded) testEvent()        {}

// MessageWriteFailed records a producer write that was not acknowledged.
type MessageWriteFailed struct {
	Producer Producer `json:"producer"`
	Error    string   `json:"error"`
}

func (MessageWriteFailed) EventType() string { return TypeMessageWriteFailed }
func (MessageWriteFailed) testEvent()        {}

// UnknownEvent carries a record whose type tag is not known to this build.
// Raw holds the original JSON object.
type UnknownEvent struct {
	Type string
	Raw  json.RawMessage
}

func (u UnknownEvent) EventType() string { return u.Type }
func (UnknownEvent) testEvent()          {}

// errMissingType is returned when an event object has no type tag.
var errMissingType = errors.New("event has no type")

// DecodeEvent parses a single event object.
func DecodeEvent(raw []byte) (TestEvent, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}

	switch head.Type {
	case "":
		return nil, errMissingType
	case TypeWorkloadStarted:
		return WorkloadStarted{}, nil
	case TypeWorkloadEnded:
		return WorkloadEnded{}, nil
	case TypeMessageReadSucceeded:
		return decodeVariant[MessageReadSucceeded](raw)
	case TypeMessageReadFailed:
		return decodeVariant[MessageReadFailed](raw)
	case TypeMessageWriteSucceeded:
		return decodeVariant[MessageWriteSucceeded](raw)
	case TypeMessageWriteFailed:
		return decodeVariant[MessageWriteFailed](raw)
	default:
		return UnknownEvent{Type: head.Type, Raw: bytes.Clone(raw)}, nil
	}
}

func decodeVariant[T TestEvent](raw []byte) (TestEvent, error) {
	var ev T
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("decode %s: %w", ev.EventType(), err)
	}
	return ev, nil
}

// EncodeEvent renders an event as a JSON object with its type tag first.
func EncodeEvent(ev TestEvent) ([]byte, error) {
	if u, ok := ev.(UnknownEvent); ok {
		if len(u.Raw) == 0 {
			return json.Marshal(map[string]string{"type": u.Type})
		}
		return u.Raw, nil
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.EventType(), err)
	}
	tag, err := json.Marshal(ev.EventType())
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(`{"type":`)
	buf.Write(tag)
	if len(body) > 2 { // body is a JSON object; "{}" carries no fields
		buf.WriteByte(',')
		buf.Write(body[1:])
	} else {
		buf.WriteByte('}')
	}
	return buf.Bytes(), nil
}

// logRecord is the wire form of LogData.
type logRecord struct {
	Fields    json.RawMessage `json:"fields"`
	Timestamp string          `json:"timestamp,omitempty"`
	Level     string          `json:"level,omitempty"`
	Target    string          `json:"target,omitempty"`
}

// MarshalJSON implements json.Marshaler for LogData.
func (d LogData) MarshalJSON() ([]byte, error) {
	if d.Fields == nil {
		return nil, errors.New("log data has no event")
	}
	fields, err := EncodeEvent(d.Fields)
	if err != nil {
		return nil, err
	}
	return json.Marshal(logRecord{
		Fields:    fields,
		Timestamp: d.Timestamp,
		Level:     d.Level,
		Target:    d.Target,
	})
}

// UnmarshalJSON implements json.Unmarshaler for LogData.
func (d *LogData) UnmarshalJSON(data []byte) error {
	var rec logRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	if len(rec.Fields) == 0 || bytes.Equal(rec.Fields, []byte("null")) {
		return errors.New("log record has no fields")
	}
	ev, err := DecodeEvent(rec.Fields)
	if err != nil {
		return err
	}
	*d = LogData{
		Fields:    ev,
		Timestamp: rec.Timestamp,
		Level:     rec.Level,
		Target:    rec.Target,
	}
	return nil
}

// DecodeLogLine parses one raw log record and stamps it with its ordinal.
func DecodeLogLine(line uint64, raw []byte) (TestLogLine, error) {
	var data LogData
	if err := json.Unmarshal(raw, &data); err != nil {
		return TestLogLine{}, err
	}
	return TestLogLine{Line: line, Data: data}, nil
}

// EncodeLogLine renders the record part of a log line. The ordinal is not
// part of the record; readers derive it from position.
func EncodeLogLine(log TestLogLine) ([]byte, error) {
	return json.Marshal(log.Data)
}
