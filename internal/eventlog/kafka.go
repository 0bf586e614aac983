package eventlog

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/scram"

	"github.com/roach88/brokercheck/internal/ir"
)

// KafkaConfig selects one partition of a topic carrying a test log.
type KafkaConfig struct {
	Brokers   []string
	Topic     string
	Partition int

	// Follow keeps reading past the high watermark seen at open time.
	// Without it the source ends like a finite log file.
	Follow bool

	// FromOffset starts reading at this offset instead of the first one.
	// Used to skip records already covered by a checkpoint.
	FromOffset int64

	// SASL/SCRAM-SHA-256 credentials; empty disables SASL.
	SASLUsername string
	SASLPassword string
	TLS          bool

	DialTimeout time.Duration
}

func (c KafkaConfig) mechanism() (sasl.Mechanism, error) {
	if c.SASLUsername == "" {
		return nil, nil
	}
	return scram.Mechanism(scram.SHA256, c.SASLUsername, c.SASLPassword)
}

func (c KafkaConfig) tlsConfig() *tls.Config {
	if !c.TLS {
		return nil
	}
	return &tls.Config{}
}

func (c KafkaConfig) dialer() (*kafka.Dialer, error) {
	mechanism, err := c.mechanism()
	if err != nil {
		return nil, fmt.Errorf("sasl: %w", err)
	}
	timeout := c.DialTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &kafka.Dialer{
		Timeout:       timeout,
		DualStack:     true,
		SASLMechanism: mechanism,
		TLS:           c.tlsConfig(),
	}, nil
}

// messageReader is the subset of *kafka.Reader used by KafkaSource.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaSource reads a test log from one topic partition, one JSON record
// per message. The ordinal of a record is its offset plus one.
type KafkaSource struct {
	reader    messageReader
	next      int64 // offset expected next
	watermark int64 // exclusive end when not following
	follow    bool
}

// OpenKafka connects to the partition leader, captures the partition's
// bounds, and positions a reader at the start.
func OpenKafka(ctx context.Context, cfg KafkaConfig) (*KafkaSource, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, errors.New("kafka source needs brokers and a topic")
	}
	dialer, err := cfg.dialer()
	if err != nil {
		return nil, err
	}

	conn, err := dialer.DialLeader(ctx, "tcp", cfg.Brokers[0], cfg.Topic, cfg.Partition)
	if err != nil {
		return nil, fmt.Errorf("dial partition leader: %w", err)
	}
	defer conn.Close()

	first, err := conn.ReadFirstOffset()
	if err != nil {
		return nil, fmt.Errorf("read first offset: %w", err)
	}
	last, err := conn.ReadLastOffset()
	if err != nil {
		return nil, fmt.Errorf("read last offset: %w", err)
	}

	start := first
	if cfg.FromOffset > start {
		start = cfg.FromOffset
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   cfg.Brokers,
		Topic:     cfg.Topic,
		Partition: cfg.Partition,
		Dialer:    dialer,
		MinBytes:  1,
		MaxBytes:  5e6,
	})
	if err := reader.SetOffset(start); err != nil {
		reader.Close()
		return nil, fmt.Errorf("seek to offset %d: %w", start, err)
	}

	return newKafkaSource(reader, start, last, cfg.Follow), nil
}

func newKafkaSource(reader messageReader, start, watermark int64, follow bool) *KafkaSource {
	return &KafkaSource{
		reader:    reader,
		next:      start,
		watermark: watermark,
		follow:    follow,
	}
}

// Next returns the next record, or io.EOF at the captured high watermark.
func (s *KafkaSource) Next(ctx context.Context) (ir.TestLogLine, error) {
	if !s.follow && s.next >= s.watermark {
		return ir.TestLogLine{}, io.EOF
	}

	msg, err := s.reader.ReadMessage(ctx)
	if err != nil {
		return ir.TestLogLine{}, fmt.Errorf("read message at offset %d: %w", s.next, err)
	}
	s.next = msg.Offset + 1

	line := uint64(msg.Offset) + 1
	log, err := ir.DecodeLogLine(line, msg.Value)
	if err != nil {
		return ir.TestLogLine{}, &DecodeError{Line: line, Err: err}
	}
	return log, nil
}

// Close closes the underlying reader.
func (s *KafkaSource) Close() error {
	return s.reader.Close()
}

// MessageWriter is the subset of *kafka.Writer used by PublishLog.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewWriter creates a writer that sends every message to cfg.Partition,
// so a published log keeps its order.
func NewWriter(cfg KafkaConfig) (*kafka.Writer, error) {
	mechanism, err := cfg.mechanism()
	if err != nil {
		return nil, fmt.Errorf("sasl: %w", err)
	}
	partition := cfg.Partition
	return &kafka.Writer{
		Addr:  kafka.TCP(cfg.Brokers...),
		Topic: cfg.Topic,
		Balancer: kafka.BalancerFunc(func(_ kafka.Message, _ ...int) int {
			return partition
		}),
		RequiredAcks: kafka.RequireAll,
		Transport: &kafka.Transport{
			SASL: mechanism,
			TLS:  cfg.tlsConfig(),
		},
	}, nil
}

// PublishLog writes lines as one message each, in order.
//
// Ordinals are not carried on the wire: a reader assigns offset+1, so the
// published copy keeps relative order but not necessarily the original
// numbering.
func PublishLog(ctx context.Context, w MessageWriter, lines []ir.TestLogLine) error {
	msgs := make([]kafka.Message, 0, len(lines))
	for _, log := range lines {
		raw, err := ir.EncodeLogLine(log)
		if err != nil {
			return fmt.Errorf("encode line %d: %w", log.Line, err)
		}
		msgs = append(msgs, kafka.Message{Value: raw})
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := w.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish log: %w", err)
	}
	return nil
}
