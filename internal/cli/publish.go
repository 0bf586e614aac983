package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/brokercheck/internal/eventlog"
)

// PublishOptions holds flags for the publish command.
type PublishOptions struct {
	*RootOptions
	Brokers   []string
	Topic     string
	Partition int

	// Writer allows overriding the Kafka writer (for testing).
	// If nil, a writer for Brokers and Topic is created.
	Writer eventlog.MessageWriter
}

// PublishResult is the data payload of a JSON publish response.
type PublishResult struct {
	Topic     string `json:"topic"`
	Partition int    `json:"partition"`
	Lines     int    `json:"lines"`
}

// NewPublishCommand creates the publish command.
func NewPublishCommand(rootOpts *RootOptions) *cobra.Command {
	return newPublishCommand(&PublishOptions{RootOptions: rootOpts})
}

func newPublishCommand(opts *PublishOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish <log-file>",
		Short: "Copy a test log onto a Kafka topic partition",
		Long: `Publish every record of a JSON-lines test log as one Kafka message,
in order, to a single partition. The topic can then be checked with
check --kafka-brokers/--kafka-topic.

Line numbers are not carried over: a Kafka source numbers records by
offset, so blank lines and gaps in the file are not preserved.

Example:
  brokercheck publish --kafka-brokers localhost:9092 --kafka-topic test-log run.jsonl`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublish(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Brokers, "kafka-brokers", nil, "Kafka brokers (required)")
	cmd.Flags().StringVar(&opts.Topic, "kafka-topic", "", "Kafka topic (required)")
	cmd.Flags().IntVar(&opts.Partition, "kafka-partition", 0, "Kafka partition")
	_ = cmd.MarkFlagRequired("kafka-topic")

	return cmd
}

func runPublish(opts *PublishOptions, path string, cmd *cobra.Command) error {
	ctx := cmd.Context()

	src, err := eventlog.OpenFile(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open log", err)
	}
	defer src.Close()

	lines, err := eventlog.ReadAll(ctx, src)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read log", err)
	}

	w := opts.Writer
	if w == nil {
		if len(opts.Brokers) == 0 {
			return NewExitError(ExitCommandError, "--kafka-brokers is required")
		}
		kw, err := eventlog.NewWriter(eventlog.KafkaConfig{
			Brokers:   opts.Brokers,
			Topic:     opts.Topic,
			Partition: opts.Partition,
		})
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to create Kafka writer", err)
		}
		defer kw.Close()
		w = kw
	}

	if err := eventlog.PublishLog(ctx, w, lines); err != nil {
		return WrapExitError(ExitCommandError, "failed to publish log", err)
	}

	result := PublishResult{Topic: opts.Topic, Partition: opts.Partition, Lines: len(lines)}
	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return formatter.Success(result)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "published %d line(s) to %s/%d\n", result.Lines, result.Topic, result.Partition)
	return nil
}
