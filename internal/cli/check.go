package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/brokercheck/internal/config"
	"github.com/roach88/brokercheck/internal/engine"
	"github.com/roach88/brokercheck/internal/eventlog"
	"github.com/roach88/brokercheck/internal/ir"
	"github.com/roach88/brokercheck/internal/store"
	"github.com/roach88/brokercheck/internal/store/pebblestore"
	"github.com/roach88/brokercheck/internal/validation"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Validators      []string
	Profile         string
	Database        string
	PebbleDir       string
	RunID           string
	CheckpointEvery int
	MetricsOut      string

	KafkaBrokers   []string
	KafkaTopic     string
	KafkaPartition int
	KafkaFollow    bool

	// RunIDs allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs engine.RunIDGenerator

	profile *config.Profile
}

// CheckResult is the data payload of a JSON check response.
type CheckResult struct {
	*engine.Report
	Source     string   `json:"source"`
	Validators []string `json:"validators"`

	// RunFindings counts every stored finding of a --db run, including
	// those reported before the checkpoint this check resumed from.
	RunFindings int `json:"run_findings,omitempty"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return newCheckCommand(&CheckOptions{RootOptions: rootOpts})
}

func newCheckCommand(opts *CheckOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [log-file]",
		Short: "Check a test log against the validators",
		Long: `Check a broker test log for delivery anomalies.

The log is read from a JSON-lines file, or from one partition of a Kafka
topic when --kafka-brokers and --kafka-topic are given. Every line is fed
to the selected validators (all of them by default) and the findings are
printed as they are reported.

With --db or --pebble the check saves a checkpoint every
--checkpoint-every lines. Re-running with the same --run-id resumes from
the last checkpoint instead of starting over. --db also stores findings
for the report command.

A resumed check prints only the findings of the lines it checked. With
--db the exit code also counts the run's findings stored by earlier
attempts; --pebble keeps no findings, so there it does not.

Exit codes:
  0 - No findings
  1 - One or more findings
  2 - Command error (unreadable log, bad flags, store failure, etc.)

Examples:
  brokercheck check run.jsonl
  brokercheck check --validators producer-message-ordering run.jsonl
  brokercheck check --db checks.db --checkpoint-every 500 run.jsonl
  brokercheck check --db checks.db --run-id 0190... run.jsonl
  brokercheck check --kafka-brokers localhost:9092 --kafka-topic test-log
  brokercheck check --profile ci.cue --metrics-out check.prom run.jsonl`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, args, cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Validators, "validators", nil,
		"validators to run, comma separated (default all: "+strings.Join(validation.Names(), ", ")+")")
	cmd.Flags().StringVar(&opts.Profile, "profile", "", "CUE profile with default settings")
	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite database for checkpoints and findings")
	cmd.Flags().StringVar(&opts.PebbleDir, "pebble", "", "Pebble directory for checkpoints")
	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "resume this run instead of starting a new one")
	cmd.Flags().IntVar(&opts.CheckpointEvery, "checkpoint-every", engine.DefaultCheckpointEvery, "lines between checkpoints")
	cmd.Flags().StringVar(&opts.MetricsOut, "metrics-out", "", "write Prometheus metrics to this file when done")
	cmd.Flags().StringSliceVar(&opts.KafkaBrokers, "kafka-brokers", nil, "read the log from these Kafka brokers")
	cmd.Flags().StringVar(&opts.KafkaTopic, "kafka-topic", "", "Kafka topic carrying the log")
	cmd.Flags().IntVar(&opts.KafkaPartition, "kafka-partition", 0, "Kafka partition carrying the log")
	cmd.Flags().BoolVar(&opts.KafkaFollow, "kafka-follow", false, "keep reading past the end of the partition")

	return cmd
}

// applyProfile loads --profile and fills every option the user did not
// set on the command line.
func (opts *CheckOptions) applyProfile(cmd *cobra.Command) error {
	if opts.Profile == "" {
		return nil
	}
	p, err := config.Load(opts.Profile)
	if err != nil {
		return err
	}
	opts.profile = p

	changed := cmd.Flags().Changed
	if !changed("validators") && len(p.Validators) > 0 {
		opts.Validators = p.Validators
	}
	if !changed("checkpoint-every") && p.CheckpointEvery > 0 {
		opts.CheckpointEvery = p.CheckpointEvery
	}
	if !changed("db") && !changed("pebble") {
		opts.Database = p.Store.SQLite
		opts.PebbleDir = p.Store.Pebble
	}
	if k := p.Kafka; k != nil {
		if !changed("kafka-brokers") {
			opts.KafkaBrokers = k.Brokers
		}
		if !changed("kafka-topic") {
			opts.KafkaTopic = k.Topic
		}
		if !changed("kafka-partition") {
			opts.KafkaPartition = k.Partition
		}
		if !changed("kafka-follow") {
			opts.KafkaFollow = k.Follow
		}
	}
	return nil
}

func (opts *CheckOptions) logLevel() slog.Level {
	if opts.Verbose {
		return slog.LevelDebug
	}
	if opts.profile != nil {
		switch opts.profile.LogLevel {
		case "debug":
			return slog.LevelDebug
		case "warn":
			return slog.LevelWarn
		case "error":
			return slog.LevelError
		}
	}
	return slog.LevelInfo
}

func (opts *CheckOptions) kafkaConfig() eventlog.KafkaConfig {
	cfg := eventlog.KafkaConfig{
		Brokers:   opts.KafkaBrokers,
		Topic:     opts.KafkaTopic,
		Partition: opts.KafkaPartition,
		Follow:    opts.KafkaFollow,
	}
	if opts.profile != nil && opts.profile.Kafka != nil {
		cfg.SASLUsername = opts.profile.Kafka.SASLUsername
		cfg.SASLPassword = opts.profile.Kafka.SASLPassword
		cfg.TLS = opts.profile.Kafka.TLS
	}
	return cfg
}

// checkpointBackend is the store selected by --db or --pebble.
type checkpointBackend interface {
	engine.CheckpointStore
	Close() error
}

func runCheck(opts *CheckOptions, args []string, cmd *cobra.Command) error {
	if err := opts.applyProfile(cmd); err != nil {
		return WrapExitError(ExitCommandError, "failed to load profile", err)
	}

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: opts.logLevel(),
	}))

	useKafka := len(opts.KafkaBrokers) > 0 || opts.KafkaTopic != ""
	switch {
	case useKafka && len(args) == 1:
		return NewExitError(ExitCommandError, "give either a log file or a Kafka topic, not both")
	case !useKafka && len(args) == 0:
		return NewExitError(ExitCommandError, "a log file or --kafka-brokers and --kafka-topic is required")
	case opts.Database != "" && opts.PebbleDir != "":
		return NewExitError(ExitCommandError, "--db and --pebble are mutually exclusive")
	case opts.RunID != "" && opts.Database == "" && opts.PebbleDir == "":
		return NewExitError(ExitCommandError, "--run-id requires --db or --pebble")
	case opts.CheckpointEvery <= 0:
		return NewExitError(ExitCommandError, "--checkpoint-every must be positive")
	}

	validators, err := validation.NewSet(opts.Validators)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid validator selection", err)
	}

	var metrics *engine.Metrics
	registry := prometheus.NewRegistry()
	if opts.MetricsOut != "" {
		if metrics, err = engine.NewMetrics(registry); err != nil {
			return WrapExitError(ExitCommandError, "failed to register metrics", err)
		}
	}

	checker := engine.NewChecker(validators, engine.WithLogger(logger), engine.WithMetrics(metrics))

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, stopping after the current line", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	runOpts := engine.RunOptions{CheckpointEvery: opts.CheckpointEvery}
	var sourceName string
	if useKafka {
		cfg := opts.kafkaConfig()
		sourceName = fmt.Sprintf("kafka://%s/%d", cfg.Topic, cfg.Partition)
	} else {
		sourceName = args[0]
	}

	var backend checkpointBackend
	switch {
	case opts.Database != "":
		st, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		backend = st
		runOpts.Sink = st
	case opts.PebbleDir != "":
		ps, err := pebblestore.Open(pebblestore.Options{DataDir: opts.PebbleDir, Sync: true})
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open pebble store", err)
		}
		backend = ps
	}
	if backend != nil {
		defer func() {
			if closeErr := backend.Close(); closeErr != nil {
				logger.Error("error closing store", "error", closeErr)
			}
		}()

		runOpts.Checkpoints = backend
		runOpts.RunID = opts.RunID
		if runOpts.RunID == "" {
			gen := opts.RunIDs
			if gen == nil {
				gen = engine.UUIDv7Generator{}
			}
			runOpts.RunID = gen.Generate()
		}
		if st, ok := backend.(*store.Store); ok {
			if err := st.CreateRun(ctx, ir.Run{
				ID:         runOpts.RunID,
				Source:     sourceName,
				Validators: checker.Names(),
			}); err != nil {
				return WrapExitError(ExitCommandError, "failed to record run", err)
			}
		}
	}

	src, err := openSource(ctx, opts, args, backend, runOpts.RunID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open log", err)
	}
	defer src.Close()

	logger.Debug("checking", "source", sourceName, "validators", checker.Names(), "run_id", runOpts.RunID)

	report, runErr := checker.Run(ctx, src, runOpts)

	if opts.MetricsOut != "" {
		if err := prometheus.WriteToTextfile(opts.MetricsOut, registry); err != nil {
			logger.Error("failed to write metrics", "path", opts.MetricsOut, "error", err)
		}
	}

	if runErr != nil {
		if report != nil && len(report.Findings) > 0 && opts.Format != "json" {
			printFindings(cmd.OutOrStdout(), report.Findings)
		}
		if isDecodeError(runErr) {
			return WrapExitError(ExitCommandError, "malformed log", runErr)
		}
		return WrapExitError(ExitCommandError, "check failed", runErr)
	}

	result := CheckResult{
		Report:     report,
		Source:     sourceName,
		Validators: checker.Names(),
	}
	if st, ok := backend.(*store.Store); ok {
		stored, err := st.ReadFindings(ctx, runOpts.RunID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read stored findings", err)
		}
		result.RunFindings = len(stored)
	}

	logger.Debug("check done", "run_id", runOpts.RunID, "last_line", checker.LastLine())
	return outputCheck(cmd, opts, result)
}

// logSource is a Source that must be closed.
type logSource interface {
	engine.Source
	io.Closer
}

// openSource opens the file or Kafka partition. A Kafka source resuming
// a run starts at the checkpoint instead of replaying skipped records.
func openSource(ctx context.Context, opts *CheckOptions, args []string, cps engine.CheckpointStore, runID string) (logSource, error) {
	if len(args) == 1 {
		return eventlog.OpenFile(args[0])
	}

	cfg := opts.kafkaConfig()
	if cps != nil && opts.RunID != "" {
		cp, err := cps.LoadCheckpoint(ctx, runID)
		if err != nil {
			return nil, fmt.Errorf("load checkpoint: %w", err)
		}
		if cp != nil {
			// Line L is offset L-1, so the first unchecked offset is L.
			cfg.FromOffset = int64(cp.Line)
		}
	}
	return eventlog.OpenKafka(ctx, cfg)
}

func outputCheck(cmd *cobra.Command, opts *CheckOptions, result CheckResult) error {
	w := cmd.OutOrStdout()
	formatter := &OutputFormatter{Format: opts.Format, Writer: w, ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}

	if opts.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		printFindings(w, result.Findings)
		fmt.Fprintf(w, "%d line(s) checked, %d finding(s)", result.LinesProcessed, len(result.Findings))
		if result.RunFindings > len(result.Findings) {
			fmt.Fprintf(w, ", %d in run", result.RunFindings)
		}
		if result.ResumedFrom > 0 {
			fmt.Fprintf(w, ", resumed after line %d", result.ResumedFrom)
		}
		if result.RunID != "" {
			fmt.Fprintf(w, " (run %s)", result.RunID)
		}
		fmt.Fprintln(w)
	}

	if n := max(len(result.Findings), result.RunFindings); n > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d finding(s)", n))
	}
	return nil
}

// printFindings writes one line per finding.
func printFindings(w io.Writer, findings []ir.Finding) {
	for _, f := range findings {
		fmt.Fprintln(w, formatFinding(f))
	}
}

func formatFinding(f ir.Finding) string {
	return fmt.Sprintf("line %d [%s] %s: %s", f.Line, f.Code, f.Validator, f.Message)
}

// isDecodeError reports whether err came from a malformed log line.
func isDecodeError(err error) bool {
	var de *eventlog.DecodeError
	return errors.As(err, &de)
}
