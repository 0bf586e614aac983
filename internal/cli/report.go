package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/brokercheck/internal/ir"
	"github.com/roach88/brokercheck/internal/store"
)

// ReportOptions holds flags for the report command.
type ReportOptions struct {
	*RootOptions
	Database string
	RunID    string
}

// RunReport is the data payload of a JSON report for one run.
type RunReport struct {
	Run      ir.Run       `json:"run"`
	Findings []ir.Finding `json:"findings"`
}

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show stored runs and findings",
		Long: `Show what earlier checks stored in a SQLite database.

Without --run-id, lists the runs in the database. With --run-id, prints the
findings of that run ordered by line.

Exit codes:
  0 - Success (a run with findings is not an error here)
  2 - Command error (database not found, unknown run)

Examples:
  brokercheck report --db checks.db
  brokercheck report --db checks.db --run-id 0190...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "run to report")

	return cmd
}

func runReport(opts *ReportOptions, cmd *cobra.Command) error {
	if _, err := os.Stat(opts.Database); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", opts.Database))
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	w := cmd.OutOrStdout()
	formatter := &OutputFormatter{Format: opts.Format, Writer: w}

	if opts.RunID == "" {
		runs, err := st.ListRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		if opts.Format == "json" {
			return formatter.Success(runs)
		}
		if len(runs) == 0 {
			fmt.Fprintln(w, "No runs found.")
			return nil
		}
		for _, r := range runs {
			fmt.Fprintf(w, "%s  %s  [%s]\n", r.ID, r.Source, strings.Join(r.Validators, ", "))
		}
		return nil
	}

	run, err := st.GetRun(ctx, opts.RunID)
	if errors.Is(err, sql.ErrNoRows) {
		return NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", opts.RunID))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	findings, err := st.ReadFindings(ctx, opts.RunID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read findings", err)
	}

	if opts.Format == "json" {
		return formatter.Success(RunReport{Run: run, Findings: findings})
	}

	fmt.Fprintf(w, "run %s (%s)\n", run.ID, run.Source)
	printFindings(w, findings)
	fmt.Fprintf(w, "%d finding(s)\n", len(findings))
	return nil
}
