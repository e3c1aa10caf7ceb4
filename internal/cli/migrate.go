package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/cyclelog/internal/migrate"
)

// MigrateOptions holds flags for the migrate command.
type MigrateOptions struct {
	*RootOptions
	DryRun    bool
	BatchSize int
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MigrateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Backfill legacy match rows into day partitions",
		Long: `Backfill legacy match rows as match_completed events.

Rows are grouped into one partition per UTC calendar day and appended through
the same sequence allocator as live traffic. Rows already converted are
skipped, so the command can be re-run after a partial failure.

Examples:
  cyclelog migrate --dry-run
  cyclelog migrate --batch-size 500 --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "convert and validate without appending")
	cmd.Flags().IntVar(&opts.BatchSize, "batch-size", 0, "legacy rows per page (defaults to config migrationBatchSize)")

	return cmd
}

func runMigrate(ctx context.Context, opts *MigrateOptions, cmd *cobra.Command) error {
	batch := opts.Config.MigrationBatchSize
	if cmd.Flags().Changed("batch-size") {
		if opts.BatchSize < 1 {
			return NewExitError(ExitCommandError, fmt.Sprintf("--batch-size must be at least 1, got %d", opts.BatchSize))
		}
		batch = opts.BatchSize
	}

	rt, err := opts.open()
	if err != nil {
		return err
	}
	defer rt.Close()

	res, err := rt.migrator.Migrate(ctx, migrate.Options{
		DryRun:    opts.DryRun,
		BatchSize: batch,
		Verbose:   opts.Verbose,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "migration failed", err)
	}

	out := opts.output(cmd)
	if out.JSON() {
		return out.Success(res)
	}

	w := cmd.OutOrStdout()
	verb := "migrated"
	if res.DryRun {
		verb = "would migrate"
	}
	fmt.Fprintf(w, "%s %d of %d legacy match(es) across %d partition(s) (skipped %d, errors %d)\n",
		verb, res.Migrated, res.Total, len(res.Partitions), res.Skipped, len(res.Errors))
	for _, b := range res.Partitions {
		out.VerboseLog("  partition %d: %s (%d match(es))", b.PartitionID, b.Day, b.Count)
	}
	for _, e := range res.Errors {
		fmt.Fprintf(w, "  legacy match %d: %s\n", e.LegacyID, e.Message)
	}
	return nil
}

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	return &cobra.Command{
		Use:   "verify",
		Short: "Check legacy rows against their converted events",
		Long: `Check that every legacy row was converted exactly once and that every
converted event references an existing legacy row.

Exit codes:
  0 - Integrity holds
  1 - One or more violations found
  2 - Command error`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd.Context(), opts, cmd)
		},
	}
}

func runVerify(ctx context.Context, opts *VerifyOptions, cmd *cobra.Command) error {
	rt, err := opts.open()
	if err != nil {
		return err
	}
	defer rt.Close()

	report, err := rt.migrator.Verify(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "verification failed to run", err)
	}

	msg := fmt.Sprintf("%d integrity violation(s)", len(report.Issues))
	out := opts.output(cmd)
	if out.JSON() {
		if report.IsValid {
			return out.Success(report)
		}
		if err := out.Failure(CodeVerifyFailed, msg, report); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}

	w := cmd.OutOrStdout()
	if report.IsValid {
		fmt.Fprintf(w, "✓ integrity holds: %d legacy row(s), %d converted event(s)\n",
			report.LegacyCount, report.MigratedCount)
		return nil
	}
	fmt.Fprintf(w, "✗ %s: %d legacy row(s), %d converted event(s)\n",
		msg, report.LegacyCount, report.MigratedCount)
	for _, v := range report.Issues {
		fmt.Fprintf(w, "  [%s] %s\n", v.Code, v.Message)
	}
	return NewExitError(ExitFailure, msg)
}
