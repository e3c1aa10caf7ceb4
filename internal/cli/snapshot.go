package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/cyclelog/internal/aggregate"
)

// SnapshotOptions holds flags for the snapshot subcommands.
type SnapshotOptions struct {
	*RootOptions
	Partition int64
	From      int64
	To        int64
}

// NewSnapshotCommand creates the snapshot command and its subcommands.
func NewSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Create and read partition snapshots",
	}
	cmd.AddCommand(newSnapshotCreateCommand(rootOpts))
	cmd.AddCommand(newSnapshotGetCommand(rootOpts))
	cmd.AddCommand(newSnapshotRangeCommand(rootOpts))
	return cmd
}

func newSnapshotCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SnapshotOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Aggregate a completed partition into a snapshot",
		Long: `Aggregate a completed partition into a snapshot.

The partition must contain both its cycle_start and cycle_complete markers.
A snapshot is created once; later requests return the stored snapshot.

Example:
  cyclelog snapshot create --partition 12`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotOne(cmd.Context(), opts, cmd, true)
		},
	}
	cmd.Flags().Int64Var(&opts.Partition, "partition", 0, "partition id (required)")
	_ = cmd.MarkFlagRequired("partition")
	return cmd
}

func newSnapshotGetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SnapshotOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:           "get",
		Short:         "Print a stored snapshot",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotOne(cmd.Context(), opts, cmd, false)
		},
	}
	cmd.Flags().Int64Var(&opts.Partition, "partition", 0, "partition id (required)")
	_ = cmd.MarkFlagRequired("partition")
	return cmd
}

func newSnapshotRangeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SnapshotOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "range",
		Short: "Print stored snapshots for a range of partitions",
		Long: `Print stored snapshots for partitions --from..--to inclusive.
Partitions without a snapshot are omitted.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotRange(cmd.Context(), opts, cmd)
		},
	}
	cmd.Flags().Int64Var(&opts.From, "from", 0, "first partition id (required)")
	cmd.Flags().Int64Var(&opts.To, "to", 0, "last partition id (required)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func runSnapshotOne(ctx context.Context, opts *SnapshotOptions, cmd *cobra.Command, create bool) error {
	rt, err := opts.open()
	if err != nil {
		return err
	}
	defer rt.Close()

	var snap aggregate.Snapshot
	if create {
		snap, err = rt.builder.CreateSnapshot(ctx, opts.Partition)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to create snapshot", err)
		}
	} else {
		snap, err = rt.builder.GetSnapshot(ctx, opts.Partition)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to get snapshot", err)
		}
	}

	out := opts.output(cmd)
	if out.JSON() {
		return out.Success(snap)
	}
	writeSnapshotText(cmd.OutOrStdout(), snap, true)
	return nil
}

func runSnapshotRange(ctx context.Context, opts *SnapshotOptions, cmd *cobra.Command) error {
	rt, err := opts.open()
	if err != nil {
		return err
	}
	defer rt.Close()

	snaps, err := rt.builder.GetSnapshotRange(ctx, opts.From, opts.To)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read snapshots", err)
	}

	out := opts.output(cmd)
	if out.JSON() {
		return out.Success(snaps)
	}
	w := cmd.OutOrStdout()
	if len(snaps) == 0 {
		fmt.Fprintf(w, "No snapshots for partitions %d..%d.\n", opts.From, opts.To)
		return nil
	}
	for _, s := range snaps {
		writeSnapshotText(w, s, false)
	}
	return nil
}

func writeSnapshotText(w io.Writer, s aggregate.Snapshot, detail bool) {
	fmt.Fprintf(w, "partition %d (%s): %d match(es), %d currency moved, %d reputation awarded, %dms\n",
		s.PartitionID, s.TriggerType, s.TotalMatches, s.TotalCurrencyMoved, s.TotalReputationAwarded, s.DurationMs)
	if !detail {
		return
	}
	for _, a := range s.ActorMetrics {
		fmt.Fprintf(w, "  actor %d: income %d, purchases %d, net profit %d\n",
			a.ActorID, a.TotalIncome, a.TotalPurchases, a.NetProfit)
	}
	for _, m := range s.EntityMetrics {
		fmt.Fprintf(w, "  entity %d: %d-%d-%d, damage %d/%d, kills %d\n",
			m.EntityID, m.Wins, m.Losses, m.Draws, m.DamageDealt, m.DamageReceived, m.Kills)
	}
	for _, sm := range s.SkippedMatches {
		fmt.Fprintf(w, "  skipped match %d (%d participants): %s\n", sm.MatchID, sm.Participants, sm.Reason)
	}
}
