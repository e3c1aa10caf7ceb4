package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/cyclelog/internal/store"
)

// EventsOptions holds flags for the events command.
type EventsOptions struct {
	*RootOptions
	Partition int64
}

// PartitionLog is the JSON data of the events command for one partition.
type PartitionLog struct {
	PartitionID int64       `json:"partitionId"`
	Events      []EventView `json:"events"`
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List a partition's events, or summarize every partition",
		Long: `List a partition's events in sequence order.

Without --partition, prints one summary line per partition in the log.

Examples:
  cyclelog events
  cyclelog events --partition 12 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.Partition, "partition", 0, "partition id")

	return cmd
}

func runEvents(ctx context.Context, opts *EventsOptions, cmd *cobra.Command) error {
	rt, err := opts.open()
	if err != nil {
		return err
	}
	defer rt.Close()

	out := opts.output(cmd)
	w := cmd.OutOrStdout()

	if opts.Partition == 0 {
		parts, err := rt.store.ListPartitions(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list partitions", err)
		}
		if out.JSON() {
			if parts == nil {
				parts = []store.PartitionSummary{}
			}
			return out.Success(parts)
		}
		if len(parts) == 0 {
			fmt.Fprintln(w, "No partitions found.")
			return nil
		}
		for _, p := range parts {
			fmt.Fprintf(w, "partition %d: %d event(s), max sequence %d\n", p.PartitionID, p.Events, p.MaxSequence)
		}
		return nil
	}

	events, err := rt.store.ReadPartition(ctx, opts.Partition)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read partition", err)
	}
	if out.JSON() {
		return out.Success(PartitionLog{PartitionID: opts.Partition, Events: newEventViews(events)})
	}
	if len(events) == 0 {
		fmt.Fprintf(w, "No events in partition %d.\n", opts.Partition)
		return nil
	}
	for _, e := range events {
		payload, err := json.Marshal(e.Payload)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%6d  %-20s  %s  %s\n",
			e.Sequence, e.Type, e.Timestamp.Format(time.RFC3339Nano), payload)
	}
	return nil
}
