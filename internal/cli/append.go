package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/cyclelog/internal/event"
	"github.com/roach88/cyclelog/internal/recorder"
)

// AppendOptions holds flags for the append command.
type AppendOptions struct {
	*RootOptions
	Partition int64
	Type      string
	Payload   string
	ActorID   int64
	EntityID  int64
	MatchID   int64
	Metadata  string
	At        string
}

// EventView is the JSON form of a stored event.
type EventView struct {
	ID          string         `json:"id"`
	PartitionID int64          `json:"partitionId"`
	Type        event.Type     `json:"type"`
	Sequence    int64          `json:"sequenceNumber"`
	Timestamp   time.Time      `json:"timestamp"`
	ActorID     int64          `json:"actorId,omitempty"`
	EntityID    int64          `json:"entityId,omitempty"`
	MatchID     int64          `json:"matchId,omitempty"`
	Payload     event.Payload  `json:"payload"`
	Metadata    event.Metadata `json:"metadata,omitempty"`
}

func newEventView(e event.Event) EventView {
	return EventView{
		ID:          e.ID,
		PartitionID: e.PartitionID,
		Type:        e.Type,
		Sequence:    e.Sequence,
		Timestamp:   e.Timestamp,
		ActorID:     e.ActorID,
		EntityID:    e.EntityID,
		MatchID:     e.MatchID,
		Payload:     e.Payload,
		Metadata:    e.Metadata,
	}
}

func newEventViews(events []event.Event) []EventView {
	views := make([]EventView, len(events))
	for i, e := range events {
		views[i] = newEventView(e)
	}
	return views
}

// NewAppendCommand creates the append command.
func NewAppendCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AppendOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "append",
		Short: "Append one event to a partition",
		Long: `Append one event to a partition.

The payload is a JSON object matching the event type. It is validated before
a sequence number is assigned; a rejected event consumes no sequence number.

Examples:
  cyclelog append --partition 12 --type cycle_start --payload '{"triggerType":"manual"}'
  cyclelog append --partition 12 --type passive_income --actor 7 \
      --payload '{"merchandising":120,"streaming":30}'`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAppend(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.Partition, "partition", 0, "partition id (required)")
	cmd.Flags().StringVar(&opts.Type, "type", "", "event type (required)")
	cmd.Flags().StringVar(&opts.Payload, "payload", "", "payload as JSON (required)")
	cmd.Flags().Int64Var(&opts.ActorID, "actor", 0, "actor id")
	cmd.Flags().Int64Var(&opts.EntityID, "entity", 0, "entity id")
	cmd.Flags().Int64Var(&opts.MatchID, "match", 0, "match id")
	cmd.Flags().StringVar(&opts.Metadata, "metadata", "", "metadata as a JSON object")
	cmd.Flags().StringVar(&opts.At, "at", "", "event time (RFC 3339, defaults to now)")
	_ = cmd.MarkFlagRequired("partition")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("payload")

	return cmd
}

func runAppend(ctx context.Context, opts *AppendOptions, cmd *cobra.Command) error {
	t := event.Type(opts.Type)
	payload, err := event.DecodePayload(t, []byte(opts.Payload))
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --payload", err)
	}
	meta, err := parseMetadata(opts.Metadata)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --metadata", err)
	}
	var at time.Time
	if opts.At != "" {
		at, err = time.Parse(time.RFC3339Nano, opts.At)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --at", err)
		}
	}

	rt, err := opts.open()
	if err != nil {
		return err
	}
	defer rt.Close()

	e, err := rt.recorder.Append(ctx, opts.Partition, t, payload, recorder.Options{
		ActorID:   opts.ActorID,
		EntityID:  opts.EntityID,
		MatchID:   opts.MatchID,
		Metadata:  meta,
		Timestamp: at,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "append rejected", err)
	}

	out := opts.output(cmd)
	if out.JSON() {
		return out.Success(newEventView(e))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "appended %s (id %s)\n", e, e.ID)
	return nil
}

func parseMetadata(raw string) (event.Metadata, error) {
	if raw == "" {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var meta event.Metadata
	if err := dec.Decode(&meta); err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, fmt.Errorf("metadata must be a JSON object")
	}
	return meta, nil
}

// AppendBatchOptions holds flags for the append-batch command.
type AppendBatchOptions struct {
	*RootOptions
	Partition int64
	File      string
}

// BatchResult is the JSON data of a successful batch append.
type BatchResult struct {
	PartitionID int64       `json:"partitionId"`
	Events      []EventView `json:"events"`
}

// NewAppendBatchCommand creates the append-batch command.
func NewAppendBatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AppendBatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "append-batch",
		Short: "Append a YAML file of events to a partition atomically",
		Long: `Append a YAML file of events to a partition atomically.

Either every event is appended with consecutive sequence numbers or none is.

File format:
  events:
    - type: passive_income
      actor: 7
      payload: {merchandising: 120, streaming: 30}
    - type: operating_costs
      actor: 7
      payload: {totalCost: 40, breakdown: [{facility: gym, cost: 40}]}

Example:
  cyclelog append-batch --partition 12 --file events.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAppendBatch(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.Partition, "partition", 0, "partition id (required)")
	cmd.Flags().StringVar(&opts.File, "file", "", "YAML events file (required)")
	_ = cmd.MarkFlagRequired("partition")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runAppendBatch(ctx context.Context, opts *AppendBatchOptions, cmd *cobra.Command) error {
	f, err := os.Open(opts.File)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open events file", err)
	}
	defer f.Close()

	drafts, err := recorder.DecodeDrafts(f)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid events file", err)
	}

	rt, err := opts.open()
	if err != nil {
		return err
	}
	defer rt.Close()

	events, err := rt.recorder.AppendBatch(ctx, opts.Partition, drafts)
	if err != nil {
		return WrapExitError(ExitCommandError, "batch rejected", err)
	}

	out := opts.output(cmd)
	if out.JSON() {
		return out.Success(BatchResult{PartitionID: opts.Partition, Events: newEventViews(events)})
	}
	w := cmd.OutOrStdout()
	if len(events) == 0 {
		fmt.Fprintln(w, "No events in file.")
		return nil
	}
	fmt.Fprintf(w, "appended %d event(s) to partition %d (sequences %d..%d)\n",
		len(events), opts.Partition, events[0].Sequence, events[len(events)-1].Sequence)
	for _, e := range events {
		out.VerboseLog("  %s (id %s)", e, e.ID)
	}
	return nil
}
