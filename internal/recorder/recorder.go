// Package recorder appends validated events to the log.
//
// Every append runs in three phases: validate (no lock held, no sequence
// consumed), allocate and write (inside the partition's critical section),
// then bookkeeping (metrics, cache invalidation after a cycle_complete).
package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/cyclelog/internal/event"
	"github.com/roach88/cyclelog/internal/sequence"
	"github.com/roach88/cyclelog/internal/telemetry"
)

// Writer persists a batch of numbered events atomically.
type Writer interface {
	InsertEvents(ctx context.Context, events []event.Event) error
}

// Options carries the optional parts of an append request.
type Options struct {
	ActorID  int64
	EntityID int64
	MatchID  int64
	Metadata event.Metadata

	// Timestamp defaults to the recorder clock when zero.
	Timestamp time.Time
}

// Draft is one event of a batch append.
type Draft struct {
	Type    event.Type
	Payload event.Payload
	Options
}

// Recorder validates and appends events.
//
// Thread-safety: safe for concurrent use. Appends to the same partition are
// serialized by the allocator; appends to different partitions are not.
type Recorder struct {
	writer  Writer
	alloc   *sequence.Allocator
	ids     IDGenerator
	now     func() time.Time
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithIDGenerator sets the event id generator. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(r *Recorder) { r.ids = g }
}

// WithClock sets the clock used for default timestamps. Default: time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Recorder) { r.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(r *Recorder) { r.metrics = m }
}

// New creates a Recorder writing through w with sequence numbers from alloc.
func New(w Writer, alloc *sequence.Allocator, opts ...Option) *Recorder {
	r := &Recorder{
		writer: w,
		alloc:  alloc,
		ids:    UUIDv7Generator{},
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.metrics == nil {
		r.metrics = telemetry.NewDiscard()
	}
	return r
}

// Append validates one event and durably appends it to partitionID.
//
// Validation failures return *event.ValidationError and consume no sequence
// number. On success the stored event, with its id and sequence number, is
// returned.
func (r *Recorder) Append(ctx context.Context, partitionID int64, t event.Type, payload event.Payload, opts Options) (event.Event, error) {
	events, err := r.append(ctx, partitionID, []Draft{{Type: t, Payload: payload, Options: opts}}, false)
	if err != nil {
		return event.Event{}, err
	}
	return events[0], nil
}

// AppendBatch validates every draft before persisting any, then appends all
// of them to partitionID in one transaction with consecutive sequence
// numbers. The first invalid draft aborts the call; its index is reported on
// the *event.ValidationError.
func (r *Recorder) AppendBatch(ctx context.Context, partitionID int64, drafts []Draft) ([]event.Event, error) {
	if len(drafts) == 0 {
		return []event.Event{}, nil
	}
	return r.append(ctx, partitionID, drafts, true)
}

func (r *Recorder) append(ctx context.Context, partitionID int64, drafts []Draft, batched bool) ([]event.Event, error) {
	events := make([]event.Event, len(drafts))
	for i, d := range drafts {
		e, err := event.ValidateForAppend(r.draftEvent(partitionID, d))
		if err != nil {
			if ve, ok := event.AsValidation(err); ok {
				ve.Batched, ve.Index = batched, i
				r.metrics.AppendRejected.WithLabelValues(string(ve.Code)).Inc()
				r.logger.Debug("append rejected",
					"partition_id", partitionID,
					"event_type", d.Type,
					"code", ve.Code,
					"field", ve.Field,
				)
				return nil, ve
			}
			return nil, fmt.Errorf("append %s to partition %d: %w", d.Type, partitionID, err)
		}
		e.ID = r.ids.Generate()
		events[i] = e
	}

	start := time.Now()
	first, err := r.alloc.Allocate(ctx, partitionID, len(events), func(first int64) error {
		for i := range events {
			events[i].Sequence = first + int64(i)
		}
		return r.writer.InsertEvents(ctx, events)
	})
	r.metrics.AppendDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		r.metrics.AppendRejected.WithLabelValues("write").Inc()
		r.logger.Error("append failed",
			"partition_id", partitionID,
			"count", len(events),
			"error", err,
		)
		return nil, fmt.Errorf("append %d event(s) to partition %d: %w", len(events), partitionID, err)
	}

	completed := false
	for _, e := range events {
		r.metrics.EventsAppended.WithLabelValues(string(e.Type)).Inc()
		if e.Type == event.TypeCycleComplete {
			completed = true
		}
	}
	r.logger.Debug("events appended",
		"partition_id", partitionID,
		"first_sequence", first,
		"count", len(events),
	)

	if completed {
		r.alloc.ClearCache(partitionID)
		r.logger.Info("partition completed",
			"partition_id", partitionID,
			"last_sequence", events[len(events)-1].Sequence,
		)
	}
	return events, nil
}

func (r *Recorder) draftEvent(partitionID int64, d Draft) event.Event {
	ts := d.Timestamp
	if ts.IsZero() {
		ts = r.now()
	}
	return event.Event{
		PartitionID: partitionID,
		Type:        d.Type,
		Timestamp:   ts,
		ActorID:     d.ActorID,
		EntityID:    d.EntityID,
		MatchID:     d.MatchID,
		Payload:     d.Payload,
		Metadata:    d.Metadata,
	}
}
