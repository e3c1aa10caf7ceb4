// Package migrate backfills the event log from the legacy_matches table and
// verifies the result.
//
// Migration is idempotent: a legacy row whose id already appears as
// metadata.legacyMatchId on any event is skipped, so the migrator can be
// rerun after a partial failure. Converted events are appended through the
// shared recorder and take their sequence numbers from the same allocator as
// live traffic.
package migrate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/roach88/cyclelog/internal/event"
	"github.com/roach88/cyclelog/internal/legacy"
	"github.com/roach88/cyclelog/internal/recorder"
	"github.com/roach88/cyclelog/internal/store"
	"github.com/roach88/cyclelog/internal/telemetry"
)

// DefaultBatchSize is the keyset page size when Options.BatchSize is zero.
const DefaultBatchSize = 100

// Store is the persistence the migrator needs.
// Implemented by *store.Store.
type Store interface {
	ListLegacyHeaders(ctx context.Context) ([]legacy.Header, error)
	ListLegacyMatchesAfter(ctx context.Context, after *store.LegacyCursor, limit int) ([]legacy.Match, error)
	ConvertedLegacyIDs(ctx context.Context, ids []int64) (map[int64]bool, error)
	CountConversions(ctx context.Context) (store.ConversionCounts, error)
	MissingConversions(ctx context.Context) ([]int64, error)
	OrphanConversions(ctx context.Context) ([]int64, error)
	DuplicateConversions(ctx context.Context) ([]store.DuplicateConversion, error)
}

// Appender appends a batch of drafts to one partition atomically.
// Implemented by *recorder.Recorder.
type Appender interface {
	AppendBatch(ctx context.Context, partitionID int64, drafts []recorder.Draft) ([]event.Event, error)
}

// Options controls a migration run.
type Options struct {
	// DryRun converts and validates every record but appends nothing.
	DryRun bool

	// BatchSize is the number of legacy rows read per page.
	BatchSize int

	// Verbose logs every record at info level instead of debug.
	Verbose bool
}

// RecordError is a per-record failure. It does not stop the run.
type RecordError struct {
	LegacyID int64  `json:"legacyId"`
	Message  string `json:"message"`
}

// Result summarizes a migration run. In a dry run Migrated counts the
// records that would have been converted.
type Result struct {
	Total      int                `json:"total"`
	Migrated   int                `json:"migrated"`
	Skipped    int                `json:"skipped"`
	Errors     []RecordError      `json:"errors"`
	Partitions []legacy.DayBucket `json:"partitions"`
	DryRun     bool               `json:"dryRun"`
}

// Migrator converts legacy rows to match_completed events.
type Migrator struct {
	store   Store
	app     Appender
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// Option configures a Migrator.
type Option func(*Migrator)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Migrator) { m.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(mt *telemetry.Metrics) Option {
	return func(m *Migrator) { m.metrics = mt }
}

// New creates a Migrator reading from s and appending through app.
func New(s Store, app Appender, opts ...Option) *Migrator {
	m := &Migrator{
		store:  s,
		app:    app,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.metrics == nil {
		m.metrics = telemetry.NewDiscard()
	}
	return m
}

// Migrate converts every unconverted legacy row, oldest first, in keyset
// pages of opts.BatchSize. Rows are assigned to synthetic partitions by the
// UTC day they were created on.
//
// Record-level failures are collected in Result.Errors. The returned error
// is non-nil only when the run itself cannot continue (reads fail or ctx is
// cancelled).
func (m *Migrator) Migrate(ctx context.Context, opts Options) (Result, error) {
	batch := opts.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	level := slog.LevelDebug
	if opts.Verbose {
		level = slog.LevelInfo
	}

	headers, err := m.store.ListLegacyHeaders(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("migrate: %w", err)
	}
	assigned, buckets := legacy.AssignPartitions(headers)

	res := Result{
		Errors:     []RecordError{},
		Partitions: buckets,
		DryRun:     opts.DryRun,
	}
	if res.Partitions == nil {
		res.Partitions = []legacy.DayBucket{}
	}
	m.logger.Info("migration started",
		"records", len(headers),
		"partitions", len(buckets),
		"batch_size", batch,
		"dry_run", opts.DryRun,
	)

	var cursor *store.LegacyCursor
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("migrate: %w", err)
		}

		records, err := m.store.ListLegacyMatchesAfter(ctx, cursor, batch)
		if err != nil {
			return res, fmt.Errorf("migrate: page %d: %w", page, err)
		}
		if len(records) == 0 {
			break
		}

		if err := m.migratePage(ctx, records, assigned, opts.DryRun, level, &res); err != nil {
			return res, fmt.Errorf("migrate: page %d: %w", page, err)
		}

		last := records[len(records)-1]
		cursor = &store.LegacyCursor{CreatedAt: last.CreatedAt, ID: last.ID}
		if len(records) < batch {
			break
		}
	}

	m.logger.Info("migration finished",
		"total", res.Total,
		"migrated", res.Migrated,
		"skipped", res.Skipped,
		"errors", len(res.Errors),
		"dry_run", opts.DryRun,
	)
	return res, nil
}

// pending is a converted record waiting for its partition's batch append.
type pending struct {
	legacyID int64
	draft    recorder.Draft
}

func (m *Migrator) migratePage(ctx context.Context, records []legacy.Match, assigned map[int64]int64, dryRun bool, level slog.Level, res *Result) error {
	res.Total += len(records)

	ids := make([]int64, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	converted, err := m.store.ConvertedLegacyIDs(ctx, ids)
	if err != nil {
		return err
	}

	byPartition := make(map[int64][]pending)
	for _, r := range records {
		if converted[r.ID] {
			res.Skipped++
			m.metrics.MigrationRecords.WithLabelValues("skipped").Inc()
			m.logger.Info("duplicate conversion skipped", "legacy_id", r.ID)
			continue
		}

		partition, ok := assigned[r.ID]
		if !ok {
			m.fail(res, r.ID, "no partition assigned; record was inserted during the run")
			continue
		}
		e, err := legacy.ToEvent(r, partition)
		if err != nil {
			m.fail(res, r.ID, err.Error())
			continue
		}
		byPartition[partition] = append(byPartition[partition], pending{
			legacyID: r.ID,
			draft: recorder.Draft{
				Type:    e.Type,
				Payload: e.Payload,
				Options: recorder.Options{
					MatchID:   e.MatchID,
					Metadata:  e.Metadata,
					Timestamp: e.Timestamp,
				},
			},
		})
		m.logger.Log(ctx, level, "legacy record converted",
			"legacy_id", r.ID,
			"partition_id", partition,
		)
	}

	partitions := make([]int64, 0, len(byPartition))
	for p := range byPartition {
		partitions = append(partitions, p)
	}
	sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })

	for _, p := range partitions {
		group := byPartition[p]
		if dryRun {
			res.Migrated += len(group)
			continue
		}

		drafts := make([]recorder.Draft, len(group))
		for i, pd := range group {
			drafts[i] = pd.draft
		}
		if _, err := m.app.AppendBatch(ctx, p, drafts); err != nil {
			if ctx.Err() != nil {
				return err
			}
			for _, pd := range group {
				m.fail(res, pd.legacyID, err.Error())
			}
			continue
		}
		res.Migrated += len(group)
		m.metrics.MigrationRecords.WithLabelValues("migrated").Add(float64(len(group)))
	}
	return nil
}

func (m *Migrator) fail(res *Result, legacyID int64, msg string) {
	res.Errors = append(res.Errors, RecordError{LegacyID: legacyID, Message: msg})
	m.metrics.MigrationRecords.WithLabelValues("failed").Inc()
	m.logger.Warn("legacy record not migrated", "legacy_id", legacyID, "error", msg)
}
