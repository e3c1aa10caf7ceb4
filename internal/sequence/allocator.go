// Package sequence allocates gapless, unique per-partition sequence numbers.
//
// Allocation and the write that consumes the numbers happen inside one
// per-partition critical section: the cache only advances after the write
// commits, so a failed write never leaves a gap and a retried write never
// reuses a number.
package sequence

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/cyclelog/internal/telemetry"
)

// Source reports the highest persisted sequence number of a partition.
type Source interface {
	MaxSequence(ctx context.Context, partitionID int64) (int64, error)
}

// CommitFunc persists n events numbered first..first+n-1.
// It runs while the partition is locked.
type CommitFunc func(first int64) error

// slot is the per-partition critical section and cache entry.
// lock is a one-slot semaphore so waiters can give up on ctx cancellation.
type slot struct {
	lock   chan struct{}
	refs   int
	last   int64
	loaded bool
}

// Allocator hands out sequence numbers. Different partitions never block
// each other. The zero value is not usable; call New.
type Allocator struct {
	source  Source
	logger  *slog.Logger
	metrics *telemetry.Metrics

	mu    sync.Mutex
	slots map[int64]*slot
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *Allocator) { a.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(a *Allocator) { a.metrics = m }
}

// New creates an allocator reading persisted maxima from source.
func New(source Source, opts ...Option) *Allocator {
	a := &Allocator{
		source: source,
		logger: slog.Default(),
		slots:  make(map[int64]*slot),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.metrics == nil {
		a.metrics = telemetry.NewDiscard()
	}
	return a
}

// Allocate reserves n consecutive sequence numbers for partitionID and calls
// commit with the first of them while holding the partition lock.
//
// When commit succeeds the cache advances by n and first is returned. When
// it fails the cache entry is dropped, so the next call re-reads the
// persisted maximum, and commit's error is returned unchanged.
func (a *Allocator) Allocate(ctx context.Context, partitionID int64, n int, commit CommitFunc) (int64, error) {
	if partitionID <= 0 {
		return 0, fmt.Errorf("allocate: partition id must be positive, got %d", partitionID)
	}
	if n < 1 {
		return 0, fmt.Errorf("allocate: partition %d: count must be at least 1, got %d", partitionID, n)
	}

	s, err := a.acquire(ctx, partitionID)
	if err != nil {
		return 0, fmt.Errorf("allocate: partition %d: %w", partitionID, err)
	}
	defer a.release(partitionID, s)

	if !s.loaded {
		last, err := a.source.MaxSequence(ctx, partitionID)
		if err != nil {
			return 0, fmt.Errorf("allocate: partition %d: %w", partitionID, err)
		}
		s.last, s.loaded = last, true
		a.metrics.SequenceCacheMisses.Inc()
		a.logger.Debug("sequence cache loaded",
			"partition_id", partitionID,
			"last", last,
		)
	}

	first := s.last + 1
	if err := commit(first); err != nil {
		s.last, s.loaded = 0, false
		a.metrics.SequenceCacheClears.Inc()
		a.logger.Warn("sequence commit failed, cache invalidated",
			"partition_id", partitionID,
			"first", first,
			"count", n,
			"error", err,
		)
		return 0, err
	}

	s.last += int64(n)
	return first, nil
}

// ClearCache drops the cached maximum of partitionID. The next allocation
// re-reads it from the source. Waits for any in-flight allocation.
func (a *Allocator) ClearCache(partitionID int64) {
	s, err := a.acquire(context.Background(), partitionID)
	if err != nil {
		return
	}
	wasLoaded := s.loaded
	s.last, s.loaded = 0, false
	a.release(partitionID, s)

	if wasLoaded {
		a.metrics.SequenceCacheClears.Inc()
		a.logger.Debug("sequence cache cleared", "partition_id", partitionID)
	}
}

// Reset clears the cache of every partition.
func (a *Allocator) Reset() {
	a.mu.Lock()
	ids := make([]int64, 0, len(a.slots))
	for id := range a.slots {
		ids = append(ids, id)
	}
	a.mu.Unlock()

	for _, id := range ids {
		a.ClearCache(id)
	}
}

// Cached returns the cached last sequence number of partitionID, if any.
func (a *Allocator) Cached(partitionID int64) (int64, bool) {
	a.mu.Lock()
	_, ok := a.slots[partitionID]
	a.mu.Unlock()
	if !ok {
		return 0, false
	}

	s, err := a.acquire(context.Background(), partitionID)
	if err != nil {
		return 0, false
	}
	defer a.release(partitionID, s)
	return s.last, s.loaded
}

// acquire takes a reference on the partition's slot and locks it.
func (a *Allocator) acquire(ctx context.Context, partitionID int64) (*slot, error) {
	a.mu.Lock()
	s, ok := a.slots[partitionID]
	if !ok {
		s = &slot{lock: make(chan struct{}, 1)}
		a.slots[partitionID] = s
	}
	s.refs++
	a.mu.Unlock()

	select {
	case s.lock <- struct{}{}:
		return s, nil
	case <-ctx.Done():
		a.unref(partitionID, s)
		return nil, ctx.Err()
	}
}

// release unlocks the slot and drops the reference taken by acquire.
func (a *Allocator) release(partitionID int64, s *slot) {
	<-s.lock
	a.unref(partitionID, s)
}

// unref drops a reference. Unreferenced slots without a cached value are
// removed so the map does not grow with every partition ever touched.
// With no references left nobody holds the slot lock, and every earlier
// holder's writes were published through a.mu, so loaded is safe to read.
func (a *Allocator) unref(partitionID int64, s *slot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s.refs--
	if s.refs == 0 && !s.loaded && a.slots[partitionID] == s {
		delete(a.slots, partitionID)
	}
}
