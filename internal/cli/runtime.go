package cli

import (
	"github.com/roach88/cyclelog/internal/migrate"
	"github.com/roach88/cyclelog/internal/recorder"
	"github.com/roach88/cyclelog/internal/sequence"
	"github.com/roach88/cyclelog/internal/snapshot"
	"github.com/roach88/cyclelog/internal/store"
)

// runtime is the set of components a command works with, all sharing one
// store, logger and metrics registry.
type runtime struct {
	store    *store.Store
	recorder *recorder.Recorder
	builder  *snapshot.Builder
	migrator *migrate.Migrator
}

func (o *RootOptions) open() (*runtime, error) {
	st, err := store.Open(o.Config.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	alloc := sequence.New(st,
		sequence.WithLogger(o.Logger),
		sequence.WithMetrics(o.Metrics),
	)
	rec := recorder.New(st, alloc,
		recorder.WithLogger(o.Logger),
		recorder.WithMetrics(o.Metrics),
	)
	return &runtime{
		store:    st,
		recorder: rec,
		builder: snapshot.New(st,
			snapshot.WithLegacyFold(o.Config.SnapshotIncludeLegacy),
			snapshot.WithLogger(o.Logger),
			snapshot.WithMetrics(o.Metrics),
		),
		migrator: migrate.New(st, rec,
			migrate.WithLogger(o.Logger),
			migrate.WithMetrics(o.Metrics),
		),
	}, nil
}

func (r *runtime) Close() error {
	return r.store.Close()
}
