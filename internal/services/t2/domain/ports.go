package domain

import (
	"context"

	"t2/internal/core/gulp"
)

// Sink receives surviving candidates one at a time
type Sink interface {
	Name() string
	Accept(ctx context.Context, c Candidate) error
}

// BatchSink takes the whole filtered output of a gulp in one call; the dispatcher
// prefers AcceptBatch when a sink implements it
type BatchSink interface {
	Sink
	AcceptBatch(ctx context.Context, meta GulpMeta, cs []Candidate) error
}

// GulpObserver receives the pre-filter view of every non-empty pass
type GulpObserver interface {
	ObserveGulp(ctx context.Context, s Snapshot) error
}

// Source yields raw inbound records. It returns io.EOF when a finite source is exhausted.
// Any other error is terminal; sources retry transient read failures themselves
type Source interface {
	Next(ctx context.Context) ([]byte, error)
}

// PipelinePort runs one pass over a drained gulp
type PipelinePort interface {
	Pass(ctx context.Context, g gulp.Gulp) (PassResult, error)
}

// RunnerPort drives the receive, accumulate and pass loop
type RunnerPort interface {
	Run(ctx context.Context, src Source) error
	Stats() Stats
}

// StorageRepo persists survivors in postgres
type StorageRepo interface {
	EnsureSchema(ctx context.Context) error
	InsertCandidates(ctx context.Context, meta GulpMeta, cs []Candidate) (int64, error)
	Count(ctx context.Context) (int64, error)
	Recent(ctx context.Context, limit int) ([]Candidate, error)
}

// ColumnarRepo persists survivors in clickhouse
type ColumnarRepo interface {
	EnsureSchema(ctx context.Context) error
	InsertCandidates(ctx context.Context, meta GulpMeta, cs []Candidate) error
}
