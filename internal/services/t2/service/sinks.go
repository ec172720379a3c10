package service

import (
	"context"

	"t2/internal/modkit/repokit"
	"t2/internal/platform/logger"
	"t2/internal/services/t2/domain"
)

// LogSink writes every survivor to the structured log
type LogSink struct{}

// NewLogSink returns a sink logging under the "candidates" component
func NewLogSink() *LogSink { return &LogSink{} }

// Name implements domain.Sink
func (*LogSink) Name() string { return "log" }

// Accept implements domain.Sink
func (*LogSink) Accept(ctx context.Context, c domain.Candidate) error {
	l := logger.C(ctx).With().Str("component", "candidates").Logger()
	l.Info().
		Float64("mjds", c.Timestamp).
		Float64("snr", c.Significance).
		Int("ibox", c.Boxcar).
		Float64("dm", c.DM).
		Msg("candidate")
	return nil
}

// PGSink persists survivors into t2_cands
type PGSink struct {
	tx   repokit.TxRunner
	bind repokit.Binder[domain.StorageRepo]
}

var _ domain.BatchSink = (*PGSink)(nil)

// NewPGSink binds the storage repo to the given transaction runner
func NewPGSink(tx repokit.TxRunner, b repokit.Binder[domain.StorageRepo]) *PGSink {
	return &PGSink{tx: tx, bind: b}
}

// Name implements domain.Sink
func (*PGSink) Name() string { return "postgres" }

// Accept inserts a single candidate outside any gulp
func (s *PGSink) Accept(ctx context.Context, c domain.Candidate) error {
	_, err := repokit.MustBind(s.bind, s.tx).InsertCandidates(ctx, domain.GulpMeta{}, []domain.Candidate{c})
	return err
}

// AcceptBatch inserts the filtered output of a gulp in one transaction
func (s *PGSink) AcceptBatch(ctx context.Context, meta domain.GulpMeta, cs []domain.Candidate) error {
	return s.tx.Tx(ctx, func(q repokit.Queryer) error {
		_, err := repokit.MustBind(s.bind, q).InsertCandidates(ctx, meta, cs)
		return err
	})
}

// CHSink appends survivors to the clickhouse analytics table
type CHSink struct {
	repo domain.ColumnarRepo
}

var _ domain.BatchSink = (*CHSink)(nil)

// NewCHSink wraps a columnar repo
func NewCHSink(r domain.ColumnarRepo) *CHSink { return &CHSink{repo: r} }

// Name implements domain.Sink
func (*CHSink) Name() string { return "clickhouse" }

// Accept implements domain.Sink
func (s *CHSink) Accept(ctx context.Context, c domain.Candidate) error {
	return s.repo.InsertCandidates(ctx, domain.GulpMeta{}, []domain.Candidate{c})
}

// AcceptBatch implements domain.BatchSink
func (s *CHSink) AcceptBatch(ctx context.Context, meta domain.GulpMeta, cs []domain.Candidate) error {
	return s.repo.InsertCandidates(ctx, meta, cs)
}
