package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"t2/internal/core/gulp"
	perr "t2/internal/platform/errors"
	"t2/internal/platform/logger"
	"t2/internal/services/t2/domain"
)

// PassHook is called after every pass, successful or not
type PassHook func(res domain.PassResult, err error)

// RunnerConfig tunes the receive loop
type RunnerConfig struct {
	// FlushOnEOF runs a final pass over a partial gulp when a finite source ends
	FlushOnEOF bool
	// OnPass observes pass results (replay reports, tests)
	OnPass PassHook
}

// Runner is the single logical worker: it reads records, feeds the accumulator
// and runs each closed gulp to completion before reading again
type Runner struct {
	acc  *gulp.Accumulator
	pipe domain.PipelinePort
	cfg  RunnerConfig

	gulps, cands, rejected     atomic.Uint64
	clusters, survivors, fails atomic.Uint64
	clusterErrs, discarded     atomic.Uint64
	lastSeq                    atomic.Uint64

	mu       sync.Mutex
	lastPass time.Time
}

var _ domain.RunnerPort = (*Runner)(nil)

// NewRunner wires an accumulator to a pipeline
func NewRunner(acc *gulp.Accumulator, pipe domain.PipelinePort, cfg RunnerConfig) *Runner {
	return &Runner{acc: acc, pipe: pipe, cfg: cfg}
}

// Run blocks until ctx is cancelled or src is exhausted. Cancellation never interrupts
// a pass in flight; a partial gulp left open at teardown is discarded
func (r *Runner) Run(ctx context.Context, src domain.Source) error {
	log := logger.Named("runner")
	log.Info().Str("policy", string(r.acc.Policy())).Msg("runner started")

	for {
		rec, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				if r.cfg.FlushOnEOF && r.acc.Len() > 0 {
					r.pass(ctx)
				}
				r.teardown(log)
				log.Info().Msg("source exhausted")
				return nil
			}
			if ctx.Err() != nil {
				r.teardown(log)
				log.Info().Msg("runner stopped")
				return nil
			}
			r.teardown(log)
			return perr.Wrap(err, perr.ErrorCodeUnavailable, "source read")
		}

		closed, err := r.acc.Offer(rec)
		if err != nil {
			r.rejected.Add(1)
			ev := log.Warn().Err(err).Str("record", truncate(rec, 160))
			if e, ok := perr.As(err); ok && e.Field() != "" {
				ev = ev.Str("field", e.Field())
			}
			ev.Msg("record skipped")
			continue
		}
		if closed {
			r.pass(ctx)
		}
	}
}

// pass drains the accumulator and runs the pipeline on a context that ignores the
// receive loop's cancellation
func (r *Runner) pass(parent context.Context) {
	g := r.acc.Drain()
	defer r.acc.Release()

	ctx := logger.WithGulp(context.WithoutCancel(parent), g.ID.String(), g.Seq)
	log := logger.C(ctx)

	res, err := r.pipe.Pass(ctx, g)

	r.gulps.Add(1)
	r.lastSeq.Store(g.Seq)
	r.cands.Add(uint64(g.Len()))
	r.clusters.Add(uint64(res.Clusters))
	r.survivors.Add(uint64(len(res.Survivors)))
	r.fails.Add(uint64(res.SinkFailures))
	r.mu.Lock()
	r.lastPass = time.Now()
	r.mu.Unlock()

	switch {
	case err != nil && perr.IsCode(err, perr.ErrorCodeClustering):
		r.clusterErrs.Add(1)
		log.Error().Err(err).Int("candidates", g.Len()).Msg("pass abandoned")
	case err != nil:
		log.Error().Err(err).Int("survivors", len(res.Survivors)).Int("sink_failures", res.SinkFailures).
			Msg("pass finished with sink failures")
	case res.Skipped:
		log.Debug().Msg("empty gulp")
	default:
		log.Info().
			Int("candidates", g.Len()).
			Int("rejected", g.Rejected).
			Int("clusters", res.Clusters).
			Int("noise", res.Noise).
			Int("survivors", len(res.Survivors)).
			Dur("elapsed", res.Elapsed).
			Msg("pass done")
	}
	if r.cfg.OnPass != nil {
		r.cfg.OnPass(res, err)
	}
}

func (r *Runner) teardown(log *logger.Logger) {
	if n := r.acc.Discard(); n > 0 {
		r.discarded.Add(uint64(n))
		log.Warn().Int("candidates", n).Msg("partial gulp discarded")
	}
}

// Stats returns a consistent-enough snapshot of the counters
func (r *Runner) Stats() domain.Stats {
	r.mu.Lock()
	last := r.lastPass
	r.mu.Unlock()
	return domain.Stats{
		State:            r.acc.State().String(),
		Gulps:            r.gulps.Load(),
		Candidates:       r.cands.Load(),
		Rejected:         r.rejected.Load(),
		Clusters:         r.clusters.Load(),
		Survivors:        r.survivors.Load(),
		SinkFailures:     r.fails.Load(),
		ClusteringErrors: r.clusterErrs.Load(),
		Discarded:        r.discarded.Load(),
		LastGulpSeq:      r.lastSeq.Load(),
		LastPassAt:       last,
	}
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
