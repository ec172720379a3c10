package service

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	perr "t2/internal/platform/errors"
	"t2/internal/platform/logger"
	"t2/internal/services/t2/domain"
)

// DefaultSinkTimeout bounds a single sink call
const DefaultSinkTimeout = 5 * time.Second

// Dispatcher fans the filtered output of a pass out to every sink. A failing
// (candidate, sink) pair is logged and counted and never stops other deliveries
type Dispatcher struct {
	sinks   []domain.Sink
	timeout time.Duration

	delivered atomic.Uint64
	failures  atomic.Uint64
}

// NewDispatcher builds a dispatcher; timeout <= 0 uses DefaultSinkTimeout
func NewDispatcher(timeout time.Duration, sinks ...domain.Sink) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultSinkTimeout
	}
	out := make([]domain.Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return &Dispatcher{sinks: out, timeout: timeout}
}

// Sinks returns the configured sink names in dispatch order
func (d *Dispatcher) Sinks() []string {
	names := make([]string, len(d.sinks))
	for i, s := range d.sinks {
		names[i] = s.Name()
	}
	return names
}

// Dispatch delivers cs, in order, to every sink. A BatchSink gets the whole output in
// one call and, when that fails, one call per candidate. It returns the number of
// successful deliveries, the number of failures and the joined failure errors
func (d *Dispatcher) Dispatch(ctx context.Context, meta domain.GulpMeta, cs []domain.Candidate) (int, int, error) {
	if len(cs) == 0 || len(d.sinks) == 0 {
		return 0, 0, nil
	}
	log := logger.C(ctx)

	var (
		errs             []error
		delivered, fails int
	)
	for _, s := range d.sinks {
		op := "accept"
		deliver := func(cctx context.Context, c domain.Candidate) error { return s.Accept(cctx, c) }
		if bs, ok := s.(domain.BatchSink); ok {
			err := d.call(ctx, func(cctx context.Context) error { return bs.AcceptBatch(cctx, meta, cs) })
			if err == nil {
				delivered += len(cs)
				continue
			}
			// a batch is all or nothing; retry one by one so a bad row only costs itself
			log.Warn().Err(err).Str("sink", s.Name()).Int("candidates", len(cs)).Msg("sink batch failed, retrying per candidate")
			deliver = func(cctx context.Context, c domain.Candidate) error {
				return bs.AcceptBatch(cctx, meta, []domain.Candidate{c})
			}
			op = "accept_batch"
		}

		for _, c := range cs {
			if err := d.call(ctx, func(cctx context.Context) error { return deliver(cctx, c) }); err != nil {
				err = sinkErr(err, s.Name(), op)
				log.Error().Err(err).Str("sink", s.Name()).
					Float64("snr", c.Significance).Float64("dm", c.DM).Float64("mjds", c.Timestamp).
					Msg("sink delivery failed")
				errs = append(errs, err)
				fails++
				continue
			}
			delivered++
		}
	}

	d.delivered.Add(uint64(delivered))
	d.failures.Add(uint64(fails))
	return delivered, fails, errors.Join(errs...)
}

// Failures returns the cumulative failure count
func (d *Dispatcher) Failures() uint64 { return d.failures.Load() }

// Delivered returns the cumulative delivery count
func (d *Dispatcher) Delivered() uint64 { return d.delivered.Load() }

// call runs fn under the per-call timeout and turns a sink panic into an error
func (d *Dispatcher) call(ctx context.Context, fn func(context.Context) error) (err error) {
	cctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = perr.Newf(perr.ErrorCodePanic, "sink panic: %v", r)
		}
	}()
	return fn(cctx)
}

// sinkErr tags a delivery failure with ErrorCodeSink and the sink name; the cause
// stays reachable through Unwrap
func sinkErr(err error, name, op string) error {
	return perr.WithOp(perr.WithField(perr.Wrap(err, perr.ErrorCodeSink, "sink "+name), name), op)
}
