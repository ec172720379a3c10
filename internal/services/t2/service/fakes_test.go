package service

import (
	"context"
	"errors"
	"io"
	"sync"

	"t2/internal/services/t2/domain"
)

type recSink struct {
	name string
	fail func(domain.Candidate) error

	mu  sync.Mutex
	got []domain.Candidate
}

func (s *recSink) Name() string { return s.name }

func (s *recSink) Accept(_ context.Context, c domain.Candidate) error {
	if s.fail != nil {
		if err := s.fail(c); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, c)
	return nil
}

func (s *recSink) snrs() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float64, len(s.got))
	for i, c := range s.got {
		out[i] = c.Significance
	}
	return out
}

type batchSink struct {
	recSink
	batches []domain.GulpMeta
	calls   int
	err     error
}

func (b *batchSink) AcceptBatch(_ context.Context, meta domain.GulpMeta, cs []domain.Candidate) error {
	if b.err != nil {
		return b.err
	}
	b.calls++
	if b.fail != nil {
		for _, c := range cs {
			if err := b.fail(c); err != nil {
				return err
			}
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.batches = append(b.batches, meta)
	b.got = append(b.got, cs...)
	return nil
}

type panicSink struct{}

func (panicSink) Name() string                                { return "panicky" }
func (panicSink) Accept(context.Context, domain.Candidate) error { panic("sink exploded") }

type slowSink struct{}

func (slowSink) Name() string { return "slow" }
func (slowSink) Accept(ctx context.Context, _ domain.Candidate) error {
	<-ctx.Done()
	return ctx.Err()
}

type recObserver struct {
	snaps []domain.Snapshot
	err   error
}

func (o *recObserver) ObserveGulp(_ context.Context, s domain.Snapshot) error {
	o.snaps = append(o.snaps, s)
	return o.err
}

// sliceSource yields recs then err (io.EOF when nil)
type sliceSource struct {
	recs [][]byte
	err  error
	i    int
}

func (s *sliceSource) Next(ctx context.Context) ([]byte, error) {
	if s.i >= len(s.recs) {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	r := s.recs[s.i]
	s.i++
	return r, nil
}

var errSinkDown = errors.New("sink down")

func cand(snr, dm float64, timeIdx, box, dmIdx int) domain.Candidate {
	return domain.Candidate{
		Significance: snr,
		TimeIndex:    timeIdx,
		Timestamp:    59000 + float64(timeIdx)/86400,
		Boxcar:       box,
		DMIndex:      dmIdx,
		DM:           dm,
	}
}

func rec(c domain.Candidate) []byte { return []byte(c.Format()) }

// workedExample is the five-candidate gulp from the pipeline docs: the first, second,
// third and fifth cluster together, the fourth is noise
func workedExample() []domain.Candidate {
	return []domain.Candidate{
		cand(25, 100.5, 100, 4, 50),
		cand(40, 101.0, 101, 4, 51),
		cand(15, 100.5, 100, 8, 50),
		cand(10, 100.5, 900, 4, 50),
		cand(5, 100.5, 101, 4, 50),
	}
}
