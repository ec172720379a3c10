package service

import (
	"context"
	"testing"

	"t2/internal/core/dbscan"
	"t2/internal/core/features"
	"t2/internal/core/gulp"
	"t2/internal/core/rangefilter"
	perr "t2/internal/platform/errors"
	kit "t2/internal/platform/testkit"
	"t2/internal/services/t2/domain"

	"github.com/google/uuid"
)

func examplePipeline(t *testing.T, sinks []domain.Sink, obs ...domain.GulpObserver) *Pipeline {
	t.Helper()
	p, err := NewPipeline(Config{
		Features: features.Log2,
		Cluster:  dbscan.Params{MinPts: 2, Epsilon: 3},
		Bounds:   rangefilter.Default(),
	}, NewDispatcher(0, sinks...), obs...)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return p
}

func TestPassWorkedExample(t *testing.T) {
	sink := &recSink{name: "rec"}
	obs := &recObserver{}
	p := examplePipeline(t, []domain.Sink{sink}, obs)

	g := gulp.Gulp{ID: uuid.New(), Seq: 1, Candidates: workedExample()}
	res, err := p.Pass(context.Background(), g)
	if err != nil {
		t.Fatalf("Pass: %v", err)
	}
	if res.Clusters != 1 || res.Noise != 1 || res.Representatives != 1 {
		t.Fatalf("result = %+v", res)
	}
	if got := sink.snrs(); len(got) != 1 || got[0] != 40 {
		t.Fatalf("sink got %v", got)
	}
	if res.Delivered != 1 || res.Meta.ID != g.ID || res.Meta.Size != 5 {
		t.Fatalf("result meta = %+v", res)
	}

	if len(obs.snaps) != 1 {
		t.Fatalf("observer calls = %d", len(obs.snaps))
	}
	snap := obs.snaps[0]
	want := []int{0, 0, 0, dbscan.Noise, 0}
	for i, l := range snap.Labels {
		if l != want[i] {
			t.Fatalf("labels = %v", snap.Labels)
		}
	}
	if len(snap.Candidates) != 5 || len(snap.Survivors) != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestPassRepresentativeBelowThreshold(t *testing.T) {
	sink := &recSink{name: "rec"}
	p := examplePipeline(t, []domain.Sink{sink})
	cs := workedExample()
	cs[1].Significance = 19
	res, err := p.Pass(context.Background(), gulp.Gulp{Candidates: cs})
	if err != nil {
		t.Fatalf("Pass: %v", err)
	}
	// 25 is now the max snr, and it still clears min_snr
	if got := sink.snrs(); len(got) != 1 || got[0] != 25 || len(res.Survivors) != 1 {
		t.Fatalf("sink got %v", got)
	}

	cs[0].DM = 3000
	cs[0].Significance = 99
	_, err = p.Pass(context.Background(), gulp.Gulp{Candidates: cs})
	if err != nil {
		t.Fatalf("Pass: %v", err)
	}
	if got := sink.snrs(); len(got) != 1 {
		t.Fatalf("dm at max must be filtered, sink got %v", got)
	}
}

func TestPassEmptyGulpCallsNoSink(t *testing.T) {
	sink := &recSink{name: "rec"}
	obs := &recObserver{}
	p := examplePipeline(t, []domain.Sink{sink}, obs)
	res, err := p.Pass(context.Background(), gulp.Gulp{Seq: 3})
	if err != nil || !res.Skipped {
		t.Fatalf("empty pass = %+v %v", res, err)
	}
	if len(sink.got) != 0 || len(obs.snaps) != 0 {
		t.Fatalf("empty gulp reached sink or observer")
	}
}

func TestPassAllNoise(t *testing.T) {
	sink := &recSink{name: "rec"}
	p := examplePipeline(t, []domain.Sink{sink})
	cs := []domain.Candidate{cand(90, 100, 0, 1, 0), cand(90, 100, 100, 1, 100), cand(90, 100, 200, 1, 200)}
	res, err := p.Pass(context.Background(), gulp.Gulp{Candidates: cs})
	if err != nil || res.Clusters != 0 || res.Noise != 3 || len(res.Survivors) != 0 {
		t.Fatalf("all noise = %+v %v", res, err)
	}
	if len(sink.got) != 0 {
		t.Fatalf("noise must never reach sinks")
	}
}

func TestPassClusteringErrorAbandons(t *testing.T) {
	sink := &recSink{name: "rec"}
	p := examplePipeline(t, []domain.Sink{sink})
	cs := workedExample()
	cs[0].TimeIndex = 0
	cs[0].Boxcar = 0 // log2(0) is not finite
	_, err := p.Pass(context.Background(), gulp.Gulp{Candidates: cs})
	kit.MustCode(t, err, perr.ErrorCodeClustering)
	if e, _ := perr.As(err); e.Op() != "cluster" {
		t.Fatalf("op = %q", e.Op())
	}
	if len(sink.got) != 0 {
		t.Fatalf("abandoned pass reached sinks")
	}
}

func TestPassSinkFailureStillReports(t *testing.T) {
	bad := &recSink{name: "bad", fail: func(domain.Candidate) error { return errSinkDown }}
	good := &recSink{name: "good"}
	obs := &recObserver{err: errSinkDown}
	p := examplePipeline(t, []domain.Sink{bad, good}, obs)
	res, err := p.Pass(context.Background(), gulp.Gulp{Candidates: workedExample()})
	kit.MustCode(t, err, perr.ErrorCodeSink)
	if res.SinkFailures != 1 || res.Delivered != 1 || len(good.got) != 1 {
		t.Fatalf("result = %+v", res)
	}
}

func TestPassDeterministic(t *testing.T) {
	p := examplePipeline(t, nil)
	first, err := p.Pass(context.Background(), gulp.Gulp{Candidates: workedExample()})
	if err != nil {
		t.Fatalf("Pass: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := p.Pass(context.Background(), gulp.Gulp{Candidates: workedExample()})
		if err != nil || len(again.Survivors) != len(first.Survivors) || again.Survivors[0] != first.Survivors[0] {
			t.Fatalf("run %d differs: %+v vs %+v", i, again.Survivors, first.Survivors)
		}
	}
}

func TestNewPipelineRejectsBadConfig(t *testing.T) {
	_, err := NewPipeline(Config{
		Cluster: dbscan.Params{MinPts: 5, Epsilon: 14},
		Bounds:  rangefilter.Bounds{MinSNR: 20, MinDM: 3000, MaxDM: 20},
	}, nil)
	kit.MustCode(t, err, perr.ErrorCodeConfig)

	_, err = NewPipeline(Config{
		Cluster: dbscan.Params{MinPts: 0, Epsilon: 14},
		Bounds:  rangefilter.Default(),
	}, nil)
	kit.MustCode(t, err, perr.ErrorCodeConfig)

	p, err := NewPipeline(Config{Cluster: dbscan.Params{MinPts: 5, Epsilon: 14}, Bounds: rangefilter.Default()}, nil)
	if err != nil || p.Dispatcher() == nil {
		t.Fatalf("nil dispatcher should default: %v", err)
	}
}
