// Package service implements the t2 clustering pipeline: pass, dispatch and the
// receive loop that drives them
package service

import (
	"context"
	"time"

	"t2/internal/core/dbscan"
	"t2/internal/core/features"
	"t2/internal/core/gulp"
	"t2/internal/core/rangefilter"
	"t2/internal/core/represent"
	perr "t2/internal/platform/errors"
	"t2/internal/platform/logger"
	"t2/internal/services/t2/domain"
)

// Config is the immutable pipeline configuration
type Config struct {
	Features features.Variant
	Cluster  dbscan.Params
	Bounds   rangefilter.Bounds
}

// Pipeline runs feature mapping, clustering, representative selection, range
// filtering and sink dispatch over one drained gulp
type Pipeline struct {
	mapper    features.Mapper
	engine    *dbscan.Engine
	bounds    rangefilter.Bounds
	disp      *Dispatcher
	observers []domain.GulpObserver
}

var _ domain.PipelinePort = (*Pipeline)(nil)

// NewPipeline validates cfg and assembles a pipeline
func NewPipeline(cfg Config, disp *Dispatcher, observers ...domain.GulpObserver) (*Pipeline, error) {
	if err := cfg.Bounds.Validate(); err != nil {
		return nil, err
	}
	if cfg.Cluster.Width == 0 {
		cfg.Cluster.Width = features.Width
	}
	eng, err := dbscan.New(cfg.Cluster)
	if err != nil {
		return nil, err
	}
	if disp == nil {
		disp = NewDispatcher(0)
	}
	obs := make([]domain.GulpObserver, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			obs = append(obs, o)
		}
	}
	return &Pipeline{
		mapper:    features.NewMapper(cfg.Features),
		engine:    eng,
		bounds:    cfg.Bounds,
		disp:      disp,
		observers: obs,
	}, nil
}

// Dispatcher returns the sink dispatcher
func (p *Pipeline) Dispatcher() *Dispatcher { return p.disp }

// Pass processes g to completion. An empty gulp short-circuits without clustering or
// sink calls. A clustering failure abandons the pass with an ErrorCodeClustering error.
// Sink failures do not stop the pass; they come back joined in the error with a
// populated result
func (p *Pipeline) Pass(ctx context.Context, g gulp.Gulp) (domain.PassResult, error) {
	start := time.Now()
	res := domain.PassResult{Meta: domain.MetaOf(g)}
	if g.Empty() {
		res.Skipped = true
		res.Elapsed = time.Since(start)
		return res, nil
	}
	log := logger.C(ctx)

	labels, err := p.engine.Cluster(p.mapper.Map(g.Candidates))
	if err != nil {
		return res, perr.WithOp(err, "cluster")
	}
	reps, err := represent.Select(g.Candidates, labels)
	if err != nil {
		return res, perr.WithOp(err, "select")
	}
	survivors := p.bounds.Apply(reps)

	res.Clusters = labels.Clusters()
	res.Noise = labels.NoiseCount()
	res.Representatives = len(reps)
	res.Survivors = survivors

	snap := domain.Snapshot{
		Meta:            res.Meta,
		Candidates:      g.Candidates,
		Labels:          labels,
		Representatives: reps,
		Survivors:       survivors,
	}
	for _, o := range p.observers {
		if oerr := o.ObserveGulp(ctx, snap); oerr != nil {
			log.Warn().Err(oerr).Msg("gulp observer failed")
		}
	}

	delivered, failed, derr := p.disp.Dispatch(ctx, res.Meta, survivors)
	res.Delivered = delivered
	res.SinkFailures = failed
	res.Elapsed = time.Since(start)
	return res, derr
}
