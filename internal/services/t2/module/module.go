// Package module wires the t2 clustering pipeline from config and core deps
package module

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"t2/internal/core/gulp"
	"t2/internal/modkit"
	"t2/internal/modkit/repokit"
	perr "t2/internal/platform/errors"
	phttp "t2/internal/platform/net/http"
	"t2/internal/services/t2/domain"
	"t2/internal/services/t2/repo"
	"t2/internal/services/t2/service"
)

// Ports exposed by the t2 module
type Ports struct {
	Runner   domain.RunnerPort
	Pipeline domain.PipelinePort
}

// Module implements modkit.Module
type Module struct {
	deps   modkit.Deps
	opts   Options
	built  modkit.Built
	runner *service.Runner
	pipe   *service.Pipeline
	ports  Ports
}

// New builds the accumulator, dispatcher, pipeline and runner. Sinks are chosen from
// deps: postgres when PG is set, clickhouse when CH is set, the log sink when enabled,
// plus any Extras passed via WithExtras or WithModules
func New(deps modkit.Deps, opts ...modkit.Option) (*Module, error) {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("t2"),
		modkit.WithPrefix("/t2"),
	}, opts...)...)

	var extras Extras
	if b.Ports != nil {
		e, ok := b.Ports.(Extras)
		if !ok {
			panic("t2 module: expected WithPorts(t2/module.Extras)")
		}
		extras = e
	}

	o := FromConfig(deps.Cfg)
	if err := o.Validate(); err != nil {
		return nil, perr.WithOp(err, "t2 config")
	}
	gc, err := o.gulpConfig()
	if err != nil {
		return nil, err
	}
	pc, err := o.pipelineConfig()
	if err != nil {
		return nil, err
	}

	acc, err := gulp.New(gc)
	if err != nil {
		return nil, err
	}

	var sinks []domain.Sink
	if deps.PG != nil {
		sinks = append(sinks, service.NewPGSink(deps.PG, repo.NewPG()))
	}
	if deps.CH != nil {
		sinks = append(sinks, service.NewCHSink(repo.NewCH(deps.CH)))
	}
	if o.LogSink {
		sinks = append(sinks, service.NewLogSink())
	}
	sinks = append(sinks, extras.Sinks...)

	disp := service.NewDispatcher(o.SinkTimeout, sinks...)
	pipe, err := service.NewPipeline(pc, disp, extras.Observers...)
	if err != nil {
		return nil, err
	}
	runner := service.NewRunner(acc, pipe, service.RunnerConfig{FlushOnEOF: o.FlushOnEOF, OnPass: extras.OnPass})

	m := &Module{deps: deps, opts: o, built: b, runner: runner, pipe: pipe}
	m.ports = Ports{Runner: runner, Pipeline: pipe}
	deps.Log.Info().
		Str("policy", o.Policy).
		Int("min_pts", o.MinPts).
		Float64("epsilon", o.Epsilon).
		Strs("sinks", disp.Sinks()).
		Msg("t2 module ready")
	return m, nil
}

// Name satisfies modkit.Module
func (m *Module) Name() string {
	if m.built.Name != "" {
		return m.built.Name
	}
	return "t2"
}

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }

// Options returns the validated configuration in effect
func (m *Module) Options() Options { return m.opts }

// Runner returns the receive loop; use with a Source from the ingest adapters
func (m *Module) Runner() *service.Runner { return m.runner }

// Pipeline returns the pass pipeline
func (m *Module) Pipeline() *service.Pipeline { return m.pipe }

// EnsureSchema bootstraps the candidate tables of every configured store
func (m *Module) EnsureSchema(ctx context.Context) error {
	var errs []error
	if m.deps.PG != nil {
		err := repokit.WithTx(ctx, m.deps.PG, func(q repokit.Queryer) error {
			return repokit.MustBind(repo.NewPG(), q).EnsureSchema(ctx)
		})
		errs = append(errs, err)
	}
	if m.deps.CH != nil {
		errs = append(errs, repo.NewCH(repokit.CH(ctx, m.deps.CH)).EnsureSchema(ctx))
	}
	return errors.Join(errs...)
}

const defaultRecent = 50

// recent serves the newest persisted survivors; ?n= bounds the count
func (m *Module) recent(r *http.Request) (any, error) {
	n := defaultRecent
	if v := r.URL.Query().Get("n"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return nil, perr.InvalidArgf("n must be an integer, got %q", v)
		}
		n = p
	}
	return repokit.MustBind(repo.NewPG(), m.deps.PG).Recent(r.Context(), n)
}

type sinkStats struct {
	Sinks     []string `json:"sinks"`
	Delivered uint64   `json:"delivered"`
	Failures  uint64   `json:"failures"`
}

// MountRoutes satisfies modkit.Module
func (m *Module) MountRoutes(r phttp.Router) {
	modkit.MountUnder(r, m.built.Prefix, m.built.Mw, func(sub phttp.Router) {
		phttp.GetJSON(sub, "/stats", func(*http.Request) (any, error) {
			return m.runner.Stats(), nil
		})
		phttp.GetJSON(sub, "/config", func(*http.Request) (any, error) {
			return m.opts, nil
		})
		phttp.GetJSON(sub, "/sinks", func(*http.Request) (any, error) {
			d := m.pipe.Dispatcher()
			return sinkStats{Sinks: d.Sinks(), Delivered: d.Delivered(), Failures: d.Failures()}, nil
		})
		if m.deps.PG != nil {
			phttp.GetJSON(sub, "/recent", m.recent)
		}
	})
}
