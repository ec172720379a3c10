// Package module serves the visualization ring over the status server
package module

import (
	"net/http"

	"t2/internal/modkit"
	"t2/internal/platform/config"
	perr "t2/internal/platform/errors"
	phttp "t2/internal/platform/net/http"
	"t2/internal/platform/net/middleware"
	"t2/internal/services/t2/domain"
	"t2/internal/services/viz/service"
)

// Options configures the visualization module
type Options struct {
	RingSize    int
	CORSOrigins []string
}

// FromConfig reads VIZ_RING_SIZE and STATUS_CORS_ORIGINS
func FromConfig(cfg config.Conf) Options {
	return Options{
		RingSize:    cfg.Prefix("VIZ_").MayInt("RING_SIZE", service.DefaultRingSize),
		CORSOrigins: cfg.Prefix("STATUS_").MayCSV("CORS_ORIGINS", []string{"*"}),
	}
}

// Ports exposed by the viz module; the ring is both sink and gulp observer
type Ports struct {
	Sink     domain.Sink
	Observer domain.GulpObserver
}

// Module implements modkit.Module
type Module struct {
	built modkit.Built
	ring  *service.Ring
	ports Ports
}

// New builds the ring and mounts it under /viz with CORS for browser dashboards
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	o := FromConfig(deps.Cfg)
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("viz"),
		modkit.WithPrefix("/viz"),
		modkit.WithMiddlewares(middleware.CORS(middleware.CORSOptions{AllowedOrigins: o.CORSOrigins, MaxAge: 300})),
	}, opts...)...)

	ring := service.NewRing(o.RingSize)
	return &Module{
		built: b,
		ring:  ring,
		ports: Ports{Sink: ring, Observer: ring},
	}
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return m.built.Name }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }

// Ring returns the underlying buffer
func (m *Module) Ring() *service.Ring { return m.ring }

type pointsView struct {
	Total  uint64          `json:"total"`
	Cap    int             `json:"cap"`
	Points []service.Point `json:"points"`
}

// MountRoutes satisfies modkit.Module
func (m *Module) MountRoutes(r phttp.Router) {
	modkit.MountUnder(r, m.built.Prefix, m.built.Mw, func(sub phttp.Router) {
		phttp.GetJSON(sub, "/points", func(*http.Request) (any, error) {
			return pointsView{Total: m.ring.Total(), Cap: m.ring.Cap(), Points: m.ring.Points()}, nil
		})
		phttp.GetJSON(sub, "/gulp", func(*http.Request) (any, error) {
			v := m.ring.Latest()
			if v == nil {
				return nil, perr.NotFoundf("no gulp processed yet")
			}
			return v, nil
		})
	})
}
