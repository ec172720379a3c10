package modkit

import (
	"net/http"
	"slices"

	phttp "t2/internal/platform/net/http"
)

// Middleware wraps a module's routes
type Middleware = func(http.Handler) http.Handler

// Built is the resolved module setup: log name, mount prefix, middlewares and the
// ports handed in by main
type Built struct {
	Name   string
	Prefix string
	Mw     []Middleware
	Ports  any
}

// Option adjusts a Built before the module constructor reads it
type Option func(*Built)

// WithName names the module in logs and routes listings
func WithName(name string) Option { return func(b *Built) { b.Name = name } }

// WithPrefix mounts the module below prefix, e.g. "/t2"
func WithPrefix(prefix string) Option { return func(b *Built) { b.Prefix = prefix } }

// WithMiddlewares appends middleware applied to the module's routes only
func WithMiddlewares(mw ...Middleware) Option {
	return func(b *Built) { b.Mw = append(b.Mw, mw...) }
}

// WithPorts passes a bundle the module type-asserts, like t2's Extras
func WithPorts(p any) Option { return func(b *Built) { b.Ports = p } }

// Build applies opts in order; later options win
func Build(opts ...Option) Built {
	var b Built
	for _, o := range opts {
		o(&b)
	}
	b.Mw = slices.Clone(b.Mw)
	return b
}

// MountUnder mounts routes at prefix with per-module middlewares; an empty prefix
// mounts in a group on r itself
func MountUnder(r phttp.Router, prefix string, mw []Middleware, mount func(phttp.Router)) {
	attach := func(sub phttp.Router) {
		if len(mw) > 0 {
			sub.Use(mw...)
		}
		mount(sub)
	}
	if prefix == "" {
		r.Group(attach)
		return
	}
	r.Route(prefix, attach)
}
