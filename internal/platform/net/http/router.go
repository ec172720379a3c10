package http

import (
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// Handler is the plain handler func modules register
type Handler = func(http.ResponseWriter, *http.Request)

// Router is what modules mount their routes on; the status server backs it with chi
type Router interface {
	Get(path string, h Handler)
	Head(path string, h Handler)
	Post(path string, h Handler)
	Handle(path string, h http.Handler)

	Use(mw ...func(http.Handler) http.Handler)
	Group(fn func(Router))
	Route(pattern string, fn func(Router))

	// Mux exposes the underlying handler for tests and the server
	Mux() http.Handler
}

// MountProfiler serves pprof below prefix (prefix+"/pprof/heap" and friends) when enabled
func MountProfiler(r Router, prefix string, enabled bool) {
	if !enabled {
		return
	}
	prefix = strings.TrimRight(prefix, "/")
	h := http.StripPrefix(prefix, chimw.Profiler())
	r.Handle(prefix, h)
	r.Handle(prefix+"/*", h)
}
