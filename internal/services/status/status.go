// Package status composes the status server: common middleware, meta endpoints and
// the routes of every module
package status

import (
	"time"

	"t2/internal/modkit"
	"t2/internal/modkit/module"
	phttp "t2/internal/platform/net/http"
	"t2/internal/platform/net/middleware"
)

// Options are the status server options
type Options struct {
	ServiceName    string
	StartedAt      time.Time
	PG, CH         any // pinged by /meta/ready when they implement Ping
	Modules        []module.Module
	EnableProfiler bool
	SlowRequest    time.Duration
}

// Mount mounts meta endpoints, the profiler and module routes onto r
func Mount(r phttp.Router, opt Options) {
	if opt.StartedAt.IsZero() {
		opt.StartedAt = time.Now()
	}
	stack := append(middleware.Defaults(), middleware.AccessLogZerolog(middleware.AccessLogOptions{
		Slow:  opt.SlowRequest,
		Quiet: []string{"/meta/health", "/meta/ready"},
	}))

	modkit.MountUnder(r, "", stack, func(api phttp.Router) {
		registerMeta(api, metaDeps{
			ServiceName: opt.ServiceName,
			StartedAt:   opt.StartedAt,
			PG:          opt.PG,
			CH:          opt.CH,
		})
		phttp.MountProfiler(api, "/debug", opt.EnableProfiler)
		for _, m := range opt.Modules {
			m.MountRoutes(api)
		}
	})
}
