// Package module defines what the status server needs from a module (t2, viz) and
// pulls typed ports out of a module's bundle
package module

import (
	phttp "t2/internal/platform/net/http"
)

// Module mounts its routes on the status server and exposes a ports bundle that
// other modules pick sinks and observers from
type Module interface {
	MountRoutes(r phttp.Router)
	Ports() any
	Name() string
}
