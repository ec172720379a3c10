package status

import (
	"context"
	"net/http"
	"time"

	"t2/internal/core/version"
	phttp "t2/internal/platform/net/http"
)

// Pinger is satisfied by store seams that expose Ping
type Pinger interface {
	Ping(context.Context) error
}

type metaDeps struct {
	ServiceName string
	StartedAt   time.Time
	PG          any
	CH          any
}

// HealthResponse is the health payload
type HealthResponse struct {
	OK      bool   `json:"ok"`
	Service string `json:"service"`
	Started string `json:"started"`
	Uptime  int64  `json:"uptime"`
}

// ReadyCheck describes a single dependency check
type ReadyCheck struct {
	Name   string `json:"name"`
	Status string `json:"status"` // ok fail skipped unknown
	Error  string `json:"error,omitempty"`
}

// ReadyResponse summarizes readiness
type ReadyResponse struct {
	Status string       `json:"status"` // ok degraded fail
	Checks []ReadyCheck `json:"checks"`
}

func registerMeta(r phttp.Router, d metaDeps) {
	r.Route("/meta", func(m phttp.Router) {
		phttp.GetJSON(m, "/health", func(*http.Request) (any, error) {
			return HealthResponse{
				OK:      true,
				Service: d.ServiceName,
				Started: d.StartedAt.UTC().Format(time.RFC3339),
				Uptime:  int64(time.Since(d.StartedAt) / time.Second),
			}, nil
		})
		phttp.GetJSON(m, "/ready", func(req *http.Request) (any, error) {
			return ready(req.Context(), d), nil
		})
		phttp.GetJSON(m, "/version", func(*http.Request) (any, error) {
			return version.Info(), nil
		})
	})
}

// ready pings each backend; a backend that is not configured counts as skipped
func ready(parent context.Context, d metaDeps) ReadyResponse {
	ctx, cancel := context.WithTimeout(parent, 2*time.Second)
	defer cancel()

	check := func(name string, c any) ReadyCheck {
		if c == nil {
			return ReadyCheck{Name: name, Status: "skipped"}
		}
		p, ok := c.(Pinger)
		if !ok {
			return ReadyCheck{Name: name, Status: "unknown"}
		}
		if err := p.Ping(ctx); err != nil {
			return ReadyCheck{Name: name, Status: "fail", Error: err.Error()}
		}
		return ReadyCheck{Name: name, Status: "ok"}
	}

	checks := []ReadyCheck{check("pg", d.PG), check("ch", d.CH)}
	overall := "ok"
	for _, c := range checks {
		switch c.Status {
		case "fail":
			overall = "fail"
		case "unknown":
			if overall == "ok" {
				overall = "degraded"
			}
		}
	}
	return ReadyResponse{Status: overall, Checks: checks}
}
