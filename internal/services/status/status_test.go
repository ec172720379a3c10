package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"t2/internal/modkit/module"
	phttp "t2/internal/platform/net/http"

	"github.com/go-chi/chi/v5"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type echoModule struct{}

func (echoModule) Name() string { return "echo" }
func (echoModule) Ports() any   { return nil }
func (echoModule) MountRoutes(r phttp.Router) {
	phttp.GetJSON(r, "/echo", func(*http.Request) (any, error) { return "hi", nil })
}

func get(t *testing.T, h http.Handler, path string) (int, phttp.Envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var env phttp.Envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec.Code, env
}

func TestMountMetaAndModules(t *testing.T) {
	mux := chi.NewRouter()
	Mount(phttp.AdaptChi(mux), Options{
		ServiceName: "t2-cluster",
		StartedAt:   time.Now().Add(-time.Minute),
		PG:          pinger{},
		Modules:     []module.Module{echoModule{}},
	})

	code, env := get(t, mux, "/meta/health")
	if code != 200 || env.Data.(map[string]any)["service"] != "t2-cluster" {
		t.Fatalf("health = %d %+v", code, env)
	}
	code, env = get(t, mux, "/meta/version")
	if code != 200 || env.Data.(map[string]any)["service"] == "" {
		t.Fatalf("version = %d %+v", code, env)
	}
	code, env = get(t, mux, "/echo")
	if code != 200 || env.Data != "hi" {
		t.Fatalf("echo = %d %+v", code, env)
	}
	if code, _ = get(t, mux, "/debug/pprof/"); code != http.StatusNotFound {
		t.Fatalf("profiler should be off, got %d", code)
	}
}

func TestReady(t *testing.T) {
	cases := []struct {
		name   string
		pg, ch any
		want   string
	}{
		{"none configured", nil, nil, "ok"},
		{"all ok", pinger{}, pinger{}, "ok"},
		{"pg down", pinger{err: errors.New("refused")}, nil, "fail"},
		{"no ping", struct{}{}, pinger{}, "degraded"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := ready(context.Background(), metaDeps{PG: c.pg, CH: c.ch})
			if got.Status != c.want || len(got.Checks) != 2 {
				t.Fatalf("ready = %+v", got)
			}
		})
	}
}
