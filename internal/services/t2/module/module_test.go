package module

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"t2/internal/core/gulp"
	"t2/internal/modkit"
	"t2/internal/modkit/repokit"
	"t2/internal/platform/config"
	perr "t2/internal/platform/errors"
	phttp "t2/internal/platform/net/http"
	kit "t2/internal/platform/testkit"
	"t2/internal/services/t2/domain"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestFromConfigDefaults(t *testing.T) {
	o := FromConfig(config.New())
	if o != DefaultOptions() {
		t.Fatalf("FromConfig() = %+v", o)
	}
	if err := o.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestFromConfigEnv(t *testing.T) {
	t.Setenv("CORE_T2_MIN_DM", "50")
	t.Setenv("CORE_T2_MAX_DM", "500")
	t.Setenv("CORE_T2_MIN_SNR", "8.5")
	t.Setenv("CORE_T2_POLICY", "COUNT")
	t.Setenv("CORE_T2_GULP_SIZE", "256")
	t.Setenv("CORE_T2_MIN_PTS", "3")
	t.Setenv("CORE_T2_EPSILON", "7")
	t.Setenv("CORE_T2_FEATURES", "linear")
	t.Setenv("CORE_T2_SINK_TIMEOUT", "250ms")
	t.Setenv("CORE_T2_LOG_SINK", "false")

	o := FromConfig(config.New())
	want := Options{
		MinDM: 50, MaxDM: 500, MinSNR: 8.5,
		Policy: "count", GulpSize: 256,
		MinPts: 3, Epsilon: 7, Features: "linear",
		SinkTimeout: 250 * time.Millisecond,
	}
	if o != want {
		t.Fatalf("FromConfig() = %+v", o)
	}
	if err := o.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name  string
		mut   func(*Options)
		field string
	}{
		{"dm range inverted", func(o *Options) { o.MinDM, o.MaxDM = 3000, 20 }, "CORE_T2_MAX_DM"},
		{"dm range empty", func(o *Options) { o.MinDM, o.MaxDM = 20, 20 }, "CORE_T2_MAX_DM"},
		{"unknown policy", func(o *Options) { o.Policy = "timer" }, "CORE_T2_POLICY"},
		{"count without size", func(o *Options) { o.Policy = "count" }, "gulp_size"},
		{"min pts", func(o *Options) { o.MinPts = 0 }, "CORE_T2_MIN_PTS"},
		{"epsilon", func(o *Options) { o.Epsilon = 0 }, "CORE_T2_EPSILON"},
		{"features", func(o *Options) { o.Features = "sqrt" }, "CORE_T2_FEATURES"},
		{"sink timeout", func(o *Options) { o.SinkTimeout = 0 }, "CORE_T2_SINK_TIMEOUT"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			o := DefaultOptions()
			c.mut(&o)
			err := o.Validate()
			kit.MustCode(t, err, perr.ErrorCodeConfig)
			if e, _ := perr.As(err); e.Field() != c.field {
				t.Fatalf("field = %q, want %q (%v)", e.Field(), c.field, err)
			}
		})
	}
}

type memSink struct {
	mu  sync.Mutex
	got []domain.Candidate
}

func (s *memSink) Name() string { return "mem" }

func (s *memSink) Accept(_ context.Context, c domain.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, c)
	return nil
}

type countObserver struct{ n int }

func (o *countObserver) ObserveGulp(context.Context, domain.Snapshot) error { o.n++; return nil }

type recs struct {
	lines [][]byte
	i     int
}

func (r *recs) Next(context.Context) ([]byte, error) {
	if r.i >= len(r.lines) {
		return nil, io.EOF
	}
	r.i++
	return r.lines[r.i-1], nil
}

func exampleSource() *recs {
	return &recs{lines: [][]byte{
		[]byte("25\t0\t100\t59000.1\t4\t50\t100.5"),
		[]byte("40\t0\t101\t59000.2\t4\t51\t101"),
		[]byte("15\t0\t100\t59000.1\t8\t50\t100.5"),
		[]byte("10\t0\t900\t59001\t4\t50\t100.5"),
		[]byte("5\t0\t101\t59000.2\t4\t50\t100.5"),
		{gulp.Sentinel},
	}}
}

func TestModuleRunsWorkedExample(t *testing.T) {
	t.Setenv("CORE_T2_MIN_PTS", "2")
	t.Setenv("CORE_T2_EPSILON", "3")
	t.Setenv("CORE_T2_LOG_SINK", "false")

	sink := &memSink{}
	obs := &countObserver{}
	m, err := New(modkit.Deps{Cfg: config.New()}, WithExtras(Extras{
		Sinks:     []domain.Sink{sink},
		Observers: []domain.GulpObserver{obs},
	}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if m.Name() != "t2" {
		t.Fatalf("Name() = %q", m.Name())
	}
	if got := m.Pipeline().Dispatcher().Sinks(); len(got) != 1 || got[0] != "mem" {
		t.Fatalf("sinks = %v", got)
	}
	ports, ok := m.Ports().(Ports)
	if !ok || ports.Runner == nil || ports.Pipeline == nil {
		t.Fatalf("ports = %#v", m.Ports())
	}

	if err := ports.Runner.Run(context.Background(), exampleSource()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sink.got) != 1 || sink.got[0].Significance != 40 || sink.got[0].DM != 101 {
		t.Fatalf("sink got %+v", sink.got)
	}
	if obs.n != 1 {
		t.Fatalf("observer calls = %d", obs.n)
	}
	// no backends configured
	if err := m.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	t.Setenv("CORE_T2_MIN_DM", "500")
	t.Setenv("CORE_T2_MAX_DM", "100")
	_, err := New(modkit.Deps{Cfg: config.New()})
	kit.MustCode(t, err, perr.ErrorCodeConfig)
}

func TestNewPanicsOnForeignPorts(t *testing.T) {
	kit.MustPanic(t, func() {
		_, _ = New(modkit.Deps{Cfg: config.New()}, modkit.WithPorts(42))
	})
}

func TestMountRoutes(t *testing.T) {
	m, err := New(modkit.Deps{Cfg: config.New()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mux := chi.NewRouter()
	m.MountRoutes(phttp.AdaptChi(mux))

	for _, path := range []string{"/t2/stats", "/t2/config", "/t2/sinks"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s = %d", path, rec.Code)
		}
		var env phttp.Envelope
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil || env.Data == nil {
			t.Fatalf("GET %s body = %s", path, rec.Body.String())
		}
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/t2/sinks", nil))
	kit.MustContain(t, rec.Body.String(), `"log"`)
}

type recentPG struct {
	limit any
}

func (f *recentPG) Exec(context.Context, string, ...any) (repokit.CommandTag, error) {
	return pgconn.NewCommandTag("INSERT 0 0"), nil
}

func (f *recentPG) Query(_ context.Context, _ string, args ...any) (repokit.Rows, error) {
	f.limit = args[0]
	return &oneRow{}, nil
}

func (f *recentPG) QueryRow(context.Context, string, ...any) repokit.Row { return nil }

func (f *recentPG) Tx(_ context.Context, fn func(repokit.Queryer) error) error { return fn(f) }

type oneRow struct{ done bool }

func (r *oneRow) Next() bool {
	if r.done {
		return false
	}
	r.done = true
	return true
}

func (r *oneRow) Scan(dest ...any) error {
	*(dest[0].(*float64)) = 59000.5
	*(dest[1].(*float64)) = 40
	*(dest[2].(*int)) = 8
	*(dest[3].(*float64)) = 310
	return nil
}

func (r *oneRow) Err() error { return nil }
func (r *oneRow) Close() {}

func TestRecentRoute(t *testing.T) {
	pg := &recentPG{}
	m, err := New(modkit.Deps{Cfg: config.New(), PG: pg})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mux := chi.NewRouter()
	m.MountRoutes(phttp.AdaptChi(mux))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/t2/recent?n=3", nil))
	if rec.Code != http.StatusOK || pg.limit != 3 {
		t.Fatalf("GET /t2/recent = %d limit %v", rec.Code, pg.limit)
	}
	kit.MustContain(t, rec.Body.String(), `"snr":40`)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/t2/recent?n=many", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad n = %d", rec.Code)
	}

	bare, err := New(modkit.Deps{Cfg: config.New()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mux = chi.NewRouter()
	bare.MountRoutes(phttp.AdaptChi(mux))
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/t2/recent", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("recent without postgres = %d", rec.Code)
	}
}

type fakeModule struct{ ports any }

func (fakeModule) MountRoutes(phttp.Router) {}
func (f fakeModule) Ports() any { return f.ports }
func (fakeModule) Name() string { return "fake" }

func TestExtrasFromModules(t *testing.T) {
	sink, obs := &memSink{}, &countObserver{}
	type vizPorts struct {
		Sink     domain.Sink
		Observer domain.GulpObserver
	}
	e := ExtrasFrom(fakeModule{ports: vizPorts{Sink: sink, Observer: obs}}, nil, fakeModule{ports: 7})
	if len(e.Sinks) != 1 || e.Sinks[0] != sink || len(e.Observers) != 1 {
		t.Fatalf("extras = %+v", e)
	}

	m, err := New(modkit.Deps{Cfg: config.New()}, WithModules(fakeModule{ports: vizPorts{Sink: sink, Observer: obs}}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := m.Pipeline().Dispatcher().Sinks(); len(got) != 2 || got[1] != "mem" {
		t.Fatalf("sinks = %v", got)
	}
}

func TestOnPassHook(t *testing.T) {
	t.Setenv("CORE_T2_MIN_PTS", "2")
	t.Setenv("CORE_T2_EPSILON", "3")
	t.Setenv("CORE_T2_LOG_SINK", "false")

	var results []domain.PassResult
	m, err := New(modkit.Deps{Cfg: config.New()}, WithExtras(Extras{
		OnPass: func(res domain.PassResult, err error) {
			if err != nil {
				t.Errorf("pass error: %v", err)
			}
			results = append(results, res)
		},
	}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.Runner().Run(context.Background(), exampleSource()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 1 || results[0].Clusters != 1 || len(results[0].Survivors) != 1 {
		t.Fatalf("results = %+v", results)
	}
}
