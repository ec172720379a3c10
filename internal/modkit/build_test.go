package modkit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	phttp "t2/internal/platform/net/http"
	"t2/internal/platform/store"

	"github.com/go-chi/chi/v5"
)

func tagHeader(v string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("X-Module", v)
			next.ServeHTTP(w, r)
		})
	}
}

func TestBuildLaterOptionsWin(t *testing.T) {
	b := Build(WithName("t2"), WithPrefix("/t2"), WithName("viz"), WithMiddlewares(tagHeader("a")), WithPorts(7))
	if b.Name != "viz" || b.Prefix != "/t2" || len(b.Mw) != 1 || b.Ports != 7 {
		t.Fatalf("Build = %+v", b)
	}
}

func TestMountUnder(t *testing.T) {
	mux := chi.NewRouter()
	r := phttp.AdaptChi(mux)
	ok := func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }
	MountUnder(r, "/viz", []Middleware{tagHeader("viz")}, func(sub phttp.Router) { sub.Get("/points", ok) })
	MountUnder(r, "", nil, func(sub phttp.Router) { sub.Get("/meta/health", ok) })

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/viz/points", nil))
	if rec.Code != http.StatusNoContent || rec.Header().Get("X-Module") != "viz" {
		t.Fatalf("/viz/points = %d %v", rec.Code, rec.Header())
	}
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/meta/health", nil))
	if rec.Code != http.StatusNoContent || rec.Header().Get("X-Module") != "" {
		t.Fatalf("/meta/health = %d %v", rec.Code, rec.Header())
	}
}

func TestDepsFromStore(t *testing.T) {
	d := Deps{}.FromStore(nil)
	if d.PG != nil || d.CH != nil {
		t.Fatalf("nil store should leave seams empty")
	}
	d = Deps{}.FromStore(&store.Store{})
	if d.PG != nil || d.CH != nil {
		t.Fatalf("empty store should leave seams empty")
	}
}
