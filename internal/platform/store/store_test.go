package store

import (
	"context"
	"errors"
	"testing"

	"t2/internal/platform/config"
	perr "t2/internal/platform/errors"
	"t2/internal/platform/logger"
	chx "t2/internal/platform/store/ch"
	"t2/internal/platform/store/pg"
	"t2/internal/platform/testkit"

	"github.com/jackc/pgx/v5/pgxpool"
)

type fakePinger struct {
	err    error
	closed bool
}

func (f *fakePinger) Ping(context.Context) error { return f.err }

type fakePG struct {
	fakePinger
	RowQuerier
}

func (f *fakePG) Tx(context.Context, func(RowQuerier) error) error { return nil }
func (f *fakePG) Close() error                                      { f.closed = true; return nil }

type fakeCH struct {
	fakePinger
	closeErr error
}

func (f *fakeCH) Exec(context.Context, string, ...any) error { return nil }
func (f *fakeCH) InsertRows(context.Context, string, []string, [][]any) error {
	return nil
}
func (f *fakeCH) Close() error { f.closed = true; return f.closeErr }

func TestOpenNoBackends(t *testing.T) {
	s, err := Open(context.Background(), Config{}, WithLogger(*logger.Get()))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.PG != nil || s.CH != nil {
		t.Fatalf("disabled backends should stay nil")
	}
	if err := s.Guard(context.Background()); err != nil {
		t.Fatalf("Guard on empty store: %v", err)
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close on empty store: %v", err)
	}
}

func TestOpenOptionError(t *testing.T) {
	bad := func(*Store) error { return errors.New("nope") }
	_, err := Open(context.Background(), Config{}, bad)
	testkit.MustCode(t, err, perr.ErrorCodeConfig)
}

func TestOpenPGError(t *testing.T) {
	testkit.Serial(t)
	testkit.Swap(t, &openPool, func(context.Context, pg.Config, pg.QueryTracer, func(*pgxpool.Config)) (*pg.PG, error) {
		return nil, errors.New("no pool")
	})
	_, err := Open(context.Background(), Config{PG: PGConfig{Enabled: true, URL: "postgres://x"}})
	testkit.MustCode(t, err, perr.ErrorCodeUnavailable)
	if e, _ := perr.As(err); e.Field() != "SERVICE_PGSQL_DBURL" {
		t.Fatalf("field = %q", e.Field())
	}
}

func TestOpenCHError(t *testing.T) {
	testkit.Serial(t)
	testkit.Swap(t, &openCHCli, func(context.Context, chx.Config) (*chx.CH, error) {
		return nil, errors.New("no ch")
	})
	_, err := Open(context.Background(), Config{CH: CHConfig{Enabled: true, URL: "clickhouse://x"}})
	testkit.MustCode(t, err, perr.ErrorCodeUnavailable)
}

func TestGuardJoinsFailures(t *testing.T) {
	s := &Store{
		PG: &fakePG{fakePinger: fakePinger{err: errors.New("pg down")}},
		CH: &fakeCH{fakePinger: fakePinger{err: errors.New("ch down")}},
	}
	err := s.Guard(context.Background())
	if err == nil {
		t.Fatalf("expected guard error")
	}
	testkit.MustContain(t, err.Error(), "pg: pg down")
	testkit.MustContain(t, err.Error(), "ch: ch down")

	var nilStore *Store
	if nilStore.Guard(context.Background()) == nil {
		t.Fatalf("nil store should fail Guard")
	}
}

func TestCloseClosesAll(t *testing.T) {
	p := &fakePG{}
	c := &fakeCH{closeErr: errors.New("ch close")}
	s := &Store{PG: p, CH: c}
	if err := s.Close(context.Background()); err == nil {
		t.Fatalf("expected close error to surface")
	}
	if !p.closed || !c.closed {
		t.Fatalf("backends not closed: pg=%v ch=%v", p.closed, c.closed)
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("SERVICE_PGSQL_DBURL", "postgres://u:p@localhost/t2")
	t.Setenv("SERVICE_PGSQL_MAX_CONNS", "9")
	t.Setenv("SERVICE_PGSQL_LOG_SQL", "true")
	t.Setenv("SERVICE_CLICKHOUSE_DBURL", "")

	cfg := ConfigFromEnv(config.New(), "t2-cluster", "cluster")
	if !cfg.PG.Enabled || cfg.PG.MaxConns != 9 || !cfg.PG.LogSQL || cfg.PG.SlowQueryMs != 250 {
		t.Fatalf("pg config = %+v", cfg.PG)
	}
	if cfg.CH.Enabled {
		t.Fatalf("clickhouse should be disabled without DBURL")
	}
	if cfg.AppName != "t2-cluster" || cfg.Role != "cluster" {
		t.Fatalf("names = %q %q", cfg.AppName, cfg.Role)
	}
}
