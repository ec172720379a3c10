package pg

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"t2/internal/platform/testkit"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

func TestOpenParseError(t *testing.T) {
	if _, err := Open(context.Background(), Config{URL: "://bad"}, nil, nil); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestOpenNewPoolError(t *testing.T) {
	testkit.Serial(t)
	testkit.Swap(t, &newPool, func(context.Context, *pgxpool.Config) (*pgxpool.Pool, error) {
		return nil, errors.New("boom")
	})
	_, err := Open(context.Background(), Config{URL: "postgres://u:p@h:5432/db?sslmode=disable"}, nil, nil)
	if err == nil {
		t.Fatalf("expected newPool error")
	}
}

func TestOpenAppliesConfig(t *testing.T) {
	testkit.Serial(t)

	var seen *pgxpool.Config
	testkit.Swap(t, &newPool, func(_ context.Context, pc *pgxpool.Config) (*pgxpool.Pool, error) {
		seen = pc
		return &pgxpool.Pool{}, nil // zero pool; never closed
	})

	cfg := Config{URL: "postgres://u:p@h:5432/db?sslmode=disable", MaxConns: 7, SlowMs: 123, AppName: "t2-cluster"}
	p, err := Open(context.Background(), cfg, nil, func(pc *pgxpool.Config) {
		pc.MaxConnIdleTime = 42 * time.Second
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if seen.MaxConns != 7 || seen.MaxConnIdleTime != 42*time.Second {
		t.Fatalf("pool config not applied: %+v", seen)
	}
	if got := seen.ConnConfig.RuntimeParams["application_name"]; got != "t2-cluster" {
		t.Fatalf("application_name = %q", got)
	}
	if p.SlowMs != 123 {
		t.Fatalf("SlowMs = %d", p.SlowMs)
	}
}

func TestNilSafety(t *testing.T) {
	var p *PG
	p.Close()
	if err := p.Ping(context.Background()); err == nil {
		t.Fatalf("nil Ping should fail")
	}
	(&PG{}).Close()
}

func TestTracer(t *testing.T) {
	var buf bytes.Buffer
	tr := Tracer(zerolog.New(&buf).Level(zerolog.ErrorLevel))

	tr.OnQuery(context.Background(), QueryEvent{
		SQL:  "INSERT INTO t2_cands\n\t(mjds, snr)\n VALUES ($1,$2)",
		Args: []any{1.0, 2.0},
		Slow: true,
	})
	out := buf.String()
	testkit.MustContain(t, out, `"sql":"INSERT INTO t2_cands (mjds, snr) VALUES ($1,$2)"`)
	testkit.MustContain(t, out, `"nargs":2`)
	testkit.MustContain(t, out, `"level":"warn"`)

	buf.Reset()
	tr.OnQuery(context.Background(), QueryEvent{SQL: "select 1", Err: errors.New("nope")})
	testkit.MustContain(t, buf.String(), `"error":"nope"`)
}
