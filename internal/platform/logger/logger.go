// Package logger owns the process-wide zerolog logger. Pass-scoped lines carry the
// gulp id and sequence through WithGulp and C
package logger

import (
	"context"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"t2/internal/platform/config/raw"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

// Logger is the project-wide logging type
type Logger = zerolog.Logger

// Options configures the root logger
type Options struct {
	Level        string // trace|debug|info|warn|error|fatal|panic, default info
	Format       string // console or json
	Service      string
	Component    string
	Writer       io.Writer // default stderr
	WithCaller   bool
	SampleEvery  int               // keep 1 in N lines, 0 or 1 keeps all
	StaticFields map[string]string // e.g. beam or host
}

// FromEnv reads LOG_* through the raw reader, which cannot log itself
func FromEnv() Options {
	env := raw.New().Prefix("LOG_")
	return Options{
		Level:       strings.ToLower(env.Get("LEVEL", "info")),
		Format:      strings.ToLower(env.Get("FORMAT", "console")),
		Service:     env.Get("SERVICE", "t2"),
		Component:   env.Get("COMPONENT", ""),
		WithCaller:  env.GetBool("CALLER", false),
		SampleEvery: env.GetInt("SAMPLE_EVERY", 0),
	}
}

var (
	initOnce sync.Once
	root     atomic.Pointer[Logger]
)

// Init builds the root logger from opt. Only the first call has an effect
func Init(opt Options) {
	initOnce.Do(func() {
		zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
		zerolog.TimeFieldFormat = time.RFC3339Nano
		l := build(opt)
		root.Store(&l)
	})
}

// Get returns the root logger, initialising it from the environment on first use
func Get() *Logger {
	if l := root.Load(); l != nil {
		return l
	}
	Init(FromEnv())
	return root.Load()
}

func build(opt Options) Logger {
	out := opt.Writer
	if out == nil {
		out = os.Stderr
	}
	if opt.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	c := zerolog.New(out).Level(parseLevel(opt.Level)).With().Timestamp()
	if bi, ok := debug.ReadBuildInfo(); ok {
		c = c.Str("go_version", bi.GoVersion)
	}
	if opt.Service != "" {
		c = c.Str("service", opt.Service)
	}
	if opt.Component != "" {
		c = c.Str("component", opt.Component)
	}
	for k, v := range opt.StaticFields {
		c = c.Str(k, v)
	}
	if opt.WithCaller {
		c = c.Caller()
	}
	l := c.Logger()
	if opt.SampleEvery > 1 {
		l = l.Sample(&zerolog.BasicSampler{N: uint32(opt.SampleEvery)})
	}
	return l
}

// parseLevel accepts zerolog names plus "warning"; anything unknown is info
func parseLevel(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || s == "" || lvl == zerolog.NoLevel || lvl == zerolog.Disabled {
		return zerolog.InfoLevel
	}
	return lvl
}

type ctxKey uint8

const (
	keyGulpID ctxKey = iota + 1
	keyGulpSeq
)

// WithGulp tags ctx with the gulp a pass is working on; zero values are not stored
func WithGulp(ctx context.Context, gulpID string, seq uint64) context.Context {
	if gulpID != "" {
		ctx = context.WithValue(ctx, keyGulpID, gulpID)
	}
	if seq > 0 {
		ctx = context.WithValue(ctx, keyGulpSeq, seq)
	}
	return ctx
}

// C returns the root logger with gulp_id and gulp_seq from ctx, when present
func C(ctx context.Context) *Logger {
	c := Get().With()
	if id, ok := ctx.Value(keyGulpID).(string); ok {
		c = c.Str("gulp_id", id)
	}
	if seq, ok := ctx.Value(keyGulpSeq).(uint64); ok {
		c = c.Uint64("gulp_seq", seq)
	}
	l := c.Logger()
	return &l
}

// Named returns a child of the root logger with a component field
func Named(component string) *Logger {
	if component == "" {
		return Get()
	}
	l := Get().With().Str("component", component).Logger()
	return &l
}
