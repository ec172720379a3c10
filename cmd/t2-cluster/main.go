// Command t2-cluster receives heimdall candidates over UDP, deduplicates each gulp
// with DBSCAN and hands the survivors to the configured sinks
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"t2/internal/adapters/archive"
	"t2/internal/adapters/ingest/udp"
	"t2/internal/core/version"
	"t2/internal/modkit"
	mmodule "t2/internal/modkit/module"
	"t2/internal/modkit/repokit"
	"t2/internal/platform/config"
	"t2/internal/platform/logger"
	phttp "t2/internal/platform/net/http"
	"t2/internal/platform/store"
	"t2/internal/services/status"
	t2mod "t2/internal/services/t2/module"
	vizmod "t2/internal/services/viz/module"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "t2-cluster:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet("t2-cluster", pflag.ContinueOnError)
	envFile := fs.String("env-file", ".env", "dotenv file loaded before reading the environment")
	flags := envFlags(fs)
	showVersion := fs.Bool("version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *showVersion {
		fmt.Println(version.Info().String())
		return nil
	}

	// flags beat the environment, the environment beats the dotenv file
	_ = godotenv.Load(*envFile)
	applyFlags(flags)

	root := config.New()
	l := logger.Get()
	l.Info().Str("version", version.Info().String()).Msg("starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sc := store.ConfigFromEnv(root, version.Service, "cluster")
	sc.Tag = version.Info().Version
	st, err := store.Open(ctx, sc, store.WithLogger(*l))
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	if err := repokit.Ready(ctx, st); err != nil {
		return err
	}
	deps := modkit.Deps{Log: *l, Cfg: root}.FromStore(st)

	viz := vizmod.New(deps)
	extras := t2mod.ExtrasFrom(viz)
	if path := root.MayString("ARCHIVE_PATH", ""); path != "" {
		w, err := archive.Create(path)
		if err != nil {
			return err
		}
		defer func() {
			if err := w.Close(); err != nil {
				l.Error().Err(err).Msg("failed to close archive")
			}
		}()
		extras.Observers = append(extras.Observers, w)
	}

	t2, err := t2mod.New(deps, t2mod.WithExtras(extras))
	if err != nil {
		return err
	}
	if err := t2.EnsureSchema(ctx); err != nil {
		return err
	}

	srv := phttp.NewServer(root)
	status.Mount(srv.Router(), status.Options{
		ServiceName:    version.Service,
		StartedAt:      time.Now(),
		PG:             st.PG,
		CH:             st.CH,
		Modules:        []mmodule.Module{t2, viz},
		EnableProfiler: root.MayBool("STATUS_PROFILER", false),
		SlowRequest:    root.MayDuration("STATUS_SLOW_REQUEST", time.Second),
	})
	srvErr := make(chan error, 1)
	go func() { srvErr <- srv.Run(ctx) }()

	src, err := udp.Listen(ctx, udp.FromConfig(root))
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	if err := t2.Runner().Run(ctx, src); err != nil {
		stop()
		return errors.Join(err, <-srvErr)
	}
	stop()
	received, oversized := src.Stats()
	stats := t2.Runner().Stats()
	l.Info().
		Uint64("datagrams", received).
		Uint64("oversized", oversized).
		Uint64("read_errors", src.ReadErrors()).
		Uint64("gulps", stats.Gulps).
		Uint64("survivors", stats.Survivors).
		Msg("shutdown")
	return <-srvErr
}

// envFlags registers one flag per environment key it overrides
func envFlags(fs *pflag.FlagSet) map[string]*string {
	return map[string]*string{
		"INGEST_UDP_ADDR":          fs.String("listen", "", "UDP listen address (INGEST_UDP_ADDR)"),
		"STATUS_ADDR":              fs.String("status-addr", "", "status server address (STATUS_ADDR)"),
		"ARCHIVE_PATH":             fs.String("archive", "", "append every gulp snapshot to this file (ARCHIVE_PATH)"),
		"CORE_T2_POLICY":           fs.String("policy", "", "gulp close policy: sentinel or count (CORE_T2_POLICY)"),
		"CORE_T2_GULP_SIZE":        fs.String("gulp-size", "", "records per gulp under the count policy (CORE_T2_GULP_SIZE)"),
		"CORE_T2_MIN_SNR":          fs.String("min-snr", "", "minimum significance (CORE_T2_MIN_SNR)"),
		"CORE_T2_MIN_DM":           fs.String("min-dm", "", "lower DM bound, exclusive (CORE_T2_MIN_DM)"),
		"CORE_T2_MAX_DM":           fs.String("max-dm", "", "upper DM bound, exclusive (CORE_T2_MAX_DM)"),
		"CORE_T2_MIN_PTS":          fs.String("min-pts", "", "DBSCAN minimum points per cluster (CORE_T2_MIN_PTS)"),
		"CORE_T2_EPSILON":          fs.String("epsilon", "", "DBSCAN neighborhood radius in feature space (CORE_T2_EPSILON)"),
		"CORE_T2_FEATURES":         fs.String("features", "", "boxcar scaling: log2 or linear (CORE_T2_FEATURES)"),
		"SERVICE_PGSQL_DBURL":      fs.String("url", "", "postgres URL survivors are written to (SERVICE_PGSQL_DBURL)"),
		"SERVICE_CLICKHOUSE_DBURL": fs.String("clickhouse-url", "", "clickhouse URL for the analytics table (SERVICE_CLICKHOUSE_DBURL)"),
		"LOG_LEVEL":                fs.String("log-level", "", "trace, debug, info, warn or error (LOG_LEVEL)"),
		"STATUS_PROFILER":          fs.String("profiler", "", "mount pprof under /debug (STATUS_PROFILER)"),
		"INGEST_UDP_READ_BUFFER":   fs.String("read-buffer", "", "socket receive buffer in bytes (INGEST_UDP_READ_BUFFER)"),
	}
}

// applyFlags exports every flag that was given into its environment key
func applyFlags(flags map[string]*string) {
	for key, v := range flags {
		if *v != "" {
			mustSetEnv(key, *v)
		}
	}
}

func mustSetEnv(key, value string) {
	if err := os.Setenv(key, value); err != nil {
		panic(fmt.Sprintf("setenv %s: %v", key, err))
	}
}
