// Command t2-replay runs a recorded TSV capture or gulp archive through the t2
// pipeline and prints a per-gulp report
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"t2/internal/adapters/archive"
	"t2/internal/adapters/ingest/tsvfile"
	"t2/internal/core/version"
	"t2/internal/modkit"
	"t2/internal/platform/config"
	perr "t2/internal/platform/errors"
	"t2/internal/platform/logger"
	"t2/internal/platform/store"
	"t2/internal/services/t2/domain"
	t2mod "t2/internal/services/t2/module"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

type passReport struct {
	Meta            domain.GulpMeta    `json:"meta" yaml:"meta"`
	Skipped         bool               `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Clusters        int                `json:"clusters" yaml:"clusters"`
	Noise           int                `json:"noise" yaml:"noise"`
	Representatives int                `json:"representatives" yaml:"representatives"`
	Survived        int                `json:"survived" yaml:"survived"`
	Delivered       int                `json:"delivered" yaml:"delivered"`
	SinkFailures    int                `json:"sink_failures" yaml:"sink_failures"`
	Elapsed         time.Duration      `json:"elapsed" yaml:"elapsed"`
	Survivors       []domain.Candidate `json:"survivors,omitempty" yaml:"survivors,omitempty"`
	Error           string             `json:"error,omitempty" yaml:"error,omitempty"`
}

func newPassReport(res domain.PassResult, err error, withSurvivors bool) passReport {
	pr := passReport{
		Meta:            res.Meta,
		Skipped:         res.Skipped,
		Clusters:        res.Clusters,
		Noise:           res.Noise,
		Representatives: res.Representatives,
		Survived:        len(res.Survivors),
		Delivered:       res.Delivered,
		SinkFailures:    res.SinkFailures,
		Elapsed:         res.Elapsed,
	}
	if withSurvivors {
		pr.Survivors = res.Survivors
	}
	if err != nil {
		pr.Error = err.Error()
	}
	return pr
}

type report struct {
	Version string        `json:"version" yaml:"version"`
	Input   string        `json:"input" yaml:"input"`
	Kind    string        `json:"kind" yaml:"kind"`
	Options t2mod.Options `json:"options" yaml:"options"`
	Passes  []passReport  `json:"passes" yaml:"passes"`
	Stats   domain.Stats  `json:"stats" yaml:"stats"`
}

type source interface {
	domain.Source
	Close() error
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "t2-replay:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	fs := pflag.NewFlagSet("t2-replay", pflag.ContinueOnError)
	envFile := fs.String("env-file", ".env", "dotenv file loaded before reading the environment")
	input := fs.StringP("input", "i", "", "TSV capture (.tsv, .tsv.zst) or gulp archive (.cbor.zst)")
	kind := fs.String("kind", "auto", "input kind: auto, tsv or archive")
	format := fs.StringP("format", "f", "yaml", "report format: yaml or json")
	withSurvivors := fs.Bool("survivors", false, "list surviving candidates per gulp")
	persist := fs.Bool("persist", false, "write survivors to the stores configured in the environment")
	logSink := fs.Bool("log-sink", false, "log every survivor")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *input == "" && fs.NArg() > 0 {
		*input = fs.Arg(0)
	}
	if *input == "" {
		return perr.WithField(perr.Configf("no input given"), "input")
	}
	if *format != "yaml" && *format != "json" {
		return perr.WithField(perr.Configf("unknown report format %q", *format), "format")
	}

	_ = godotenv.Load(*envFile)
	mustSetEnv("CORE_T2_FLUSH_ON_EOF", "true")
	mustSetEnv("CORE_T2_LOG_SINK", fmt.Sprint(*logSink))

	root := config.New()
	l := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := modkit.Deps{Log: *l, Cfg: root}
	if *persist {
		sc := store.ConfigFromEnv(root, version.Service, "replay")
		st, err := store.Open(ctx, sc, store.WithLogger(*l))
		if err != nil {
			return err
		}
		defer func() { _ = st.Close(context.Background()) }()
		deps = deps.FromStore(st)
	}

	k := detectKind(*kind, *input)
	src, err := openSource(k, *input)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	rep := report{Version: version.Info().String(), Input: *input, Kind: k}
	hook := func(res domain.PassResult, err error) {
		rep.Passes = append(rep.Passes, newPassReport(res, err, *withSurvivors))
	}

	t2, err := t2mod.New(deps, t2mod.WithExtras(t2mod.Extras{OnPass: hook}))
	if err != nil {
		return err
	}
	if *persist {
		if err := t2.EnsureSchema(ctx); err != nil {
			return err
		}
	}
	if err := t2.Runner().Run(ctx, src); err != nil {
		return err
	}
	rep.Options = t2.Options()
	rep.Stats = t2.Runner().Stats()
	return writeReport(stdout, *format, rep)
}

func detectKind(kind, path string) string {
	if kind != "auto" {
		return kind
	}
	if strings.HasSuffix(path, ".cbor.zst") {
		return "archive"
	}
	return "tsv"
}

func openSource(kind, path string) (source, error) {
	switch kind {
	case "tsv":
		return tsvfile.Open(path)
	case "archive":
		r, err := archive.Open(path)
		if err != nil {
			return nil, err
		}
		return archive.NewSource(r), nil
	default:
		return nil, perr.WithField(perr.Configf("unknown input kind %q", kind), "kind")
	}
}

func writeReport(w io.Writer, format string, rep report) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rep); err != nil {
		return err
	}
	return enc.Close()
}

func mustSetEnv(key, value string) {
	if err := os.Setenv(key, value); err != nil {
		panic(fmt.Sprintf("setenv %s: %v", key, err))
	}
}
