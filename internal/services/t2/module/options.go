package module

import (
	"strings"
	"time"

	"t2/internal/core/dbscan"
	"t2/internal/core/features"
	"t2/internal/core/gulp"
	"t2/internal/core/rangefilter"
	"t2/internal/platform/config"
	"t2/internal/platform/validate"
	"t2/internal/services/t2/service"
)

// Options holds the pipeline tunables read from CORE_T2_*
type Options struct {
	MinDM  float64 `env:"CORE_T2_MIN_DM" json:"min_dm" yaml:"min_dm"`
	MaxDM  float64 `env:"CORE_T2_MAX_DM" json:"max_dm" yaml:"max_dm" validate:"gtfield=MinDM"`
	MinSNR float64 `env:"CORE_T2_MIN_SNR" json:"min_snr" yaml:"min_snr"`

	Policy   string `env:"CORE_T2_POLICY" json:"policy" yaml:"policy" validate:"oneof=sentinel count"`
	GulpSize int    `env:"CORE_T2_GULP_SIZE" json:"gulp_size" yaml:"gulp_size" validate:"min=0"`

	MinPts   int     `env:"CORE_T2_MIN_PTS" json:"min_pts" yaml:"min_pts" validate:"min=1"`
	Epsilon  float64 `env:"CORE_T2_EPSILON" json:"epsilon" yaml:"epsilon" validate:"gt=0"`
	Features string  `env:"CORE_T2_FEATURES" json:"features" yaml:"features" validate:"oneof=log2 linear"`

	SinkTimeout time.Duration `env:"CORE_T2_SINK_TIMEOUT" json:"sink_timeout" yaml:"sink_timeout" validate:"gt=0"`
	LogSink     bool          `env:"CORE_T2_LOG_SINK" json:"log_sink" yaml:"log_sink"`
	FlushOnEOF  bool          `env:"CORE_T2_FLUSH_ON_EOF" json:"flush_on_eof" yaml:"flush_on_eof"`
}

// DefaultOptions mirrors the defaults FromConfig falls back to
func DefaultOptions() Options {
	return Options{
		MinDM:       rangefilter.DefaultMinDM,
		MaxDM:       rangefilter.DefaultMaxDM,
		MinSNR:      rangefilter.DefaultMinSNR,
		Policy:      string(gulp.PolicySentinel),
		MinPts:      dbscan.DefaultMinPts,
		Epsilon:     dbscan.DefaultEpsilon,
		Features:    string(features.Log2),
		SinkTimeout: service.DefaultSinkTimeout,
		LogSink:     true,
	}
}

// FromConfig extracts Options from the given config.Conf
func FromConfig(cfg config.Conf) Options {
	d := DefaultOptions()
	c := cfg.Prefix("CORE_T2_")
	return Options{
		MinDM:       c.MayFloat64("MIN_DM", d.MinDM),
		MaxDM:       c.MayFloat64("MAX_DM", d.MaxDM),
		MinSNR:      c.MayFloat64("MIN_SNR", d.MinSNR),
		Policy:      strings.ToLower(c.MayString("POLICY", d.Policy)),
		GulpSize:    c.MayInt("GULP_SIZE", d.GulpSize),
		MinPts:      c.MayInt("MIN_PTS", d.MinPts),
		Epsilon:     c.MayFloat64("EPSILON", d.Epsilon),
		Features:    strings.ToLower(c.MayString("FEATURES", d.Features)),
		SinkTimeout: c.MayDuration("SINK_TIMEOUT", d.SinkTimeout),
		LogSink:     c.MayBool("LOG_SINK", d.LogSink),
		FlushOnEOF:  c.MayBool("FLUSH_ON_EOF", false),
	}
}

// Validate checks struct rules first, then the combinations each core package
// enforces on its own config
func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return err
	}
	if _, err := o.gulpConfig(); err != nil {
		return err
	}
	pc, err := o.pipelineConfig()
	if err != nil {
		return err
	}
	if err := pc.Cluster.Validate(); err != nil {
		return err
	}
	return pc.Bounds.Validate()
}

func (o Options) gulpConfig() (gulp.Config, error) {
	p, err := gulp.ParsePolicy(o.Policy)
	if err != nil {
		return gulp.Config{}, err
	}
	gc := gulp.Config{Policy: p, Size: o.GulpSize}
	if err := gc.Validate(); err != nil {
		return gulp.Config{}, err
	}
	return gc, nil
}

func (o Options) pipelineConfig() (service.Config, error) {
	v, err := features.ParseVariant(o.Features)
	if err != nil {
		return service.Config{}, err
	}
	return service.Config{
		Features: v,
		Cluster:  dbscan.Params{MinPts: o.MinPts, Epsilon: o.Epsilon, Width: features.Width},
		Bounds:   rangefilter.Bounds{MinSNR: o.MinSNR, MinDM: o.MinDM, MaxDM: o.MaxDM},
	}, nil
}
