// Package rangefilter drops representatives outside the configured SNR and DM window
package rangefilter

import (
	"math"

	"t2/internal/core/candidate"
	perr "t2/internal/platform/errors"
)

// Defaults used by the pipeline
const (
	DefaultMinDM  = 20.0
	DefaultMaxDM  = 3000.0
	DefaultMinSNR = 20.0
)

// Bounds are exclusive thresholds
type Bounds struct {
	MinSNR float64
	MinDM  float64
	MaxDM  float64
}

// Default returns the standard thresholds
func Default() Bounds {
	return Bounds{MinSNR: DefaultMinSNR, MinDM: DefaultMinDM, MaxDM: DefaultMaxDM}
}

// Validate rejects an empty DM window or NaN bounds
func (b Bounds) Validate() error {
	for name, v := range map[string]float64{"min_snr": b.MinSNR, "min_dm": b.MinDM, "max_dm": b.MaxDM} {
		if math.IsNaN(v) {
			return perr.WithField(perr.Configf("%s is NaN", name), name)
		}
	}
	if b.MinDM >= b.MaxDM {
		return perr.WithField(perr.Configf("min_dm (%v) must be below max_dm (%v)", b.MinDM, b.MaxDM), "min_dm")
	}
	return nil
}

// Keep reports whether c passes both predicates
func (b Bounds) Keep(c candidate.Candidate) bool {
	return c.Significance > b.MinSNR && c.DM > b.MinDM && c.DM < b.MaxDM
}

// Apply returns the candidates that pass, in input order
func (b Bounds) Apply(cs []candidate.Candidate) []candidate.Candidate {
	out := make([]candidate.Candidate, 0, len(cs))
	for _, c := range cs {
		if b.Keep(c) {
			out = append(out, c)
		}
	}
	return out
}
