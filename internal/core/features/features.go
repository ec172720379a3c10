// Package features maps candidates into the 3-dimensional space the cluster engine works in
package features

import (
	"math"
	"strings"

	"t2/internal/core/candidate"
	perr "t2/internal/platform/errors"

	"gonum.org/v1/gonum/mat"
)

// Width is the number of feature columns: time_index, dm_index, boxcar
const Width = 3

// Variant selects how the boxcar column is scaled
type Variant string

const (
	// Log2 compresses boxcar widths with log2 (canonical)
	Log2 Variant = "log2"
	// Linear keeps the raw boxcar index
	Linear Variant = "linear"
)

// ParseVariant maps a config string onto a Variant; empty means Log2
func ParseVariant(s string) (Variant, error) {
	switch v := Variant(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return Log2, nil
	case Log2, Linear:
		return v, nil
	default:
		return "", perr.WithField(perr.Configf("unknown feature variant %q", s), "features")
	}
}

// Mapper turns a gulp into a feature matrix
type Mapper struct {
	variant Variant
}

// NewMapper returns a Mapper for v; an unknown variant falls back to Log2
func NewMapper(v Variant) Mapper {
	if v != Linear {
		v = Log2
	}
	return Mapper{variant: v}
}

// Variant returns the configured variant
func (m Mapper) Variant() Variant { return m.variant }

// Row maps a single candidate. A non-positive boxcar under Log2 yields -Inf or NaN
func (m Mapper) Row(c candidate.Candidate) [Width]float64 {
	box := float64(c.Boxcar)
	if m.variant == Log2 {
		box = math.Log2(box)
	}
	return [Width]float64{float64(c.TimeIndex), float64(c.DMIndex), box}
}

// Map returns an N x Width matrix whose row i corresponds to cs[i]. It returns nil for
// an empty slice since gonum has no zero-row matrices
func (m Mapper) Map(cs []candidate.Candidate) *mat.Dense {
	if len(cs) == 0 {
		return nil
	}
	data := make([]float64, 0, len(cs)*Width)
	for _, c := range cs {
		r := m.Row(c)
		data = append(data, r[:]...)
	}
	return mat.NewDense(len(cs), Width, data)
}
