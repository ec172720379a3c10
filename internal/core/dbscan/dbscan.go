// Package dbscan implements density-based clustering over a gonum feature matrix.
//
// A point is a neighbor of another when their euclidean distance is <= Epsilon.
// A core point has at least MinPts neighbors counting itself. Clusters are the maximal
// sets connected through core points; a border point joins the first cluster that
// reaches it and points reached by no cluster are labelled Noise. Labels are dense
// (0..k-1) in discovery order, so the result is deterministic for a fixed input order.
package dbscan

import (
	"math"

	perr "t2/internal/platform/errors"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Noise labels a point that belongs to no cluster
const Noise = -1

const unvisited = -2

// Defaults used by the pipeline
const (
	DefaultMinPts  = 5
	DefaultEpsilon = 14.0
)

// Params configures the engine
type Params struct {
	MinPts  int
	Epsilon float64
	Width   int // expected column count; 0 accepts any
}

// Validate reports unusable parameters
func (p Params) Validate() error {
	if p.MinPts < 1 {
		return perr.WithField(perr.Configf("min_pts must be >= 1, got %d", p.MinPts), "min_pts")
	}
	if !(p.Epsilon > 0) || math.IsInf(p.Epsilon, 0) {
		return perr.WithField(perr.Configf("epsilon must be a positive finite number, got %v", p.Epsilon), "epsilon")
	}
	if p.Width < 0 {
		return perr.WithField(perr.Configf("width must be >= 0, got %d", p.Width), "width")
	}
	return nil
}

// Assignment holds one label per input row
type Assignment []int

// Clusters returns the number of clusters found
func (a Assignment) Clusters() int {
	k := 0
	for _, l := range a {
		if l+1 > k {
			k = l + 1
		}
	}
	return k
}

// NoiseCount returns how many points were labelled Noise
func (a Assignment) NoiseCount() int {
	n := 0
	for _, l := range a {
		if l == Noise {
			n++
		}
	}
	return n
}

// Engine runs DBSCAN with fixed parameters
type Engine struct {
	p Params
}

// New validates p and returns an Engine
func New(p Params) (*Engine, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Engine{p: p}, nil
}

// Params returns the engine configuration
func (e *Engine) Params() Params { return e.p }

// Cluster labels every row of x. A nil or empty matrix yields an empty assignment
func (e *Engine) Cluster(x *mat.Dense) (Assignment, error) {
	if x == nil || x.IsEmpty() {
		return Assignment{}, nil
	}
	n, cols := x.Dims()
	if e.p.Width > 0 && cols != e.p.Width {
		return nil, perr.Clusteringf("feature matrix has %d columns, want %d", cols, e.p.Width)
	}
	for i := 0; i < n; i++ {
		for j, v := range x.RawRowView(i) {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, perr.Clusteringf("non-finite feature %v at row %d column %d", v, i, j)
			}
		}
	}

	labels := make(Assignment, n)
	for i := range labels {
		labels[i] = unvisited
	}

	next := 0
	for i := 0; i < n; i++ {
		if labels[i] != unvisited {
			continue
		}
		seeds := e.region(x, i)
		if len(seeds) < e.p.MinPts {
			labels[i] = Noise
			continue
		}

		c := next
		next++
		labels[i] = c
		for k := 0; k < len(seeds); k++ {
			j := seeds[k]
			if labels[j] == Noise {
				labels[j] = c // border point
			}
			if labels[j] != unvisited {
				continue
			}
			labels[j] = c
			if nb := e.region(x, j); len(nb) >= e.p.MinPts {
				seeds = append(seeds, nb...)
			}
		}
	}
	return labels, nil
}

// region returns the indices within Epsilon of row i, including i
func (e *Engine) region(x *mat.Dense, i int) []int {
	n, _ := x.Dims()
	pi := x.RawRowView(i)
	out := make([]int, 0, 8)
	for j := 0; j < n; j++ {
		if floats.Distance(pi, x.RawRowView(j), 2) <= e.p.Epsilon {
			out = append(out, j)
		}
	}
	return out
}
