// Package service keeps the recent pipeline output in memory for plotting
package service

import (
	"context"
	"math"
	"sync"

	"t2/internal/services/t2/domain"
)

// DefaultRingSize is the number of survivors retained when VIZ_RING_SIZE is unset
const DefaultRingSize = 1024

// Point is one plotted survivor
type Point struct {
	DM   float64 `json:"dm"`
	MJDs float64 `json:"mjds"`
	SNR  float64 `json:"snr"`
}

// Labeled is one candidate of the latest gulp placed in feature space with its
// cluster label (-1 for noise)
type Labeled struct {
	TimeIndex int     `json:"time_index"`
	DMIndex   int     `json:"dm_index"`
	Boxcar    int     `json:"ibox"`
	SNR       float64 `json:"snr"`
	DM        float64 `json:"dm"`
	Label     int     `json:"label"`
}

// GulpView is the latest full pre-filter gulp
type GulpView struct {
	Meta       domain.GulpMeta `json:"meta"`
	Candidates []Labeled       `json:"candidates"`
	Survivors  []Point         `json:"survivors"`
}

// Ring is a bounded buffer of survivors plus the last gulp snapshot.
// It is both a sink and a gulp observer
type Ring struct {
	mu     sync.RWMutex
	buf    []Point
	next   int
	full   bool
	total  uint64
	latest *GulpView
}

var (
	_ domain.Sink         = (*Ring)(nil)
	_ domain.GulpObserver = (*Ring)(nil)
)

// NewRing keeps the last size survivors; size < 1 uses DefaultRingSize
func NewRing(size int) *Ring {
	if size < 1 {
		size = DefaultRingSize
	}
	return &Ring{buf: make([]Point, size)}
}

// Name implements domain.Sink
func (*Ring) Name() string { return "viz" }

// Accept implements domain.Sink
func (r *Ring) Accept(_ context.Context, c domain.Candidate) error {
	p := Point{DM: c.DM, MJDs: c.Timestamp, SNR: c.Significance}
	if !finite(p.DM, p.MJDs, p.SNR) {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = p
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
	r.total++
	return nil
}

// ObserveGulp implements domain.GulpObserver
func (r *Ring) ObserveGulp(_ context.Context, s domain.Snapshot) error {
	v := &GulpView{
		Meta:       s.Meta,
		Candidates: make([]Labeled, 0, len(s.Candidates)),
		Survivors:  make([]Point, 0, len(s.Survivors)),
	}
	for i, c := range s.Candidates {
		if !finite(c.Significance, c.DM) {
			continue
		}
		label := -1
		if i < len(s.Labels) {
			label = s.Labels[i]
		}
		v.Candidates = append(v.Candidates, Labeled{
			TimeIndex: c.TimeIndex,
			DMIndex:   c.DMIndex,
			Boxcar:    c.Boxcar,
			SNR:       c.Significance,
			DM:        c.DM,
			Label:     label,
		})
	}
	for _, c := range s.Survivors {
		if finite(c.DM, c.Timestamp, c.Significance) {
			v.Survivors = append(v.Survivors, Point{DM: c.DM, MJDs: c.Timestamp, SNR: c.Significance})
		}
	}
	r.mu.Lock()
	r.latest = v
	r.mu.Unlock()
	return nil
}

// Points returns retained survivors oldest first
func (r *Ring) Points() []Point {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.full {
		return append([]Point(nil), r.buf[:r.next]...)
	}
	out := make([]Point, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	return append(out, r.buf[:r.next]...)
}

// Latest returns the last observed gulp, or nil before the first pass
func (r *Ring) Latest() *GulpView {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest
}

// Total is the number of survivors ever accepted
func (r *Ring) Total() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.total
}

// Cap is the ring capacity
func (r *Ring) Cap() int { return len(r.buf) }

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
