// Package domain defines the types and ports of the t2 clustering pipeline
package domain

import (
	"time"

	"t2/internal/core/candidate"
	"t2/internal/core/gulp"

	"github.com/google/uuid"
)

// Candidate is a single detection record
type Candidate = candidate.Candidate

// GulpMeta identifies the gulp a pass works on
type GulpMeta struct {
	ID       uuid.UUID `json:"id" yaml:"id" cbor:"1,keyasint"`
	Seq      uint64    `json:"seq" yaml:"seq" cbor:"2,keyasint"`
	Size     int       `json:"size" yaml:"size" cbor:"3,keyasint"`
	Rejected int       `json:"rejected" yaml:"rejected" cbor:"4,keyasint"`
	OpenedAt time.Time `json:"opened_at" yaml:"opened_at" cbor:"5,keyasint"`
	ClosedAt time.Time `json:"closed_at" yaml:"closed_at" cbor:"6,keyasint"`
}

// MetaOf extracts the identifying fields of g
func MetaOf(g gulp.Gulp) GulpMeta {
	return GulpMeta{
		ID:       g.ID,
		Seq:      g.Seq,
		Size:     g.Len(),
		Rejected: g.Rejected,
		OpenedAt: g.OpenedAt,
		ClosedAt: g.ClosedAt,
	}
}

// Snapshot is the full diagnostic view of one pass: the pre-filter gulp with its
// cluster labels plus what survived
type Snapshot struct {
	Meta            GulpMeta    `json:"meta" cbor:"1,keyasint"`
	Candidates      []Candidate `json:"candidates" cbor:"2,keyasint"`
	Labels          []int       `json:"labels" cbor:"3,keyasint"`
	Representatives []Candidate `json:"representatives" cbor:"4,keyasint"`
	Survivors       []Candidate `json:"survivors" cbor:"5,keyasint"`
}

// PassResult summarizes one pass
type PassResult struct {
	Meta            GulpMeta      `json:"meta" yaml:"meta"`
	Skipped         bool          `json:"skipped" yaml:"skipped"` // empty gulp
	Clusters        int           `json:"clusters" yaml:"clusters"`
	Noise           int           `json:"noise" yaml:"noise"`
	Representatives int           `json:"representatives" yaml:"representatives"`
	Survivors       []Candidate   `json:"survivors" yaml:"-"`
	Delivered       int           `json:"delivered" yaml:"delivered"`
	SinkFailures    int           `json:"sink_failures" yaml:"sink_failures"`
	Elapsed         time.Duration `json:"elapsed" yaml:"elapsed"`
}

// Stats are cumulative counters of a runner
type Stats struct {
	State            string    `json:"state" yaml:"state"`
	Gulps            uint64    `json:"gulps" yaml:"gulps"`
	Candidates       uint64    `json:"candidates" yaml:"candidates"`
	Rejected         uint64    `json:"rejected" yaml:"rejected"`
	Clusters         uint64    `json:"clusters" yaml:"clusters"`
	Survivors        uint64    `json:"survivors" yaml:"survivors"`
	SinkFailures     uint64    `json:"sink_failures" yaml:"sink_failures"`
	ClusteringErrors uint64    `json:"clustering_errors" yaml:"clustering_errors"`
	Discarded        uint64    `json:"discarded" yaml:"discarded"`
	LastGulpSeq      uint64    `json:"last_gulp_seq" yaml:"last_gulp_seq"`
	LastPassAt       time.Time `json:"last_pass_at,omitempty" yaml:"last_pass_at,omitempty"`
}
