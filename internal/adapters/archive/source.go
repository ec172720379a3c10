package archive

import (
	"context"
	"errors"
	"io"

	"t2/internal/core/gulp"
	"t2/internal/services/t2/domain"
)

// Source replays the pre-filter candidates of each archived snapshot as records,
// closing every snapshot with the sentinel so gulp boundaries are preserved
type Source struct {
	r       *Reader
	pending [][]byte
	gulps   int
}

var _ domain.Source = (*Source)(nil)

// NewSource replays r
func NewSource(r *Reader) *Source { return &Source{r: r} }

// Next yields one record at a time and io.EOF when the archive is exhausted
func (s *Source) Next(ctx context.Context) ([]byte, error) {
	for len(s.pending) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		snap, err := s.r.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, err
		}
		s.gulps++
		for _, c := range snap.Candidates {
			s.pending = append(s.pending, []byte(c.Format()))
		}
		s.pending = append(s.pending, []byte{gulp.Sentinel})
	}
	rec := s.pending[0]
	s.pending = s.pending[1:]
	return rec, nil
}

// Gulps returns how many snapshots have been read
func (s *Source) Gulps() int { return s.gulps }

// Close closes the underlying reader
func (s *Source) Close() error { return s.r.Close() }
