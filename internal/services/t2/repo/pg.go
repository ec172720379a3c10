// Package repo persists surviving candidates
package repo

import (
	"context"
	"fmt"
	"strings"

	"t2/internal/modkit/repokit"
	perr "t2/internal/platform/errors"
	"t2/internal/platform/store"
	"t2/internal/services/t2/domain"

	"github.com/google/uuid"
)

// Table is the postgres table survivors land in
const Table = "t2_cands"

const schemaPG = `
CREATE TABLE IF NOT EXISTS t2_cands (
	id          BIGSERIAL PRIMARY KEY,
	mjds        DOUBLE PRECISION NOT NULL,
	snr         DOUBLE PRECISION NOT NULL,
	ibox        INTEGER          NOT NULL,
	dm          DOUBLE PRECISION NOT NULL,
	gulp_id     UUID,
	inserted_at TIMESTAMPTZ      NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS t2_cands_mjds_idx ON t2_cands (mjds);
`

const (
	pgColumns        = 5
	maxRowsPerInsert = 1000 // keeps args well under the 65535 bind parameter limit
)

// binder implements repokit.Binder[domain.StorageRepo]
type binder struct{}

// NewPG returns a Postgres binder for domain.StorageRepo
func NewPG() repokit.Binder[domain.StorageRepo] { return binder{} }

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) domain.StorageRepo { return &pg{q: q} }

type pg struct{ q repokit.Queryer }

// EnsureSchema creates the candidate table when missing
func (s *pg) EnsureSchema(ctx context.Context) error {
	if _, err := s.q.Exec(ctx, schemaPG); err != nil {
		return perr.WithOp(err, "ensure_schema")
	}
	return nil
}

// InsertCandidates writes cs with multi-row INSERTs of at most maxRowsPerInsert rows and
// returns the rows affected. A zero meta.ID stores NULL for gulp_id
func (s *pg) InsertCandidates(ctx context.Context, meta domain.GulpMeta, cs []domain.Candidate) (int64, error) {
	var gid any
	if meta.ID != uuid.Nil {
		gid = meta.ID
	}
	var total int64
	for start := 0; start < len(cs); start += maxRowsPerInsert {
		end := min(start+maxRowsPerInsert, len(cs))
		n, err := s.insertChunk(ctx, gid, cs[start:end])
		if err != nil {
			return total, perr.WithOp(err, "insert_candidates")
		}
		total += n
	}
	return total, nil
}

func (s *pg) insertChunk(ctx context.Context, gid any, cs []domain.Candidate) (int64, error) {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO t2_cands (mjds, snr, ibox, dm, gulp_id) VALUES `)
	args := make([]any, 0, len(cs)*pgColumns)
	for i, c := range cs {
		if i > 0 {
			sb.WriteByte(',')
		}
		base := i*pgColumns + 1
		fmt.Fprintf(&sb, "($%d,$%d,$%d,$%d,$%d)", base, base+1, base+2, base+3, base+4)
		args = append(args, c.Timestamp, c.Significance, c.Boxcar, c.DM, gid)
	}
	tag, err := s.q.Exec(ctx, sb.String(), args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Count returns the number of persisted candidates
func (s *pg) Count(ctx context.Context) (int64, error) {
	n, err := store.Scalar[int64](ctx, s.q, `SELECT count(*) FROM t2_cands`)
	if err != nil {
		return 0, perr.WithOp(perr.FromPostgres(err, "count candidates"), "count")
	}
	return n, nil
}

// Recent returns the last limit persisted candidates, newest first
func (s *pg) Recent(ctx context.Context, limit int) ([]domain.Candidate, error) {
	if limit <= 0 {
		return nil, perr.InvalidArgf("limit must be positive, got %d", limit)
	}
	out, err := store.Many(ctx, s.q, scanCandidate,
		`SELECT mjds, snr, ibox, dm FROM t2_cands ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, perr.WithOp(perr.FromPostgres(err, "recent candidates"), "recent")
	}
	return out, nil
}

func scanCandidate(r store.Row) (domain.Candidate, error) {
	var c domain.Candidate
	err := r.Scan(&c.Timestamp, &c.Significance, &c.Boxcar, &c.DM)
	return c, err
}
