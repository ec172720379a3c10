package repo

import (
	"context"
	"math"
	"time"

	perr "t2/internal/platform/errors"
	"t2/internal/platform/store"
	"t2/internal/services/t2/domain"
)

// ColumnarTable is the clickhouse table survivors land in
const ColumnarTable = "t2_candidates"

const schemaCH = `
CREATE TABLE IF NOT EXISTS t2_candidates (
	gulp_id      UUID,
	gulp_seq     UInt64,
	mjds         Float64,
	snr          Float64,
	ibox         Int32,
	dm           Float64,
	time_index   Int64,
	dm_index     Int32,
	freq_channel Int32,
	inserted_at  DateTime64(3, 'UTC')
) ENGINE = MergeTree
ORDER BY (mjds, dm)`

var chColumns = []string{
	"gulp_id", "gulp_seq", "mjds", "snr", "ibox", "dm",
	"time_index", "dm_index", "freq_channel", "inserted_at",
}

type columnar struct {
	ch  store.Clickhouse
	now func() time.Time
}

// NewCH returns the clickhouse repo
func NewCH(ch store.Clickhouse) domain.ColumnarRepo {
	return &columnar{ch: ch, now: time.Now}
}

// EnsureSchema creates the candidate table when missing
func (r *columnar) EnsureSchema(ctx context.Context) error {
	if err := r.ch.Exec(ctx, schemaCH); err != nil {
		return perr.Wrap(err, perr.ErrorCodeDB, "clickhouse ensure schema")
	}
	return nil
}

// InsertCandidates appends cs as one native batch
func (r *columnar) InsertCandidates(ctx context.Context, meta domain.GulpMeta, cs []domain.Candidate) error {
	if len(cs) == 0 {
		return nil
	}
	at := r.now().UTC()
	rows := make([][]any, 0, len(cs))
	for _, c := range cs {
		ibox, err := int32Col(c.Boxcar, "ibox")
		if err != nil {
			return err
		}
		dmIdx, err := int32Col(c.DMIndex, "dm_index")
		if err != nil {
			return err
		}
		freqCh, err := int32Col(c.FreqChannel, "freq_channel")
		if err != nil {
			return err
		}
		rows = append(rows, []any{
			meta.ID, meta.Seq, c.Timestamp, c.Significance, ibox, c.DM,
			int64(c.TimeIndex), dmIdx, freqCh, at,
		})
	}
	if err := r.ch.InsertRows(ctx, ColumnarTable, chColumns, rows); err != nil {
		return perr.Wrap(err, perr.ErrorCodeDB, "clickhouse insert")
	}
	return nil
}

// int32Col refuses values an Int32 column would wrap
func int32Col(v int, col string) (int32, error) {
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, perr.WithField(perr.InvalidArgf("%s %d does not fit Int32", col, v), col)
	}
	return int32(v), nil
}
