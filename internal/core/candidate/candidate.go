// Package candidate defines a single heimdall detection and its tab-separated record codec
package candidate

import (
	"strconv"
	"strings"

	perr "t2/internal/platform/errors"
)

// NumFields is the number of tab-separated columns in a candidate record
const NumFields = 7

// fieldNames in record order; also used to tag parse errors
var fieldNames = [NumFields]string{
	"snr",
	"freq_channel",
	"time_index",
	"mjds",
	"boxcar",
	"dm_index",
	"dm",
}

// Candidate is one detection from the burst search. Treat it as a value: it is
// copied, never mutated after Parse
type Candidate struct {
	Significance float64 `json:"snr" cbor:"1,keyasint"`
	FreqChannel  int     `json:"freq_channel" cbor:"2,keyasint"` // provenance only
	TimeIndex    int     `json:"time_index" cbor:"3,keyasint"`
	Timestamp    float64 `json:"mjds" cbor:"4,keyasint"` // MJD
	Boxcar       int     `json:"boxcar" cbor:"5,keyasint"`
	DMIndex      int     `json:"dm_index" cbor:"6,keyasint"`
	DM           float64 `json:"dm" cbor:"7,keyasint"` // pc cm^-3
}

// Parse decodes one record of exactly seven tab-separated numeric fields in the order
// snr, freq_channel, time_index, mjds, boxcar, dm_index, dm. Integer fields must fit
// in 32 bits. Any other shape yields an ErrorCodeParse error and a zero Candidate
func Parse(line string) (Candidate, error) {
	parts := strings.Split(strings.TrimSpace(line), "\t")
	if len(parts) != NumFields {
		return Candidate{}, perr.Parsef("candidate record has %d fields, want %d", len(parts), NumFields)
	}

	var (
		c   Candidate
		err error
	)
	floats := [...]struct {
		idx int
		dst *float64
	}{{0, &c.Significance}, {3, &c.Timestamp}, {6, &c.DM}}
	for _, f := range floats {
		if *f.dst, err = strconv.ParseFloat(strings.TrimSpace(parts[f.idx]), 64); err != nil {
			return Candidate{}, fieldErr(f.idx, parts[f.idx], err)
		}
	}

	ints := [...]struct {
		idx int
		dst *int
	}{{1, &c.FreqChannel}, {2, &c.TimeIndex}, {4, &c.Boxcar}, {5, &c.DMIndex}}
	for _, f := range ints {
		// the search writes these as 32-bit integers; wider values are malformed
		v, err := strconv.ParseInt(strings.TrimSpace(parts[f.idx]), 10, 32)
		if err != nil {
			return Candidate{}, fieldErr(f.idx, parts[f.idx], err)
		}
		*f.dst = int(v)
	}

	return c, nil
}

// ParseRecord trims padding off a raw datagram or line and parses it
func ParseRecord(rec []byte) (Candidate, error) {
	return Parse(Sanitize(string(rec)))
}

func fieldErr(idx int, raw string, cause error) error {
	err := perr.Wrapf(cause, perr.ErrorCodeParse, "field %s: cannot parse %q", fieldNames[idx], raw)
	return perr.WithField(err, fieldNames[idx])
}

// Format renders the candidate as a canonical record line (no trailing newline)
func (c Candidate) Format() string {
	var b strings.Builder
	b.Grow(64)
	b.WriteString(strconv.FormatFloat(c.Significance, 'g', -1, 64))
	for _, s := range []string{
		strconv.Itoa(c.FreqChannel),
		strconv.Itoa(c.TimeIndex),
		strconv.FormatFloat(c.Timestamp, 'f', -1, 64),
		strconv.Itoa(c.Boxcar),
		strconv.Itoa(c.DMIndex),
		strconv.FormatFloat(c.DM, 'g', -1, 64),
	} {
		b.WriteByte('\t')
		b.WriteString(s)
	}
	return b.String()
}
