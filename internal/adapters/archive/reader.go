package archive

import (
	"errors"
	"io"
	"os"

	perr "t2/internal/platform/errors"
	"t2/internal/services/t2/domain"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
)

// Reader decodes snapshots in the order they were written
type Reader struct {
	in  io.Closer
	zr  *zstd.Decoder
	dec *cbor.Decoder
}

// Open opens an archive file for reading
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, perr.WithField(perr.Wrapf(err, perr.ErrorCodeNotFound, "open archive %s", path), "path")
		}
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "open archive %s", path)
	}
	r, err := NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return r, nil
}

// NewReader reads from in and takes ownership of it
func NewReader(in io.ReadCloser) (*Reader, error) {
	zr, err := zstd.NewReader(in)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeParse, "zstd reader")
	}
	return &Reader{in: in, zr: zr, dec: decMode.NewDecoder(zr)}, nil
}

// Next returns the next snapshot, or io.EOF after the last one
func (r *Reader) Next() (domain.Snapshot, error) {
	var s domain.Snapshot
	if err := r.dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Snapshot{}, io.EOF
		}
		return domain.Snapshot{}, perr.WithOp(perr.Wrap(err, perr.ErrorCodeParse, "decode snapshot"), "archive.decode")
	}
	return s, nil
}

// Close releases the decoder and the input
func (r *Reader) Close() error {
	r.zr.Close()
	return r.in.Close()
}
