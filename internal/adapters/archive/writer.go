package archive

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"

	perr "t2/internal/platform/errors"
	"t2/internal/platform/logger"
	"t2/internal/services/t2/domain"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
)

// Writer appends snapshots to a stream. It is a domain.GulpObserver
type Writer struct {
	mu     sync.Mutex
	out    io.WriteCloser
	zw     *zstd.Encoder
	enc    *cbor.Encoder
	n      int
	closed bool
}

var _ domain.GulpObserver = (*Writer)(nil)

// Create opens path for appending; each process run adds a new zstd frame
func Create(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, perr.WithField(perr.Wrapf(err, perr.ErrorCodeConfig, "open archive %s", path), "ARCHIVE_PATH")
	}
	w, err := NewWriter(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	logger.Named("archive").Info().Str("path", path).Msg("gulp archive open")
	return w, nil
}

// NewWriter writes to out and takes ownership of it
func NewWriter(out io.WriteCloser) (*Writer, error) {
	zw, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnknown, "zstd writer")
	}
	return &Writer{out: out, zw: zw, enc: encMode.NewEncoder(zw)}, nil
}

// ObserveGulp encodes s and flushes it to the underlying writer
func (w *Writer) ObserveGulp(_ context.Context, s domain.Snapshot) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return perr.New(perr.ErrorCodeUnavailable, "archive closed")
	}
	if err := w.enc.Encode(s); err != nil {
		return perr.WithOp(perr.Wrap(err, perr.ErrorCodeSink, "encode snapshot"), "archive.encode")
	}
	if err := w.zw.Flush(); err != nil {
		return perr.WithOp(perr.Wrap(err, perr.ErrorCodeSink, "flush snapshot"), "archive.flush")
	}
	w.n++
	return nil
}

// Written returns the number of snapshots written by this Writer
func (w *Writer) Written() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.n
}

// Close ends the zstd frame and closes the output. Safe to call twice
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return errors.Join(w.zw.Close(), w.out.Close())
}
