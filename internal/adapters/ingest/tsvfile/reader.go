// Package tsvfile replays candidate records from a plain or zstd-compressed
// tab-separated file, one record per line
package tsvfile

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"t2/internal/core/gulp"
	perr "t2/internal/platform/errors"
	"t2/internal/platform/logger"

	"github.com/klauspost/compress/zstd"
)

const maxLine = 64 * 1024

var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// Reader is a domain Source over a line stream. A blank line or a line holding only
// the sentinel byte ends a gulp and is yielded as the one-byte sentinel record
type Reader struct {
	r     io.Closer
	zr    *zstd.Decoder
	sc    *bufio.Scanner
	err   error
	lines int
	gulps int
}

// Open opens path; compression is detected from the content, not the name
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, perr.WithField(perr.Wrapf(err, perr.ErrorCodeNotFound, "open %s", path), "path")
		}
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "open %s", path)
	}
	rd, err := NewReader(f)
	if err != nil {
		return nil, err
	}
	logger.Named("tsvfile").Debug().Str("path", path).Bool("zstd", rd.zr != nil).Msg("replay file opened")
	return rd, nil
}

// NewReader wraps r, transparently decompressing a zstd stream
func NewReader(r io.ReadCloser) (*Reader, error) {
	br := bufio.NewReader(r)
	var src io.Reader = br
	rd := &Reader{r: r}

	if head, _ := br.Peek(len(zstdMagic)); bytes.Equal(head, zstdMagic) {
		zr, err := zstd.NewReader(br)
		if err != nil {
			if cerr := r.Close(); cerr != nil {
				return nil, cerr
			}
			return nil, perr.Wrap(err, perr.ErrorCodeParse, "zstd header")
		}
		rd.zr = zr
		src = zr
	}

	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, 4096), maxLine)
	rd.sc = sc
	return rd, nil
}

// Next returns the next record, or io.EOF when the stream is exhausted
func (rd *Reader) Next(ctx context.Context) ([]byte, error) {
	if rd.err != nil {
		return nil, rd.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !rd.sc.Scan() {
		if err := rd.sc.Err(); err != nil {
			rd.err = perr.Wrap(err, perr.ErrorCodeParse, "read line")
			return nil, rd.err
		}
		rd.err = io.EOF
		return nil, io.EOF
	}
	rd.lines++
	line := strings.TrimRight(rd.sc.Text(), "\r")
	if strings.TrimSpace(line) == "" || line == string(gulp.Sentinel) {
		rd.gulps++
		return []byte{gulp.Sentinel}, nil
	}
	return []byte(line), nil
}

// Stats returns lines read and gulp boundaries seen so far
func (rd *Reader) Stats() (lines, boundaries int) { return rd.lines, rd.gulps }

// Close closes the decompressor and the underlying reader
func (rd *Reader) Close() error {
	if rd.zr != nil {
		rd.zr.Close()
	}
	if rd.r != nil {
		return rd.r.Close()
	}
	return nil
}
