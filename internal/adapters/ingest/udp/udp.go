// Package udp receives candidate records, one per datagram
package udp

import (
	"context"
	"errors"
	"net"
	"os"
	"sync/atomic"
	"time"

	"t2/internal/platform/config"
	perr "t2/internal/platform/errors"
	"t2/internal/platform/logger"
)

const (
	// MaxDatagram is the largest record accepted; longer datagrams are dropped
	MaxDatagram = 512
	// DefaultAddr is the listen address when INGEST_UDP_ADDR is unset
	DefaultAddr = "127.0.0.1:12345"
)

// pollInterval bounds how long a read blocks before ctx is checked again
var pollInterval = 250 * time.Millisecond

// Config controls the socket
type Config struct {
	Addr       string
	ReadBuffer int // SO_RCVBUF in bytes, 0 leaves the OS default
}

// FromConfig reads INGEST_UDP_ADDR and INGEST_UDP_READ_BUFFER
func FromConfig(cfg config.Conf) Config {
	c := cfg.Prefix("INGEST_UDP_")
	return Config{
		Addr:       c.MayString("ADDR", DefaultAddr),
		ReadBuffer: c.MayInt("READ_BUFFER", 0),
	}
}

// Receiver is a domain Source over a bound UDP socket
type Receiver struct {
	conn      net.PacketConn
	buf       []byte
	received  atomic.Uint64
	oversized atomic.Uint64
	readErrs  atomic.Uint64
}

// Listen binds the socket described by cfg
func Listen(ctx context.Context, cfg Config) (*Receiver, error) {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp", cfg.Addr)
	if err != nil {
		return nil, perr.WithField(perr.Wrapf(err, perr.ErrorCodeUnavailable, "udp listen %s", cfg.Addr), "INGEST_UDP_ADDR")
	}
	if cfg.ReadBuffer > 0 {
		if uc, ok := conn.(*net.UDPConn); ok {
			if err := uc.SetReadBuffer(cfg.ReadBuffer); err != nil {
				logger.Named("udp").Warn().Err(err).Int("bytes", cfg.ReadBuffer).Msg("set read buffer failed")
			}
		}
	}
	logger.Named("udp").Info().Str("addr", conn.LocalAddr().String()).Msg("udp listening")
	return &Receiver{conn: conn, buf: make([]byte, MaxDatagram+1)}, nil
}

// Addr returns the bound address
func (r *Receiver) Addr() net.Addr { return r.conn.LocalAddr() }

// Next blocks until a datagram arrives or ctx is done. The returned slice is a copy.
// Read errors on a live socket are logged, counted and retried after a short pause;
// only a closed socket or a done ctx end the stream
func (r *Receiver) Next(ctx context.Context) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := r.conn.SetReadDeadline(time.Now().Add(pollInterval)); err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "udp set deadline")
		}
		n, from, err := r.conn.ReadFrom(r.buf)
		if err != nil {
			switch {
			case errors.Is(err, os.ErrDeadlineExceeded):
				continue
			case ctx.Err() != nil:
				return nil, ctx.Err()
			case errors.Is(err, net.ErrClosed):
				return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "udp socket closed")
			}
			r.readErrs.Add(1)
			logger.Named("udp").Warn().Err(err).Msg("udp read failed, retrying")
			if err := pause(ctx, pollInterval); err != nil {
				return nil, err
			}
			continue
		}
		if n > MaxDatagram {
			r.oversized.Add(1)
			logger.Named("udp").Warn().Str("from", from.String()).Int("limit", MaxDatagram).Msg("oversized datagram dropped")
			continue
		}
		r.received.Add(1)
		out := make([]byte, n)
		copy(out, r.buf[:n])
		return out, nil
	}
}

func pause(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Stats returns datagrams accepted and dropped as oversized
func (r *Receiver) Stats() (received, oversized uint64) {
	return r.received.Load(), r.oversized.Load()
}

// ReadErrors returns the number of failed reads the receiver recovered from
func (r *Receiver) ReadErrors() uint64 { return r.readErrs.Load() }

// Close releases the socket
func (r *Receiver) Close() error { return r.conn.Close() }
