// Package moqsink implements the concrete sink adapter external
// collaborator: a QUIC-based playout endpoint, one bidirectional stream per
// connected viewer, pulled from the graph's destination Reader at its own
// cadence via ForceGetFront when no frame is ready. It is deliberately a
// much lighter wire format than the full MoQ Transport draft — wire
// protocol specifics are out of scope here — built on the same quic-go
// dependency used elsewhere for viewer distribution.
package moqsink

import (
	"context"
	"crypto/tls"
	"encoding/binary"
	"fmt"
	"log/slog"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/zsiec/mediagraph/queue"
)

// pullInterval bounds how often a connection with no ready frame retries
// its playout pull loop.
const pullInterval = 5 * time.Millisecond

// maxFrameBytes bounds the length prefix read off the wire, as a sanity
// ceiling rather than a protocol feature.
const maxFrameBytes = 16 << 20

// Sink accepts QUIC connections and, for each one, pulls frames from
// reader and writes them length-prefixed to the connection's first stream.
type Sink struct {
	log     *slog.Logger
	addr    string
	tlsConf *tls.Config
	reader  *queue.Reader

	listener *quic.Listener
}

// New constructs a Sink listening on addr with tlsConf, pulling frames
// from reader. If log is nil, slog.Default() is used.
func New(addr string, tlsConf *tls.Config, reader *queue.Reader, log *slog.Logger) *Sink {
	if log == nil {
		log = slog.Default()
	}
	return &Sink{
		log:     log.With("component", "moqsink"),
		addr:    addr,
		tlsConf: tlsConf,
		reader:  reader,
	}
}

// ListenAndServe opens the QUIC listening socket and accepts connections
// until ctx is cancelled.
func (s *Sink) ListenAndServe(ctx context.Context) error {
	l, err := quic.ListenAddr(s.addr, s.tlsConf, &quic.Config{})
	if err != nil {
		return fmt.Errorf("moqsink: listen on %s: %w", s.addr, err)
	}
	s.listener = l
	s.log.Info("listening", "addr", s.addr)

	for {
		conn, err := l.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Warn("accept error", "error", err)
			continue
		}
		go s.handleConn(ctx, conn)
	}
}

// Close closes the listening socket, if open.
func (s *Sink) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *Sink) handleConn(ctx context.Context, conn quic.Connection) {
	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		s.log.Debug("accept stream failed", "error", err)
		conn.CloseWithError(0, "no stream opened")
		return
	}
	defer stream.Close()

	for {
		if ctx.Err() != nil {
			conn.CloseWithError(0, "shutting down")
			return
		}

		f := s.reader.GetFrame(true)
		if f == nil {
			time.Sleep(pullInterval)
			continue
		}

		if err := writeFrame(stream, f.Payload(), f.PresentationTime); err != nil {
			s.log.Debug("write failed, closing connection", "error", err)
			conn.CloseWithError(1, "write failed")
			return
		}
		s.reader.RemoveFrame()
	}
}

// writeFrame writes an 8-byte PTS, a 4-byte big-endian length prefix, and
// the payload itself.
func writeFrame(w interface{ Write([]byte) (int, error) }, payload []byte, pts int64) error {
	if len(payload) > maxFrameBytes {
		return fmt.Errorf("moqsink: frame too large: %d bytes", len(payload))
	}
	header := make([]byte, 12)
	binary.BigEndian.PutUint64(header[0:8], uint64(pts))
	binary.BigEndian.PutUint32(header[8:12], uint32(len(payload)))
	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}
