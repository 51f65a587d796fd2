// Package srtsource implements the concrete source adapter external
// collaborator: an SRT listener whose accept/read loop is driven by its own
// thread (not a Worker's process() cycle), pushing received MPEG-TS payload
// chunks into a Writer and calling ForceGetRear on overload.
package srtsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	srtgo "github.com/zsiec/srtgo"

	"github.com/zsiec/mediagraph/queue"
	"github.com/zsiec/mediagraph/worker"
)

// srtLatencyNs is the SRT latency setting in nanoseconds (120ms).
const srtLatencyNs = 120_000_000

// Source accepts SRT publish connections and pushes received bytes into a
// single Writer, chunked to the Writer's queue's frame size.
type Source struct {
	log    *slog.Logger
	addr   string
	writer *queue.Writer

	listener *srtgo.Listener
}

// New constructs a Source listening on addr, pushing into writer. If log
// is nil, slog.Default() is used.
func New(addr string, writer *queue.Writer, log *slog.Logger) *Source {
	if log == nil {
		log = slog.Default()
	}
	return &Source{
		log:    log.With("component", "srtsource"),
		addr:   addr,
		writer: writer,
	}
}

// Start opens the SRT listening socket and launches its accept loop on a
// goroutine this adapter owns — not a Worker. The returned Worker bridges
// enable/disable/stop: enable/disable are no-ops (the accept loop cannot be
// told to idle without tearing it down), and Stop closes the listener.
func (s *Source) Start(ctx context.Context) (worker.Worker, error) {
	cfg := srtgo.DefaultConfig()
	cfg.Latency = srtLatencyNs

	l, err := srtgo.Listen(s.addr, cfg)
	if err != nil {
		return nil, fmt.Errorf("srtsource: listen on %s: %w", s.addr, err)
	}
	s.listener = l
	s.log.Info("listening", "addr", s.addr)

	go s.acceptLoop(ctx)

	w := worker.NewExternal(func() {
		l.Close()
	}, s.log)
	w.Start()
	return w, nil
}

func (s *Source) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Warn("accept error", "error", err)
			continue
		}
		go s.handleConnection(ctx, conn)
	}
}

func (s *Source) handleConnection(ctx context.Context, conn *srtgo.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr()
	s.log.Info("publish connection accepted", "remote", remote)

	buf := make([]byte, frameChunkSize(s.writer))

	for {
		if ctx.Err() != nil {
			return
		}
		n, err := conn.Read(buf)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.log.Debug("read error", "remote", remote, "error", err)
			}
			return
		}
		s.push(buf[:n])
	}
}

// push writes data into the next writable (or, on overload, force-evicted)
// slot and commits it. A chunk wider than the queue's frame capacity is
// truncated to fit, matching the queue's fixed maxLength contract.
func (s *Source) push(data []byte) {
	slot := s.writer.GetRear()
	if slot == nil {
		slot = s.writer.ForceGetRear()
	}
	if slot == nil {
		return
	}
	n := len(data)
	if n > slot.MaxLength() {
		n = slot.MaxLength()
	}
	copy(slot.Buffer(), data[:n])
	slot.SetLength(n)
	s.writer.AddFrame()
}

// frameChunkSize reports how many bytes to read per conn.Read call. It
// mirrors the queue's frame capacity so every read maps to one Frame.
func frameChunkSize(w *queue.Writer) int {
	if slot := w.GetRear(); slot != nil {
		return slot.MaxLength()
	}
	// Ring is momentarily full; fall back to the standard SRT read size
	// (ten 1316-byte SRT payloads, 70 MPEG-TS packets).
	return 1316 * 10
}
