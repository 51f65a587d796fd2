package queue

import (
	"log/slog"
	"sync"

	"github.com/zsiec/mediagraph/frame"
)

// Reader is the consumer-side endpoint over a FrameQueue. A Reader may be
// shared by several logical consumers (fan-out without copying frame
// payloads): readers tracks how many, and pending tracks how many have yet
// to acknowledge the current front frame this cycle. pending is 0 at the
// start of every cycle; the first GetFrame of a cycle sets pending := readers,
// and the physical front only advances once every logical consumer has
// called RemoveFrame.
//
// setQueue, AddReader, RemoveReader, GetFrame, RemoveFrame, and Disconnect
// are all serialized on lck.
type Reader struct {
	log *slog.Logger

	lck     sync.Mutex
	queue   *FrameQueue
	readers int
	pending int
}

// NewReader creates a Reader bound to q with a single logical consumer. If
// log is nil, slog.Default() is used.
func NewReader(q *FrameQueue, log *slog.Logger) *Reader {
	if log == nil {
		log = slog.Default()
	}
	return &Reader{
		log:     log.With("component", "queue-reader"),
		queue:   q,
		readers: 1,
	}
}

// setQueue rebinds the Reader to q with a fresh single-consumer count. Used
// by Writer.Connect to hand over the queue reference.
func (r *Reader) setQueue(q *FrameQueue) {
	r.lck.Lock()
	defer r.lck.Unlock()
	r.queue = q
	r.readers = 1
}

// AddReader registers one more logical consumer sharing this Reader's
// physical queue. It is a no-op if the queue is not currently connected.
func (r *Reader) AddReader() {
	r.lck.Lock()
	defer r.lck.Unlock()
	if r.readers >= 1 && r.queue != nil && r.queue.IsConnected() {
		r.readers++
	}
}

// RemoveReader unregisters one logical consumer. When the last one leaves,
// the Reader disconnects its queue.
func (r *Reader) RemoveReader() {
	r.lck.Lock()
	if r.readers > 0 {
		r.readers--
		if r.readers == 0 {
			r.lck.Unlock()
			r.Disconnect()
			return
		}
	}
	r.lck.Unlock()
}

// GetFrame returns the current front frame for this cycle, or nil if the
// queue has no frame ready (or is not connected). If force is true and no
// frame is ready, it falls back to the queue's ForceGetFront policy. Every
// logical consumer sees the same frame within a cycle.
func (r *Reader) GetFrame(force bool) *frame.Frame {
	r.lck.Lock()
	defer r.lck.Unlock()

	if r.queue == nil || !r.queue.IsConnected() {
		r.log.Debug("reader not connected")
		return nil
	}

	if r.pending == 0 {
		r.pending = r.readers
	}

	f := r.queue.GetFront()
	if force && f == nil {
		f = r.queue.ForceGetFront()
	}
	return f
}

// RemoveFrame acknowledges the current frame on behalf of one logical
// consumer. It returns 0 once every consumer has acknowledged and the
// physical front has advanced, or -1 while acknowledgements are still
// pending from other consumers.
func (r *Reader) RemoveFrame() int {
	r.lck.Lock()
	defer r.lck.Unlock()

	if r.queue == nil {
		return -1
	}

	if r.pending == 0 {
		r.queue.RemoveFrame()
		return 0
	}
	r.pending--
	if r.pending == 0 {
		r.queue.RemoveFrame()
		return 0
	}
	return -1
}

// IsConnected reports whether the underlying queue is connected.
func (r *Reader) IsConnected() bool {
	r.lck.Lock()
	defer r.lck.Unlock()
	return r.queue != nil && r.queue.IsConnected()
}

// Disconnect flips the underlying queue's connected flag to false and
// releases this Reader's reference to it. It is idempotent.
func (r *Reader) Disconnect() bool {
	r.lck.Lock()
	defer r.lck.Unlock()
	if r.queue == nil {
		return false
	}
	r.queue.SetConnected(false)
	r.queue = nil
	r.pending = 0
	return true
}
