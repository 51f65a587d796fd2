package queue

import "github.com/zsiec/mediagraph/frame"

// Writer is the producer-side endpoint over a FrameQueue. A Writer is
// assumed to be accessed only by its owning filter's Worker, so — unlike
// Reader — it carries no lock of its own.
type Writer struct {
	queue *FrameQueue
}

// NewWriter wraps q in a Writer. The queue starts disconnected; Connect
// transfers observation rights to a Reader and flips it to connected.
func NewWriter(q *FrameQueue) *Writer {
	return &Writer{queue: q}
}

// Queue returns the underlying FrameQueue.
func (w *Writer) Queue() *FrameQueue {
	return w.queue
}

// GetRear returns the next writable slot, or nil if the ring is full.
func (w *Writer) GetRear() *frame.Frame {
	return w.queue.GetRear()
}

// ForceGetRear returns the next writable slot, overwriting the oldest
// unconsumed frame if the ring is full.
func (w *Writer) ForceGetRear() *frame.Frame {
	return w.queue.ForceGetRear()
}

// AddFrame commits the rear slot.
func (w *Writer) AddFrame() {
	w.queue.AddFrame()
}

// IsConnected reports whether this Writer's queue currently has a connected
// Reader.
func (w *Writer) IsConnected() bool {
	return w.queue.IsConnected()
}

// Connect hands this Writer's queue reference to reader and flips the queue
// to connected. It returns false if the Writer has no queue.
func (w *Writer) Connect(reader *Reader) bool {
	if w.queue == nil {
		return false
	}
	reader.setQueue(w.queue)
	w.queue.SetConnected(true)
	return true
}

// Disconnect flips the queue to disconnected. The queue itself is released
// for garbage collection once both this Writer and its peer Reader drop
// their references.
func (w *Writer) Disconnect() {
	if w.queue != nil {
		w.queue.SetConnected(false)
	}
}
