package filter

import "fmt"

// Connect performs the three-step graph mutation: origin.AllocQueue,
// dest.SetReader, and finally Writer→Reader Connect. If any step fails,
// everything this call already set up is rolled back before returning the
// error — callers such as pipeline.Manager.ConnectPath rely on Connect
// either fully succeeding or leaving no trace.
func Connect(origin Node, writerID int, dest Node, readerID int) error {
	q, err := origin.AllocQueue(writerID)
	if err != nil {
		return fmt.Errorf("connect filter %d->%d: %w", origin.ID(), dest.ID(), err)
	}

	reader, err := dest.SetReader(readerID, q)
	if err != nil {
		origin.RemoveWriter(writerID)
		return fmt.Errorf("connect filter %d->%d: %w", origin.ID(), dest.ID(), err)
	}

	w, ok := origin.Writer(writerID)
	if !ok || !w.Connect(reader) {
		origin.RemoveWriter(writerID)
		dest.RemoveReader(readerID)
		return fmt.Errorf("connect filter %d->%d: writer/reader handshake failed", origin.ID(), dest.ID())
	}

	return nil
}

// Disconnect tears down a link previously established by Connect: it flips
// the queue to disconnected and unregisters both endpoints. It is safe to
// call on a link that was never fully connected.
func Disconnect(origin Node, writerID int, dest Node, readerID int) {
	if w, ok := origin.Writer(writerID); ok {
		w.Disconnect()
	}
	origin.RemoveWriter(writerID)
	dest.RemoveReader(readerID)
}
