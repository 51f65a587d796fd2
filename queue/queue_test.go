package queue

import (
	"testing"

	"github.com/zsiec/mediagraph/frame"
)

func newTestQueue(t *testing.T, capacity int, policy ForcePolicy) *FrameQueue {
	t.Helper()
	return New(capacity, 16, frame.Format{Kind: frame.KindOpaque}, policy)
}

func TestFrameQueueBasicFIFO(t *testing.T) {
	t.Parallel()
	q := newTestQueue(t, 4, ForceDrop)

	for i := byte(1); i <= 3; i++ {
		f := q.GetRear()
		if f == nil {
			t.Fatalf("GetRear returned nil for frame %d", i)
		}
		f.Buffer()[0] = i
		f.SetLength(1)
		q.AddFrame()
	}

	for i := byte(1); i <= 3; i++ {
		f := q.GetFront()
		if f == nil {
			t.Fatalf("GetFront returned nil for frame %d", i)
		}
		if got := f.Payload()[0]; got != i {
			t.Errorf("frame %d: got payload %d, want %d", i, got, i)
		}
		q.RemoveFrame()
	}

	if f := q.GetFront(); f != nil {
		t.Error("expected empty queue after draining")
	}
}

func TestFrameQueueFullReturnsNil(t *testing.T) {
	t.Parallel()
	q := newTestQueue(t, 2, ForceDrop)

	if f := q.GetRear(); f == nil {
		t.Fatal("expected first GetRear to succeed")
	}
	q.AddFrame()
	if f := q.GetRear(); f == nil {
		t.Fatal("expected second GetRear to succeed")
	}
	q.AddFrame()

	if f := q.GetRear(); f != nil {
		t.Error("expected GetRear to return nil when full")
	}
}

// TestOverloadDrop exercises S3: a producer writing twice as fast as a
// consumer drains a capacity-2 queue drops the older, unconsumed frame via
// ForceGetRear, never the newer one.
func TestOverloadDrop(t *testing.T) {
	t.Parallel()
	q := newTestQueue(t, 2, ForceDrop)

	write := func(v byte) {
		f := q.GetRear()
		if f == nil {
			f = q.ForceGetRear()
		}
		f.Buffer()[0] = v
		f.SetLength(1)
		q.AddFrame()
	}

	write(1)
	write(2)
	write(3) // queue full: must force-drop frame 1
	write(4) // queue full: must force-drop frame 2

	first := q.GetFront()
	if first == nil || first.Payload()[0] != 3 {
		t.Fatalf("expected surviving frame 3 at front, got %+v", first)
	}
	q.RemoveFrame()

	second := q.GetFront()
	if second == nil || second.Payload()[0] != 4 {
		t.Fatalf("expected surviving frame 4 at front, got %+v", second)
	}
}

// TestForceGetFrontDuplicate exercises property 6: ForceGetFront on an
// empty queue returns the most recently retired frame under ForceDuplicate,
// and never advances front past rear.
func TestForceGetFrontDuplicate(t *testing.T) {
	t.Parallel()
	q := newTestQueue(t, 2, ForceDuplicate)

	if f := q.ForceGetFront(); f != nil {
		t.Error("expected nil before any frame has ever been retired")
	}

	f := q.GetRear()
	f.Buffer()[0] = 7
	f.SetLength(1)
	q.AddFrame()
	q.RemoveFrame()

	dup := q.ForceGetFront()
	if dup == nil || dup.Payload()[0] != 7 {
		t.Fatalf("expected duplicate of retired frame, got %+v", dup)
	}
	// Calling it again must not advance anything further.
	dup2 := q.ForceGetFront()
	if dup2 != dup {
		t.Error("expected the same retired frame to be returned again")
	}
}

func TestForceGetFrontDrop(t *testing.T) {
	t.Parallel()
	q := newTestQueue(t, 2, ForceDrop)

	f := q.GetRear()
	f.SetLength(1)
	q.AddFrame()
	q.RemoveFrame()

	if f := q.ForceGetFront(); f != nil {
		t.Error("ForceDrop policy must return nil on an empty queue")
	}
}
