package filter

import (
	"testing"

	"github.com/zsiec/mediagraph/frame"
	"github.com/zsiec/mediagraph/queue"
)

const testMaxLength = 16

func testAllocator(capacity int) QueueAllocator {
	return func(writerID int) (*queue.FrameQueue, error) {
		return queue.New(capacity, testMaxLength, frame.Format{Kind: frame.KindOpaque}, queue.ForceDrop), nil
	}
}

type identityProcessor struct{}

func (identityProcessor) ProcessFrame(src, dst *frame.Frame) error {
	n := copy(dst.Buffer(), src.Payload())
	dst.SetLength(n)
	dst.PresentationTime = src.PresentationTime
	return nil
}

func writeFrame(t *testing.T, w *queue.Writer, payload byte, pts int64) {
	t.Helper()
	f := w.GetRear()
	if f == nil {
		t.Fatal("expected a writable rear slot")
	}
	f.Buffer()[0] = payload
	f.SetLength(1)
	f.PresentationTime = pts
	w.AddFrame()
}

// TestOneToOnePassThrough exercises S1: two chained identity filters
// deliver frames in order with timestamps preserved.
func TestOneToOnePassThrough(t *testing.T) {
	t.Parallel()

	a := NewOneToOne(1, "identity", testAllocator(4), nil, identityProcessor{})
	b := NewOneToOne(2, "identity", testAllocator(4), nil, identityProcessor{})

	if err := Connect(a, 0, b, 0); err != nil {
		t.Fatalf("connect a->b: %v", err)
	}

	// Attach a test Reader to B's output, standing in for a downstream sink.
	if _, err := b.AllocQueue(0); err != nil {
		t.Fatalf("alloc B's output queue: %v", err)
	}
	bWriter, _ := b.Writer(0)
	outReader := queue.NewReader(nil, nil)
	if !bWriter.Connect(outReader) {
		t.Fatal("connect B's output to the test reader")
	}

	// Feed A directly via a test Writer standing in for an upstream source.
	srcQueue := queue.New(4, testMaxLength, frame.Format{Kind: frame.KindOpaque}, queue.ForceDrop)
	srcWriter := queue.NewWriter(srcQueue)
	aReader, err := a.SetReader(0, srcQueue)
	if err != nil {
		t.Fatalf("bind source to A: %v", err)
	}
	srcWriter.Connect(aReader)

	payloads := []byte{0x01, 0x02, 0x03}
	for i, p := range payloads {
		writeFrame(t, srcWriter, p, int64(i+1))
	}

	for i, want := range payloads {
		if st := a.Process(); st != StatusProcessed {
			t.Fatalf("A.Process(): got %v, want processed", st)
		}
		if st := b.Process(); st != StatusProcessed {
			t.Fatalf("B.Process(): got %v, want processed", st)
		}

		got := outReader.GetFrame(false)
		if got == nil {
			t.Fatal("expected a frame at B's output reader")
		}
		if got.Payload()[0] != want {
			t.Errorf("payload: got %#x, want %#x", got.Payload()[0], want)
		}
		if got.PresentationTime != int64(i+1) {
			t.Errorf("pts: got %d, want %d", got.PresentationTime, i+1)
		}
		outReader.RemoveFrame()
	}
}

// TestConnectRollsBackOnFailure exercises S5: if the destination's
// SetReader fails, the link is not left half-connected.
func TestConnectRollsBackOnFailure(t *testing.T) {
	t.Parallel()

	a := NewOneToOne(1, "identity", testAllocator(4), nil, identityProcessor{})
	// maxReaders is 1; pre-fill it so the real SetReader call fails.
	dummyQueue := queue.New(1, testMaxLength, frame.Format{Kind: frame.KindOpaque}, queue.ForceDrop)
	b := NewOneToOne(2, "identity", testAllocator(4), nil, identityProcessor{})
	if _, err := b.SetReader(0, dummyQueue); err != nil {
		t.Fatalf("pre-fill b's reader: %v", err)
	}

	err := Connect(a, 0, b, 0)
	if err == nil {
		t.Fatal("expected Connect to fail when destination reader capacity is exceeded")
	}

	if _, ok := a.Writer(0); ok {
		t.Error("expected A's writer to be rolled back after failed connect")
	}
}

func TestProcessEventUnknownAction(t *testing.T) {
	t.Parallel()
	a := NewOneToOne(1, "identity", testAllocator(4), nil, identityProcessor{})
	resp := a.ProcessEvent("doesNotExist", nil)
	if resp["error"] != "unknown action" {
		t.Errorf("expected unknown action error, got %v", resp["error"])
	}
}
