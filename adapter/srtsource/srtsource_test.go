package srtsource

import (
	"testing"

	"github.com/zsiec/mediagraph/frame"
	"github.com/zsiec/mediagraph/queue"
)

func TestPushCommitsFrameWithinCapacity(t *testing.T) {
	t.Parallel()

	q := queue.New(2, 16, frame.Format{Kind: frame.KindOpaque}, queue.ForceDrop)
	w := queue.NewWriter(q)
	s := &Source{writer: w}

	s.push([]byte("hello"))

	got := q.GetFront()
	if got == nil {
		t.Fatal("expected a committed frame")
	}
	if string(got.Payload()) != "hello" {
		t.Fatalf("expected payload %q, got %q", "hello", got.Payload())
	}
}

func TestPushTruncatesOversizedChunk(t *testing.T) {
	t.Parallel()

	q := queue.New(2, 4, frame.Format{Kind: frame.KindOpaque}, queue.ForceDrop)
	w := queue.NewWriter(q)
	s := &Source{writer: w}

	s.push([]byte("way too long"))

	got := q.GetFront()
	if got == nil {
		t.Fatal("expected a committed frame")
	}
	if got.Length() != 4 {
		t.Fatalf("expected truncation to 4 bytes, got %d", got.Length())
	}
}

func TestPushOverloadForceEvictsOldest(t *testing.T) {
	t.Parallel()

	q := queue.New(1, 16, frame.Format{Kind: frame.KindOpaque}, queue.ForceDrop)
	w := queue.NewWriter(q)
	s := &Source{writer: w}

	s.push([]byte("first"))
	s.push([]byte("second"))

	got := q.GetFront()
	if got == nil {
		t.Fatal("expected a committed frame after forced eviction")
	}
	if string(got.Payload()) != "second" {
		t.Fatalf("expected the overload push to win the only slot, got %q", got.Payload())
	}
}
