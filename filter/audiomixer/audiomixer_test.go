package audiomixer

import (
	"encoding/binary"
	"testing"

	"github.com/zsiec/mediagraph/frame"
	"github.com/zsiec/mediagraph/queue"
)

func newTestFilter(t *testing.T, maxChannels int) (f *Filter, ins []*queue.FrameQueue, out *queue.FrameQueue) {
	t.Helper()
	out = queue.New(2, 64, frame.Format{Kind: frame.KindAudio}, queue.ForceDuplicate)
	alloc := func(writerID int) (*queue.FrameQueue, error) { return out, nil }
	f = New(1, maxChannels, alloc)

	if _, err := f.AllocQueue(0); err != nil {
		t.Fatalf("AllocQueue: %v", err)
	}
	out.SetConnected(true)

	for i := 0; i < maxChannels; i++ {
		q := queue.New(2, 64, frame.Format{Kind: frame.KindAudio}, queue.ForceDuplicate)
		if _, err := f.SetReader(i, q); err != nil {
			t.Fatalf("SetReader %d: %v", i, err)
		}
		q.SetConnected(true)
		ins = append(ins, q)
	}
	return f, ins, out
}

func pushSamples(t *testing.T, q *queue.FrameQueue, samples []int16) {
	t.Helper()
	slot := q.GetRear()
	if slot == nil {
		t.Fatal("queue full")
	}
	buf := slot.Buffer()
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	slot.SetLength(len(samples) * 2)
	q.AddFrame()
}

func readSamples(t *testing.T, fr *frame.Frame) []int16 {
	t.Helper()
	payload := fr.Payload()
	out := make([]int16, len(payload)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(payload[i*2:]))
	}
	return out
}

func TestMuteChannelPreservesVolumeOnUnmute(t *testing.T) {
	t.Parallel()

	f, ins, out := newTestFilter(t, 1)

	f.ProcessEvent("changeChannelVolume", map[string]any{"id": 0, "volume": 0.5})
	f.ProcessEvent("muteChannel", map[string]any{"id": 0})

	pushSamples(t, ins[0], []int16{1000})
	status := f.Process()
	if status.String() != "processed" {
		t.Fatalf("expected processed, got %v", status)
	}
	mixed := readSamples(t, out.GetFront())
	if mixed[0] != 0 {
		t.Fatalf("expected muted channel to contribute 0, got %d", mixed[0])
	}
	out.RemoveFrame()

	f.ProcessEvent("muteChannel", map[string]any{"id": 0}) // unmute

	pushSamples(t, ins[0], []int16{1000})
	f.Process()
	mixed = readSamples(t, out.GetFront())
	if mixed[0] != 500 {
		t.Fatalf("expected unmute to restore volume 0.5 (500), got %d", mixed[0])
	}
}

func TestSoloSilencesNonSoloedChannels(t *testing.T) {
	t.Parallel()

	f, ins, out := newTestFilter(t, 2)
	f.ProcessEvent("soloChannel", map[string]any{"id": 0})

	pushSamples(t, ins[0], []int16{1000})
	pushSamples(t, ins[1], []int16{1000})
	f.Process()

	mixed := readSamples(t, out.GetFront())
	if mixed[0] != 1000 {
		t.Fatalf("expected soloed channel to pass through at full volume, got %d", mixed[0])
	}
}

func TestLinearAdditiveMixDoesNotMutateInputs(t *testing.T) {
	t.Parallel()

	a := []int16{100, 200}
	b := []int16{300, 400}
	aCopy := append([]int16{}, a...)
	bCopy := append([]int16{}, b...)

	_ = linearAdditiveMix([][]int16{a, b}, []float64{1, 1})

	for i := range a {
		if a[i] != aCopy[i] || b[i] != bCopy[i] {
			t.Fatal("linearAdditiveMix must not mutate its input slices")
		}
	}
}
