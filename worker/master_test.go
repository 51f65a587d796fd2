package worker

import (
	"testing"
	"time"

	"github.com/zsiec/mediagraph/frame"
	"github.com/zsiec/mediagraph/queue"
)

// sumMaster partitions a fixed-length byte buffer evenly across its Slaves;
// each Slave sums its partition (every byte treated as a sample of value
// 0 or 1) into partials[id], and ProcessAll sums the partials into dst.
type sumMaster struct {
	readerQ *queue.FrameQueue
	writerQ *queue.FrameQueue
	reader  *queue.Reader
	writer  *queue.Writer

	nslaves  int
	partials []int64
}

func newSumMaster(nslaves, length int) *sumMaster {
	q := queue.New(2, length, frame.Format{}, queue.ForceDrop)
	wq := queue.New(2, 8, frame.Format{}, queue.ForceDrop)
	m := &sumMaster{
		readerQ:  q,
		writerQ:  wq,
		reader:   queue.NewReader(q, nil),
		writer:   queue.NewWriter(wq),
		nslaves:  nslaves,
		partials: make([]int64, nslaves),
	}
	q.SetConnected(true)
	wq.SetConnected(true)
	return m
}

func (m *sumMaster) Reader(id int) (*queue.Reader, bool) { return m.reader, true }
func (m *sumMaster) Writer(id int) (*queue.Writer, bool) { return m.writer, true }

func (m *sumMaster) partitionBounds(id, length int) (int, int) {
	chunk := length / m.nslaves
	start := id * chunk
	end := start + chunk
	if id == m.nslaves-1 {
		end = length
	}
	return start, end
}

func (m *sumMaster) processSlave(id int, origin *frame.Frame) {
	start, end := m.partitionBounds(id, origin.Length())
	var sum int64
	for _, b := range origin.Payload()[start:end] {
		sum += int64(b)
	}
	m.partials[id] = sum
}

func (m *sumMaster) ProcessAll(origin, dst *frame.Frame) error {
	var total int64
	for _, p := range m.partials {
		total += p
	}
	dst.Buffer()[0] = byte(total)
	dst.SetLength(1)
	return nil
}

type slaveAdapter struct {
	m  *sumMaster
	id int
}

func (a *slaveAdapter) ProcessSlave(id int, origin *frame.Frame) { a.m.processSlave(id, origin) }

// TestMasterSlaveFanOutSum covers S6 with a smaller buffer: a single result
// byte cannot hold a sum of 400, so 4 Slaves sum quarters of a 100-sample
// all-ones buffer (25 samples of value 1 per slave) and the Master commits
// an output frame whose single result byte is 100.
func TestMasterSlaveFanOutSum(t *testing.T) {
	t.Parallel()

	const nslaves = 4
	const length = 100 // 25 samples per slave, value 1 each -> total 100

	m := newSumMaster(nslaves, length)

	slaves := make([]*Slave, 0, nslaves)
	for i := 0; i < nslaves; i++ {
		s := NewSlave(i, &slaveAdapter{m: m, id: i}, nil)
		slaves = append(slaves, s)
	}

	master := NewMaster(m, 0, 0, 0, nil)
	for _, s := range slaves {
		if err := master.AddSlave(s); err != nil {
			t.Fatalf("AddSlave: %v", err)
		}
	}

	in := m.readerQ.GetRear()
	for i := range in.Buffer()[:length] {
		in.Buffer()[i] = 1
	}
	in.SetLength(length)
	m.readerQ.AddFrame()

	master.Start()
	defer master.Stop()

	deadline := time.Now().Add(2 * time.Second)
	var out *frame.Frame
	for time.Now().Before(deadline) {
		out = m.writerQ.GetFront()
		if out != nil {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if out == nil {
		t.Fatal("timed out waiting for Master to commit an output frame")
	}
	if got := int(out.Payload()[0]); got != length {
		t.Fatalf("expected summed output %d, got %d", length, got)
	}
}

// TestMasterSlavesInvokedExactlyOncePerCycle covers property 5: each Slave
// processes exactly one frame for each frame the Master consumes.
func TestMasterSlavesInvokedExactlyOncePerCycle(t *testing.T) {
	t.Parallel()

	const nslaves = 2
	const length = 10

	m := newSumMaster(nslaves, length)
	counts := make([]int, nslaves)

	slaves := make([]*Slave, 0, nslaves)
	for i := 0; i < nslaves; i++ {
		idx := i
		s := NewSlave(i, countingSlaveFunc(func(id int, origin *frame.Frame) {
			counts[idx]++
			m.processSlave(id, origin)
		}), nil)
		slaves = append(slaves, s)
	}

	master := NewMaster(m, 0, 0, 0, nil)
	for _, s := range slaves {
		master.AddSlave(s)
	}

	// Fill the input ring to its capacity; each frame is one Master cycle.
	frames := m.readerQ.Capacity()
	for n := 0; n < frames; n++ {
		in := m.readerQ.GetRear()
		in.SetLength(length)
		m.readerQ.AddFrame()
	}

	master.Start()
	defer master.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.readerQ.GetFront() == nil {
			break
		}
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	master.Stop()

	for i, c := range counts {
		if c != frames {
			t.Fatalf("slave %d invoked %d times for %d consumed frames, want one call per frame", i, c, frames)
		}
	}
}

type countingSlaveFunc func(id int, origin *frame.Frame)

func (f countingSlaveFunc) ProcessSlave(id int, origin *frame.Frame) { f(id, origin) }
