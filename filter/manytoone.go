package filter

import (
	"time"

	"github.com/zsiec/mediagraph/frame"
)

// ManyToOneProcessor merges frames from multiple inputs into a single
// output. Absent inputs are represented as nil map entries; the processor
// decides whether it has enough inputs to emit. If emit is false, none of
// the inputs are consumed and the cycle is retried.
type ManyToOneProcessor interface {
	ProcessManyToOne(inputs map[int]*frame.Frame, dst *frame.Frame) (emit bool, err error)
}

// ManyToOne is the N→1 filter arity: N Readers, exactly one Writer.
type ManyToOne struct {
	*Base
	proc ManyToOneProcessor
}

// NewManyToOne constructs an N→1 filter driven by proc, accepting up to
// maxReaders inputs.
func NewManyToOne(id ID, kind string, maxReaders int, alloc QueueAllocator, events EventMap, proc ManyToOneProcessor) *ManyToOne {
	return &ManyToOne{
		Base: NewBase(id, kind, maxReaders, 1, alloc, events, nil),
		proc: proc,
	}
}

// Process gathers a readerID→frame map from every registered Reader
// (absent inputs are nil), and commits the writer plus every non-nil input
// only if the processor emits.
func (f *ManyToOne) Process() Status {
	w, ok := f.Writer(0)
	if !ok {
		time.Sleep(retryInterval)
		return StatusIdle
	}
	dst := w.GetRear()
	if dst == nil {
		time.Sleep(retryInterval)
		return StatusIdle
	}

	inputs := make(map[int]*frame.Frame)
	for _, id := range f.ReaderIDs() {
		r, ok := f.Reader(id)
		if !ok {
			continue
		}
		inputs[id] = r.GetFrame(false)
	}

	emit, err := f.proc.ProcessManyToOne(inputs, dst)
	if err != nil {
		f.Log().Debug("process many-to-one failed", "error", err)
		for id, fr := range inputs {
			if fr == nil {
				continue
			}
			if r, ok := f.Reader(id); ok {
				r.RemoveFrame()
			}
		}
		return StatusFailed
	}
	if !emit {
		time.Sleep(retryInterval)
		return StatusIdle
	}

	w.AddFrame()
	for id, fr := range inputs {
		if fr == nil {
			continue
		}
		if r, ok := f.Reader(id); ok {
			r.RemoveFrame()
		}
	}
	return StatusProcessed
}
