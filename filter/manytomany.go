package filter

import (
	"time"

	"github.com/zsiec/mediagraph/frame"
)

// ManyToManyProcessor is the union of ManyToOneProcessor and
// OneToManyProcessor: it reads a set of inputs (nil where absent) and
// writes a set of outputs, deciding per cycle whether it has enough input
// to emit anything at all.
type ManyToManyProcessor interface {
	ProcessManyToMany(inputs map[int]*frame.Frame, dsts map[int]*frame.Frame) (produced map[int]bool, err error)
}

// ManyToMany is the N→N filter arity: N Readers, N Writers.
type ManyToMany struct {
	*Base
	proc ManyToManyProcessor
}

// NewManyToMany constructs an N→N filter driven by proc.
func NewManyToMany(id ID, kind string, maxReaders, maxWriters int, alloc QueueAllocator, events EventMap, proc ManyToManyProcessor) *ManyToMany {
	return &ManyToMany{
		Base: NewBase(id, kind, maxReaders, maxWriters, alloc, events, nil),
		proc: proc,
	}
}

// Process gathers every input and every writable output in one shot, then
// commits only if the processor produced at least one output — matching
// ManyToOne's all-or-nothing input consumption, fanned out across multiple
// writers like OneToMany.
func (f *ManyToMany) Process() Status {
	inputs := make(map[int]*frame.Frame)
	for _, id := range f.ReaderIDs() {
		if r, ok := f.Reader(id); ok {
			inputs[id] = r.GetFrame(false)
		}
	}

	dsts := make(map[int]*frame.Frame)
	for _, id := range f.WriterIDs() {
		if w, ok := f.Writer(id); ok {
			dsts[id] = w.GetRear()
		}
	}

	produced, err := f.proc.ProcessManyToMany(inputs, dsts)
	if err != nil {
		f.Log().Debug("process many-to-many failed", "error", err)
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
	emitted := false
	for _, ok := range produced {
		if ok {
			emitted = true
			break
		}
	}
	if !emitted {
		time.Sleep(retryInterval)
		return StatusIdle
	}

	for id, ok := range produced {
		if !ok {
			continue
		}
		if w, ok := f.Writer(id); ok {
			w.AddFrame()
		}
	}
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
