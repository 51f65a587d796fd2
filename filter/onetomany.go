package filter

import (
	"time"

	"github.com/zsiec/mediagraph/frame"
)

// OneToManyProcessor fans a single input frame out to multiple outputs.
// produced marks which writer ids actually got a frame this cycle; writers
// absent from produced (or mapped to false) are left uncommitted.
type OneToManyProcessor interface {
	ProcessOneToMany(src *frame.Frame, dsts map[int]*frame.Frame) (produced map[int]bool, err error)
}

// OneToMany is the 1→N filter arity: exactly one Reader, N Writers.
type OneToMany struct {
	*Base
	proc OneToManyProcessor
}

// NewOneToMany constructs a 1→N filter driven by proc, emitting into up to
// maxWriters outputs.
func NewOneToMany(id ID, kind string, maxWriters int, alloc QueueAllocator, events EventMap, proc OneToManyProcessor) *OneToMany {
	return &OneToMany{
		Base: NewBase(id, kind, 1, maxWriters, alloc, events, nil),
		proc: proc,
	}
}

// Process reads the single input, fans out into every registered Writer's
// rear slot, and commits whichever writers the processor marked produced.
// The single front is always committed afterward: one read feeds every
// cycle regardless of how many outputs actually fired.
func (f *OneToMany) Process() Status {
	r, ok := f.Reader(0)
	if !ok {
		time.Sleep(retryInterval)
		return StatusIdle
	}
	src := r.GetFrame(false)
	if src == nil {
		time.Sleep(retryInterval)
		return StatusIdle
	}

	dsts := make(map[int]*frame.Frame)
	for _, id := range f.WriterIDs() {
		w, ok := f.Writer(id)
		if !ok {
			continue
		}
		dsts[id] = w.GetRear()
	}

	produced, err := f.proc.ProcessOneToMany(src, dsts)
	if err != nil {
		f.Log().Debug("process one-to-many failed", "error", err)
		r.RemoveFrame()
		return StatusFailed
	}

	for id, ok := range produced {
		if !ok {
			continue
		}
		if w, ok := f.Writer(id); ok {
			w.AddFrame()
		}
	}
	r.RemoveFrame()
	return StatusProcessed
}
