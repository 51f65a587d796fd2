package filter

import (
	"time"

	"github.com/zsiec/mediagraph/frame"
)

// retryInterval is the short fixed sleep a filter takes when an endpoint is
// unavailable this cycle. It is deliberately not configurable per filter —
// it only governs how quickly an idle cycle is retried, not any data-plane
// timing.
const retryInterval = 2 * time.Millisecond

// OneToOneProcessor transforms a single input frame into a single output
// frame in place. Returning an error fails the cycle without committing
// the output slot; the failing input frame is retired by the caller, which
// logs the failure and continues.
type OneToOneProcessor interface {
	ProcessFrame(src, dst *frame.Frame) error
}

// OneToOne is the 1→1 filter arity: exactly one Reader, exactly one
// Writer.
type OneToOne struct {
	*Base
	proc OneToOneProcessor
}

// NewOneToOne constructs a 1→1 filter driven by proc.
func NewOneToOne(id ID, kind string, alloc QueueAllocator, events EventMap, proc OneToOneProcessor) *OneToOne {
	return &OneToOne{
		Base: NewBase(id, kind, 1, 1, alloc, events, nil),
		proc: proc,
	}
}

// Process implements the OneToOne contract: read the single Reader's front
// frame, read the single Writer's rear slot, invoke ProcessFrame; on
// success commit rear then front, on failure leave the rear uncommitted and
// retire the failing front frame.
func (f *OneToOne) Process() Status {
	r, ok := f.Reader(0)
	if !ok {
		time.Sleep(retryInterval)
		return StatusIdle
	}
	w, ok := f.Writer(0)
	if !ok {
		time.Sleep(retryInterval)
		return StatusIdle
	}

	src := r.GetFrame(false)
	if src == nil {
		time.Sleep(retryInterval)
		return StatusIdle
	}
	dst := w.GetRear()
	if dst == nil {
		time.Sleep(retryInterval)
		return StatusIdle
	}

	if err := f.proc.ProcessFrame(src, dst); err != nil {
		f.Log().Debug("process frame failed", "error", err)
		r.RemoveFrame()
		return StatusFailed
	}

	w.AddFrame()
	r.RemoveFrame()
	return StatusProcessed
}
