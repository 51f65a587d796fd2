// Package scte35pass implements a concrete OneToOne filter: an ad-marker
// tap sitting on a SCTE-35 elementary stream's own path through the graph.
// It decodes each splice_info_section to classify the segmentation event
// (ad break start/end, chapter, program boundary, ...) for the "lastEvent"
// query action, then passes the section through to the output queue
// unmodified — this repo's scope is routing the marker downstream, not
// acting on it.
package scte35pass

import (
	"fmt"

	"github.com/zsiec/mediagraph/filter"
	"github.com/zsiec/mediagraph/frame"
	"github.com/zsiec/mediagraph/scte35"
)

// Filter wraps a OneToOne node that decodes a SCTE-35 splice_info_section
// from each input Frame's payload and forwards it unchanged.
type Filter struct {
	*filter.OneToOne

	last *eventSummary
}

type eventSummary struct {
	commandType    uint32
	segmentationID uint32
	eventID        uint32
	pts            int64
}

// New constructs a SCTE-35 pass-through filter, allocating its output
// queue via alloc.
func New(id filter.ID, alloc filter.QueueAllocator) *Filter {
	f := &Filter{}
	f.OneToOne = filter.NewOneToOne(id, "scte35pass", alloc, filter.EventMap{
		"lastEvent": f.lastEvent,
	}, f)
	return f
}

// ProcessFrame decodes src's splice_info_section to update the filter's
// last-seen event summary, then copies the section through to dst
// unchanged. A decode failure is reported as an error (no output is
// committed and the input frame is retired) but does not alter the
// last-seen summary.
func (f *Filter) ProcessFrame(src, dst *frame.Frame) error {
	sis, err := scte35.DecodeBytes(src.Payload())
	if err != nil {
		return fmt.Errorf("scte35pass: decode splice_info_section: %w", err)
	}

	if src.Length() > dst.MaxLength() {
		return fmt.Errorf("scte35pass: input frame (%d bytes) exceeds output slot (%d bytes)", src.Length(), dst.MaxLength())
	}
	copy(dst.Buffer(), src.Payload())
	dst.SetLength(src.Length())
	dst.PresentationTime = src.PresentationTime

	summary := &eventSummary{pts: src.PresentationTime}
	if sis.SpliceCommand != nil {
		summary.commandType = sis.SpliceCommand.Type()
	}
	for _, d := range sis.SpliceDescriptors {
		if sd, ok := d.(*scte35.SegmentationDescriptor); ok {
			summary.segmentationID = sd.SegmentationTypeID
			summary.eventID = sd.SegmentationEventID
			break
		}
	}
	f.last = summary

	return nil
}

// lastEvent reports the most recently decoded splice command and
// segmentation type, or {"seen": false} if no section has been decoded
// yet.
func (f *Filter) lastEvent(params map[string]any) (map[string]any, error) {
	if f.last == nil {
		return map[string]any{"seen": false}, nil
	}
	return map[string]any{
		"seen":           true,
		"commandType":    f.last.commandType,
		"segmentationId": f.last.segmentationID,
		"eventId":        f.last.eventID,
		"pts":            f.last.pts,
	}, nil
}
