// Package captionpass implements a concrete OneToOne codec filter: a
// closed-caption pass-through/repaginator sitting between a demux source
// and the graph's caption-carrying path, operating on the same
// ccx.CaptionFrame shape the original distribution relay broadcasts to
// viewers.
package captionpass

import (
	"encoding/json"
	"fmt"

	"github.com/zsiec/ccx"

	"github.com/zsiec/mediagraph/filter"
	"github.com/zsiec/mediagraph/frame"
)

// maxLine is the page width, in runes, at which a caption frame's text is
// split, mirroring a caption decoder's roll-up limit.
const maxLine = 32

// Filter wraps a OneToOne node that decodes a ccx.CaptionFrame from each
// input Frame's payload, repaginates text longer than maxLine, and
// re-encodes the first page into the output Frame; later pages are dropped.
type Filter struct {
	*filter.OneToOne
	channel int
}

// New constructs a caption pass-through filter for the given channel,
// allocating its output queue via alloc.
func New(id filter.ID, channel int, alloc filter.QueueAllocator) *Filter {
	f := &Filter{channel: channel}
	f.OneToOne = filter.NewOneToOne(id, "captionpass", alloc, nil, f)
	return f
}

// ProcessFrame decodes src's JSON-encoded ccx.CaptionFrame, splits it into
// page-sized lines if needed, and writes the (first) resulting frame to
// dst. Repagination never increases the channel the caption frame
// identifies.
func (f *Filter) ProcessFrame(src, dst *frame.Frame) error {
	var cf ccx.CaptionFrame
	if err := json.Unmarshal(src.Payload(), &cf); err != nil {
		return fmt.Errorf("captionpass: decode caption frame: %w", err)
	}

	lines := paginate(cf.Text, maxLine)
	out := ccx.CaptionFrame{
		PTS:     cf.PTS,
		Text:    lines[0],
		Channel: cf.Channel,
	}

	encoded, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("captionpass: encode caption frame: %w", err)
	}
	if len(encoded) > dst.MaxLength() {
		return fmt.Errorf("captionpass: encoded frame (%d bytes) exceeds queue slot (%d bytes)", len(encoded), dst.MaxLength())
	}
	copy(dst.Buffer(), encoded)
	dst.SetLength(len(encoded))
	return nil
}

// paginate splits text into chunks of at most width runes, breaking on
// spaces where possible. It always returns at least one element, even for
// an empty string.
func paginate(text string, width int) []string {
	if len(text) <= width {
		return []string{text}
	}

	var pages []string
	runes := []rune(text)
	for len(runes) > width {
		breakAt := width
		for i := width; i > 0; i-- {
			if runes[i] == ' ' {
				breakAt = i
				break
			}
		}
		pages = append(pages, string(runes[:breakAt]))
		runes = runes[breakAt:]
		for len(runes) > 0 && runes[0] == ' ' {
			runes = runes[1:]
		}
	}
	pages = append(pages, string(runes))
	return pages
}
