// Package audioenc implements a concrete OneToOne codec filter exercising
// the audio-encoder event-map contract: configure accepts codec,
// sampleRate, channels, and an optional bitrate. The encode step itself is
// a stub — this repo's scope is the graph fabric, not a codec
// implementation — but the reconfiguration contract and Filter arity
// wiring are real.
package audioenc

import (
	"fmt"

	"github.com/zsiec/mediagraph/filter"
	"github.com/zsiec/mediagraph/frame"
)

// defaultBitrate is used when configure omits bitrate, per codec.
var defaultBitrate = map[string]int{
	"pcmu": 64_000,
	"opus": 96_000,
	"aac":  128_000,
	"mp3":  128_000,
}

// Filter is a OneToOne audio encoder stub: it copies the input payload
// through unchanged (the placeholder for a real encode step) but carries
// live, event-driven codec configuration exactly as the graph would need
// from a real encoder.
type Filter struct {
	*filter.OneToOne

	codec      string
	sampleRate int
	channels   int
	bitrate    int
}

// New constructs an audio encoder filter with the given initial
// configuration, allocating its output queue via alloc.
func New(id filter.ID, codec string, sampleRate, channels int, alloc filter.QueueAllocator) *Filter {
	f := &Filter{
		codec:      codec,
		sampleRate: sampleRate,
		channels:   channels,
		bitrate:    defaultBitrate[codec],
	}
	f.OneToOne = filter.NewOneToOne(id, "audioenc", alloc, filter.EventMap{
		"configure": f.configure,
	}, f)
	return f
}

// ProcessFrame encodes src into dst. This stub implementation copies the
// payload through, leaving the real transform to a future codec
// integration; it exists to exercise the Filter arity contract and the
// configure event with a real (if inert) payload.
func (f *Filter) ProcessFrame(src, dst *frame.Frame) error {
	if src.Length() > dst.MaxLength() {
		return fmt.Errorf("audioenc: input frame (%d bytes) exceeds output slot (%d bytes)", src.Length(), dst.MaxLength())
	}
	copy(dst.Buffer(), src.Payload())
	dst.SetLength(src.Length())
	dst.PresentationTime = src.PresentationTime
	return nil
}

// configure implements the "configure" action:
// {codec, sampleRate, channels, bitrate?}.
func (f *Filter) configure(params map[string]any) (map[string]any, error) {
	codec, ok := params["codec"].(string)
	if !ok {
		return nil, fmt.Errorf("configure: missing codec")
	}
	switch codec {
	case "pcmu", "opus", "aac", "mp3":
	default:
		return nil, fmt.Errorf("configure: unsupported codec %q", codec)
	}

	sampleRate, ok := numberParam(params, "sampleRate")
	if !ok {
		return nil, fmt.Errorf("configure: missing sampleRate")
	}
	channels, ok := numberParam(params, "channels")
	if !ok {
		return nil, fmt.Errorf("configure: missing channels")
	}

	f.codec = codec
	f.sampleRate = sampleRate
	f.channels = channels
	if bitrate, ok := numberParam(params, "bitrate"); ok {
		f.bitrate = bitrate
	} else {
		f.bitrate = defaultBitrate[codec]
	}

	return map[string]any{
		"codec":      f.codec,
		"sampleRate": f.sampleRate,
		"channels":   f.channels,
		"bitrate":    f.bitrate,
	}, nil
}

func numberParam(params map[string]any, key string) (int, bool) {
	v, ok := params[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
