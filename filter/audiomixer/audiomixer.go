// Package audiomixer implements a concrete N→1 codec filter exercising
// an audio-mixer event-map contract: per-channel volume, per-channel
// mute/solo, and a master volume/mute, operating on little-endian int16
// PCM samples.
package audiomixer

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/zsiec/mediagraph/filter"
	"github.com/zsiec/mediagraph/frame"
)

// channelState is one input channel's mix state. mute is sugar for "gain
// forced to 0 without discarding the configured volume" (the original
// AudioMixer's model): unmute restores the prior volume rather than
// resetting to 1.0.
type channelState struct {
	volume float64
	muted  bool
	solo   bool
}

func (c *channelState) gain() float64 {
	if c.muted {
		return 0
	}
	return c.volume
}

// Filter is an N→1 audio mixer: one Reader per input channel, one Writer
// for the mixed master output.
type Filter struct {
	*filter.ManyToOne

	mu           sync.Mutex
	channels     map[int]*channelState
	masterVolume float64
	masterMuted  bool
}

// New constructs an audio mixer accepting up to maxChannels inputs, with
// master volume starting at 1.0 and unmuted.
func New(id filter.ID, maxChannels int, alloc filter.QueueAllocator) *Filter {
	f := &Filter{
		channels:     make(map[int]*channelState),
		masterVolume: 1.0,
	}
	f.ManyToOne = filter.NewManyToOne(id, "audiomixer", maxChannels, alloc, filter.EventMap{
		"changeChannelVolume": f.changeChannelVolume,
		"muteChannel":         f.muteChannel,
		"soloChannel":         f.soloChannel,
		"changeMasterVolume":  f.changeMasterVolume,
		"muteMaster":          f.muteMaster,
	}, f)
	return f
}

func (f *Filter) channel(id int) *channelState {
	c, ok := f.channels[id]
	if !ok {
		c = &channelState{volume: 1.0}
		f.channels[id] = c
	}
	return c
}

func (f *Filter) changeChannelVolume(params map[string]any) (map[string]any, error) {
	id, volume, err := idAndFloat(params, "volume")
	if err != nil {
		return nil, err
	}
	if volume < 0 {
		return nil, fmt.Errorf("changeChannelVolume: volume must be >= 0")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channel(id).volume = volume
	return nil, nil
}

func (f *Filter) muteChannel(params map[string]any) (map[string]any, error) {
	id, ok := intParam(params, "id")
	if !ok {
		return nil, fmt.Errorf("muteChannel: missing id")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.channel(id)
	c.muted = !c.muted
	return map[string]any{"muted": c.muted}, nil
}

func (f *Filter) soloChannel(params map[string]any) (map[string]any, error) {
	id, ok := intParam(params, "id")
	if !ok {
		return nil, fmt.Errorf("soloChannel: missing id")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.channel(id)
	c.solo = !c.solo
	return map[string]any{"solo": c.solo}, nil
}

func (f *Filter) changeMasterVolume(params map[string]any) (map[string]any, error) {
	volume, ok := floatParam(params, "volume")
	if !ok {
		return nil, fmt.Errorf("changeMasterVolume: missing volume")
	}
	if volume < 0 {
		return nil, fmt.Errorf("changeMasterVolume: volume must be >= 0")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.masterVolume = volume
	return nil, nil
}

func (f *Filter) muteMaster(params map[string]any) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.masterMuted = !f.masterMuted
	return map[string]any{"muted": f.masterMuted}, nil
}

// ProcessManyToOne mixes every present input channel into dst, honoring
// mute/solo/volume state. If any channel is soloed, only soloed channels
// contribute. It emits only when at least one input channel delivered a
// frame this cycle.
func (f *Filter) ProcessManyToOne(inputs map[int]*frame.Frame, dst *frame.Frame) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	anySolo := false
	for _, c := range f.channels {
		if c.solo {
			anySolo = true
			break
		}
	}

	var present int
	var samples [][]int16
	var gains []float64
	for id, fr := range inputs {
		if fr == nil {
			continue
		}
		present++
		c := f.channel(id)
		gain := c.gain()
		if anySolo && !c.solo {
			gain = 0
		}
		samples = append(samples, decodeInt16(fr.Payload()))
		gains = append(gains, gain)
	}
	if present == 0 {
		return false, nil
	}

	mixed := linearAdditiveMix(samples, gains)

	masterGain := f.masterVolume
	if f.masterMuted {
		masterGain = 0
	}
	applyMasterGain(mixed, masterGain)

	encoded := encodeInt16(mixed)
	if len(encoded) > dst.MaxLength() {
		return false, fmt.Errorf("audiomixer: mixed frame (%d bytes) exceeds output slot (%d bytes)", len(encoded), dst.MaxLength())
	}
	copy(dst.Buffer(), encoded)
	dst.SetLength(len(encoded))
	return true, nil
}

// linearAdditiveMix sums each channel's samples scaled by its gain,
// clamping to int16 range. It takes samples by value and returns a new
// slice rather than mutating any input in place — the original
// LAMixAlgorithm's observable behavior, preserved here rather than
// "fixed": none of the source channel buffers are ever mutated by a mix.
func linearAdditiveMix(samples [][]int16, gains []float64) []int16 {
	length := 0
	for _, s := range samples {
		if len(s) > length {
			length = len(s)
		}
	}
	out := make([]int16, length)
	for i := range samples {
		gain := gains[i]
		for n, v := range samples[i] {
			sum := float64(out[n]) + float64(v)*gain
			out[n] = clampInt16(sum)
		}
	}
	return out
}

func applyMasterGain(samples []int16, gain float64) {
	for i, v := range samples {
		samples[i] = clampInt16(float64(v) * gain)
	}
}

func clampInt16(v float64) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

func decodeInt16(buf []byte) []int16 {
	out := make([]int16, len(buf)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(buf[i*2:]))
	}
	return out
}

func encodeInt16(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func intParam(params map[string]any, key string) (int, bool) {
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

func floatParam(params map[string]any, key string) (float64, bool) {
	v, ok := params[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func idAndFloat(params map[string]any, floatKey string) (int, float64, error) {
	id, ok := intParam(params, "id")
	if !ok {
		return 0, 0, fmt.Errorf("missing id")
	}
	v, ok := floatParam(params, floatKey)
	if !ok {
		return 0, 0, fmt.Errorf("missing %s", floatKey)
	}
	return id, v, nil
}
