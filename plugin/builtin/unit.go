package builtin

import (
	"fmt"

	"github.com/cwbudde/algo-reamp/plugin"
)

// processor is the DSP core behind a unit. Blocks are processed per
// channel, in place, in float64.
type processor interface {
	// update recomputes coefficients from params and sizes per-channel
	// state for format.
	update(params *plugin.Params, format plugin.Format)
	process(ch int, block []float64)
	reset()
}

// unit adapts a processor to plugin.Unit. It pulls input from the Source,
// converts to float64, runs the processor and writes the result.
type unit struct {
	info   plugin.Info
	params *plugin.Params
	proc   processor

	format    plugin.Format
	maxFrames int
	dirty     bool

	in   [][]float32
	work []float64
}

func newUnit(info plugin.Info, proc processor, params ...plugin.Parameter) *unit {
	return &unit{
		info:   info,
		params: plugin.NewParams(params...),
		proc:   proc,
		dirty:  true,
	}
}

func (u *unit) Info() plugin.Info { return u.info }

func (u *unit) Parameters() []plugin.Parameter { return u.params.List() }

func (u *unit) State() map[string]float64 { return u.params.Snapshot() }

func (u *unit) SetState(values map[string]float64) error {
	u.params.Apply(values)
	u.dirty = true

	return nil
}

func (u *unit) Reset() {
	u.params.Reset()
	u.dirty = true
	u.proc.reset()
}

func (u *unit) Configure(format plugin.Format, maxFrames int) error {
	if !format.Valid() || maxFrames <= 0 {
		return fmt.Errorf("%w: %v Hz, %d channels, %d frames",
			plugin.ErrBadFormat, format.SampleRate, format.Channels, maxFrames)
	}

	u.format = format
	u.maxFrames = maxFrames

	u.in = make([][]float32, format.Channels)
	for ch := range u.in {
		u.in[ch] = make([]float32, maxFrames)
	}

	u.work = make([]float64, maxFrames)

	u.proc.update(u.params, u.format)
	u.proc.reset()
	u.dirty = false

	return nil
}

func (u *unit) Render(src plugin.Source, dst [][]float32) (int, plugin.Status) {
	if u.maxFrames == 0 || len(dst) != u.format.Channels {
		return 0, plugin.StatusError
	}

	n := min(len(dst[0]), u.maxFrames)

	in := make([][]float32, len(u.in))
	for ch := range in {
		in[ch] = u.in[ch][:n]
	}

	frames := src.Read(in)
	if frames == 0 {
		return 0, plugin.StatusInsufficientInput
	}

	if u.dirty {
		u.proc.update(u.params, u.format)
		u.dirty = false
	}

	work := u.work[:frames]

	for ch := range dst {
		for i, v := range in[ch][:frames] {
			work[i] = float64(v)
		}

		u.proc.process(ch, work)

		out := dst[ch]
		for i, v := range work {
			out[i] = float32(v)
		}
	}

	return frames, plugin.StatusSuccess
}

func (u *unit) Close() error {
	u.in = nil
	u.work = nil
	u.maxFrames = 0

	return nil
}
