package stage

import (
	"errors"

	"github.com/cwbudde/algo-reamp/dsp/buffer"
	"github.com/cwbudde/algo-reamp/plugin"
)

// Errors returned by stage adapters.
var (
	ErrNotPrepared = errors.New("stage: render before prepare")
	ErrNilInput    = errors.New("stage: nil input")
)

// Format is the negotiated sample format of a stage.
type Format = plugin.Format

// DefaultFormat is used when the input buffer has no usable format.
var DefaultFormat = Format{SampleRate: 48000, Channels: 2}

// Stage is one element of a processing chain as seen by the renderer.
//
// A render pass calls Prepare once with the stage's full input, then
// Render repeatedly until the stage reports StatusInsufficientInput or
// ExpectedFrames frames have been produced.
type Stage interface {
	Name() string
	Format() Format

	// Prepare binds input for the next render pass. maxFrames bounds the
	// frames per Render call.
	Prepare(input *buffer.Audio, maxFrames int) error

	// ExpectedFrames is the output length of the prepared pass.
	ExpectedFrames() int

	// Render writes up to len(dst[0]) frames into dst.
	Render(dst [][]float32) (int, plugin.Status)

	Close() error
}
