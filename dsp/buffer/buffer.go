package buffer

import (
	"errors"
	"fmt"
	"math"
)

// Errors returned by buffer constructors.
var (
	ErrRaggedChannels = errors.New("buffer: channels differ in length")
	ErrNoChannels     = errors.New("buffer: no channels")
)

// Audio is a block of de-interleaved PCM audio.
//
// Channels holds one contiguous float32 slice per channel; all channels have
// the same length. A stage that produces an Audio hands it off to the next
// consumer and must not touch it afterwards.
type Audio struct {
	SampleRate float64
	Channels   [][]float32
}

// New returns a zero-filled Audio with the given layout.
// Negative sizes are clamped to zero.
func New(sampleRate float64, channels, frames int) *Audio {
	if channels < 0 {
		channels = 0
	}

	if frames < 0 {
		frames = 0
	}

	a := &Audio{SampleRate: sampleRate, Channels: make([][]float32, channels)}

	backing := make([]float32, channels*frames)
	for ch := range a.Channels {
		a.Channels[ch] = backing[ch*frames : (ch+1)*frames : (ch+1)*frames]
	}

	return a
}

// FromChannels wraps existing channel slices without copying.
func FromChannels(sampleRate float64, channels ...[]float32) (*Audio, error) {
	if len(channels) == 0 {
		return nil, ErrNoChannels
	}

	n := len(channels[0])
	for ch, s := range channels[1:] {
		if len(s) != n {
			return nil, fmt.Errorf("%w: channel %d has %d frames, want %d", ErrRaggedChannels, ch+1, len(s), n)
		}
	}

	return &Audio{SampleRate: sampleRate, Channels: channels}, nil
}

// NumChannels returns the channel count.
func (a *Audio) NumChannels() int {
	if a == nil {
		return 0
	}

	return len(a.Channels)
}

// Frames returns the number of frames per channel.
func (a *Audio) Frames() int {
	if a == nil || len(a.Channels) == 0 {
		return 0
	}

	return len(a.Channels[0])
}

// Duration returns the length in seconds, or 0 for a zero sample rate.
func (a *Audio) Duration() float64 {
	if a == nil || a.SampleRate <= 0 {
		return 0
	}

	return float64(a.Frames()) / a.SampleRate
}

// Clone returns a deep copy.
func (a *Audio) Clone() *Audio {
	out := New(a.SampleRate, a.NumChannels(), a.Frames())
	for ch := range a.Channels {
		copy(out.Channels[ch], a.Channels[ch])
	}

	return out
}

// Slice returns a view of frames [start, end). Indices are clamped.
// The view shares memory with a.
func (a *Audio) Slice(start, end int) *Audio {
	n := a.Frames()
	start = max(0, min(start, n))
	end = max(start, min(end, n))

	out := &Audio{SampleRate: a.SampleRate, Channels: make([][]float32, len(a.Channels))}
	for ch := range a.Channels {
		out.Channels[ch] = a.Channels[ch][start:end]
	}

	return out
}

// Truncate shortens every channel to n frames. It is a no-op when n is not
// smaller than the current length.
func (a *Audio) Truncate(n int) {
	if n < 0 {
		n = 0
	}

	for ch := range a.Channels {
		if n < len(a.Channels[ch]) {
			a.Channels[ch] = a.Channels[ch][:n]
		}
	}
}

// Zero sets all samples to 0.
func (a *Audio) Zero() {
	for _, s := range a.Channels {
		for i := range s {
			s[i] = 0
		}
	}
}

// CopyAt copies src into a starting at frame offset and returns the number of
// frames copied. Channels missing in src are left untouched.
func (a *Audio) CopyAt(offset int, src *Audio) int {
	if offset < 0 || offset >= a.Frames() {
		return 0
	}

	n := 0
	for ch := range a.Channels {
		if ch >= src.NumChannels() {
			break
		}

		n = copy(a.Channels[ch][offset:], src.Channels[ch])
	}

	return n
}

// Peak returns the largest absolute sample value over all channels.
func (a *Audio) Peak() float64 {
	peak := 0.0
	for _, s := range a.Channels {
		for _, v := range s {
			if abs := math.Abs(float64(v)); abs > peak {
				peak = abs
			}
		}
	}

	return peak
}

// Equal reports whether a and b have the same layout and bit-identical samples.
func (a *Audio) Equal(b *Audio) bool {
	if a == nil || b == nil {
		return a == b
	}

	if a.SampleRate != b.SampleRate || len(a.Channels) != len(b.Channels) {
		return false
	}

	for ch := range a.Channels {
		x, y := a.Channels[ch], b.Channels[ch]
		if len(x) != len(y) {
			return false
		}

		for i := range x {
			if math.Float32bits(x[i]) != math.Float32bits(y[i]) {
				return false
			}
		}
	}

	return true
}
