package stage

import "github.com/cwbudde/algo-reamp/dsp/buffer"

// BufferSource is a plugin.Source reading sequentially from a buffer. When
// the buffer has fewer channels than requested, its last channel is
// repeated; extra buffer channels are dropped.
type BufferSource struct {
	audio *buffer.Audio
	pos   int
}

// NewBufferSource returns a source positioned at the first frame.
func NewBufferSource(a *buffer.Audio) *BufferSource {
	return &BufferSource{audio: a}
}

// Read implements plugin.Source.
func (s *BufferSource) Read(dst [][]float32) int {
	if s.audio == nil || s.audio.NumChannels() == 0 || len(dst) == 0 {
		return 0
	}

	n := min(len(dst[0]), s.Remaining())
	if n <= 0 {
		return 0
	}

	last := s.audio.NumChannels() - 1
	for ch := range dst {
		src := s.audio.Channels[min(ch, last)]
		copy(dst[ch][:n], src[s.pos:s.pos+n])
	}

	s.pos += n

	return n
}

// Remaining returns the number of unread frames.
func (s *BufferSource) Remaining() int {
	if s.audio == nil {
		return 0
	}

	return s.audio.Frames() - s.pos
}

// Rewind moves the source back to the first frame.
func (s *BufferSource) Rewind() {
	s.pos = 0
}

// conform returns a view of a with exactly channels channels, repeating the
// last channel or dropping extras. Sample data is shared, not copied.
func conform(a *buffer.Audio, format Format) *buffer.Audio {
	if a.NumChannels() == format.Channels && a.SampleRate == format.SampleRate {
		return a
	}

	out := &buffer.Audio{SampleRate: format.SampleRate, Channels: make([][]float32, format.Channels)}
	if a.NumChannels() == 0 {
		for ch := range out.Channels {
			out.Channels[ch] = []float32{}
		}

		return out
	}

	last := a.NumChannels() - 1
	for ch := range out.Channels {
		out.Channels[ch] = a.Channels[min(ch, last)]
	}

	return out
}
