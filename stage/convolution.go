package stage

import (
	"fmt"

	"github.com/cwbudde/algo-reamp/dsp/buffer"
	"github.com/cwbudde/algo-reamp/dsp/conv"
	"github.com/cwbudde/algo-reamp/plugin"
)

// ConvolutionStage applies an impulse response. The whole convolution is
// computed in Prepare; Render hands it out in chunks.
type ConvolutionStage struct {
	kernel *conv.Kernel
	format Format
	name   string
	opts   []conv.Option

	out *buffer.Audio
	pos int
}

// NewConvolutionStage takes ownership of kernel.
func NewConvolutionStage(name string, kernel *conv.Kernel, format Format, opts ...conv.Option) (*ConvolutionStage, error) {
	if kernel.Len() == 0 {
		return nil, conv.ErrEmptyKernel
	}

	return &ConvolutionStage{
		kernel: kernel,
		format: format,
		name:   name,
		opts:   opts,
	}, nil
}

// Kernel returns the loaded impulse response.
func (s *ConvolutionStage) Kernel() *conv.Kernel { return s.kernel }

func (s *ConvolutionStage) Name() string { return s.name }

func (s *ConvolutionStage) Format() Format { return s.format }

func (s *ConvolutionStage) Prepare(input *buffer.Audio, _ int) error {
	if input == nil {
		return ErrNilInput
	}

	s.out = nil
	s.pos = 0

	if input.Frames() == 0 {
		s.out = buffer.New(s.format.SampleRate, s.format.Channels, 0)
		return nil
	}

	out, err := conv.Convolve(conform(input, s.format), s.kernel, s.opts...)
	if err != nil {
		return fmt.Errorf("stage: %s: %w", s.name, err)
	}

	s.out = out

	return nil
}

func (s *ConvolutionStage) ExpectedFrames() int {
	if s.out == nil {
		return 0
	}

	return s.out.Frames()
}

func (s *ConvolutionStage) Render(dst [][]float32) (int, plugin.Status) {
	if s.out == nil {
		return 0, plugin.StatusError
	}

	if s.pos >= s.out.Frames() {
		return 0, plugin.StatusInsufficientInput
	}

	n := 0
	chunk := s.out.Slice(s.pos, s.pos+len(dst[0]))

	for ch := range dst {
		n = copy(dst[ch], chunk.Channels[ch])
	}

	s.pos += n

	return n, plugin.StatusSuccess
}

func (s *ConvolutionStage) Close() error {
	s.out = nil
	s.kernel = nil

	return nil
}
