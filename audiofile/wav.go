package audiofile

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/cwbudde/algo-reamp/dsp/buffer"
	"github.com/cwbudde/algo-reamp/dsp/conv"
)

// Errors returned by the WAV reader and writer.
var (
	ErrUnsupportedFormat = errors.New("audiofile: unsupported format")
	ErrBitDepth          = errors.New("audiofile: unsupported bit depth")
)

// DefaultBitDepth is the output bit depth when none is configured.
const DefaultBitDepth = 24

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// Read decodes an integer PCM WAV file into float32 samples in [-1, 1).
// A missing file yields an error matching os.ErrNotExist.
func Read(path string) (*buffer.Audio, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audiofile: %w", err)
	}
	defer f.Close()

	a, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return a, nil
}

// Decode reads a WAV stream.
func Decode(r io.ReadSeeker) (*buffer.Audio, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%w: not a WAV file", ErrUnsupportedFormat)
	}

	if d.WavAudioFormat != wavFormatPCM && d.WavAudioFormat != wavFormatExtensible {
		return nil, fmt.Errorf("%w: WAV format tag %d", ErrUnsupportedFormat, d.WavAudioFormat)
	}

	pcm, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("audiofile: decode PCM: %w", err)
	}

	channels := int(d.NumChans)
	if channels <= 0 {
		return nil, fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, channels)
	}

	return fromInterleaved(pcm.Data, channels, float64(d.SampleRate), int(d.BitDepth))
}

func fromInterleaved(data []int, channels int, sampleRate float64, bitDepth int) (*buffer.Audio, error) {
	var offset, scale float64

	switch bitDepth {
	case 8:
		offset, scale = 128, 1.0/128
	case 16, 24, 32:
		scale = 1 / math.Exp2(float64(bitDepth-1))
	default:
		return nil, fmt.Errorf("%w: %d", ErrBitDepth, bitDepth)
	}

	frames := len(data) / channels
	a := buffer.New(sampleRate, channels, frames)

	for i := range frames {
		for ch := range channels {
			a.Channels[ch][i] = float32((float64(data[i*channels+ch]) - offset) * scale)
		}
	}

	return a, nil
}

// Write encodes a as integer PCM at bitDepth (16, 24 or 32). Samples are
// clipped to [-1, 1].
func Write(path string, a *buffer.Audio, bitDepth int) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("audiofile: %w", err)
	}

	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("audiofile: %w", cerr)
		}
	}()

	return Encode(f, a, bitDepth)
}

// Encode writes a as a WAV stream.
func Encode(w io.WriteSeeker, a *buffer.Audio, bitDepth int) error {
	switch bitDepth {
	case 16, 24, 32:
	default:
		return fmt.Errorf("%w: %d", ErrBitDepth, bitDepth)
	}

	channels := a.NumChannels()
	if channels == 0 {
		return fmt.Errorf("%w: no channels", ErrUnsupportedFormat)
	}

	rate := int(math.Round(a.SampleRate))
	if rate <= 0 {
		return fmt.Errorf("%w: sample rate %v", ErrUnsupportedFormat, a.SampleRate)
	}

	enc := wav.NewEncoder(w, rate, bitDepth, channels, wavFormatPCM)

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		Data:           toInterleaved(a, bitDepth),
		SourceBitDepth: bitDepth,
	}

	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("audiofile: encode: %w", err)
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("audiofile: finalize: %w", err)
	}

	return nil
}

func toInterleaved(a *buffer.Audio, bitDepth int) []int {
	channels := a.NumChannels()
	frames := a.Frames()

	full := math.Exp2(float64(bitDepth - 1))
	hi := full - 1

	data := make([]int, frames*channels)
	for i := range frames {
		for ch := range channels {
			v := math.Round(float64(a.Channels[ch][i]) * full)
			data[i*channels+ch] = int(min(max(v, -full), hi))
		}
	}

	return data
}

// LoadKernel reads an impulse-response WAV file.
func LoadKernel(path string) (*conv.Kernel, error) {
	a, err := Read(path)
	if err != nil {
		return nil, err
	}

	k, err := conv.NewKernel(a.SampleRate, a.Channels...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return k, nil
}
