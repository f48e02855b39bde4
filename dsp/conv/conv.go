package conv

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-reamp/dsp/buffer"
)

// Errors returned by convolution functions.
var (
	ErrEmptyInput  = errors.New("conv: empty input")
	ErrEmptyKernel = errors.New("conv: empty kernel")
	ErrBadMethod   = errors.New("conv: unknown method")
)

// directThreshold is the longest kernel MethodAuto convolves in the time domain.
const directThreshold = 64

// Method selects the convolution algorithm.
type Method int

const (
	// MethodAuto uses MethodDirect for short kernels and MethodFFT otherwise.
	MethodAuto Method = iota

	// MethodDirect evaluates out[n] = Σ_k x[n-k]·h[k] as a correlation
	// against the reversed kernel.
	MethodDirect

	// MethodFFT uses FFT-based overlap-add.
	MethodFFT
)

// String returns the method name.
func (m Method) String() string {
	switch m {
	case MethodAuto:
		return "auto"
	case MethodDirect:
		return "direct"
	case MethodFFT:
		return "fft"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// ParseMethod maps "auto", "direct" or "fft" to a Method.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "", "auto":
		return MethodAuto, nil
	case "direct":
		return MethodDirect, nil
	case "fft":
		return MethodFFT, nil
	default:
		return MethodAuto, fmt.Errorf("%w: %q", ErrBadMethod, s)
	}
}

// Config holds convolution settings.
type Config struct {
	Method    Method
	TailCap   bool
	Normalize bool
}

// Option mutates a Config.
type Option func(*Config)

// DefaultConfig returns the settings used by impulse-response stages.
func DefaultConfig() Config {
	return Config{
		Method:    MethodAuto,
		TailCap:   true,
		Normalize: true,
	}
}

// WithMethod selects the convolution algorithm.
func WithMethod(m Method) Option {
	return func(cfg *Config) {
		cfg.Method = m
	}
}

// WithTailCap enables or disables trimming the tail to one second.
func WithTailCap(enabled bool) Option {
	return func(cfg *Config) {
		cfg.TailCap = enabled
	}
}

// WithNormalize enables or disables per-channel peak normalization.
func WithNormalize(enabled bool) Option {
	return func(cfg *Config) {
		cfg.Normalize = enabled
	}
}

// ApplyOptions applies zero or more options to the default config.
func ApplyOptions(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	return cfg
}

// Kernel is an impulse response, one float32 slice per channel.
type Kernel struct {
	SampleRate float64
	Channels   [][]float32
}

// NewKernel wraps the given channels. All channels must be non-empty; shorter
// channels are zero-padded to the longest one.
func NewKernel(sampleRate float64, channels ...[]float32) (*Kernel, error) {
	if len(channels) == 0 {
		return nil, ErrEmptyKernel
	}

	n := 0
	for _, ch := range channels {
		n = max(n, len(ch))
	}

	if n == 0 {
		return nil, ErrEmptyKernel
	}

	k := &Kernel{SampleRate: sampleRate, Channels: make([][]float32, len(channels))}
	for i, ch := range channels {
		if len(ch) == n {
			k.Channels[i] = ch
			continue
		}

		padded := make([]float32, n)
		copy(padded, ch)
		k.Channels[i] = padded
	}

	return k, nil
}

// Len returns the kernel length in frames.
func (k *Kernel) Len() int {
	if k == nil || len(k.Channels) == 0 {
		return 0
	}

	return len(k.Channels[0])
}

// NumChannels returns the kernel channel count.
func (k *Kernel) NumChannels() int {
	if k == nil {
		return 0
	}

	return len(k.Channels)
}

// channelFor returns the kernel channel applied to input channel ch.
// Input channels beyond the kernel's channel count reuse channel 0.
func (k *Kernel) channelFor(ch int) int {
	if ch < len(k.Channels) {
		return ch
	}

	return 0
}

// FullLength returns the length of the full linear convolution, n+m-1.
func FullLength(n, m int) int {
	if n <= 0 || m <= 0 {
		return 0
	}

	return n + m - 1
}

// TrimmedLength returns the output length after the tail cap: at most one
// second of tail (oneSecond frames) past the end of the input is retained.
func TrimmedLength(n, m, oneSecond int) int {
	full := FullLength(n, m)
	if oneSecond <= 0 {
		return full
	}

	return min(full, n+min(m, oneSecond))
}

// Convolve performs full linear convolution of every input channel with the
// matching kernel channel, normalizes channels whose full-length peak exceeds
// 1.0, and then trims the tail to one second at the input sample rate.
//
// The result has the input's sample rate and channel count.
func Convolve(input *buffer.Audio, kernel *Kernel, opts ...Option) (*buffer.Audio, error) {
	if input == nil || input.NumChannels() == 0 || input.Frames() == 0 {
		return nil, ErrEmptyInput
	}

	if kernel.Len() == 0 {
		return nil, ErrEmptyKernel
	}

	cfg := ApplyOptions(opts...)

	n := input.Frames()
	m := kernel.Len()

	fullLen := FullLength(n, m)

	outLen := fullLen
	if cfg.TailCap {
		outLen = TrimmedLength(n, m, oneSecondFrames(input.SampleRate, kernel.SampleRate))
	}

	// The peak is measured over the full result, before the tail is cut.
	convLen := outLen
	if cfg.Normalize {
		convLen = fullLen
	}

	method := cfg.Method
	if method == MethodAuto {
		method = MethodFFT
		if m <= directThreshold {
			method = MethodDirect
		}
	}

	out := buffer.New(input.SampleRate, input.NumChannels(), outLen)

	// Each kernel channel is prepared once and shared by the input channels
	// that map to it.
	prepared := make(map[int]channelConvolver, kernel.NumChannels())

	for ch := range input.Channels {
		kc := kernel.channelFor(ch)

		cv, ok := prepared[kc]
		if !ok {
			var err error

			cv, err = newChannelConvolver(method, kernel.Channels[kc])
			if err != nil {
				return nil, err
			}

			prepared[kc] = cv
		}

		acc, err := cv.convolve(toFloat64(input.Channels[ch]), convLen)
		if err != nil {
			return nil, fmt.Errorf("conv: channel %d: %w", ch, err)
		}

		if cfg.Normalize {
			NormalizePeak(acc)
		}

		dst := out.Channels[ch]
		for i := range dst {
			dst[i] = float32(acc[i])
		}
	}

	return out, nil
}

// channelConvolver convolves one input channel with a prepared kernel
// channel, producing the first outLen frames of the full result.
type channelConvolver interface {
	convolve(x []float64, outLen int) ([]float64, error)
}

func newChannelConvolver(method Method, kernel []float32) (channelConvolver, error) {
	h := toFloat64(kernel)

	switch method {
	case MethodDirect:
		return newDirect(h), nil
	case MethodFFT:
		return newOverlapAdd(h, 0)
	default:
		return nil, fmt.Errorf("%w: %v", ErrBadMethod, method)
	}
}

// oneSecondFrames returns one second in frames at the input rate, falling
// back to the kernel rate. Zero disables the tail cap.
func oneSecondFrames(inputRate, kernelRate float64) int {
	rate := inputRate
	if rate <= 0 {
		rate = kernelRate
	}

	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return 0
	}

	return int(math.Round(rate))
}

func toFloat64(s []float32) []float64 {
	out := make([]float64, len(s))
	for i, v := range s {
		out[i] = float64(v)
	}

	return out
}
