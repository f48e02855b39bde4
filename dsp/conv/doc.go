// Package conv implements the linear convolution used by impulse-response
// (cabinet) stages.
//
// [Convolve] computes the full linear convolution of every input channel with
// an impulse-response [Kernel]:
//
//	out, err := conv.Convolve(input, kernel)
//
// Per channel the full result has len(input)+len(kernel)-1 frames. When the
// kernel has fewer channels than the input, kernel channel 0 is reused for the
// remaining input channels.
//
// # Post-processing
//
// Channels whose peak absolute value exceeds 1.0 are scaled by 1/peak. Quieter
// channels are never scaled up. The tail is then capped: at most one second
// (at the input sample rate) of convolution tail is kept, so the result has
// min(N+M-1, N+oneSecond) frames. Both steps can be disabled with
// [WithNormalize] and [WithTailCap].
//
// # Algorithm Selection
//
//   - [MethodDirect]: time-domain correlation against the reversed kernel,
//     one dot product per output sample
//   - [MethodFFT]: overlap-add with an FFT plan per kernel channel
//   - [MethodAuto] (default): direct for kernels up to 64 taps, FFT above
//
// Both methods accumulate in float64 and agree to well within 1e-6 on
// normalized audio.
package conv
