// Package stage adapts effect units and impulse responses to the uniform
// chunked contract the renderer drives.
//
// [PluginStage] wraps a plugin.Unit and feeds it from a [BufferSource].
// [ConvolutionStage] convolves its whole input with a conv.Kernel up front
// and returns the result chunk by chunk; its output is longer than its
// input by the retained impulse-response tail.
package stage
