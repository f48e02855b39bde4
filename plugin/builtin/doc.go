// Package builtin provides the plugins that ship with algo-reamp.
//
// [NewRegistry] returns a [plugin.Registry] holding:
//
//   - builtin.gain: static gain in dB
//   - builtin.drive: soft-clip, tanh or hard-clip waveshaper with mix
//   - builtin.filter: RBJ lowpass, highpass or peaking biquad
//   - builtin.gate: noise gate with hold
//   - builtin.nam: neural amp model loaded from a .nam file through
//     [plugin.FileLoader]
//
// All units are stateless between Render calls except for their filter and
// envelope memories, so chunk boundaries do not change the output.
package builtin
