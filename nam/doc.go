// Package nam loads neural amp models stored as .nam JSON files and runs
// them over audio.
//
// Only the Linear architecture is supported: a single FIR layer over the
// model's receptive field with an optional bias term. Models of other
// architectures are rejected with [ErrUnsupportedArchitecture].
package nam
