// Package chain builds a processing chain from stage descriptors.
//
// [Builder.Build] skips disabled and bypassed descriptors, resolves each
// remaining one to a plugin or impulse response, negotiates one sample
// format for the whole chain and restores captured state before anything
// is rendered. The build fails as a whole on the first missing plugin or
// file; the error is a [*StageError] wrapping [ErrPluginNotFound] or
// [ErrFileNotFound].
package chain
