// Package buffer provides the de-interleaved float32 audio block that flows
// between render stages, plus a pool for the chunk-sized scratch buffers used
// inside the render loop.
package buffer
