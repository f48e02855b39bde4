package buffer

import "sync"

// Pool provides sync.Pool-based reuse of chunk-sized scratch buffers so the
// render loop does not allocate per chunk.
type Pool struct {
	pool sync.Pool
}

// NewPool returns a Pool ready for use.
func NewPool() *Pool {
	return &Pool{
		pool: sync.Pool{
			New: func() any {
				return &Audio{}
			},
		},
	}
}

// Get returns a zeroed Audio with the requested layout.
// Callers must return it via Put when done.
func (p *Pool) Get(sampleRate float64, channels, frames int) *Audio {
	a := p.pool.Get().(*Audio)
	a.SampleRate = sampleRate
	a.resize(channels, frames)
	a.Zero()

	return a
}

// Put returns an Audio to the pool for reuse.
// The caller must not use the buffer after calling Put.
func (p *Pool) Put(a *Audio) {
	if a == nil {
		return
	}

	p.pool.Put(a)
}

// resize sets the layout, reusing channel capacity when possible.
func (a *Audio) resize(channels, frames int) {
	if channels < 0 {
		channels = 0
	}

	if frames < 0 {
		frames = 0
	}

	if cap(a.Channels) < channels {
		grown := make([][]float32, channels)
		copy(grown, a.Channels)
		a.Channels = grown
	}

	a.Channels = a.Channels[:channels]

	for ch := range a.Channels {
		s := a.Channels[ch]
		if cap(s) < frames {
			s = make([]float32, frames)
		}

		a.Channels[ch] = s[:frames]
	}
}
