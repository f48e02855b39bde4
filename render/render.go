package render

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-reamp/chain"
	"github.com/cwbudde/algo-reamp/dsp/buffer"
	"github.com/cwbudde/algo-reamp/plugin"
)

// Defaults for Renderer options.
const (
	DefaultChunkSize  = 4096
	DefaultRetryDelay = 10 * time.Millisecond
	DefaultMaxRetries = 500
)

var (
	// ErrRenderFailed wraps every fatal render error.
	ErrRenderFailed = errors.New("render: failed")
	// ErrCancelled is returned when the context ends mid-render. It wraps
	// the context's error.
	ErrCancelled = errors.New("render: cancelled")
	// ErrStageStalled is reported when a stage stays unavailable for more
	// than the allowed number of retries.
	ErrStageStalled = errors.New("render: stage stalled")
	// ErrStageError is reported when a stage returns plugin.StatusError.
	ErrStageError = errors.New("render: stage reported an error")
)

// ProgressFunc receives the fraction of the chain rendered so far.
type ProgressFunc func(fraction float64)

// Renderer pushes a buffer through a built chain in fixed-size chunks.
// A Renderer holds no per-render state and may be shared.
type Renderer struct {
	chunkSize  int
	retryDelay time.Duration
	maxRetries int
	log        logrus.FieldLogger
	progress   ProgressFunc
	pool       *buffer.Pool
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithChunkSize overrides DefaultChunkSize. Values below 1 are ignored.
func WithChunkSize(n int) Option {
	return func(r *Renderer) {
		if n > 0 {
			r.chunkSize = n
		}
	}
}

// WithRetryDelay sets the wait before retrying an unavailable stage.
func WithRetryDelay(d time.Duration) Option {
	return func(r *Renderer) {
		if d >= 0 {
			r.retryDelay = d
		}
	}
}

// WithMaxRetries sets how many consecutive unavailable results a stage may
// return before the render fails.
func WithMaxRetries(n int) Option {
	return func(r *Renderer) {
		if n >= 0 {
			r.maxRetries = n
		}
	}
}

// WithLogger sets the renderer's logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(r *Renderer) {
		if log != nil {
			r.log = log
		}
	}
}

// WithProgress registers a callback invoked after every chunk.
func WithProgress(fn ProgressFunc) Option {
	return func(r *Renderer) {
		r.progress = fn
	}
}

// WithPool shares a scratch buffer pool between renderers.
func WithPool(p *buffer.Pool) Option {
	return func(r *Renderer) {
		if p != nil {
			r.pool = p
		}
	}
}

// New returns a Renderer with the given options applied.
func New(opts ...Option) *Renderer {
	r := &Renderer{
		chunkSize:  DefaultChunkSize,
		retryDelay: DefaultRetryDelay,
		maxRetries: DefaultMaxRetries,
		log:        logrus.StandardLogger(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	if r.pool == nil {
		r.pool = buffer.NewPool()
	}

	return r
}

// ChunkSize returns the configured chunk size.
func (r *Renderer) ChunkSize() int {
	return r.chunkSize
}

// Render runs input through handles in a new session.
func (r *Renderer) Render(ctx context.Context, input *buffer.Audio, handles []*chain.Handle) (*buffer.Audio, error) {
	return r.RenderSession(ctx, NewSession(), input, handles)
}

// RenderSession runs input through handles in order and returns the last
// stage's output. It takes ownership of the handles and closes them. An
// empty chain returns input unchanged. On failure or cancellation partial
// output is discarded.
func (r *Renderer) RenderSession(ctx context.Context, s *Session, input *buffer.Audio, handles []*chain.Handle) (*buffer.Audio, error) {
	defer func() { _ = chain.CloseAll(handles) }()

	log := r.log.WithField("session", s.ID.String())

	if input == nil {
		s.finish(StateFailed)
		return nil, fmt.Errorf("%w: nil input", ErrRenderFailed)
	}

	s.begin(len(handles))

	if len(handles) == 0 {
		s.finish(StateCompleted)
		r.report(1)

		return input, nil
	}

	log.WithFields(logrus.Fields{"stages": len(handles), "frames": input.Frames()}).Debug("render started")

	cur := input

	for i, h := range handles {
		s.enterStage(i)

		out, err := r.renderStage(ctx, s, h, cur, log)
		if err != nil {
			if errors.Is(err, ErrCancelled) {
				s.finish(StateCancelled)
				log.WithField("stage", i).Info("render cancelled")
			} else {
				s.finish(StateFailed)
				log.WithError(err).Error("render failed")
			}

			return nil, err
		}

		if err := h.Close(); err != nil {
			log.WithError(err).WithField("stage", i).Warn("closing stage failed")
		}

		cur = out
	}

	s.finish(StateCompleted)
	r.report(1)

	log.WithField("frames", cur.Frames()).Debug("render completed")

	return cur, nil
}

func (r *Renderer) renderStage(ctx context.Context, s *Session, h *chain.Handle, input *buffer.Audio,
	log logrus.FieldLogger,
) (*buffer.Audio, error) {
	st := h.Stage
	if st == nil {
		return nil, r.stageError(h, fmt.Errorf("stage %d already closed", h.Index))
	}

	log = log.WithFields(logrus.Fields{"stage": h.Index, "identity": h.Identity})

	if err := st.Prepare(input, r.chunkSize); err != nil {
		return nil, r.stageError(h, err)
	}

	format := st.Format()
	expected := st.ExpectedFrames()
	acc := buffer.New(format.SampleRate, format.Channels, expected)

	scratch := r.pool.Get(format.SampleRate, format.Channels, r.chunkSize)
	defer r.pool.Put(scratch)

	rendered := 0
	retries := 0

	for rendered < expected {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCancelled, err)
		}

		want := min(r.chunkSize, expected-rendered)
		chunk := scratch.Slice(0, want)

		n, status := st.Render(chunk.Channels)
		n = max(0, min(n, want))

		if n > 0 {
			rendered += acc.CopyAt(rendered, chunk.Slice(0, n))
			r.report(s.advance(rendered, expected))
		}

		switch status {
		case plugin.StatusSuccess:
			if n > 0 {
				retries = 0
				continue
			}
		case plugin.StatusInsufficientInput:
			log.WithFields(logrus.Fields{"frames": rendered, "expected": expected}).
				Debug("stage drained")

			acc.Truncate(rendered)

			return acc, nil
		case plugin.StatusUnavailable:
		default:
			return nil, r.stageError(h, fmt.Errorf("%w: %v", ErrStageError, status))
		}

		// Unavailable, or success without progress.
		retries++
		if retries > r.maxRetries {
			return nil, r.stageError(h, fmt.Errorf("%w after %d retries", ErrStageStalled, r.maxRetries))
		}

		log.WithField("retry", retries).Debug("stage unavailable, retrying")

		if err := r.wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCancelled, err)
		}
	}

	r.report(s.advance(rendered, expected))

	return acc, nil
}

func (r *Renderer) wait(ctx context.Context) error {
	if r.retryDelay <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(r.retryDelay)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (r *Renderer) stageError(h *chain.Handle, err error) error {
	return fmt.Errorf("%w: %w", ErrRenderFailed, &chain.StageError{
		Index:    h.Index,
		Kind:     h.Descriptor.Kind,
		Identity: h.Identity,
		Err:      err,
	})
}

func (r *Renderer) report(p float64) {
	if r.progress != nil {
		r.progress(p)
	}
}
