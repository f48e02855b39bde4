package chain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-reamp/audiofile"
	"github.com/cwbudde/algo-reamp/dsp/buffer"
	"github.com/cwbudde/algo-reamp/dsp/conv"
	"github.com/cwbudde/algo-reamp/plugin"
	"github.com/cwbudde/algo-reamp/stage"
	"github.com/cwbudde/algo-reamp/state"
)

// DefaultAmpModelTokens are matched against plugin names and vendors when
// an amp-model descriptor has no stored identity.
var DefaultAmpModelTokens = []string{"neural amp modeler", "nam"}

// KernelLoader reads an impulse response from disk.
type KernelLoader func(path string) (*conv.Kernel, error)

// Handle binds one descriptor to its loaded stage.
type Handle struct {
	Index      int
	Descriptor Descriptor
	Identity   string
	Stage      stage.Stage
	Format     stage.Format
}

// Close releases the stage.
func (h *Handle) Close() error {
	if h.Stage == nil {
		return nil
	}

	err := h.Stage.Close()
	h.Stage = nil

	return err
}

// CloseAll closes every handle and returns the first error.
func CloseAll(handles []*Handle) error {
	var first error

	for _, h := range handles {
		if err := h.Close(); err != nil && first == nil {
			first = err
		}
	}

	return first
}

// Builder turns descriptors into ready-to-render stages.
type Builder struct {
	host       plugin.Host
	states     *state.Manager
	log        logrus.FieldLogger
	loadKernel KernelLoader
	convOpts   []conv.Option
	ampTokens  []string
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the builder's logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(b *Builder) {
		if log != nil {
			b.log = log
		}
	}
}

// WithStateManager sets the manager used to restore captured state.
func WithStateManager(m *state.Manager) Option {
	return func(b *Builder) {
		if m != nil {
			b.states = m
		}
	}
}

// WithKernelLoader replaces the WAV impulse-response loader.
func WithKernelLoader(load KernelLoader) Option {
	return func(b *Builder) {
		if load != nil {
			b.loadKernel = load
		}
	}
}

// WithConvolutionOptions sets options for every impulse-response stage.
func WithConvolutionOptions(opts ...conv.Option) Option {
	return func(b *Builder) {
		b.convOpts = append(b.convOpts, opts...)
	}
}

// WithAmpModelTokens replaces the name tokens used to find an amp-model
// plugin when a descriptor has no identity.
func WithAmpModelTokens(tokens ...string) Option {
	return func(b *Builder) {
		b.ampTokens = tokens
	}
}

// NewBuilder returns a builder instantiating plugins from host.
func NewBuilder(host plugin.Host, opts ...Option) *Builder {
	b := &Builder{
		host:       host,
		log:        logrus.StandardLogger(),
		loadKernel: audiofile.LoadKernel,
		ampTokens:  DefaultAmpModelTokens,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}

	if b.states == nil {
		b.states = state.NewManager(state.WithLogger(b.log))
	}

	return b
}

// NegotiateFormat returns the input's format, or stage.DefaultFormat when
// the input has no usable sample rate or channels.
func NegotiateFormat(input *buffer.Audio) stage.Format {
	if input == nil || input.NumChannels() == 0 {
		return stage.DefaultFormat
	}

	sr := input.SampleRate
	if sr <= 0 || math.IsNaN(sr) || math.IsInf(sr, 0) {
		return stage.DefaultFormat
	}

	return stage.Format{SampleRate: sr, Channels: input.NumChannels()}
}

// Build instantiates every active descriptor in order and applies its
// captured state. Inactive descriptors are skipped without being loaded.
// On error every stage built so far is closed and a *StageError is
// returned.
func (b *Builder) Build(ctx context.Context, input *buffer.Audio, descriptors []Descriptor) ([]*Handle, error) {
	format := NegotiateFormat(input)
	handles := make([]*Handle, 0, len(descriptors))

	for i, d := range descriptors {
		if !d.Active() {
			b.log.WithFields(logrus.Fields{"stage": i, "kind": d.Kind, "identity": d.Label()}).
				Debug("skipping inactive stage")

			continue
		}

		if err := ctx.Err(); err != nil {
			_ = CloseAll(handles)
			return nil, err
		}

		h, err := b.buildStage(ctx, i, d, format)
		if err != nil {
			_ = CloseAll(handles)

			identity := d.Identity
			if identity == "" {
				identity = d.FilePath
			}

			return nil, &StageError{Index: i, Kind: d.Kind, Identity: identity, Err: err}
		}

		handles = append(handles, h)
	}

	return handles, nil
}

func (b *Builder) buildStage(ctx context.Context, index int, d Descriptor, format stage.Format) (*Handle, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	if d.FilePath != "" {
		if _, err := os.Stat(d.FilePath); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrFileNotFound, d.FilePath)
			}

			return nil, fmt.Errorf("chain: stat %s: %w", d.FilePath, err)
		}
	}

	log := b.log.WithFields(logrus.Fields{"stage": index, "kind": d.Kind})

	if d.Kind == KindImpulseResponse {
		return b.buildConvolution(index, d, format, log)
	}

	id, err := b.resolveIdentity(d, log)
	if err != nil {
		return nil, err
	}

	unit, err := b.host.Instantiate(ctx, id)
	if err != nil {
		if errors.Is(err, plugin.ErrUnknownPlugin) {
			return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, id)
		}

		return nil, err
	}

	if d.FilePath != "" {
		if err := loadFile(unit, d, log); err != nil {
			_ = unit.Close()
			return nil, err
		}
	}

	st, err := stage.NewPluginStage(unit, format)
	if err != nil {
		_ = unit.Close()
		return nil, err
	}

	// Restore failures are logged by the manager and leave the stage at
	// its defaults.
	_ = b.states.Restore(ctx, st, d.State)

	log.WithField("identity", id).Debug("stage ready")

	return &Handle{Index: index, Descriptor: d, Identity: id, Stage: st, Format: format}, nil
}

func loadFile(unit plugin.Unit, d Descriptor, log logrus.FieldLogger) error {
	loader, ok := unit.(plugin.FileLoader)
	if !ok {
		if d.Kind == KindAmpModel {
			return fmt.Errorf("chain: %s cannot load model files", unit.Info().ID)
		}

		log.WithField("file", d.FilePath).Warn("effect does not load files, ignoring path")

		return nil
	}

	return loader.LoadFile(d.FilePath)
}

func (b *Builder) buildConvolution(index int, d Descriptor, format stage.Format, log logrus.FieldLogger) (*Handle, error) {
	kernel, err := b.loadKernel(d.FilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, d.FilePath)
		}

		return nil, err
	}

	if kernel.SampleRate > 0 && math.Abs(kernel.SampleRate-format.SampleRate) > 0.5 {
		log.WithFields(logrus.Fields{
			"file":        d.FilePath,
			"ir_rate":     kernel.SampleRate,
			"render_rate": format.SampleRate,
		}).Warn("impulse response sample rate differs from render rate")
	}

	st, err := stage.NewConvolutionStage(d.Label(), kernel, format, b.convOpts...)
	if err != nil {
		return nil, err
	}

	return &Handle{Index: index, Descriptor: d, Identity: d.FilePath, Stage: st, Format: format}, nil
}

// resolveIdentity prefers the stored identity. Amp models without one are
// looked up by name; the first match in host order wins.
func (b *Builder) resolveIdentity(d Descriptor, log logrus.FieldLogger) (string, error) {
	if d.Identity != "" {
		return d.Identity, nil
	}

	candidates := plugin.MatchPattern(b.host.Available(), plugin.CategoryAmpModel, b.ampTokens...)
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w: no amp-model plugin matches %q", ErrPluginNotFound, b.ampTokens)
	}

	if len(candidates) > 1 {
		ids := make([]string, len(candidates))
		for i, c := range candidates {
			ids[i] = c.ID
		}

		log.WithFields(logrus.Fields{"candidates": ids, "chosen": ids[0]}).
			Warn("several amp-model plugins match, using the first")
	}

	return candidates[0].ID, nil
}
