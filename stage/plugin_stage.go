package stage

import (
	"fmt"

	"github.com/cwbudde/algo-reamp/dsp/buffer"
	"github.com/cwbudde/algo-reamp/plugin"
)

// DefaultMaxFrames is the chunk size a unit is configured for before the
// renderer prepares it.
const DefaultMaxFrames = 4096

// PluginStage adapts a plugin.Unit. It exposes the unit's parameters for
// state capture and restore.
type PluginStage struct {
	unit   plugin.Unit
	format Format
	name   string

	src      *BufferSource
	expected int
}

// NewPluginStage configures unit for format and wraps it.
func NewPluginStage(unit plugin.Unit, format Format) (*PluginStage, error) {
	if err := unit.Configure(format, DefaultMaxFrames); err != nil {
		return nil, fmt.Errorf("stage: configure %s: %w", unit.Info().ID, err)
	}

	return &PluginStage{
		unit:   unit,
		format: format,
		name:   unit.Info().Name,
	}, nil
}

// Unit returns the wrapped unit.
func (s *PluginStage) Unit() plugin.Unit { return s.unit }

func (s *PluginStage) Name() string { return s.name }

func (s *PluginStage) Format() Format { return s.format }

// UnitID identifies the unit type for state blobs.
func (s *PluginStage) UnitID() string { return s.unit.Info().ID }

func (s *PluginStage) State() map[string]float64 { return s.unit.State() }

func (s *PluginStage) SetState(values map[string]float64) error { return s.unit.SetState(values) }

func (s *PluginStage) Reset() { s.unit.Reset() }

func (s *PluginStage) Prepare(input *buffer.Audio, maxFrames int) error {
	if input == nil {
		return ErrNilInput
	}

	if err := s.unit.Configure(s.format, maxFrames); err != nil {
		return fmt.Errorf("stage: configure %s: %w", s.UnitID(), err)
	}

	s.src = NewBufferSource(conform(input, s.format))
	s.expected = input.Frames()

	return nil
}

func (s *PluginStage) ExpectedFrames() int { return s.expected }

func (s *PluginStage) Render(dst [][]float32) (int, plugin.Status) {
	if s.src == nil {
		return 0, plugin.StatusError
	}

	return s.unit.Render(s.src, dst)
}

func (s *PluginStage) Close() error {
	s.src = nil
	return s.unit.Close()
}
