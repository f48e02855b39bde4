package nam

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Errors returned by the model loader.
var (
	ErrBadModel                = errors.New("nam: malformed model")
	ErrUnsupportedArchitecture = errors.New("nam: unsupported architecture")
)

// ArchitectureLinear is a single FIR layer over the receptive field.
const ArchitectureLinear = "Linear"

// file mirrors the JSON layout of a .nam model file.
type file struct {
	Version      string          `json:"version"`
	Architecture string          `json:"architecture"`
	Config       json.RawMessage `json:"config"`
	Weights      []float64       `json:"weights"`
	SampleRate   float64         `json:"sample_rate"`
	Metadata     *Metadata       `json:"metadata,omitempty"`
}

type linearConfig struct {
	ReceptiveField int  `json:"receptive_field"`
	Bias           bool `json:"bias"`
}

// Metadata carries the optional descriptive block of a model file.
type Metadata struct {
	Name     string   `json:"name,omitempty"`
	Modeled  string   `json:"modeled_by,omitempty"`
	GearMake string   `json:"gear_make,omitempty"`
	Loudness *float64 `json:"loudness,omitempty"`
}

// Model is a loaded amp model.
type Model struct {
	Version      string
	Architecture string
	SampleRate   float64
	Metadata     Metadata

	// Weights are the FIR taps, oldest input sample first: the last tap
	// multiplies the current sample.
	Weights []float64
	Bias    float64
}

// ReceptiveField returns the number of input samples one output depends on.
func (m *Model) ReceptiveField() int {
	return len(m.Weights)
}

// Load reads a model from path.
func Load(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("nam: open model: %w", err)
	}
	defer f.Close()

	m, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return m, nil
}

// Parse decodes a model from r.
func Parse(r io.Reader) (*Model, error) {
	var raw file
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadModel, err)
	}

	if !strings.EqualFold(raw.Architecture, ArchitectureLinear) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedArchitecture, raw.Architecture)
	}

	var cfg linearConfig
	if len(raw.Config) > 0 {
		if err := json.Unmarshal(raw.Config, &cfg); err != nil {
			return nil, fmt.Errorf("%w: config: %w", ErrBadModel, err)
		}
	}

	if cfg.ReceptiveField <= 0 {
		return nil, fmt.Errorf("%w: receptive_field must be positive", ErrBadModel)
	}

	want := cfg.ReceptiveField
	if cfg.Bias {
		want++
	}

	if len(raw.Weights) != want {
		return nil, fmt.Errorf("%w: expected %d weights, got %d", ErrBadModel, want, len(raw.Weights))
	}

	m := &Model{
		Version:      raw.Version,
		Architecture: ArchitectureLinear,
		SampleRate:   raw.SampleRate,
		Weights:      append([]float64(nil), raw.Weights[:cfg.ReceptiveField]...),
	}

	if cfg.Bias {
		m.Bias = raw.Weights[cfg.ReceptiveField]
	}

	if raw.Metadata != nil {
		m.Metadata = *raw.Metadata
	}

	return m, nil
}

// Encode writes m in .nam JSON layout.
func Encode(w io.Writer, m *Model) error {
	weights := append([]float64(nil), m.Weights...)
	bias := m.Bias != 0

	if bias {
		weights = append(weights, m.Bias)
	}

	cfg, err := json.Marshal(linearConfig{ReceptiveField: len(m.Weights), Bias: bias})
	if err != nil {
		return err
	}

	raw := file{
		Version:      m.Version,
		Architecture: ArchitectureLinear,
		Config:       cfg,
		Weights:      weights,
		SampleRate:   m.SampleRate,
	}

	if m.Metadata != (Metadata{}) {
		md := m.Metadata
		raw.Metadata = &md
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(raw)
}
