package plugin

import (
	"context"
	"errors"
	"fmt"
)

// Errors returned by hosts and units.
var (
	ErrUnknownPlugin = errors.New("plugin: unknown plugin")
	ErrNotConfigured = errors.New("plugin: unit not configured")
	ErrBadFormat     = errors.New("plugin: unsupported format")
)

// Category groups plugins the way a host's browser would.
type Category string

// Known categories.
const (
	CategoryAmpModel Category = "amp-model"
	CategoryEffect   Category = "effect"
)

// Info describes an installable plugin.
type Info struct {
	ID       string
	Name     string
	Vendor   string
	Version  string
	Category Category
}

func (i Info) String() string {
	return fmt.Sprintf("%s (%s, %s)", i.ID, i.Name, i.Vendor)
}

// Format is the sample format a unit is configured for.
type Format struct {
	SampleRate float64
	Channels   int
}

// Valid reports whether f has a positive rate and at least one channel.
func (f Format) Valid() bool {
	return f.SampleRate > 0 && f.Channels > 0
}

// Status is the outcome of one Render call.
type Status int

const (
	// StatusSuccess means frames were produced.
	StatusSuccess Status = iota
	// StatusInsufficientInput means the source is exhausted. It ends a
	// stage normally.
	StatusInsufficientInput
	// StatusUnavailable means the unit refused to render in this call
	// without failing. The same chunk may be retried.
	StatusUnavailable
	// StatusError is an unrecoverable render failure.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusInsufficientInput:
		return "insufficient-input"
	case StatusUnavailable:
		return "unavailable"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Source feeds input frames to a unit. Read fills dst (one slice per
// channel, equal lengths) and returns the number of frames written, zero
// once the input is exhausted.
type Source interface {
	Read(dst [][]float32) int
}

// Unit is one instantiated plugin.
type Unit interface {
	Info() Info

	// Configure prepares the unit for format and a maximum number of
	// frames per Render call. It must be called before Render.
	Configure(format Format, maxFrames int) error

	// Parameters lists the unit's automatable parameters.
	Parameters() []Parameter

	// State returns the current parameter values keyed by parameter ID.
	State() map[string]float64

	// SetState applies parameter values. Unknown keys are ignored and
	// values are clamped to the parameter range.
	SetState(values map[string]float64) error

	// Reset restores default parameter values and clears processing state.
	Reset()

	// Render pulls up to len(dst[0]) frames from src, processes them into
	// dst and returns the number of frames produced.
	Render(src Source, dst [][]float32) (int, Status)

	Close() error
}

// FileLoader is implemented by units that load a model or data file.
type FileLoader interface {
	LoadFile(path string) error
}

// Host lists and instantiates plugins.
type Host interface {
	Available() []Info
	Instantiate(ctx context.Context, id string) (Unit, error)
}
