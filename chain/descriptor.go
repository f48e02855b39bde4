package chain

import (
	"errors"
	"fmt"
)

// Errors returned while building a chain.
var (
	ErrInvalidDescriptor = errors.New("chain: invalid descriptor")
	ErrFileNotFound      = errors.New("chain: file not found")
	ErrPluginNotFound    = errors.New("chain: plugin not found")
)

// Kind tags the stage type a descriptor describes.
type Kind string

// Descriptor kinds.
const (
	KindAmpModel        Kind = "amp-model"
	KindGenericEffect   Kind = "effect"
	KindImpulseResponse Kind = "impulse-response"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindAmpModel, KindGenericEffect, KindImpulseResponse:
		return true
	default:
		return false
	}
}

// Descriptor is one effect stage as configured by the user. It is read-only
// to the engine.
type Descriptor struct {
	Kind Kind `json:"kind"`
	// Identity is the plugin ID. Optional for amp models, which fall back
	// to a name search.
	Identity string `json:"identity,omitempty"`
	// FilePath is the model or impulse-response file.
	FilePath string `json:"file,omitempty"`
	// State is a blob captured by package state.
	State    []byte `json:"state,omitempty"`
	Enabled  bool   `json:"enabled"`
	Bypassed bool   `json:"bypassed,omitempty"`
	Name     string `json:"name,omitempty"`
}

// Active reports whether the descriptor takes part in rendering.
func (d Descriptor) Active() bool {
	return d.Enabled && !d.Bypassed
}

// Validate checks the per-kind required fields.
func (d Descriptor) Validate() error {
	switch d.Kind {
	case KindAmpModel, KindImpulseResponse:
		if d.FilePath == "" {
			return fmt.Errorf("%w: %s stage requires a file path", ErrInvalidDescriptor, d.Kind)
		}
	case KindGenericEffect:
		if d.Identity == "" {
			return fmt.Errorf("%w: effect stage requires an identity", ErrInvalidDescriptor)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidDescriptor, d.Kind)
	}

	return nil
}

// Label names the descriptor for logs and errors.
func (d Descriptor) Label() string {
	switch {
	case d.Name != "":
		return d.Name
	case d.Identity != "":
		return d.Identity
	default:
		return d.FilePath
	}
}

// StageError reports which stage of a chain failed.
type StageError struct {
	Index    int // position in the descriptor list
	Kind     Kind
	Identity string
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %d (%s %s): %v", e.Index, e.Kind, e.Identity, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
