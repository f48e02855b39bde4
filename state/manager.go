package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// ErrRestoreFailed wraps every Restore failure. It is never fatal: the
// stage has been reset to its defaults when it is returned.
var ErrRestoreFailed = errors.New("state: restore failed")

// ErrNotStateful is reported when a blob is restored onto a stage that has
// no observable state.
var ErrNotStateful = errors.New("state: stage has no state")

// Stateful is implemented by stages whose configuration can be captured.
type Stateful interface {
	// UnitID identifies the unit type a blob belongs to.
	UnitID() string
	State() map[string]float64
	SetState(values map[string]float64) error
	// Reset restores the default configuration.
	Reset()
}

// Capture serializes the current configuration of s. It returns nil, nil
// when s is not Stateful or exposes no values.
func Capture(s any) ([]byte, error) {
	st, ok := s.(Stateful)
	if !ok {
		return nil, nil
	}

	values := st.State()
	if len(values) == 0 {
		return nil, nil
	}

	return Encode(st.UnitID(), values)
}

// Manager applies captured state to freshly instantiated stages.
type Manager struct {
	log logrus.FieldLogger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger restore failures are reported to.
func WithLogger(log logrus.FieldLogger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// NewManager returns a Manager logging to the standard logger by default.
func NewManager(opts ...Option) *Manager {
	m := &Manager{log: logrus.StandardLogger()}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

// Capture is the package-level Capture.
func (m *Manager) Capture(s any) ([]byte, error) {
	return Capture(s)
}

// Restore applies blob to s. An empty blob is a no-op. On failure the
// error is logged, s is reset to its defaults and an error wrapping
// ErrRestoreFailed is returned; rendering may continue.
func (m *Manager) Restore(ctx context.Context, s any, blob []byte) error {
	if len(blob) == 0 {
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	st, ok := s.(Stateful)
	if !ok {
		return m.fail(nil, "", ErrNotStateful)
	}

	snap, err := Decode(blob)
	if err != nil {
		return m.fail(st, st.UnitID(), err)
	}

	if snap.UnitID != st.UnitID() {
		return m.fail(st, st.UnitID(), fmt.Errorf("%w: blob %q, stage %q", ErrUnitMismatch, snap.UnitID, st.UnitID()))
	}

	if err := st.SetState(snap.Values); err != nil {
		return m.fail(st, st.UnitID(), err)
	}

	return nil
}

func (m *Manager) fail(st Stateful, unitID string, err error) error {
	m.log.WithError(err).WithField("identity", unitID).
		Warn("state restore failed, using default configuration")

	if st != nil {
		st.Reset()
	}

	return fmt.Errorf("%w: %w", ErrRestoreFailed, err)
}
