package state

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-reamp/dsp/buffer"
	"github.com/cwbudde/algo-reamp/internal/testutil"
	"github.com/cwbudde/algo-reamp/plugin"
	"github.com/cwbudde/algo-reamp/plugin/builtin"
	"github.com/cwbudde/algo-reamp/stage"
)

type fakeStage struct {
	id     string
	values map[string]float64
	resets int
	err    error
}

func (f *fakeStage) UnitID() string { return f.id }
func (f *fakeStage) State() map[string]float64 { return f.values }

func (f *fakeStage) Reset() {
	f.resets++
	f.values = map[string]float64{}
}

func (f *fakeStage) SetState(v map[string]float64) error {
	if f.err != nil {
		return f.err
	}

	f.values = v

	return nil
}

func quietManager() *Manager {
	l := logrus.New()
	l.SetOutput(io.Discard)

	return NewManager(WithLogger(l))
}

func TestEncodeDecode(t *testing.T) {
	values := map[string]float64{"mix": 0.5, "drive": 12, "a": -1e-9}

	blob, err := Encode("builtin.drive", values)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	snap, err := Decode(blob)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if snap.Version != Version || snap.UnitID != "builtin.drive" || len(snap.Values) != 3 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	for k, v := range values {
		if snap.Values[k] != v {
			t.Fatalf("%s = %v, want %v", k, snap.Values[k], v)
		}
	}

	again, _ := Encode("builtin.drive", snap.Values)
	if !bytes.Equal(blob, again) {
		t.Fatal("encoding is not deterministic")
	}
}

func TestDecodeErrors(t *testing.T) {
	valid, _ := Encode("u", map[string]float64{"k": 1})

	newer := append([]byte(nil), valid...)
	binary.LittleEndian.PutUint16(newer[4:], Version+1)

	tests := []struct {
		name string
		blob []byte
		want error
	}{
		{"empty", nil, ErrCorruptBlob},
		{"bad magic", append([]byte("NOPE"), valid[4:]...), ErrCorruptBlob},
		{"newer version", newer, ErrUnsupportedVersion},
		{"truncated", valid[:len(valid)-3], ErrCorruptBlob},
		{"trailing bytes", append(append([]byte(nil), valid...), 0), ErrCorruptBlob},
		{"huge count", append(append([]byte(nil), valid[:9]...), 0xff, 0xff, 0xff, 0x7f), ErrCorruptBlob},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.blob)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestCapture(t *testing.T) {
	blob, err := Capture(struct{}{})
	if blob != nil || err != nil {
		t.Fatalf("non-stateful capture = %v, %v", blob, err)
	}

	blob, err = Capture(&fakeStage{id: "x", values: map[string]float64{}})
	if blob != nil || err != nil {
		t.Fatalf("empty state capture = %v, %v", blob, err)
	}

	blob, err = Capture(&fakeStage{id: "x", values: map[string]float64{"a": 1}})
	if len(blob) == 0 || err != nil {
		t.Fatalf("capture = %v, %v", blob, err)
	}
}

func TestManagerRestore(t *testing.T) {
	ctx := context.Background()
	blob, _ := Encode("x", map[string]float64{"a": 2})

	t.Run("applies values", func(t *testing.T) {
		s := &fakeStage{id: "x"}
		if err := quietManager().Restore(ctx, s, blob); err != nil {
			t.Fatalf("Restore: %v", err)
		}

		if s.values["a"] != 2 {
			t.Fatalf("values = %v", s.values)
		}
	})

	t.Run("empty blob is a no-op", func(t *testing.T) {
		s := &fakeStage{id: "x", values: map[string]float64{"a": 5}}
		if err := quietManager().Restore(ctx, s, nil); err != nil {
			t.Fatalf("Restore: %v", err)
		}

		if s.values["a"] != 5 || s.resets != 0 {
			t.Fatal("stage touched by empty restore")
		}
	})

	failures := []struct {
		name  string
		stage any
		blob  []byte
		want  error
	}{
		{"unit mismatch", &fakeStage{id: "y"}, blob, ErrUnitMismatch},
		{"corrupt", &fakeStage{id: "x"}, blob[:7], ErrCorruptBlob},
		{"set state error", &fakeStage{id: "x", err: errors.New("boom")}, blob, ErrRestoreFailed},
		{"not stateful", struct{}{}, blob, ErrNotStateful},
	}

	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			err := quietManager().Restore(ctx, tt.stage, tt.blob)
			if !errors.Is(err, ErrRestoreFailed) || !errors.Is(err, tt.want) {
				t.Fatalf("expected ErrRestoreFailed wrapping %v, got %v", tt.want, err)
			}

			if fs, ok := tt.stage.(*fakeStage); ok && fs.resets != 1 {
				t.Fatalf("stage reset %d times, want 1", fs.resets)
			}
		})
	}
}

func render(t *testing.T, s *stage.PluginStage, in *buffer.Audio) *buffer.Audio {
	t.Helper()

	if err := s.Prepare(in, 512); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	out := buffer.New(in.SampleRate, in.NumChannels(), in.Frames())
	scratch := buffer.New(in.SampleRate, in.NumChannels(), 512)
	pos := 0

	for {
		n, status := s.Render(scratch.Channels)
		if status != plugin.StatusSuccess {
			break
		}

		pos += out.CopyAt(pos, scratch.Slice(0, n))
	}

	return out
}

func TestRestoreCaptureIdempotent(t *testing.T) {
	reg := builtin.NewRegistry()
	in := testutil.MonoDI(48000, 4000)
	format := stage.Format{SampleRate: 48000, Channels: 1}

	for _, id := range []string{builtin.IDDrive, builtin.IDFilter, builtin.IDGate} {
		t.Run(id, func(t *testing.T) {
			newStage := func() *stage.PluginStage {
				u, err := reg.Instantiate(context.Background(), id)
				if err != nil {
					t.Fatalf("Instantiate: %v", err)
				}

				s, err := stage.NewPluginStage(u, format)
				if err != nil {
					t.Fatalf("NewPluginStage: %v", err)
				}

				return s
			}

			s := newStage()
			_ = s.SetState(map[string]float64{
				builtin.ParamDrive: 9, builtin.ParamMix: 0.7,
				builtin.ParamType: builtin.FilterPeak, builtin.ParamGainDB: 6, builtin.ParamFreq: 800,
				builtin.ParamThreshold: -30,
			})

			before := render(t, s, in)

			blob, err := Capture(s)
			if err != nil {
				t.Fatalf("Capture: %v", err)
			}

			// Same instance.
			if err := quietManager().Restore(context.Background(), s, blob); err != nil {
				t.Fatalf("Restore: %v", err)
			}

			if got := render(t, s, in); !got.Equal(before) {
				t.Fatal("restore onto the captured stage changed its output")
			}

			// Fresh instance of the same unit type.
			fresh := newStage()
			if err := quietManager().Restore(context.Background(), fresh, blob); err != nil {
				t.Fatalf("Restore: %v", err)
			}

			if got := render(t, fresh, in); !got.Equal(before) {
				t.Fatal("restore onto a fresh stage changed its output")
			}
		})
	}
}
