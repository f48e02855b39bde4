package chain

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-reamp/audiofile"
	"github.com/cwbudde/algo-reamp/dsp/buffer"
	"github.com/cwbudde/algo-reamp/dsp/conv"
	"github.com/cwbudde/algo-reamp/internal/testutil"
	"github.com/cwbudde/algo-reamp/nam"
	"github.com/cwbudde/algo-reamp/plugin"
	"github.com/cwbudde/algo-reamp/plugin/builtin"
	"github.com/cwbudde/algo-reamp/stage"
	"github.com/cwbudde/algo-reamp/state"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)

	return l
}

func newTestBuilder(host plugin.Host, opts ...Option) *Builder {
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	return NewBuilder(host, opts...)
}

func writeModel(t *testing.T, dir string) string {
	t.Helper()

	var buf bytes.Buffer
	if err := nam.Encode(&buf, &nam.Model{SampleRate: 48000, Weights: []float64{0.25, 0.5}}); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	path := filepath.Join(dir, "amp.nam")
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	return path
}

func writeIR(t *testing.T, dir string, sampleRate float64, frames int) string {
	t.Helper()

	ir, err := buffer.FromChannels(sampleRate, testutil.DecayingNoise(3, frames, float64(frames)/8))
	if err != nil {
		t.Fatalf("FromChannels: %v", err)
	}

	path := filepath.Join(dir, "cab.wav")
	if err := audiofile.Write(path, ir, 24); err != nil {
		t.Fatalf("Write: %v", err)
	}

	return path
}

// trackingHost counts how many instantiated units were closed.
type trackingHost struct {
	*plugin.Registry
	opened atomic.Int32
	closed atomic.Int32
}

type trackedUnit struct {
	plugin.Unit
	host *trackingHost
}

func (u *trackedUnit) Close() error {
	u.host.closed.Add(1)
	return u.Unit.Close()
}

func (h *trackingHost) Instantiate(ctx context.Context, id string) (plugin.Unit, error) {
	u, err := h.Registry.Instantiate(ctx, id)
	if err != nil {
		return nil, err
	}

	h.opened.Add(1)

	return &trackedUnit{Unit: u, host: h}, nil
}

func TestBuildEmptyChain(t *testing.T) {
	b := newTestBuilder(builtin.NewRegistry())

	handles, err := b.Build(context.Background(), testutil.MonoDI(48000, 100), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(handles) != 0 {
		t.Fatalf("len(handles) = %d, want 0", len(handles))
	}
}

func TestBuildSkipsInactive(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.nam")
	descs := []Descriptor{
		{Kind: KindAmpModel, FilePath: missing, Enabled: false},
		{Kind: KindGenericEffect, Identity: "vendor.unknown", Enabled: true, Bypassed: true},
		{Kind: KindGenericEffect, Identity: builtin.IDGain, Enabled: true},
	}

	handles, err := newTestBuilder(builtin.NewRegistry()).Build(context.Background(), testutil.MonoDI(48000, 100), descs)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer CloseAll(handles)

	if len(handles) != 1 {
		t.Fatalf("len(handles) = %d, want 1", len(handles))
	}

	if handles[0].Index != 2 || handles[0].Identity != builtin.IDGain {
		t.Fatalf("handle = {Index:%d Identity:%s}", handles[0].Index, handles[0].Identity)
	}
}

func TestBuildResolvesStages(t *testing.T) {
	dir := t.TempDir()
	descs := []Descriptor{
		{Kind: KindAmpModel, FilePath: writeModel(t, dir), Enabled: true},
		{Kind: KindImpulseResponse, FilePath: writeIR(t, dir, 48000, 256), Enabled: true, Name: "cab"},
		{Kind: KindGenericEffect, Identity: builtin.IDFilter, Enabled: true},
	}

	input := testutil.MonoDI(44100, 1000)

	handles, err := newTestBuilder(builtin.NewRegistry()).Build(context.Background(), input, descs)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer CloseAll(handles)

	if len(handles) != 3 {
		t.Fatalf("len(handles) = %d, want 3", len(handles))
	}

	if handles[0].Identity != builtin.IDAmp {
		t.Fatalf("amp identity = %q, want %q", handles[0].Identity, builtin.IDAmp)
	}

	if _, ok := handles[1].Stage.(*stage.ConvolutionStage); !ok {
		t.Fatalf("stage 1 is %T, want *stage.ConvolutionStage", handles[1].Stage)
	}

	if handles[1].Stage.Name() != "cab" {
		t.Fatalf("IR stage name = %q, want cab", handles[1].Stage.Name())
	}

	want := stage.Format{SampleRate: 44100, Channels: 1}
	for i, h := range handles {
		if h.Format != want || h.Stage.Format() != want {
			t.Fatalf("handle %d format = %+v, want %+v", i, h.Format, want)
		}
	}
}

func TestBuildErrors(t *testing.T) {
	dir := t.TempDir()
	model := writeModel(t, dir)

	tests := []struct {
		name  string
		descs []Descriptor
		index int
		want  error
	}{
		{
			name:  "missing model file",
			descs: []Descriptor{{Kind: KindAmpModel, FilePath: filepath.Join(dir, "nope.nam"), Enabled: true}},
			want:  ErrFileNotFound,
		},
		{
			name: "missing impulse response",
			descs: []Descriptor{
				{Kind: KindGenericEffect, Identity: builtin.IDGain, Enabled: true},
				{Kind: KindImpulseResponse, FilePath: filepath.Join(dir, "nope.wav"), Enabled: true},
			},
			index: 1,
			want:  ErrFileNotFound,
		},
		{
			name:  "unknown effect",
			descs: []Descriptor{{Kind: KindGenericEffect, Identity: "vendor.unknown", Enabled: true}},
			want:  ErrPluginNotFound,
		},
		{
			name:  "unknown amp identity",
			descs: []Descriptor{{Kind: KindAmpModel, Identity: "vendor.amp", FilePath: model, Enabled: true}},
			want:  ErrPluginNotFound,
		},
		{
			name:  "effect without identity",
			descs: []Descriptor{{Kind: KindGenericEffect, Enabled: true}},
			want:  ErrInvalidDescriptor,
		},
		{
			name:  "unknown kind",
			descs: []Descriptor{{Kind: "mystery", Identity: builtin.IDGain, Enabled: true}},
			want:  ErrInvalidDescriptor,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handles, err := newTestBuilder(builtin.NewRegistry()).Build(context.Background(), testutil.MonoDI(48000, 10), tt.descs)
			if handles != nil {
				t.Fatalf("handles = %v, want nil", handles)
			}

			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}

			var se *StageError
			if !errors.As(err, &se) {
				t.Fatalf("err %T is not a *StageError", err)
			}

			if se.Index != tt.index {
				t.Fatalf("StageError.Index = %d, want %d", se.Index, tt.index)
			}
		})
	}
}

func TestBuildAmpModelWithoutCandidates(t *testing.T) {
	r := plugin.NewRegistry()
	model := writeModel(t, t.TempDir())

	_, err := newTestBuilder(r).Build(context.Background(), nil, []Descriptor{
		{Kind: KindAmpModel, FilePath: model, Enabled: true},
	})
	if !errors.Is(err, ErrPluginNotFound) {
		t.Fatalf("err = %v, want ErrPluginNotFound", err)
	}
}

func TestBuildFailureClosesBuiltStages(t *testing.T) {
	host := &trackingHost{Registry: builtin.NewRegistry()}
	descs := []Descriptor{
		{Kind: KindGenericEffect, Identity: builtin.IDGain, Enabled: true},
		{Kind: KindGenericEffect, Identity: builtin.IDGate, Enabled: true},
		{Kind: KindGenericEffect, Identity: "vendor.unknown", Enabled: true},
	}

	_, err := newTestBuilder(host).Build(context.Background(), testutil.MonoDI(48000, 10), descs)
	if !errors.Is(err, ErrPluginNotFound) {
		t.Fatalf("err = %v, want ErrPluginNotFound", err)
	}

	if host.opened.Load() != 2 || host.closed.Load() != 2 {
		t.Fatalf("opened %d, closed %d; want 2 and 2", host.opened.Load(), host.closed.Load())
	}
}

func TestBuildRestoresState(t *testing.T) {
	blob, err := state.Encode(builtin.IDGain, map[string]float64{builtin.ParamGainDB: -6})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	badBlob, err := state.Encode(builtin.IDDrive, map[string]float64{builtin.ParamDrive: 10})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	descs := []Descriptor{
		{Kind: KindGenericEffect, Identity: builtin.IDGain, State: blob, Enabled: true},
		{Kind: KindGenericEffect, Identity: builtin.IDGain, State: badBlob, Enabled: true},
		{Kind: KindGenericEffect, Identity: builtin.IDGain, State: []byte("garbage"), Enabled: true},
	}

	handles, err := newTestBuilder(builtin.NewRegistry()).Build(context.Background(), testutil.MonoDI(48000, 10), descs)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer CloseAll(handles)

	wantGain := []float64{-6, 0, 0}
	for i, h := range handles {
		st, ok := h.Stage.(state.Stateful)
		if !ok {
			t.Fatalf("stage %d is not stateful", i)
		}

		if got := st.State()[builtin.ParamGainDB]; got != wantGain[i] {
			t.Errorf("stage %d gain_db = %v, want %v", i, got, wantGain[i])
		}
	}
}

func TestBuildCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestBuilder(builtin.NewRegistry()).Build(ctx, nil, []Descriptor{
		{Kind: KindGenericEffect, Identity: builtin.IDGain, Enabled: true},
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestBuildCustomKernelLoader(t *testing.T) {
	var calls int

	dir := t.TempDir()
	path := writeIR(t, dir, 96000, 32)

	b := newTestBuilder(builtin.NewRegistry(), WithKernelLoader(func(p string) (*conv.Kernel, error) {
		calls++
		return audiofile.LoadKernel(p)
	}))

	handles, err := b.Build(context.Background(), testutil.MonoDI(48000, 10), []Descriptor{
		{Kind: KindImpulseResponse, FilePath: path, Enabled: true},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer CloseAll(handles)

	if calls != 1 {
		t.Fatalf("loader called %d times, want 1", calls)
	}
}

func TestNegotiateFormat(t *testing.T) {
	tests := []struct {
		name  string
		input *buffer.Audio
		want  stage.Format
	}{
		{"nil", nil, stage.DefaultFormat},
		{"no channels", buffer.New(44100, 0, 0), stage.DefaultFormat},
		{"zero rate", buffer.New(0, 1, 10), stage.DefaultFormat},
		{"mono", buffer.New(44100, 1, 10), stage.Format{SampleRate: 44100, Channels: 1}},
		{"stereo empty", buffer.New(96000, 2, 0), stage.Format{SampleRate: 96000, Channels: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NegotiateFormat(tt.input); got != tt.want {
				t.Fatalf("NegotiateFormat() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDescriptorValidate(t *testing.T) {
	tests := []struct {
		name string
		d    Descriptor
		ok   bool
	}{
		{"amp with file", Descriptor{Kind: KindAmpModel, FilePath: "a.nam"}, true},
		{"amp without file", Descriptor{Kind: KindAmpModel}, false},
		{"ir without file", Descriptor{Kind: KindImpulseResponse}, false},
		{"effect with identity", Descriptor{Kind: KindGenericEffect, Identity: "x"}, true},
		{"effect without identity", Descriptor{Kind: KindGenericEffect}, false},
		{"empty kind", Descriptor{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.d.Validate()
			if (err == nil) != tt.ok {
				t.Fatalf("Validate() = %v, ok want %v", err, tt.ok)
			}

			if err != nil && !errors.Is(err, ErrInvalidDescriptor) {
				t.Fatalf("Validate() = %v, want ErrInvalidDescriptor", err)
			}
		})
	}
}

func TestStageErrorMessage(t *testing.T) {
	err := &StageError{Index: 3, Kind: KindGenericEffect, Identity: "x.y", Err: ErrPluginNotFound}

	want := "stage 3 (effect x.y): chain: plugin not found"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}
