package batch

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-reamp/audiofile"
	"github.com/cwbudde/algo-reamp/chain"
	"github.com/cwbudde/algo-reamp/internal/testutil"
	"github.com/cwbudde/algo-reamp/plugin/builtin"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)

	return l
}

func writeDI(t *testing.T, dir string) string {
	t.Helper()

	path := filepath.Join(dir, "di.wav")
	if err := audiofile.Write(path, testutil.MonoDI(48000, 4800), 24); err != nil {
		t.Fatalf("Write: %v", err)
	}

	return path
}

func newTestRunner(opts ...Option) *Runner {
	log := quietLogger()
	opts = append([]Option{WithLogger(log)}, opts...)

	return NewRunner(builtin.NewRegistry(builtin.WithLogger(log)), opts...)
}

func requireShell(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestRunnerIsolatesFailures(t *testing.T) {
	dir := t.TempDir()
	di := writeDI(t, dir)
	store := NewMemoryStore()

	var (
		mu       sync.Mutex
		callback []Status
	)

	jobs := []Job{
		{
			Name:       "clean",
			Chain:      []chain.Descriptor{{Kind: chain.KindGenericEffect, Identity: builtin.IDGain, Enabled: true}},
			InputPath:  di,
			OutputPath: filepath.Join(dir, "out", "clean.wav"),
		},
		{
			Name:       "missing plugin",
			Chain:      []chain.Descriptor{{Kind: chain.KindGenericEffect, Identity: "vendor.unknown", Enabled: true}},
			InputPath:  di,
			OutputPath: filepath.Join(dir, "out", "missing.wav"),
		},
		{
			Name:       "missing input",
			InputPath:  filepath.Join(dir, "nope.wav"),
			OutputPath: filepath.Join(dir, "out", "nope.wav"),
		},
		{
			Name:       "empty chain",
			InputPath:  di,
			OutputPath: filepath.Join(dir, "out", "copy.wav"),
		},
		{Name: "no paths"},
	}

	r := newTestRunner(WithConcurrency(2), WithStatusStore(store), OnResult(func(res JobResult) {
		mu.Lock()
		callback = append(callback, res.Status)
		mu.Unlock()
	}))

	results, err := r.Run(context.Background(), jobs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []Status{StatusDone, StatusFailed, StatusFailed, StatusDone, StatusFailed}
	for i, res := range results {
		if res.Index != i || res.Job.Name != jobs[i].Name {
			t.Fatalf("result %d belongs to job %d (%s)", i, res.Index, res.Job.Name)
		}

		if res.Status != want[i] {
			t.Errorf("job %q: status %v, want %v (err %v)", res.Job.Name, res.Status, want[i], res.Err)
		}

		rec, ok := store.Get(res.Job.ID)
		if !ok || rec.Status != res.Status {
			t.Errorf("job %q: stored %+v, want %v", res.Job.Name, rec, res.Status)
		}
	}

	if len(callback) != len(jobs) {
		t.Fatalf("%d callbacks, want %d", len(callback), len(jobs))
	}

	if !errors.Is(results[1].Err, chain.ErrPluginNotFound) {
		t.Errorf("missing plugin err = %v", results[1].Err)
	}

	if !errors.Is(results[2].Err, chain.ErrFileNotFound) || !errors.Is(results[2].Err, os.ErrNotExist) {
		t.Errorf("missing input err = %v", results[2].Err)
	}

	if !errors.Is(results[4].Err, ErrInvalidJob) {
		t.Errorf("no paths err = %v", results[4].Err)
	}

	out, err := audiofile.Read(jobs[0].OutputPath)
	if err != nil {
		t.Fatalf("Read output: %v", err)
	}

	if out.Frames() != 4800 || results[0].Frames != 4800 {
		t.Fatalf("output frames = %d (result %d), want 4800", out.Frames(), results[0].Frames)
	}
}

func TestRunnerLeavesJobsUntouched(t *testing.T) {
	dir := t.TempDir()
	di := writeDI(t, dir)

	jobs := []Job{
		{Name: "a", InputPath: di, OutputPath: filepath.Join(dir, "a.wav")},
		{ID: "fixed", Name: "b", InputPath: di, OutputPath: filepath.Join(dir, "b.wav")},
	}

	results, err := newTestRunner().Run(context.Background(), jobs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if jobs[0].ID != "" {
		t.Fatalf("caller job ID = %q, want it left empty", jobs[0].ID)
	}

	if results[0].Job.ID == "" {
		t.Fatal("result job has no generated ID")
	}

	if results[1].Job.ID != "fixed" {
		t.Fatalf("result job ID = %q, want fixed", results[1].Job.ID)
	}
}

func TestRunnerCancelled(t *testing.T) {
	dir := t.TempDir()
	di := writeDI(t, dir)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewMemoryStore()
	results, err := newTestRunner(WithStatusStore(store)).Run(ctx, []Job{
		{Name: "a", InputPath: di, OutputPath: filepath.Join(dir, "a.wav")},
		{Name: "b", InputPath: di, OutputPath: filepath.Join(dir, "b.wav")},
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	for _, res := range results {
		if res.Status != StatusCancelled {
			t.Errorf("job %s: status %v, want cancelled", res.Job.Name, res.Status)
		}
	}

	if _, err := os.Stat(filepath.Join(dir, "a.wav")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("cancelled job wrote output (stat err %v)", err)
	}
}

func TestRunnerProgress(t *testing.T) {
	dir := t.TempDir()
	di := writeDI(t, dir)

	var last float64

	r := newTestRunner(OnProgress(func(job int, p float64) {
		if job != 0 {
			t.Errorf("progress for job %d", job)
		}

		last = p
	}))

	_, err := r.Run(context.Background(), []Job{{
		Name:       "gain",
		Chain:      []chain.Descriptor{{Kind: chain.KindGenericEffect, Identity: builtin.IDGain, Enabled: true}},
		InputPath:  di,
		OutputPath: filepath.Join(dir, "gain.wav"),
	}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if last != 1 {
		t.Fatalf("final progress = %v, want 1", last)
	}
}

func TestRunnerTrainer(t *testing.T) {
	requireShell(t)

	dir := t.TempDir()
	di := writeDI(t, dir)
	output := filepath.Join(dir, "train.wav")

	trainer := NewTrainer("sh", "-c", `test -s "$1" && echo "trained $1"`, "train", OutputPlaceholder)

	results, err := newTestRunner(WithTrainer(trainer)).Run(context.Background(), []Job{
		{Name: "train", InputPath: di, OutputPath: output},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	res := results[0]
	if res.Status != StatusDone {
		t.Fatalf("status = %v (err %v)", res.Status, res.Err)
	}

	if res.Train == nil || strings.TrimSpace(res.Train.Stdout) != "trained "+output {
		t.Fatalf("train result = %+v", res.Train)
	}
}

func TestTrainerArguments(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"appended", []string{"--epochs", "10"}, []string{"--epochs", "10", "/tmp/o.wav"}},
		{"templated", []string{"--in={output}", "-v"}, []string{"--in=/tmp/o.wav", "-v"}},
		{"no args", nil, []string{"/tmp/o.wav"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewTrainer("train", tt.args...).Arguments("/tmp/o.wav")
			if strings.Join(got, " ") != strings.Join(tt.want, " ") {
				t.Fatalf("Arguments() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseTrainer(t *testing.T) {
	tr, err := ParseTrainer("  nam-train  --out {output} ")
	if err != nil {
		t.Fatalf("ParseTrainer: %v", err)
	}

	if tr.Command != "nam-train" || len(tr.Args) != 2 {
		t.Fatalf("trainer = %+v", tr)
	}

	if _, err := ParseTrainer("   "); !errors.Is(err, ErrNoCommand) {
		t.Fatalf("err = %v, want ErrNoCommand", err)
	}
}

func TestTrainerFailure(t *testing.T) {
	requireShell(t)

	res, err := NewTrainer("sh", "-c", "echo boom >&2; exit 3").Train(context.Background(), "x.wav")
	if err == nil {
		t.Fatal("expected error")
	}

	if res.ExitCode != 3 || !strings.Contains(res.Stderr, "boom") {
		t.Fatalf("result = %+v", res)
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	_ = s.SetStatus(context.Background(), "j1", StatusQueued, "")
	_ = s.SetStatus(context.Background(), "j1", StatusDone, "out.wav")

	rec, ok := s.Get("j1")
	if !ok || rec.Status != StatusDone || rec.Detail != "out.wav" || s.Len() != 1 {
		t.Fatalf("record = %+v, ok %v, len %d", rec, ok, s.Len())
	}

	if _, ok := s.Get("j2"); ok {
		t.Fatal("unexpected record for j2")
	}

	if !StatusDone.Terminal() || StatusRendering.Terminal() {
		t.Fatal("Terminal() mismatch")
	}
}
