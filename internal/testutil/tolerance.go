package testutil

import (
	"fmt"
	"math"
	"testing"

	"github.com/cwbudde/algo-reamp/dsp/buffer"
)

// RequireSliceNearlyEqual fails t if got and want differ in length or if
// any element pair exceeds eps (absolute tolerance).
func RequireSliceNearlyEqual(t *testing.T, got, want []float32, eps float64) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}

	for i := range got {
		diff := math.Abs(float64(got[i]) - float64(want[i]))
		if diff > eps {
			t.Fatalf("index %d: got %v, want %v (diff %v > eps %v)", i, got[i], want[i], diff, eps)
		}
	}
}

// RequireAudioNearlyEqual fails t if the buffers differ in layout or if any
// sample pair exceeds eps.
func RequireAudioNearlyEqual(t *testing.T, got, want *buffer.Audio, eps float64) {
	t.Helper()

	if got.SampleRate != want.SampleRate {
		t.Fatalf("sample rate: got %v, want %v", got.SampleRate, want.SampleRate)
	}

	if got.NumChannels() != want.NumChannels() {
		t.Fatalf("channels: got %d, want %d", got.NumChannels(), want.NumChannels())
	}

	for ch := range got.Channels {
		d, err := MaxAbsDiff(got.Channels[ch], want.Channels[ch])
		if err != nil {
			t.Fatalf("channel %d: %v", ch, err)
		}

		if d > eps {
			t.Fatalf("channel %d: max abs diff %v > eps %v", ch, d, eps)
		}
	}
}

// RequireFinite fails t if any element is NaN or Inf.
func RequireFinite(t *testing.T, data []float32) {
	t.Helper()

	for i, v := range data {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			t.Fatalf("index %d: non-finite value %v", i, v)
		}
	}
}

// MaxAbsDiff returns the maximum absolute difference between two slices.
// Returns an error if the slices differ in length.
func MaxAbsDiff(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("length mismatch: %d vs %d", len(a), len(b))
	}

	maxDiff := 0.0
	for i := range a {
		d := math.Abs(float64(a[i]) - float64(b[i]))
		if d > maxDiff {
			maxDiff = d
		}
	}

	return maxDiff, nil
}
