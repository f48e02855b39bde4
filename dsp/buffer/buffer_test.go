package buffer

import (
	"errors"
	"testing"
)

func TestNewZeroFilled(t *testing.T) {
	a := New(48000, 2, 8)
	if a.NumChannels() != 2 {
		t.Fatalf("NumChannels() = %d, want 2", a.NumChannels())
	}

	if a.Frames() != 8 {
		t.Fatalf("Frames() = %d, want 8", a.Frames())
	}

	for ch, s := range a.Channels {
		for i, v := range s {
			if v != 0 {
				t.Fatalf("Channels[%d][%d] = %v, want 0", ch, i, v)
			}
		}
	}
}

func TestNewNegativeSizes(t *testing.T) {
	a := New(48000, -1, -1)
	if a.NumChannels() != 0 || a.Frames() != 0 {
		t.Fatalf("got %d channels, %d frames, want 0, 0", a.NumChannels(), a.Frames())
	}
}

func TestNewChannelsDoNotAlias(t *testing.T) {
	a := New(48000, 2, 4)
	a.Channels[0] = append(a.Channels[0], 1)
	a.Channels[0][0] = 5

	if a.Channels[1][0] != 0 {
		t.Fatal("append on channel 0 overwrote channel 1")
	}
}

func TestFromChannels(t *testing.T) {
	t.Run("shares memory", func(t *testing.T) {
		l := []float32{1, 2, 3}
		a, err := FromChannels(44100, l)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		a.Channels[0][0] = 99
		if l[0] != 99 {
			t.Fatal("FromChannels should share underlying memory")
		}
	})

	t.Run("ragged", func(t *testing.T) {
		_, err := FromChannels(44100, []float32{1, 2}, []float32{1})
		if !errors.Is(err, ErrRaggedChannels) {
			t.Fatalf("err = %v, want ErrRaggedChannels", err)
		}
	})

	t.Run("empty", func(t *testing.T) {
		_, err := FromChannels(44100)
		if !errors.Is(err, ErrNoChannels) {
			t.Fatalf("err = %v, want ErrNoChannels", err)
		}
	})
}

func TestCloneIsDeep(t *testing.T) {
	a, _ := FromChannels(48000, []float32{1, 2, 3})
	c := a.Clone()
	c.Channels[0][0] = 7

	if a.Channels[0][0] != 1 {
		t.Fatal("Clone shares memory with source")
	}

	if !a.Equal(a.Clone()) {
		t.Fatal("Clone is not Equal to source")
	}
}

func TestSliceClamps(t *testing.T) {
	a, _ := FromChannels(48000, []float32{0, 1, 2, 3, 4})

	s := a.Slice(3, 10)
	if s.Frames() != 2 || s.Channels[0][0] != 3 {
		t.Fatalf("Slice(3, 10) = %v, want [3 4]", s.Channels[0])
	}

	if a.Slice(-2, 1).Frames() != 1 {
		t.Fatal("negative start not clamped")
	}

	if a.Slice(4, 2).Frames() != 0 {
		t.Fatal("inverted range should be empty")
	}
}

func TestCopyAt(t *testing.T) {
	dst := New(48000, 2, 6)
	src, _ := FromChannels(48000, []float32{1, 2, 3, 4}, []float32{5, 6, 7, 8})

	n := dst.CopyAt(4, src)
	if n != 2 {
		t.Fatalf("CopyAt returned %d, want 2", n)
	}

	if dst.Channels[0][4] != 1 || dst.Channels[1][5] != 6 {
		t.Fatalf("unexpected contents %v", dst.Channels)
	}

	if dst.CopyAt(6, src) != 0 {
		t.Fatal("CopyAt past end should copy nothing")
	}
}

func TestTruncate(t *testing.T) {
	a := New(48000, 2, 10)
	a.Truncate(4)

	if a.Frames() != 4 || len(a.Channels[1]) != 4 {
		t.Fatalf("Frames() = %d after Truncate(4)", a.Frames())
	}

	a.Truncate(100)
	if a.Frames() != 4 {
		t.Fatal("Truncate must not grow")
	}
}

func TestPeak(t *testing.T) {
	a, _ := FromChannels(48000, []float32{0.1, -0.9}, []float32{0.5, 0.2})
	if got := a.Peak(); got < 0.8999 || got > 0.9001 {
		t.Fatalf("Peak() = %v, want 0.9", got)
	}
}

func TestEqual(t *testing.T) {
	a, _ := FromChannels(48000, []float32{1, 2})
	b, _ := FromChannels(48000, []float32{1, 2})
	c, _ := FromChannels(44100, []float32{1, 2})
	d, _ := FromChannels(48000, []float32{1, 3})

	if !a.Equal(b) {
		t.Error("identical buffers not Equal")
	}

	if a.Equal(c) {
		t.Error("different sample rates reported Equal")
	}

	if a.Equal(d) {
		t.Error("different samples reported Equal")
	}
}

func TestDuration(t *testing.T) {
	a := New(48000, 1, 24000)
	if a.Duration() != 0.5 {
		t.Fatalf("Duration() = %v, want 0.5", a.Duration())
	}

	if New(0, 1, 10).Duration() != 0 {
		t.Fatal("zero sample rate should give zero duration")
	}
}
