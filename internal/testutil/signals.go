package testutil

import (
	"math"
	"math/rand"

	"github.com/cwbudde/algo-reamp/dsp/buffer"
)

// DeterministicSine generates a deterministic sine wave.
func DeterministicSine(freqHz, sampleRate, amplitude float64, length int) []float32 {
	out := make([]float32, length)
	step := 2 * math.Pi * freqHz / sampleRate

	for i := range out {
		out[i] = float32(amplitude * math.Sin(step*float64(i)))
	}

	return out
}

// DeterministicNoise generates white noise with a fixed seed for reproducibility.
func DeterministicNoise(seed int64, amplitude float64, length int) []float32 {
	out := make([]float32, length)
	rng := rand.New(rand.NewSource(seed))

	for i := range out {
		out[i] = float32((rng.Float64()*2 - 1) * amplitude)
	}

	return out
}

// Impulse generates a unit impulse at the given position.
func Impulse(length, pos int) []float32 {
	out := make([]float32, length)
	if pos >= 0 && pos < length {
		out[pos] = 1
	}

	return out
}

// DecayingNoise generates a noise burst with an exponential envelope, a
// stand-in for a cabinet or room impulse response.
func DecayingNoise(seed int64, length int, decayFrames float64) []float32 {
	out := DeterministicNoise(seed, 1, length)
	for i := range out {
		out[i] *= float32(math.Exp(-float64(i) / decayFrames))
	}

	return out
}

// MonoDI returns a mono buffer resembling a guitar DI track: a decaying
// sine pluck plus a little noise.
func MonoDI(sampleRate float64, frames int) *buffer.Audio {
	a := buffer.New(sampleRate, 1, frames)
	noise := DeterministicNoise(7, 0.01, frames)

	step := 2 * math.Pi * 110 / sampleRate
	for i := range a.Channels[0] {
		env := math.Exp(-float64(i%int(sampleRate)) / (0.3 * sampleRate))
		a.Channels[0][i] = float32(0.6*env*math.Sin(step*float64(i))) + noise[i]
	}

	return a
}
