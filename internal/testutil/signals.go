package testutil

import (
	"math"
	"math/rand"

	"github.com/cwbudde/algo-pluginhost/dsp/buffer"
)

// DeterministicSine generates a deterministic sine wave.
func DeterministicSine(freqHz, sampleRate, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	step := 2 * math.Pi * freqHz / sampleRate
	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i))
	}
	return out
}

// DeterministicNoise generates white noise with a fixed seed for reproducibility.
func DeterministicNoise(seed int64, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	rng := rand.New(rand.NewSource(seed))
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}
	return out
}

// Impulse generates a unit impulse at the given position.
func Impulse(length, pos int) []float64 {
	out := make([]float64, length)
	if pos >= 0 && pos < length {
		out[pos] = 1
	}
	return out
}

// DC generates a constant-valued signal.
func DC(value float64, length int) []float64 {
	out := make([]float64, length)
	for i := range out {
		out[i] = value
	}
	return out
}

// Ones returns a slice of length n filled with 1.0.
func Ones(n int) []float64 {
	return DC(1.0, n)
}

// Buffer returns a buffer holding copies of the given channels, so the
// originals can serve as the expected signal after processing.
func Buffer(channels ...[]float64) *buffer.Buffer {
	n := 0
	if len(channels) > 0 {
		n = len(channels[0])
		for _, ch := range channels[1:] {
			n = min(n, len(ch))
		}
	}

	b := buffer.New(len(channels), n)
	for i, ch := range channels {
		copy(b.Channel(i), ch)
	}
	return b
}

// NoiseBuffer returns a channels x length buffer of independent
// deterministic noise, one seed per channel.
func NoiseBuffer(seed int64, channels, length int) *buffer.Buffer {
	b := buffer.New(channels, length)
	for ch := range channels {
		copy(b.Channel(ch), DeterministicNoise(seed+int64(ch), 1, length))
	}
	return b
}
