package builtin

import (
	"math"
	"sync"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-pluginhost/dsp/buffer"
	"github.com/cwbudde/algo-pluginhost/host/plugin"
)

const (
	minFFTOrder     = 8  // 256 points
	maxFFTOrder     = 14 // 16384 points
	defaultFFTOrder = 11
)

// Spectrum is a pass-through analyzer. It mixes its channels down to mono,
// runs a Hann-windowed FFT every half frame and publishes the magnitude of
// each bin.
type Spectrum struct {
	base
	params

	order *param

	// audio goroutine state, owned between Prepare and Release
	plan   *algofft.Plan[complex128]
	size   int
	window []float64
	ring   []float64
	write  int
	filled int
	frame  []complex128
	bins   []complex128
	re, im []float64
	mags   []float64

	// published result
	mu        sync.Mutex
	published []float64
	frames    uint64
}

// NewSpectrum returns an analyzer for the given channel count.
func NewSpectrum(channels int) *Spectrum {
	ps := newParams(Param{Name: "fft_order", Min: minFFTOrder, Max: maxFFTOrder, Default: defaultFFTOrder})

	return &Spectrum{base: base{channels: channels}, params: ps, order: ps.list[0]}
}

// FFTSize returns the frame length selected by the fft_order parameter.
// A change takes effect on the next Prepare.
func (s *Spectrum) FFTSize() int {
	return 1 << int(math.Round(s.order.load()))
}

// Prepare allocates the FFT plan and frame buffers.
func (s *Spectrum) Prepare(float64, int) {
	size := s.FFTSize()

	plan, err := algofft.NewPlan64(size)
	if err != nil {
		s.plan = nil

		return
	}

	s.plan = plan
	s.size = size
	s.window = hann(size)
	s.ring = make([]float64, size)
	s.write = 0
	s.filled = 0
	s.frame = make([]complex128, size)
	s.bins = make([]complex128, size)
	s.re = make([]float64, size/2+1)
	s.im = make([]float64, size/2+1)
	s.mags = make([]float64, size/2+1)

	s.mu.Lock()
	s.published = make([]float64, size/2+1)
	s.frames = 0
	s.mu.Unlock()
}

// Release drops the plan and buffers.
func (s *Spectrum) Release() {
	s.plan = nil
	s.ring, s.frame, s.bins = nil, nil, nil
}

func (s *Spectrum) Close() error {
	s.Release()

	return nil
}

// Magnitudes copies the latest magnitude spectrum (size/2+1 bins, scaled so
// a full-scale sine at a bin centre reads about 1) into dst and returns it
// together with the number of frames analysed since Prepare.
func (s *Spectrum) Magnitudes(dst []float64) ([]float64, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dst = append(dst[:0], s.published...)

	return dst, s.frames
}

func (s *Spectrum) ProcessBlock(buf *buffer.Buffer, _ *plugin.EventBuffer) {
	if s.plan == nil {
		return
	}

	channels := min(s.channels, buf.NumChannels())
	if channels == 0 {
		return
	}

	scale := 1 / float64(channels)
	hop := s.size / 2

	for i := range buf.NumSamples() {
		var sum float64
		for ch := range channels {
			sum += buf.Channel(ch)[i]
		}

		s.ring[s.write] = sum * scale

		s.write++
		if s.write == s.size {
			s.write = 0
		}

		s.filled++
		if s.filled >= s.size && (s.filled-s.size)%hop == 0 {
			s.analyse()
		}
	}
}

func (s *Spectrum) analyse() {
	// Oldest sample first.
	for i := range s.size {
		s.frame[i] = complex(s.ring[(s.write+i)%s.size]*s.window[i], 0)
	}

	if err := s.plan.Forward(s.bins, s.frame); err != nil {
		return
	}

	for k := range s.re {
		s.re[k] = real(s.bins[k])
		s.im[k] = imag(s.bins[k])
	}

	vecmath.Magnitude(s.mags, s.re, s.im)
	vecmath.ScaleBlock(s.mags, s.mags, 4/float64(s.size))

	// The audio goroutine never waits for a reader.
	if s.mu.TryLock() {
		copy(s.published, s.mags)
		s.frames++
		s.mu.Unlock()
	}
}

func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}

	return w
}
