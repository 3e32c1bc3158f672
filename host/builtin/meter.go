package builtin

import (
	"math"
	"sync/atomic"

	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-pluginhost/dsp/buffer"
	"github.com/cwbudde/algo-pluginhost/host/plugin"
)

// Meter measures per-channel peak levels and leaves the audio untouched.
// Peaks can be read from any goroutine.
type Meter struct {
	base
	params

	last []atomic.Uint64 // peak of the latest block
	hold []atomic.Uint64 // highest peak since Reset
}

// NewMeter returns a meter for the given channel count.
func NewMeter(channels int) *Meter {
	return &Meter{
		base: base{channels: channels},
		last: make([]atomic.Uint64, channels),
		hold: make([]atomic.Uint64, channels),
	}
}

func (m *Meter) Prepare(float64, int) { m.Reset() }
func (m *Meter) Release()             {}
func (m *Meter) Close() error         { return nil }

// Reset clears all readings.
func (m *Meter) Reset() {
	for ch := range m.last {
		m.last[ch].Store(0)
		m.hold[ch].Store(0)
	}
}

// Peak returns the absolute peak of channel ch in the latest block.
func (m *Meter) Peak(ch int) float64 {
	if ch < 0 || ch >= len(m.last) {
		return 0
	}

	return math.Float64frombits(m.last[ch].Load())
}

// Hold returns the highest peak of channel ch since the last Reset.
func (m *Meter) Hold(ch int) float64 {
	if ch < 0 || ch >= len(m.hold) {
		return 0
	}

	return math.Float64frombits(m.hold[ch].Load())
}

// HoldDB returns Hold(ch) in dBFS; silence is -Inf.
func (m *Meter) HoldDB(ch int) float64 {
	return 20 * math.Log10(m.Hold(ch))
}

func (m *Meter) ProcessBlock(buf *buffer.Buffer, _ *plugin.EventBuffer) {
	for ch := range min(len(m.last), buf.NumChannels()) {
		peak := vecmath.MaxAbs(buf.Channel(ch))
		m.last[ch].Store(math.Float64bits(peak))

		if peak > math.Float64frombits(m.hold[ch].Load()) {
			m.hold[ch].Store(math.Float64bits(peak))
		}
	}
}
