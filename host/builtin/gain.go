package builtin

import (
	"math"

	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-pluginhost/dsp/buffer"
	"github.com/cwbudde/algo-pluginhost/host/plugin"
)

// Gain scales every channel by a fixed amount.
type Gain struct {
	base
	params

	gainDB *param
}

// NewGain returns a unity gain for the given channel count.
func NewGain(channels int) *Gain {
	ps := newParams(Param{Name: "gain_db", Min: -96, Max: 24, Default: 0})

	return &Gain{base: base{channels: channels}, params: ps, gainDB: ps.list[0]}
}

func (g *Gain) Prepare(float64, int) {}
func (g *Gain) Release()             {}
func (g *Gain) Close() error         { return nil }

// Linear returns the current gain factor.
func (g *Gain) Linear() float64 {
	return math.Pow(10, g.gainDB.load()/20)
}

func (g *Gain) ProcessBlock(buf *buffer.Buffer, _ *plugin.EventBuffer) {
	factor := g.Linear()
	if factor == 1 {
		return
	}

	for ch := range min(g.channels, buf.NumChannels()) {
		samples := buf.Channel(ch)
		vecmath.ScaleBlock(samples, samples, factor)
	}
}
