package builtin

import (
	"github.com/cwbudde/algo-pluginhost/dsp/buffer"
	"github.com/cwbudde/algo-pluginhost/dsp/delay"
	"github.com/cwbudde/algo-pluginhost/host/plugin"
)

// maxDelaySeconds bounds the "time" parameter and the line length.
const maxDelaySeconds = 2.0

// Delay is a feedback echo with one delay line per channel.
type Delay struct {
	base
	params

	time, feedback, mix *param

	sampleRate float64
	lines      []*delay.Line
}

// NewDelay returns an unprepared delay. It passes audio through until Prepare.
func NewDelay(channels int) *Delay {
	ps := newParams(
		Param{Name: "time", Min: 0.001, Max: maxDelaySeconds, Default: 0.25},
		Param{Name: "feedback", Min: 0, Max: 0.95, Default: 0.35},
		Param{Name: "mix", Min: 0, Max: 1, Default: 0.3},
	)

	return &Delay{
		base:     base{channels: channels},
		params:   ps,
		time:     ps.list[0],
		feedback: ps.list[1],
		mix:      ps.list[2],
	}
}

// Prepare allocates the delay lines for sampleRate. Preparing again at the
// same rate only clears them.
func (d *Delay) Prepare(sampleRate float64, _ int) {
	if len(d.lines) == d.channels && sampleRate == d.sampleRate {
		d.reset()

		return
	}

	size := int(maxDelaySeconds*sampleRate) + 1

	d.sampleRate = sampleRate
	d.lines = make([]*delay.Line, d.channels)

	for ch := range d.lines {
		d.lines[ch], _ = delay.New(size)
	}
}

func (d *Delay) reset() {
	for _, l := range d.lines {
		l.Reset()
	}
}

// Release frees the delay lines.
func (d *Delay) Release() {
	d.lines = nil
}

func (d *Delay) Close() error {
	d.Release()

	return nil
}

// DelaySamples returns the current delay time in samples.
func (d *Delay) DelaySamples() int {
	return max(1, int(d.time.load()*d.sampleRate+0.5))
}

func (d *Delay) ProcessBlock(buf *buffer.Buffer, _ *plugin.EventBuffer) {
	if len(d.lines) == 0 {
		return
	}

	samples := d.DelaySamples()
	feedback := d.feedback.load()
	mix := d.mix.load()

	for ch := range min(len(d.lines), buf.NumChannels()) {
		d.lines[ch].Process(buf.Channel(ch), samples, feedback, mix)
	}
}
