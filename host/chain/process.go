package chain

import (
	"github.com/cwbudde/algo-pluginhost/dsp/buffer"
	"github.com/cwbudde/algo-pluginhost/host/plugin"
)

// Stats counts Process calls.
type Stats struct {
	// Cycles is the number of blocks run through the chain.
	Cycles uint64
	// Skipped is the number of Process calls ignored because the chain was
	// not prepared.
	Skipped uint64
}

// Stats returns the processing counters.
func (c *Chain) Stats() Stats {
	return Stats{Cycles: c.cycles.Load(), Skipped: c.skipped.Load()}
}

// Process runs one block through every active entry in chain order.
// Each entry reads the previous entry's output. Bypassed entries leave the
// block untouched.
//
// Process does nothing until the chain is prepared. It must be called from
// a single goroutine at a time.
func (c *Chain) Process(buf *buffer.Buffer, events *plugin.EventBuffer) {
	if buf == nil {
		c.skipped.Add(1)

		return
	}

	// busy goes up before prepared and the snapshot are read, so a control
	// goroutine that saw busy == false knows this call sees its changes.
	c.busy.Store(true)

	if !c.prepared.Load() {
		c.busy.Store(false)
		c.skipped.Add(1)

		return
	}

	defer func() {
		c.cycles.Add(1)
		c.busy.Store(false)
	}()

	snap := c.snap.Load()

	for _, e := range snap.entries {
		if e.bypassed.Load() || e.plugin == nil {
			continue
		}

		route(e.plugin, snap.scratch, buf, events)
	}
}

// route runs one plugin on a copy of buf sized to its channel needs.
// Channels the host does not have are zeroed on the way in and dropped on
// the way out.
func route(p plugin.Plugin, scratch, buf *buffer.Buffer, events *plugin.EventBuffer) {
	inputs := p.NumInputChannels()
	outputs := p.NumOutputChannels()

	if inputs <= 0 || outputs <= 0 {
		return
	}

	hostChannels := buf.NumChannels()
	numSamples := buf.NumSamples()

	scratch.SetSize(max(hostChannels, inputs), numSamples)

	for ch := range hostChannels {
		scratch.CopyChannel(ch, buf, ch, numSamples)
	}

	for ch := hostChannels; ch < scratch.NumChannels(); ch++ {
		scratch.ClearChannel(ch)
	}

	p.ProcessBlock(scratch, events)

	for ch := range hostChannels {
		buf.CopyChannel(ch, scratch, ch, numSamples)
	}
}
