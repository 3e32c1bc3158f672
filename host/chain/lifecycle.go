package chain

import (
	"fmt"

	"github.com/cwbudde/algo-pluginhost/dsp/buffer"
)

// Prepare stores the processing context, sizes the scratch buffer and
// prepares every entry. It must be called again whenever the sample rate or
// maximum block size changes, and not concurrently with Process.
func (c *Chain) Prepare(sampleRate float64, maxBlockSize int) error {
	if sampleRate <= 0 || maxBlockSize <= 0 {
		return fmt.Errorf("%w: rate %v, block %d", ErrInvalidContext, sampleRate, maxBlockSize)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	c.ctx = Context{SampleRate: sampleRate, MaxBlockSize: maxBlockSize, Prepared: true}

	old := c.snap.Load()

	channels := c.scratchChannels
	for _, e := range old.entries {
		channels = max(channels, e.plugin.NumInputChannels())
	}

	scratch := buffer.New(0, 0)
	scratch.Reserve(channels, maxBlockSize)
	c.snap.Store(&snapshot{entries: old.entries, scratch: scratch, reserved: channels})

	for _, e := range old.entries {
		e.plugin.Prepare(sampleRate, maxBlockSize)
	}

	c.prepared.Store(true)

	c.logger.Debug("chain prepared",
		"sample_rate", sampleRate, "block_size", maxBlockSize, "plugins", len(old.entries))

	return nil
}

// Release releases every entry's processing resources. Process is a no-op
// until the next Prepare.
func (c *Chain) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.prepared.Store(false)
	c.quiesce()

	for _, e := range c.snap.Load().entries {
		e.plugin.Release()
	}

	c.ctx.Prepared = false

	c.logger.Debug("chain released")
}

// Context returns the current processing context.
func (c *Chain) Context() Context {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.ctx
}
