package buffer

// Buffer is a multichannel block of float64 samples stored channel by channel.
// Channel slices alias one flat backing array, so resizing within the
// current capacity never allocates.
type Buffer struct {
	data       []float64
	channels   [][]float64
	numSamples int
}

// New returns a zero-filled Buffer with the given channel and sample counts.
func New(numChannels, numSamples int) *Buffer {
	b := &Buffer{}
	b.SetSize(numChannels, numSamples)

	return b
}

// FromChannels wraps existing channel slices without copying.
// All channels are truncated to the shortest one.
// Mutations are visible through the Buffer and vice versa.
func FromChannels(channels [][]float64) *Buffer {
	n := 0
	if len(channels) > 0 {
		n = len(channels[0])
		for _, ch := range channels[1:] {
			n = min(n, len(ch))
		}
	}

	b := &Buffer{channels: make([][]float64, len(channels)), numSamples: n}
	for i, ch := range channels {
		b.channels[i] = ch[:n:n]
	}

	return b
}

// NumChannels returns the current channel count.
func (b *Buffer) NumChannels() int {
	return len(b.channels)
}

// NumSamples returns the number of samples per channel.
func (b *Buffer) NumSamples() int {
	return b.numSamples
}

// Channel returns the samples of channel ch, or nil when ch is out of range.
func (b *Buffer) Channel(ch int) []float64 {
	if ch < 0 || ch >= len(b.channels) {
		return nil
	}

	return b.channels[ch]
}

// Channels returns all channel slices.
func (b *Buffer) Channels() [][]float64 {
	return b.channels
}

// Capacity returns the number of samples the backing array can hold
// before SetSize has to allocate.
func (b *Buffer) Capacity() int {
	return cap(b.data)
}

// SetSize changes the shape to numChannels x numSamples.
//
// Storage only grows: shrinking, or growing within the existing capacity,
// reuses the backing array. Sample contents are not preserved across a
// change of shape; callers overwrite or Clear what they need.
func (b *Buffer) SetSize(numChannels, numSamples int) {
	if numChannels < 0 {
		numChannels = 0
	}

	if numSamples < 0 {
		numSamples = 0
	}

	if numChannels == len(b.channels) && numSamples == b.numSamples && b.ownsStorage() {
		return
	}

	total := numChannels * numSamples
	if total > cap(b.data) {
		b.data = make([]float64, total)
	} else {
		b.data = b.data[:total]
	}

	if numChannels > cap(b.channels) {
		b.channels = make([][]float64, numChannels)
	} else {
		b.channels = b.channels[:numChannels]
	}

	for ch := range b.channels {
		start := ch * numSamples
		b.channels[ch] = b.data[start : start+numSamples : start+numSamples]
	}

	b.numSamples = numSamples
}

// Reserve grows the backing storage so that a later SetSize up to
// numChannels x numSamples does not allocate. The current shape is kept.
func (b *Buffer) Reserve(numChannels, numSamples int) {
	if numChannels <= 0 || numSamples <= 0 {
		return
	}

	if numChannels > cap(b.channels) {
		grown := make([][]float64, len(b.channels), numChannels)
		copy(grown, b.channels)
		b.channels = grown
	}

	current := len(b.channels) * b.numSamples

	total := max(numChannels*numSamples, current)
	if total <= cap(b.data) && b.ownsStorage() {
		return
	}

	// Re-layout the current shape onto the new array, keeping contents.
	data := make([]float64, current, total)
	for ch, src := range b.channels {
		start := ch * b.numSamples
		dst := data[start : start+b.numSamples : start+b.numSamples]
		copy(dst, src)
		b.channels[ch] = dst
	}

	b.data = data
}

// Clear sets every sample to 0.
func (b *Buffer) Clear() {
	for _, ch := range b.channels {
		clear(ch)
	}
}

// ClearChannel sets all samples of channel ch to 0.
// Out-of-range channels are ignored.
func (b *Buffer) ClearChannel(ch int) {
	clear(b.Channel(ch))
}

// CopyChannel copies n samples from src channel srcCh into channel dstCh.
// The count is clamped to both channel lengths; out-of-range channels are ignored.
func (b *Buffer) CopyChannel(dstCh int, src *Buffer, srcCh, n int) {
	dst := b.Channel(dstCh)
	s := src.Channel(srcCh)

	n = min(n, len(dst), len(s))
	if n <= 0 {
		return
	}

	copy(dst[:n], s[:n])
}

// Clone returns a deep copy with its own storage.
func (b *Buffer) Clone() *Buffer {
	c := New(len(b.channels), b.numSamples)
	for ch, src := range b.channels {
		copy(c.channels[ch], src)
	}

	return c
}

// Equal reports whether both buffers have the same shape and identical samples.
func (b *Buffer) Equal(o *Buffer) bool {
	if b.NumChannels() != o.NumChannels() || b.numSamples != o.numSamples {
		return false
	}

	for ch := range b.channels {
		x, y := b.channels[ch], o.channels[ch]
		for i := range x {
			if x[i] != y[i] {
				return false
			}
		}
	}

	return true
}

// ownsStorage reports whether the channel slices live in b.data.
// Buffers built with FromChannels alias caller memory and must be re-laid
// out before they are resized.
func (b *Buffer) ownsStorage() bool {
	if len(b.channels) == 0 || b.numSamples == 0 {
		return true
	}

	if len(b.data) == 0 {
		return false
	}

	return &b.channels[0][0] == &b.data[0]
}
