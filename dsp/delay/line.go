package delay

import "fmt"

// Line is a circular delay line for one channel.
type Line struct {
	buffer   []float64
	writePos int
}

// New returns a delay line holding up to size samples.
func New(size int) (*Line, error) {
	if size <= 0 {
		return nil, fmt.Errorf("delay size must be > 0: %d", size)
	}

	return &Line{buffer: make([]float64, size)}, nil
}

// Len returns the maximum delay in samples.
func (d *Line) Len() int {
	return len(d.buffer)
}

// Write pushes one sample.
func (d *Line) Write(sample float64) {
	d.buffer[d.writePos] = sample

	d.writePos++
	if d.writePos >= len(d.buffer) {
		d.writePos = 0
	}
}

// Read returns the sample written delay samples ago. Delays are clamped to
// [1, Len()].
func (d *Line) Read(delay int) float64 {
	size := len(d.buffer)
	if size == 0 {
		return 0
	}

	delay = min(max(delay, 1), size)

	readPos := d.writePos - delay
	if readPos < 0 {
		readPos += size
	}

	return d.buffer[readPos]
}

// Process runs an echo over block in place: each output sample is the dry
// input blended with the signal delay samples ago, and the delayed signal is
// fed back into the line scaled by feedback.
func (d *Line) Process(block []float64, delay int, feedback, mix float64) {
	dry := 1 - mix

	for i, x := range block {
		wet := d.Read(delay)
		d.Write(x + wet*feedback)
		block[i] = x*dry + wet*mix
	}
}

// Reset clears the line.
func (d *Line) Reset() {
	clear(d.buffer)
	d.writePos = 0
}
