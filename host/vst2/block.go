package vst2

import "github.com/cwbudde/algo-pluginhost/dsp/buffer"

// blockRunner moves host blocks through fixed-size exchange buffers. The
// plugin always sees size frames: longer host blocks are split, a short
// final chunk is zero padded. Host channels beyond the plugin's are left
// untouched; missing host channels feed silence.
type blockRunner struct {
	in, out [][]float64
	size    int
	process func()
}

func newBlockRunner(in, out [][]float64, size int, process func()) blockRunner {
	return blockRunner{in: in, out: out, size: size, process: process}
}

func (r *blockRunner) run(buf *buffer.Buffer) {
	if r.size <= 0 || r.process == nil {
		return
	}

	n := buf.NumSamples()
	channels := min(buf.NumChannels(), len(r.in), len(r.out))

	for start := 0; start < n; start += r.size {
		m := min(r.size, n-start)

		for ch, dst := range r.in {
			if ch >= channels {
				clear(dst)
				continue
			}

			copy(dst, buf.Channel(ch)[start:start+m])
			clear(dst[m:])
		}

		r.process()

		for ch := range channels {
			copy(buf.Channel(ch)[start:start+m], r.out[ch][:m])
		}
	}
}
