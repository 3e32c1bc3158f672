//go:build cgo

package vst2

import (
	"fmt"
	"math"
	"sync/atomic"
	"unsafe"

	vst "pipelined.dev/audio/vst2"
	"pipelined.dev/signal"

	"github.com/cwbudde/algo-pluginhost/dsp/buffer"
	"github.com/cwbudde/algo-pluginhost/host/plugin"
)

const (
	defaultChannels = 2
	vendorVersion   = 1000
)

var (
	vendorName  = []byte("algo-pluginhost\x00")
	productName = []byte("chainhost\x00")
)

// Instantiate implements plugin.Format. d.Path names the library to load.
func (*Format) Instantiate(d plugin.Descriptor, sampleRate float64, blockSize int) (plugin.Plugin, error) {
	if d.Path == "" {
		return nil, fmt.Errorf("vst2: %q has no path", d.Name)
	}

	return open(d.Path, channelsOf(d), sampleRate, blockSize)
}

// Describe implements plugin.Discoverer. The library is loaded once to
// prove it is a VST2 plugin and read its name.
func (*Format) Describe(candidate string) ([]plugin.Descriptor, error) {
	lib, err := vst.Open(candidate)
	if err != nil {
		return nil, fmt.Errorf("vst2: open %s: %w", candidate, err)
	}
	defer lib.Close()

	h := &hostState{}

	p := lib.Plugin(h.callback)
	if p == nil {
		return nil, fmt.Errorf("vst2: %s: no plugin entry point", candidate)
	}

	p.Start()
	defer p.Close()

	return []plugin.Descriptor{{
		Name:       displayName(candidate, lib.Name),
		Format:     FormatName,
		UID:        UIDForPath(candidate),
		Path:       candidate,
		NumInputs:  defaultChannels,
		NumOutputs: defaultChannels,
	}}, nil
}

func channelsOf(d plugin.Descriptor) int {
	if d.NumInputs > 0 {
		return d.NumInputs
	}

	return defaultChannels
}

// hostState answers the plugin's host callback queries.
type hostState struct {
	sampleRate atomic.Uint64
	blockSize  atomic.Int64
}

func (h *hostState) callback(op vst.HostOpcode, _ int32, _ int64, ptr unsafe.Pointer, _ float32) int64 {
	switch op {
	case vst.HostGetVendorVersion:
		return vendorVersion
	case vst.HostGetSampleRate:
		return int64(math.Float64frombits(h.sampleRate.Load()))
	case vst.HostGetBufferSize:
		return h.blockSize.Load()
	case vst.HostGetVendorString:
		copyCString(ptr, vendorName)
		return 1
	case vst.HostGetProductString:
		copyCString(ptr, productName)
		return 1
	default:
		return 0
	}
}

// copyCString writes s into the 64 byte string buffer the plugin passed.
func copyCString(ptr unsafe.Pointer, s []byte) {
	if ptr == nil {
		return
	}

	copy(unsafe.Slice((*byte)(ptr), 64), s)
}

// Plugin is a loaded VST2 instance. Its opaque state is the plugin's bank
// chunk.
type Plugin struct {
	lib      *vst.VST
	p        *vst.Plugin
	host     *hostState
	channels int

	in, out vst.DoubleBuffer
	runner  blockRunner
	running bool
}

func open(path string, channels int, sampleRate float64, blockSize int) (*Plugin, error) {
	lib, err := vst.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vst2: open %s: %w", path, err)
	}

	h := &hostState{}
	h.sampleRate.Store(math.Float64bits(sampleRate))
	h.blockSize.Store(int64(blockSize))

	p := lib.Plugin(h.callback)
	if p == nil {
		lib.Close()
		return nil, fmt.Errorf("vst2: %s: no plugin entry point", path)
	}

	p.Start()

	return &Plugin{lib: lib, p: p, host: h, channels: channels}, nil
}

func (v *Plugin) NumInputChannels() int  { return v.channels }
func (v *Plugin) NumOutputChannels() int { return v.channels }

// Prepare allocates the exchange buffers and resumes the plugin.
func (v *Plugin) Prepare(sampleRate float64, maxBlockSize int) {
	v.Release()

	v.host.sampleRate.Store(math.Float64bits(sampleRate))
	v.host.blockSize.Store(int64(maxBlockSize))

	v.p.SetSampleRate(signal.Frequency(sampleRate))
	v.p.SetBufferSize(maxBlockSize)

	v.in = vst.NewDoubleBuffer(v.channels, maxBlockSize)
	v.out = vst.NewDoubleBuffer(v.channels, maxBlockSize)

	in := make([][]float64, v.channels)
	out := make([][]float64, v.channels)

	for ch := range v.channels {
		in[ch] = v.in.Channel(ch)
		out[ch] = v.out.Channel(ch)
	}

	v.runner = newBlockRunner(in, out, maxBlockSize, v.processDouble)

	v.p.Resume()
	v.running = true
}

// Release suspends the plugin and frees the exchange buffers.
func (v *Plugin) Release() {
	if !v.running {
		return
	}

	v.p.Suspend()
	v.runner = blockRunner{}
	v.in.Free()
	v.out.Free()
	v.running = false
}

// ProcessBlock runs one block through the plugin in chunks of the prepared
// block size.
func (v *Plugin) ProcessBlock(buf *buffer.Buffer, _ *plugin.EventBuffer) {
	if !v.running {
		return
	}

	v.runner.run(buf)
}

func (v *Plugin) processDouble() {
	v.p.ProcessDouble(v.in, v.out)
}

// SaveState implements plugin.StateSaver.
func (v *Plugin) SaveState() ([]byte, error) {
	return v.p.GetBankData(), nil
}

// RestoreState implements plugin.StateSaver.
func (v *Plugin) RestoreState(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	v.p.SetBankData(data)

	return nil
}

// Close suspends and unloads the plugin.
func (v *Plugin) Close() error {
	v.Release()
	v.p.Close()

	return v.lib.Close()
}
