package chain

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/cwbudde/algo-pluginhost/dsp/buffer"
	"github.com/cwbudde/algo-pluginhost/host/plugin"
)

var errUnavailable = errors.New("plugin unavailable")

// stubPlugin records lifecycle calls and applies gain then offset to every
// sample of its first channels.
type stubPlugin struct {
	mu sync.Mutex

	inputs, outputs int
	gain, offset    float64

	prepareCalls int
	releaseCalls int
	processCalls int
	closed       bool
	lastRate     float64
	lastBlock    int
	lastChannels int
	lastEvents   int
}

func (s *stubPlugin) Prepare(sampleRate float64, maxBlockSize int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prepareCalls++
	s.lastRate = sampleRate
	s.lastBlock = maxBlockSize
}

func (s *stubPlugin) Release() {
	s.mu.Lock()
	s.releaseCalls++
	s.mu.Unlock()
}

func (s *stubPlugin) NumInputChannels() int  { return s.inputs }
func (s *stubPlugin) NumOutputChannels() int { return s.outputs }

func (s *stubPlugin) ProcessBlock(buf *buffer.Buffer, events *plugin.EventBuffer) {
	s.mu.Lock()
	s.processCalls++
	s.lastChannels = buf.NumChannels()
	s.lastEvents = events.Len()
	s.mu.Unlock()

	for ch := range min(s.outputs, buf.NumChannels()) {
		samples := buf.Channel(ch)
		for i := range samples {
			samples[i] = samples[i]*s.gain + s.offset
		}
	}
}

func (s *stubPlugin) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	return nil
}

func (s *stubPlugin) counts() (prepare, release, process int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.prepareCalls, s.releaseCalls, s.processCalls
}

func (s *stubPlugin) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}

// statefulPlugin stores an opaque blob.
type statefulPlugin struct {
	stubPlugin

	blob       []byte
	restoreErr error
}

func (s *statefulPlugin) SaveState() ([]byte, error) {
	return append([]byte(nil), s.blob...), nil
}

func (s *statefulPlugin) RestoreState(data []byte) error {
	if s.restoreErr != nil {
		return s.restoreErr
	}

	s.blob = append([]byte(nil), data...)

	return nil
}

// stubEditor is a presentation surface that only tracks its state.
type stubEditor struct {
	visible    bool
	frontCalls int
	closed     bool
}

func (e *stubEditor) SetVisible(v bool) { e.visible = v }
func (e *stubEditor) Visible() bool     { return e.visible }
func (e *stubEditor) ToFront()          { e.frontCalls++ }

func (e *stubEditor) Close() error {
	e.closed = true

	return nil
}

// editorPlugin provides a stubEditor.
type editorPlugin struct {
	stubPlugin

	editor      *stubEditor
	createCalls int
	createErr   error
}

func (e *editorPlugin) HasEditor() bool { return true }

func (e *editorPlugin) CreateEditor() (plugin.Editor, error) {
	e.createCalls++
	if e.createErr != nil {
		return nil, e.createErr
	}

	e.editor = &stubEditor{}

	return e.editor, nil
}

// stubHost is a registry with one "test" format. The descriptor UID picks
// the plugin kind: gain2, offset1, mono, quad, stateful, editor, or any
// name registered in unavailable.
type stubHost struct {
	*plugin.Registry

	mu          sync.Mutex
	instances   []plugin.Plugin
	unavailable map[string]bool
}

func newStubHost(unavailable ...string) *stubHost {
	h := &stubHost{Registry: plugin.NewRegistry(), unavailable: map[string]bool{}}
	for _, uid := range unavailable {
		h.unavailable[uid] = true
	}

	h.MustRegister(plugin.NewFormat("test", h.instantiate))

	return h
}

func (h *stubHost) instantiate(d plugin.Descriptor, _ float64, _ int) (plugin.Plugin, error) {
	if h.unavailable[d.UID] {
		return nil, errUnavailable
	}

	var p plugin.Plugin

	switch d.UID {
	case "gain2":
		p = &stubPlugin{inputs: 2, outputs: 2, gain: 2}
	case "offset1":
		p = &stubPlugin{inputs: 2, outputs: 2, gain: 1, offset: 1}
	case "mono":
		p = &stubPlugin{inputs: 1, outputs: 1, gain: 3}
	case "quad":
		p = &stubPlugin{inputs: 4, outputs: 4, gain: 1, offset: 10}
	case "silent":
		p = &stubPlugin{inputs: 0, outputs: 2, gain: 0, offset: 99}
	case "stateful":
		p = &statefulPlugin{stubPlugin: stubPlugin{inputs: 2, outputs: 2, gain: 1}}
	case "editor":
		p = &editorPlugin{stubPlugin: stubPlugin{inputs: 2, outputs: 2, gain: 1}}
	default:
		return nil, fmt.Errorf("no test plugin %q", d.UID)
	}

	h.mu.Lock()
	h.instances = append(h.instances, p)
	h.mu.Unlock()

	return p, nil
}

func (h *stubHost) last() plugin.Plugin {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.instances) == 0 {
		return nil
	}

	return h.instances[len(h.instances)-1]
}

func desc(uid string) plugin.Descriptor {
	return plugin.Descriptor{Name: uid, Format: "test", UID: uid}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestChain(h *stubHost, opts ...Option) *Chain {
	return New(h, append([]Option{WithLogger(quietLogger())}, opts...)...)
}

func mustAppend(t testing.TB, c *Chain, d plugin.Descriptor) int {
	t.Helper()

	index, err := c.Append(d)
	if err != nil {
		t.Fatalf("Append(%s): %v", d.UID, err)
	}

	return index
}

// stereoBlock returns a 2 x n buffer with channel 0 = 1..n and channel 1 = -1..-n.
func stereoBlock(n int) *buffer.Buffer {
	b := buffer.New(2, n)
	for i := range n {
		b.Channel(0)[i] = float64(i + 1)
		b.Channel(1)[i] = -float64(i + 1)
	}

	return b
}

// recorder is a Listener that keeps every notification.
type recorder struct {
	mu       sync.Mutex
	changes  int
	bypasses []bypassEvent
	failures []*InstantiationError
}

type bypassEvent struct {
	index    int
	bypassed bool
}

func (r *recorder) ChainChanged() {
	r.mu.Lock()
	r.changes++
	r.mu.Unlock()
}

func (r *recorder) BypassChanged(index int, bypassed bool) {
	r.mu.Lock()
	r.bypasses = append(r.bypasses, bypassEvent{index, bypassed})
	r.mu.Unlock()
}

func (r *recorder) InstantiationFailed(err *InstantiationError) {
	r.mu.Lock()
	r.failures = append(r.failures, err)
	r.mu.Unlock()
}
