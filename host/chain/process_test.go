package chain

import (
	"math"
	"sync"
	"testing"

	"github.com/cwbudde/algo-pluginhost/dsp/buffer"
	"github.com/cwbudde/algo-pluginhost/host/plugin"
)

func prepared(t *testing.T, h *stubHost, uids ...string) *Chain {
	t.Helper()

	c := newTestChain(h)
	for _, uid := range uids {
		mustAppend(t, c, desc(uid))
	}

	if err := c.Prepare(48000, 64); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	return c
}

func assertSamples(t *testing.T, got []float64, want func(i int) float64) {
	t.Helper()

	for i, v := range got {
		if w := want(i); math.Abs(v-w) > 1e-12 {
			t.Fatalf("sample %d = %v, want %v", i, v, w)
		}
	}
}

func TestProcessNotPrepared(t *testing.T) {
	t.Parallel()

	h := newStubHost()
	c := newTestChain(h)
	mustAppend(t, c, desc("gain2"))

	buf := stereoBlock(8)
	c.Process(buf, nil)

	if !buf.Equal(stereoBlock(8)) {
		t.Fatal("unprepared chain modified the buffer")
	}

	if _, _, process := h.last().(*stubPlugin).counts(); process != 0 {
		t.Fatalf("plugin processed %d blocks before Prepare", process)
	}

	if got := c.Stats(); got.Skipped != 1 || got.Cycles != 0 {
		t.Fatalf("Stats = %+v, want 1 skipped", got)
	}
}

func TestProcessSerial(t *testing.T) {
	t.Parallel()

	c := prepared(t, newStubHost(), "gain2", "offset1")

	buf := stereoBlock(16)
	c.Process(buf, nil)

	assertSamples(t, buf.Channel(0), func(i int) float64 { return float64(i+1)*2 + 1 })
	assertSamples(t, buf.Channel(1), func(i int) float64 { return -float64(i+1)*2 + 1 })

	// Reversed order gives a different result.
	r := prepared(t, newStubHost(), "offset1", "gain2")

	buf = stereoBlock(16)
	r.Process(buf, nil)

	assertSamples(t, buf.Channel(0), func(i int) float64 { return (float64(i+1) + 1) * 2 })

	if got := c.Stats(); got.Cycles != 1 {
		t.Fatalf("Cycles = %d, want 1", got.Cycles)
	}
}

func TestProcessBypassIsIdentity(t *testing.T) {
	t.Parallel()

	for _, uid := range []string{"gain2", "offset1", "mono", "quad", "stateful"} {
		t.Run(uid, func(t *testing.T) {
			t.Parallel()

			c := prepared(t, newStubHost(), uid)
			c.SetBypassed(0, true)

			buf := stereoBlock(32)
			c.Process(buf, nil)

			if !buf.Equal(stereoBlock(32)) {
				t.Fatal("bypassed entry modified the buffer")
			}

			if _, _, process := c.PluginAt(0).(interface {
				counts() (int, int, int)
			}).counts(); process != 0 {
				t.Fatalf("bypassed plugin processed %d blocks", process)
			}
		})
	}
}

func TestProcessBypassEqualsRunningOthersAlone(t *testing.T) {
	t.Parallel()

	ab := prepared(t, newStubHost(), "gain2", "offset1")
	ab.SetBypassed(0, true)

	b := prepared(t, newStubHost(), "offset1")

	got := stereoBlock(64)
	ab.Process(got, nil)

	want := stereoBlock(64)
	b.Process(want, nil)

	if !got.Equal(want) {
		t.Fatalf("A(bypassed)+B = %v, B alone = %v", got.Channels(), want.Channels())
	}
}

func TestProcessChannelAdaptation(t *testing.T) {
	t.Parallel()

	t.Run("mono plugin in stereo chain", func(t *testing.T) {
		t.Parallel()

		c := prepared(t, newStubHost(), "mono")
		p := c.PluginAt(0).(*stubPlugin)

		buf := stereoBlock(8)
		c.Process(buf, nil)

		// The scratch keeps the host's two channels; the plugin only writes
		// its own output channel.
		if p.lastChannels != 2 {
			t.Fatalf("plugin saw %d channels, want 2", p.lastChannels)
		}

		assertSamples(t, buf.Channel(0), func(i int) float64 { return float64(i+1) * 3 })
		assertSamples(t, buf.Channel(1), func(i int) float64 { return -float64(i + 1) })
	})

	t.Run("wide plugin gets zeroed extra channels", func(t *testing.T) {
		t.Parallel()

		c := prepared(t, newStubHost(), "quad")
		p := c.PluginAt(0).(*stubPlugin)

		buf := stereoBlock(8)
		c.Process(buf, nil)

		if p.lastChannels != 4 {
			t.Fatalf("plugin saw %d channels, want 4", p.lastChannels)
		}

		if buf.NumChannels() != 2 {
			t.Fatalf("host buffer has %d channels, want 2", buf.NumChannels())
		}

		assertSamples(t, buf.Channel(0), func(i int) float64 { return float64(i+1) + 10 })
		assertSamples(t, buf.Channel(1), func(i int) float64 { return -float64(i+1) + 10 })
	})

	t.Run("extra channels are zeroed every block", func(t *testing.T) {
		t.Parallel()

		h := newStubHost()
		c := newTestChain(h)
		mustAppend(t, c, desc("quad"))

		probe := &channelProbe{}
		h.MustRegister(plugin.NewFormat("probe", func(plugin.Descriptor, float64, int) (plugin.Plugin, error) {
			return probe, nil
		}))
		mustAppend(t, c, plugin.Descriptor{Name: "probe", Format: "probe", UID: "probe"})

		if err := c.Prepare(48000, 64); err != nil {
			t.Fatalf("Prepare: %v", err)
		}

		for range 3 {
			c.Process(stereoBlock(8), nil)

			for ch := 2; ch < 4; ch++ {
				for i, v := range probe.seen[ch] {
					if v != 0 {
						t.Fatalf("extra channel %d sample %d = %v, want 0", ch, i, v)
					}
				}
			}
		}
	})

	t.Run("plugin without inputs is skipped", func(t *testing.T) {
		t.Parallel()

		c := prepared(t, newStubHost(), "silent")

		buf := stereoBlock(8)
		c.Process(buf, nil)

		if !buf.Equal(stereoBlock(8)) {
			t.Fatal("plugin without inputs modified the buffer")
		}
	})

	t.Run("block shorter than prepared size", func(t *testing.T) {
		t.Parallel()

		c := prepared(t, newStubHost(), "gain2")

		for _, n := range []int{64, 1, 17, 64} {
			buf := stereoBlock(n)
			c.Process(buf, nil)

			assertSamples(t, buf.Channel(0), func(i int) float64 { return float64(i+1) * 2 })
		}
	})
}

// channelProbe copies the scratch channels it is handed.
type channelProbe struct {
	seen [][]float64
}

func (p *channelProbe) Prepare(float64, int)   {}
func (p *channelProbe) Release()               {}
func (p *channelProbe) NumInputChannels() int  { return 4 }
func (p *channelProbe) NumOutputChannels() int { return 4 }
func (p *channelProbe) Close() error           { return nil }

func (p *channelProbe) ProcessBlock(buf *buffer.Buffer, _ *plugin.EventBuffer) {
	p.seen = p.seen[:0]
	for _, ch := range buf.Channels() {
		p.seen = append(p.seen, append([]float64(nil), ch...))
	}
}

func TestProcessPassesEvents(t *testing.T) {
	t.Parallel()

	c := prepared(t, newStubHost(), "gain2", "offset1")

	events := plugin.NewEventBuffer(4)
	events.Add(plugin.NewEvent(0, 0x90, 60, 100))
	events.Add(plugin.NewEvent(3, 0x80, 60, 0))

	c.Process(stereoBlock(8), events)

	for i := range 2 {
		if got := c.PluginAt(i).(*stubPlugin).lastEvents; got != 2 {
			t.Fatalf("plugin %d saw %d events, want 2", i, got)
		}
	}
}

func TestProcessDoesNotAllocate(t *testing.T) {
	c := prepared(t, newStubHost(), "gain2", "mono", "quad", "offset1")

	buf := stereoBlock(64)

	allocs := testing.AllocsPerRun(100, func() {
		c.Process(buf, nil)
	})

	if allocs != 0 {
		t.Fatalf("Process allocated %v times per block, want 0", allocs)
	}
}

func TestProcessConcurrentMutation(t *testing.T) {
	t.Parallel()

	h := newStubHost()
	c := prepared(t, h, "offset1")

	const blocks = 2000

	var wg sync.WaitGroup

	done := make(chan struct{})

	wg.Add(1)

	go func() {
		defer wg.Done()
		defer close(done)

		buf := buffer.New(2, 32)

		for range blocks {
			buf.Clear()
			c.Process(buf, nil)

			// Every entry type in this test adds a non-negative value to a
			// silent block, so a corrupted buffer shows up as NaN or a
			// negative sample.
			for _, ch := range buf.Channels() {
				for _, v := range ch {
					if math.IsNaN(v) || v < 0 {
						t.Errorf("corrupted sample %v", v)

						return
					}
				}
			}
		}
	}()

	mutate := func(i int) {
		switch i % 5 {
		case 0:
			_, _ = c.Append(desc("offset1"))
		case 1:
			_, _ = c.Append(desc("quad"))
		case 2:
			c.SetBypassed(0, i%2 == 0)
		case 3:
			c.Remove(0)
		default:
			if c.Count() > 8 {
				c.Clear()
			}
		}
	}

loop:
	for i := 0; ; i++ {
		select {
		case <-done:
			break loop
		default:
			mutate(i)
		}
	}

	wg.Wait()

	// The last mutation is visible to the next block.
	c.Clear()
	mustAppend(t, c, desc("offset1"))

	buf := buffer.New(2, 4)
	c.Process(buf, nil)

	assertSamples(t, buf.Channel(0), func(int) float64 { return 1 })
}

func TestRemoveWaitsForInFlightBlock(t *testing.T) {
	t.Parallel()

	h := newStubHost()
	c := newTestChain(h)

	gate := &gatedPlugin{entered: make(chan struct{}), release: make(chan struct{})}
	h.MustRegister(plugin.NewFormat("gated", func(plugin.Descriptor, float64, int) (plugin.Plugin, error) {
		return gate, nil
	}))
	mustAppend(t, c, plugin.Descriptor{Name: "gated", Format: "gated", UID: "g"})

	if err := c.Prepare(48000, 16); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	processed := make(chan struct{})

	go func() {
		c.Process(stereoBlock(16), nil)
		close(processed)
	}()

	<-gate.entered

	removed := make(chan struct{})

	go func() {
		c.Remove(0)
		close(removed)
	}()

	select {
	case <-removed:
		t.Fatal("Remove returned while the plugin was still processing")
	default:
	}

	close(gate.release)
	<-processed
	<-removed

	if !gate.closedAfterProcess {
		t.Fatal("plugin was closed during processing")
	}
}

// gatedPlugin blocks inside ProcessBlock until released.
type gatedPlugin struct {
	entered, release chan struct{}

	mu                 sync.Mutex
	processing         bool
	closedAfterProcess bool
}

func (g *gatedPlugin) Prepare(float64, int)   {}
func (g *gatedPlugin) Release()               {}
func (g *gatedPlugin) NumInputChannels() int  { return 2 }
func (g *gatedPlugin) NumOutputChannels() int { return 2 }

func (g *gatedPlugin) ProcessBlock(*buffer.Buffer, *plugin.EventBuffer) {
	g.mu.Lock()
	g.processing = true
	g.mu.Unlock()

	close(g.entered)
	<-g.release

	g.mu.Lock()
	g.processing = false
	g.mu.Unlock()
}

func (g *gatedPlugin) Close() error {
	g.mu.Lock()
	g.closedAfterProcess = !g.processing
	g.mu.Unlock()

	return nil
}
