package chain

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/cwbudde/algo-pluginhost/dsp/buffer"
	"github.com/cwbudde/algo-pluginhost/host/plugin"
)

const (
	// DefaultSampleRate is used to instantiate plugins before the first Prepare.
	DefaultSampleRate = 44100.0
	// DefaultBlockSize is used to instantiate plugins before the first Prepare.
	DefaultBlockSize = 512

	defaultScratchChannels = 2
	quiescePoll            = 100 * time.Microsecond
)

var (
	// ErrClosed is returned by mutations on a closed chain.
	ErrClosed = errors.New("chain: closed")
	// ErrInvalidContext is returned by Prepare for a non-positive rate or block size.
	ErrInvalidContext = errors.New("chain: invalid processing context")
)

// Instantiator creates plugin instances; *plugin.Registry implements it.
type Instantiator interface {
	Instantiate(d plugin.Descriptor, sampleRate float64, blockSize int) (plugin.Plugin, error)
}

// InstantiationError reports a descriptor the registry could not load.
type InstantiationError struct {
	Descriptor plugin.Descriptor
	Err        error
}

func (e *InstantiationError) Error() string {
	return fmt.Sprintf("chain: failed to load plugin %q: %v", e.Descriptor.Name, e.Err)
}

func (e *InstantiationError) Unwrap() error {
	return e.Err
}

// Context is the processing context shared by every entry of a chain.
type Context struct {
	SampleRate   float64
	MaxBlockSize int
	Prepared     bool
}

type config struct {
	logger          *slog.Logger
	sampleRate      float64
	blockSize       int
	scratchChannels int
}

// Option configures a Chain.
type Option func(*config)

// WithLogger sets the logger used for non-fatal failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithContext sets the sample rate and block size used to instantiate
// plugins before the first Prepare.
func WithContext(sampleRate float64, blockSize int) Option {
	return func(c *config) {
		if sampleRate > 0 {
			c.sampleRate = sampleRate
		}

		if blockSize > 0 {
			c.blockSize = blockSize
		}
	}
}

// WithScratchChannels sets the channel count the scratch buffer reserves
// on Prepare, before plugin requirements are taken into account.
func WithScratchChannels(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.scratchChannels = n
		}
	}
}

// entry is one owned slot of the chain.
type entry struct {
	id         uuid.UUID
	plugin     plugin.Plugin
	descriptor plugin.Descriptor
	bypassed   atomic.Bool

	// editor is created lazily and guarded by Chain.mu.
	editor plugin.Editor
}

// destroy tears the entry down: editor first, then the plugin.
func (e *entry) destroy() error {
	var errs []error

	if e.editor != nil {
		errs = append(errs, e.editor.Close())
		e.editor = nil
	}

	if e.plugin != nil {
		errs = append(errs, e.plugin.Close())
	}

	return errors.Join(errs...)
}

// snapshot is the immutable view the audio goroutine works on.
type snapshot struct {
	entries []*entry
	scratch *buffer.Buffer
	// reserved is the channel count scratch was reserved for.
	reserved int
}

// Chain is an ordered list of plugin instances processed in series.
//
// Mutations and lifecycle calls come from control goroutines and are
// serialised internally. Process is meant for a single real-time goroutine;
// it never takes a lock and sees every mutation no later than its next call.
type Chain struct {
	registry Instantiator
	logger   *slog.Logger

	scratchChannels int

	// mu serialises control-side operations and guards ctx, closed and
	// entry editors.
	mu     sync.Mutex
	ctx    Context
	closed bool

	snap     atomic.Pointer[snapshot]
	prepared atomic.Bool
	busy     atomic.Bool
	cycles   atomic.Uint64
	skipped  atomic.Uint64

	listeners listenerSet
}

// New creates an empty chain that instantiates plugins through registry.
func New(registry Instantiator, opts ...Option) *Chain {
	cfg := config{
		logger:          slog.Default(),
		sampleRate:      DefaultSampleRate,
		blockSize:       DefaultBlockSize,
		scratchChannels: defaultScratchChannels,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	c := &Chain{
		registry:        registry,
		logger:          cfg.logger,
		scratchChannels: cfg.scratchChannels,
		ctx: Context{
			SampleRate:   cfg.sampleRate,
			MaxBlockSize: cfg.blockSize,
		},
	}
	c.snap.Store(&snapshot{scratch: buffer.New(0, 0)})

	return c
}

// Append instantiates d and adds it at the end of the chain, returning its
// index. On failure the chain is unchanged and an *InstantiationError is
// returned and delivered to listeners.
func (c *Chain) Append(d plugin.Descriptor) (int, error) {
	index, err := c.append(d, nil)
	if err != nil {
		var ierr *InstantiationError
		if errors.As(err, &ierr) {
			c.listeners.instantiationFailed(ierr)
		}

		return -1, err
	}

	c.listeners.chainChanged()

	return index, nil
}

// append instantiates d and publishes it as the last entry. configure, when
// set, runs on the new entry before the snapshot is stored, so the audio
// goroutine never sees it half set up.
func (c *Chain) append(d plugin.Descriptor, configure func(e *entry)) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return -1, ErrClosed
	}

	p, err := c.registry.Instantiate(d, c.ctx.SampleRate, c.ctx.MaxBlockSize)
	if err != nil {
		c.logger.Warn("plugin instantiation failed",
			"plugin", d.Name, "format", d.Format, "error", err)

		return -1, &InstantiationError{Descriptor: d, Err: err}
	}

	if c.ctx.Prepared {
		p.Prepare(c.ctx.SampleRate, c.ctx.MaxBlockSize)
	}

	e := &entry{id: uuid.New(), plugin: p, descriptor: d}
	if configure != nil {
		configure(e)
	}

	old := c.snap.Load()
	next := &snapshot{
		entries:  make([]*entry, 0, len(old.entries)+1),
		scratch:  old.scratch,
		reserved: old.reserved,
	}
	next.entries = append(next.entries, old.entries...)
	next.entries = append(next.entries, e)

	// A wider plugin gets a fresh scratch buffer; the audio goroutine may
	// still be using the old one.
	if inputs := p.NumInputChannels(); c.ctx.Prepared && inputs > next.reserved {
		next.scratch = buffer.New(0, 0)
		next.scratch.Reserve(inputs, c.ctx.MaxBlockSize)
		next.reserved = inputs
	}

	c.snap.Store(next)

	c.logger.Debug("plugin added", "plugin", d.Name, "format", d.Format, "index", len(next.entries)-1)

	return len(next.entries) - 1, nil
}

// Remove destroys the entry at index. Later entries shift down by one.
// Out-of-range indices are ignored.
func (c *Chain) Remove(index int) {
	c.mu.Lock()

	old := c.snap.Load()
	if index < 0 || index >= len(old.entries) {
		c.mu.Unlock()

		return
	}

	next := &snapshot{
		entries:  make([]*entry, 0, len(old.entries)-1),
		scratch:  old.scratch,
		reserved: old.reserved,
	}
	next.entries = append(next.entries, old.entries[:index]...)
	next.entries = append(next.entries, old.entries[index+1:]...)

	c.snap.Store(next)
	c.quiesce()
	c.destroy(old.entries[index])

	c.mu.Unlock()

	c.listeners.chainChanged()
}

// Clear destroys every entry in order and fires one change notification.
func (c *Chain) Clear() {
	c.mu.Lock()
	_ = c.clearLocked()
	c.mu.Unlock()

	c.listeners.chainChanged()
}

func (c *Chain) clearLocked() error {
	old := c.snap.Load()
	c.snap.Store(&snapshot{scratch: old.scratch, reserved: old.reserved})
	c.quiesce()

	var errs []error
	for _, e := range old.entries {
		errs = append(errs, c.destroy(e))
	}

	return errors.Join(errs...)
}

func (c *Chain) destroy(e *entry) error {
	err := e.destroy()
	if err != nil {
		c.logger.Warn("plugin teardown failed", "plugin", e.descriptor.Name, "error", err)
	}

	return err
}

// quiesce waits until no Process call can still hold a snapshot published
// before quiesce was entered.
func (c *Chain) quiesce() {
	if !c.busy.Load() {
		return
	}

	start := c.cycles.Load()
	for c.busy.Load() && c.cycles.Load() == start {
		time.Sleep(quiescePoll)
	}
}

// Close clears the chain, stops processing and detaches all listeners.
// Further mutations fail with ErrClosed.
func (c *Chain) Close() error {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()

		return nil
	}

	c.prepared.Store(false)
	c.ctx.Prepared = false
	err := c.clearLocked()
	c.closed = true

	c.mu.Unlock()

	c.listeners.chainChanged()
	c.listeners.reset()

	return err
}

// Count returns the number of entries.
func (c *Chain) Count() int {
	return len(c.snap.Load().entries)
}

func (c *Chain) entryAt(index int) *entry {
	entries := c.snap.Load().entries
	if index < 0 || index >= len(entries) {
		return nil
	}

	return entries[index]
}

// DescriptorAt returns the descriptor of the entry at index.
func (c *Chain) DescriptorAt(index int) (plugin.Descriptor, bool) {
	e := c.entryAt(index)
	if e == nil {
		return plugin.Descriptor{}, false
	}

	return e.descriptor, true
}

// PluginAt returns the instance at index, or nil.
func (c *Chain) PluginAt(index int) plugin.Plugin {
	e := c.entryAt(index)
	if e == nil {
		return nil
	}

	return e.plugin
}

// EntryID returns the identifier of the entry at index. Unlike indices,
// identifiers stay with their entry across mutations.
func (c *Chain) EntryID(index int) (uuid.UUID, bool) {
	e := c.entryAt(index)
	if e == nil {
		return uuid.Nil, false
	}

	return e.id, true
}

// Descriptors returns the descriptors of all entries in chain order.
func (c *Chain) Descriptors() []plugin.Descriptor {
	entries := c.snap.Load().entries

	out := make([]plugin.Descriptor, len(entries))
	for i, e := range entries {
		out[i] = e.descriptor
	}

	return out
}

// SetBypassed sets the bypass flag of the entry at index and fires a
// bypass notification. Out-of-range indices are ignored.
func (c *Chain) SetBypassed(index int, bypassed bool) {
	c.mu.Lock()

	e := c.entryAt(index)
	if e == nil {
		c.mu.Unlock()

		return
	}

	e.bypassed.Store(bypassed)
	c.mu.Unlock()

	c.listeners.bypassChanged(index, bypassed)
}

// IsBypassed reports the bypass flag of the entry at index; false when out of range.
func (c *Chain) IsBypassed(index int) bool {
	e := c.entryAt(index)
	if e == nil {
		return false
	}

	return e.bypassed.Load()
}
