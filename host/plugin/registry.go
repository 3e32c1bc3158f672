package plugin

import (
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownFormat is returned when a descriptor names a format that is not registered.
var ErrUnknownFormat = errors.New("unknown plugin format")

var (
	errDuplicateFormat = errors.New("duplicate plugin format")
	errNilInstance     = errors.New("format returned no instance")
)

// Format turns descriptors of one plugin format into runnable instances.
type Format interface {
	// Name is the format tag stored in Descriptor.Format.
	Name() string

	// Instantiate loads the plugin described by d. It may perform disk I/O
	// and dynamic loading and must only be called from control goroutines.
	Instantiate(d Descriptor, sampleRate float64, blockSize int) (Plugin, error)
}

// Discoverer is implemented by formats that can enumerate installed plugins.
type Discoverer interface {
	// DefaultSearchPaths returns the platform's usual install locations.
	DefaultSearchPaths() []string

	// FindCandidates lists everything below paths that might hold a plugin.
	FindCandidates(paths []string) []string

	// Describe inspects one candidate and returns the plugin types it contains.
	Describe(candidate string) ([]Descriptor, error)
}

// InstantiateFunc builds one instance for a descriptor.
type InstantiateFunc func(d Descriptor, sampleRate float64, blockSize int) (Plugin, error)

type funcFormat struct {
	name string
	fn   InstantiateFunc
}

func (f funcFormat) Name() string { return f.name }

func (f funcFormat) Instantiate(d Descriptor, sampleRate float64, blockSize int) (Plugin, error) {
	return f.fn(d, sampleRate, blockSize)
}

// NewFormat adapts a function to the Format interface.
func NewFormat(name string, fn InstantiateFunc) Format {
	return funcFormat{name: name, fn: fn}
}

// Registry maps format tags to formats. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	formats map[string]Format
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{formats: make(map[string]Format)}
}

// Register adds a format under its name.
func (r *Registry) Register(f Format) error {
	if f == nil {
		return errors.New("nil format")
	}

	name := f.Name()
	if name == "" {
		return errors.New("empty format name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.formats[name]; exists {
		return fmt.Errorf("%w: %s", errDuplicateFormat, name)
	}

	r.formats[name] = f
	r.order = append(r.order, name)

	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(f Format) {
	err := r.Register(f)
	if err != nil {
		panic("plugin registry: " + err.Error())
	}
}

// Lookup returns the format registered under name, or nil.
func (r *Registry) Lookup(name string) Format {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.formats[name]
}

// Formats returns the registered formats in registration order.
func (r *Registry) Formats() []Format {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Format, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.formats[name])
	}

	return out
}

// Instantiate creates a plugin instance through the format named by d.Format.
func (r *Registry) Instantiate(d Descriptor, sampleRate float64, blockSize int) (Plugin, error) {
	err := d.Validate()
	if err != nil {
		return nil, err
	}

	f := r.Lookup(d.Format)
	if f == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, d.Format)
	}

	p, err := f.Instantiate(d, sampleRate, blockSize)
	if err != nil {
		return nil, err
	}

	if p == nil {
		return nil, fmt.Errorf("plugin: %s: %w", d.Format, errNilInstance)
	}

	return p, nil
}
