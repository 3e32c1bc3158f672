package builtin

import (
	"errors"
	"fmt"
	"slices"

	"github.com/cwbudde/algo-pluginhost/host/plugin"
)

// FormatName is the descriptor format tag of built-in plugins.
const FormatName = "builtin"

const (
	manufacturer   = "algo-pluginhost"
	pluginVersion  = "1.0.0"
	defaultChannel = 2
)

// ErrUnknownPlugin is returned for a descriptor UID that names no built-in plugin.
var ErrUnknownPlugin = errors.New("builtin: unknown plugin")

type factory struct {
	descriptor plugin.Descriptor
	create     func(channels int) plugin.Plugin
}

var factories = []factory{
	{
		descriptor: builtinDescriptor("gain", "Gain", "Utility"),
		create:     func(ch int) plugin.Plugin { return NewGain(ch) },
	},
	{
		descriptor: builtinDescriptor("delay", "Delay", "Delay"),
		create:     func(ch int) plugin.Plugin { return NewDelay(ch) },
	},
	{
		descriptor: builtinDescriptor("meter", "Peak Meter", "Analyzer"),
		create:     func(ch int) plugin.Plugin { return NewMeter(ch) },
	},
	{
		descriptor: builtinDescriptor("spectrum", "Spectrum Analyzer", "Analyzer"),
		create:     func(ch int) plugin.Plugin { return NewSpectrum(ch) },
	},
}

func builtinDescriptor(uid, name, category string) plugin.Descriptor {
	return plugin.Descriptor{
		Name:         name,
		Format:       FormatName,
		Version:      pluginVersion,
		UID:          uid,
		Manufacturer: manufacturer,
		Category:     category,
		NumInputs:    defaultChannel,
		NumOutputs:   defaultChannel,
	}
}

// Descriptors returns the descriptors of every built-in plugin.
func Descriptors() []plugin.Descriptor {
	out := make([]plugin.Descriptor, len(factories))
	for i, f := range factories {
		out[i] = f.descriptor
	}

	return out
}

// Descriptor returns the built-in descriptor with the given UID.
func Descriptor(uid string) (plugin.Descriptor, bool) {
	i := slices.IndexFunc(factories, func(f factory) bool { return f.descriptor.UID == uid })
	if i < 0 {
		return plugin.Descriptor{}, false
	}

	return factories[i].descriptor, true
}

// Format instantiates built-in plugins. It implements plugin.Format and
// plugin.Discoverer; discovery never touches the filesystem.
type Format struct{}

// NewFormat returns the built-in format.
func NewFormat() *Format {
	return &Format{}
}

// Name implements plugin.Format.
func (*Format) Name() string { return FormatName }

// Instantiate implements plugin.Format. The descriptor's NumInputs selects
// the channel count; zero means stereo.
func (*Format) Instantiate(d plugin.Descriptor, _ float64, _ int) (plugin.Plugin, error) {
	i := slices.IndexFunc(factories, func(f factory) bool { return f.descriptor.UID == d.UID })
	if i < 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlugin, d.UID)
	}

	channels := d.NumInputs
	if channels <= 0 {
		channels = defaultChannel
	}

	return factories[i].create(channels), nil
}

// DefaultSearchPaths implements plugin.Discoverer.
func (*Format) DefaultSearchPaths() []string { return nil }

// FindCandidates implements plugin.Discoverer. Built-in plugins do not live
// on disk, so the candidates are their UIDs regardless of paths.
func (*Format) FindCandidates(_ []string) []string {
	out := make([]string, len(factories))
	for i, f := range factories {
		out[i] = f.descriptor.UID
	}

	return out
}

// Describe implements plugin.Discoverer.
func (*Format) Describe(candidate string) ([]plugin.Descriptor, error) {
	d, ok := Descriptor(candidate)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlugin, candidate)
	}

	return []plugin.Descriptor{d}, nil
}

// base carries the channel layout shared by every built-in plugin.
type base struct {
	channels int
}

func (b base) NumInputChannels() int  { return b.channels }
func (b base) NumOutputChannels() int { return b.channels }
