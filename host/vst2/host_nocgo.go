//go:build !cgo

package vst2

import "github.com/cwbudde/algo-pluginhost/host/plugin"

// Instantiate implements plugin.Format. Loading needs cgo.
func (*Format) Instantiate(plugin.Descriptor, float64, int) (plugin.Plugin, error) {
	return nil, ErrUnavailable
}

// Describe implements plugin.Discoverer. Loading needs cgo.
func (*Format) Describe(string) ([]plugin.Descriptor, error) {
	return nil, ErrUnavailable
}
