// Package plugin defines what the host knows about a plugin: the
// Descriptor that identifies a plugin type, the Plugin interface a running
// instance implements, the per-block EventBuffer, and the Registry of
// formats that turns descriptors into instances.
//
// Concrete formats live in sibling packages (builtin, vst2) and register
// themselves with a Registry at startup:
//
//	reg := plugin.NewRegistry()
//	reg.MustRegister(builtin.NewFormat())
//	p, err := reg.Instantiate(desc, 48000, 512)
package plugin
