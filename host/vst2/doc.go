// Package vst2 is the plugin format for VST 2.x shared libraries.
//
// Discovery walks the search paths for .so, .dll and .vst candidates and is
// pure Go. Loading goes through pipelined.dev/audio/vst2 and needs cgo;
// without it Instantiate and Describe return ErrUnavailable. A plugin's
// opaque state is its bank chunk. UIDs are derived from the install path, so
// moving a plugin changes its identity.
package vst2
