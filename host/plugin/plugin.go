package plugin

import "github.com/cwbudde/algo-pluginhost/dsp/buffer"

// Plugin is a runnable plugin instance as produced by a Format.
//
// Prepare, Release and Close are called from control goroutines.
// ProcessBlock is called from the real-time goroutine and must not block,
// allocate or perform I/O.
type Plugin interface {
	// Prepare readies the plugin for processing at the given rate with blocks
	// of at most maxBlockSize samples. It may be called again after Release
	// or whenever the context changes.
	Prepare(sampleRate float64, maxBlockSize int)

	// Release frees processing resources acquired by Prepare.
	Release()

	// NumInputChannels reports the total input channel count over all buses.
	NumInputChannels() int

	// NumOutputChannels reports the total output channel count over all buses.
	NumOutputChannels() int

	// ProcessBlock processes buf in place. The plugin may read and modify
	// the side-channel events.
	ProcessBlock(buf *buffer.Buffer, events *EventBuffer)

	// Close releases every resource held by the instance. The instance is
	// not used afterwards.
	Close() error
}

// StateSaver is implemented by plugins that can persist their internal
// configuration as an opaque blob.
type StateSaver interface {
	// SaveState returns the plugin's state. A nil or empty blob means the
	// plugin has nothing to persist.
	SaveState() ([]byte, error)

	// RestoreState applies a blob previously produced by SaveState.
	RestoreState(data []byte) error
}

// Editor is an on-screen surface owned by one chain entry.
type Editor interface {
	SetVisible(visible bool)
	Visible() bool
	ToFront()
	Close() error
}

// EditorProvider is implemented by plugins that can produce an Editor.
type EditorProvider interface {
	HasEditor() bool
	CreateEditor() (Editor, error)
}
