// Command chainhost manages a plugin catalog and renders audio files
// through a plugin chain.
//
// Usage:
//
//	chainhost scan [--watch] [--rescan]
//	chainhost list [query]
//	chainhost render [flags] in.wav out.wav
//	chainhost preset list|save|show|delete
//
// Examples:
//
//	chainhost scan
//	chainhost list reverb
//	chainhost render --plugin builtin:gain --param 0:gain_db=-6 in.wav out.wav
//	chainhost preset save warm --plugin builtin:delay --param 0:mix=0.5
//	chainhost render --preset warm --metrics render.prom in.wav out.wav
package main

import "os"

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}
