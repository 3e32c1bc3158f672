// Package catalog keeps track of the plugins installed on the machine.
//
// A KnownList is the persisted catalog, a YAML file in the user's
// configuration directory. A Scanner walks every discoverable format on a
// background goroutine, adds what it finds to the list and reports a
// Completion over a channel. A Watcher observes search paths with fsnotify
// so callers can rescan when plugin files change.
package catalog
