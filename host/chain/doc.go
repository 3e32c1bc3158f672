// Package chain implements the plugin chain engine: an ordered list of
// plugin instances that processes audio in series, with per-entry bypass,
// channel adaptation, lifecycle propagation and state persistence.
//
// A Chain is driven from two sides. Control goroutines call Append, Remove,
// Clear, SetBypassed, Prepare, Release, Export and Import. One real-time
// goroutine calls Process once per block. Process never locks: the entry
// list is an immutable snapshot swapped atomically by the control side,
// which waits for an in-flight block to finish before it destroys a removed
// plugin.
//
//	c := chain.New(registry, chain.WithLogger(logger))
//	defer c.Close()
//
//	if _, err := c.Append(desc); err != nil {
//		// non-fatal: the chain is unchanged
//	}
//	_ = c.Prepare(48000, 512)
//	c.Process(block, events) // audio goroutine
//
// Chain state is stored with the host/state container. After a partial
// restore (a plugin could not be loaded) later entries sit at lower
// positions than the ones recorded; ImportReport.Drifted lists them.
package chain
