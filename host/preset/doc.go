// Package preset stores named chain states in a single bbolt file.
//
// A preset is the opaque blob returned by chain.Export. The store does not
// interpret it; restoring a preset is chain.Import of the loaded bytes.
package preset
