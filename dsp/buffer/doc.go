// Package buffer provides the multichannel sample buffer shared by the
// host, the plugin chain and plugin implementations.
//
// A Buffer keeps one flat backing array and hands out per-channel slices
// into it. SetSize only ever grows that array, which lets a real-time
// caller reshape a scratch buffer every block without allocating once the
// largest shape has been seen.
package buffer
